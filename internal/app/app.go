// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

// Package app wires the stores, the moderation pipeline, the job status
// backend and the run queue from a loaded configuration. cmd/server and
// cmd/worker share it so both processes assemble identical components.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/mangaguard/internal/api"
	"github.com/tomtom215/mangaguard/internal/audit"
	"github.com/tomtom215/mangaguard/internal/cache"
	"github.com/tomtom215/mangaguard/internal/config"
	"github.com/tomtom215/mangaguard/internal/database"
	"github.com/tomtom215/mangaguard/internal/flags"
	"github.com/tomtom215/mangaguard/internal/jobs"
	"github.com/tomtom215/mangaguard/internal/logging"
	"github.com/tomtom215/mangaguard/internal/moderation"
	"github.com/tomtom215/mangaguard/internal/queue"
	"github.com/tomtom215/mangaguard/internal/scoring"
)

// natsShutdownTimeout bounds the embedded NATS server shutdown.
const natsShutdownTimeout = 10 * time.Second

// App holds the assembled components. Close releases them in reverse order.
type App struct {
	Config   *config.Config
	DB       *database.DB
	Entries  audit.Store
	AuditLog *audit.Logger
	Flags    *flags.Service
	Pipeline *moderation.Pipeline
	Status   jobs.StatusStore
	Queue    *queue.Queue

	readiness []api.ReadinessCheck
	closers   []closer
}

type closer struct {
	name string
	fn   func() error
}

// New opens every component. On failure the components opened so far are
// closed before the error is returned.
func New(cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			if closeErr := a.Close(); closeErr != nil {
				logging.Error().Err(closeErr).Msg("Error closing partially initialized components")
			}
		}
	}()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.DB = db
	a.addCloser("database", db.Close)
	a.addCheck("database", db.Ping)

	a.Entries = audit.NewDuckDBStore(db.Conn())
	a.AuditLog = audit.NewLogger(a.Entries)
	a.Flags = flags.NewService(flags.NewDuckDBTransactor(db), flags.NewDuckDBStore(db.Conn()), a.AuditLog)
	a.Pipeline = moderation.New(
		a.Entries,
		a.Flags,
		scoring.NewTextAdapter(&cfg.Perspective, &cfg.Moderation),
		scoring.NewImageAdapter(&cfg.Sightengine, &cfg.Moderation),
	)

	status, closeStatus, err := OpenStatusStore(cfg)
	if err != nil {
		return nil, err
	}
	a.Status = status
	a.addCloser("status store", closeStatus)
	a.addCheck("status_store", func(ctx context.Context) error {
		_, _, err := status.Get(ctx, cfg.Jobs.StatusKey)
		return err
	})

	if err := a.openQueue(); err != nil {
		return nil, err
	}

	log := logging.WithComponent("app")
	log.Info().
		Str("db_path", cfg.Database.Path).
		Str("status_backend", cfg.Jobs.StatusBackend).
		Str("queue_backend", cfg.Queue.Backend).
		Bool("embedded_worker", cfg.Worker.Embedded).
		Msg("Components initialized")
	return a, nil
}

// OpenStatusStore builds the job status store named by cfg.Jobs.StatusBackend.
// The returned function releases it.
func OpenStatusStore(cfg *config.Config) (jobs.StatusStore, func() error, error) {
	switch cfg.Jobs.StatusBackend {
	case "memory":
		c := cache.New(cfg.Jobs.LockTTL, time.Minute)
		return jobs.NewMemoryStore(c), func() error { c.Stop(); return nil }, nil
	case "badger":
		db, err := jobs.OpenBadger(&cfg.Badger)
		if err != nil {
			return nil, nil, fmt.Errorf("open badger status store: %w", err)
		}
		return jobs.NewBadgerStore(db), db.Close, nil
	case "redis":
		client := jobs.NewRedisClient(&cfg.Redis)
		return jobs.NewRedisStore(client), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown job status backend %q", cfg.Jobs.StatusBackend)
	}
}

func (a *App) openQueue() error {
	cfg := a.Config
	natsURL := ""
	if cfg.Queue.Backend == "nats" && cfg.Queue.NATS.EmbeddedServer {
		srv, err := queue.NewEmbeddedServer(&cfg.Queue.NATS)
		if err != nil {
			return fmt.Errorf("start embedded NATS server: %w", err)
		}
		natsURL = srv.ClientURL()
		a.addCloser("embedded NATS server", func() error {
			ctx, cancel := context.WithTimeout(context.Background(), natsShutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		})
		a.addCheck("nats_server", func(context.Context) error {
			if !srv.IsRunning() {
				return errors.New("embedded NATS server is not running")
			}
			return nil
		})
		logging.Info().Str("url", natsURL).Msg("Embedded NATS server started")
	}

	q, err := queue.New(&cfg.Queue, natsURL)
	if err != nil {
		return fmt.Errorf("open run queue: %w", err)
	}
	a.Queue = q
	a.addCloser("run queue", q.Close)
	return nil
}

// Waker returns the waker the orchestrator uses. An embedded worker shares
// the process and is always awake.
func (a *App) Waker() jobs.Waker {
	if a.Config.Worker.Embedded {
		return jobs.AlwaysAwake{}
	}
	return jobs.NewHTTPWaker(&a.Config.Worker)
}

// Orchestrator builds the run orchestrator over the status store and queue.
func (a *App) Orchestrator() *jobs.Orchestrator {
	return jobs.NewOrchestrator(a.Status, a.Waker(), a.Queue, &a.Config.Jobs)
}

// Runner builds the worker-side executor.
func (a *App) Runner() *jobs.Runner {
	return jobs.NewRunner(a.Status, a.Pipeline, &a.Config.Jobs)
}

// HandleRun is the queue handler that executes one run.
func (a *App) HandleRun(runner *jobs.Runner) queue.Handler {
	return func(ctx context.Context, req jobs.RunRequest) error {
		_, err := runner.Execute(ctx, req)
		return err
	}
}

// Readiness returns the dependency probes for /health/ready.
func (a *App) Readiness() []api.ReadinessCheck {
	out := make([]api.ReadinessCheck, len(a.readiness))
	copy(out, a.readiness)
	return out
}

// APIHandler builds the operator API handler.
func (a *App) APIHandler() *api.Handler {
	return api.NewHandler(api.Deps{
		AuditLog:  a.AuditLog,
		Entries:   a.Entries,
		Flags:     a.Flags,
		Jobs:      a.Orchestrator(),
		Readiness: a.Readiness(),
	})
}

// Close releases components in reverse order of opening. It is safe to
// call more than once.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func (a *App) addCheck(name string, fn func(ctx context.Context) error) {
	a.readiness = append(a.readiness, api.ReadinessCheck{Name: name, Check: fn})
}
