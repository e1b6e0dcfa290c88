// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/mangaguard/internal/api"
	"github.com/tomtom215/mangaguard/internal/app"
	"github.com/tomtom215/mangaguard/internal/config"
	"github.com/tomtom215/mangaguard/internal/logging"
	"github.com/tomtom215/mangaguard/internal/supervisor"
	"github.com/tomtom215/mangaguard/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Msg("Starting Mangaguard with supervisor tree")

	components, err := app.New(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize components")
	}
	defer func() {
		if err := components.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing components")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	router := api.NewRouter(components.APIHandler(), api.NewChiMiddleware(api.NewChiMiddlewareConfig(&cfg.Security)))
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService("api-server", server, cfg.Server.ShutdownTimeout))

	if cfg.Worker.Embedded {
		tree.AddWorkerService(services.NewConsumerService(components.Queue, components.HandleRun(components.Runner())))
		logging.Info().Str("queue_backend", cfg.Queue.Backend).Msg("Embedded run consumer added to supervisor tree")
	} else {
		logging.Info().Str("wake_url", cfg.Worker.WakeURL).Msg("Runs are executed by the standalone worker")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// The channel carries a single result and is never closed.
	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
