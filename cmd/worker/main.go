// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

// Package main is the standalone moderation worker.
//
// The worker consumes run requests from the NATS queue and executes the
// moderation pipeline. It serves GET /wake and /metrics on
// WORKER_HOST:WORKER_PORT so the API server can wake it before enqueueing
// (WORKER_WAKE_URL on the server side).
//
// The worker opens DUCKDB_PATH read-write. DuckDB admits one read-write
// process per database file, so the API server and the worker must not hold
// the same file at the same time; deployments that share one database run
// the embedded worker instead (WORKER_EMBEDDED=true on cmd/server).
//
// Usage:
//
//	export QUEUE_BACKEND=nats NATS_URL=nats://nats:4222
//	export JOB_STATUS_BACKEND=redis REDIS_ADDR=redis:6379
//	export WORKER_EMBEDDED=false WORKER_PORT=3902
//	./mangaguard-worker
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

	if cfg.Queue.Backend != "nats" {
		logging.Fatal().Str("queue_backend", cfg.Queue.Backend).Msg("Standalone worker requires QUEUE_BACKEND=nats")
	}
	if cfg.Jobs.StatusBackend == "memory" {
		logging.Warn().Msg("JOB_STATUS_BACKEND=memory is not shared with the API server; run status will not be visible there")
	}

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Msg("Starting Mangaguard worker")

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
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	wakeServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Worker.ListenHost, cfg.Worker.ListenPort),
		Handler:           api.WakeRouter(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService("wake-server", wakeServer, cfg.Server.ShutdownTimeout))
	tree.AddWorkerService(services.NewConsumerService(components.Queue, components.HandleRun(components.Runner())))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", wakeServer.Addr).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Worker stopped")
}
