// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

/*
Package supervisor provides process supervision for Mangaguard using suture v4.

The tree has two layers so a failing queue consumer cannot take the API down:

	RootSupervisor ("mangaguard")
	├── WorkerSupervisor ("worker-layer")
	│   └── ConsumerService (queue consumer executing moderation runs)
	└── APISupervisor ("api-layer")
	    ├── HTTPServerService ("api-server", cmd/server)
	    └── HTTPServerService ("wake-server", cmd/worker)

cmd/server runs both layers when the worker is embedded. cmd/worker runs the
consumer and the wake endpoint only.

# Usage

	tree, err := supervisor.NewSupervisorTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddWorkerService(services.NewConsumerService(q, runner.Execute))
	tree.AddAPIService(services.NewHTTPServerService("api-server", srv, 10*time.Second))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

# Failure Handling

Each failure increments a counter that decays over FailureDecay seconds.
Above FailureThreshold the supervisor waits FailureBackoff before the next
restart. Defaults match suture's: 5 failures, 30s decay, 15s backoff.

Return behavior for services:
  - nil: stopped cleanly, not restarted
  - error: crashed, restarted
  - ctx.Err(): shutdown requested

DuckDB, Badger and Redis handles are not supervised. They are libraries or
clients opened once in main and closed after the tree returns.

# Debugging Shutdown Issues

Services that miss ShutdownTimeout are listed by UnstoppedServiceReport.
*/
package supervisor
