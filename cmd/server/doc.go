// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

/*
Package main is the entry point for the Mangaguard API server.

Mangaguard records an audit entry for every change to manga titles, chapters,
pages, comments and reader profiles, scores the changed content with a text
toxicity provider (Perspective) and an image safety provider (Sightengine),
and keeps a queue of flagged content for moderators to resolve.

# Application Architecture

The server runs under a Suture v4 supervisor tree:

	RootSupervisor ("mangaguard")
	├── WorkerSupervisor ("worker-layer")
	│   └── run-consumer (only when WORKER_EMBEDDED=true)
	└── APISupervisor ("api-layer")
	    └── api-server (Chi router, /api/v1 and /metrics)

Component initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON or console output
 3. Database: DuckDB holding audit entries and flagged content
 4. Job status store: memory, BadgerDB or Redis
 5. Run queue: in-process Go channel or NATS JetStream via Watermill
 6. Supervisor Tree: Suture v4 process supervision
 7. HTTP Server: Chi router with middleware stack

# Configuration

	HTTP_PORT=3901               # API port
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console
	DUCKDB_PATH=/data/mangaguard.duckdb

	PERSPECTIVE_API_KEY=<key>    # text scoring
	SIGHTENGINE_USER=<user>      # image scoring
	SIGHTENGINE_SECRET=<secret>

	JOB_STATUS_BACKEND=memory    # memory, badger or redis
	QUEUE_BACKEND=memory         # memory or nats
	WORKER_EMBEDDED=true         # consume runs in this process

With WORKER_EMBEDDED=false the server only enqueues runs. It wakes the
standalone worker (cmd/worker) at WORKER_WAKE_URL before each enqueue and
needs a shared status store (redis) and queue (nats).

# Signal Handling

On SIGINT or SIGTERM the supervisor tree is canceled:

 1. The HTTP server stops accepting connections and drains in-flight requests
 2. The run consumer stops; a run in progress is canceled and recorded as failed
 3. Services that missed the shutdown timeout are reported
 4. The queue, status store and database are closed

# Usage Examples

Development:

	export LOG_FORMAT=console DUCKDB_PATH=./data/mangaguard.duckdb
	go run ./cmd/server

Production with Redis status and an embedded NATS server:

	export ENVIRONMENT=production
	export JOB_STATUS_BACKEND=redis REDIS_ADDR=redis:6379
	export QUEUE_BACKEND=nats NATS_EMBEDDED=true NATS_STORE_DIR=/data/nats
	./mangaguard
*/
package main
