// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

// Package testinfra starts Docker containers for integration tests.
//
// It uses testcontainers-go to run the external services a split
// deployment depends on: Redis for the shared job status and NATS
// JetStream for the run queue.
//
//	func TestRedisStore(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    redisC, err := testinfra.NewRedisContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, redisC)
//
//	    client := jobs.NewRedisClient(&config.RedisConfig{Addr: redisC.Addr})
//	    ...
//	}
//
// Every file carries the integration build tag:
//
//	go test -tags integration ./internal/...
package testinfra
