// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

//go:build integration

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/mangaguard/internal/config"
	"github.com/tomtom215/mangaguard/internal/jobs"
	"github.com/tomtom215/mangaguard/internal/testinfra"
)

// TestQueue_ExternalNATS runs a producer and a consumer as separate queues
// against one NATS server, the way cmd/server and cmd/worker are deployed.
func TestQueue_ExternalNATS(t *testing.T) {
	testinfra.SkipIfNoDocker(t)

	ctx := context.Background()
	natsC, err := testinfra.NewNATSContainer(ctx)
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, natsC)

	cfg := &config.QueueConfig{
		Backend: "nats",
		Topic:   "moderation_runs",
		NATS: config.NATSConfig{
			URL:           natsC.URL,
			QueueGroup:    "it-workers",
			DurableName:   "it-worker",
			AckWait:       30 * time.Second,
			MaxReconnects: 1,
			ReconnectWait: 100 * time.Millisecond,
		},
	}
	producer, err := New(cfg, "")
	if err != nil {
		t.Fatalf("producer: %v", err)
	}
	t.Cleanup(func() { _ = producer.Close() })
	consumer, err := New(cfg, "")
	if err != nil {
		t.Fatalf("consumer: %v", err)
	}
	t.Cleanup(func() { _ = consumer.Close() })

	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	got := make(chan jobs.RunRequest, 1)
	go func() {
		_ = consumer.Consume(runCtx, func(_ context.Context, req jobs.RunRequest) error {
			select {
			case got <- req:
			default:
			}
			return nil
		})
	}()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for i := 0; ; i++ {
		if err := producer.Enqueue(runCtx, jobs.RunRequest{RunID: "it-run-" + time.Now().Format("150405.000000"), RequestedAt: time.Now()}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
		select {
		case req := <-got:
			if req.RunID == "" {
				t.Error("empty run id")
			}
			return
		case <-runCtx.Done():
			t.Fatalf("no message consumed after %d publishes", i+1)
		case <-ticker.C:
		}
	}
}
