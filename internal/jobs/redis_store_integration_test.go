// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

//go:build integration

package jobs

import (
	"context"
	"testing"

	"github.com/tomtom215/mangaguard/internal/config"
	"github.com/tomtom215/mangaguard/internal/testinfra"
)

func TestRedisStore_Container(t *testing.T) {
	testinfra.SkipIfNoDocker(t)

	ctx := context.Background()
	redisC, err := testinfra.NewRedisContainer(ctx)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, redisC)

	client := NewRedisClient(&config.RedisConfig{Addr: redisC.Addr})
	t.Cleanup(func() { _ = client.Close() })
	s := NewRedisStore(client)
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	exerciseStatusStore(t, s)

	// A server and a worker share the status only through Redis.
	orch := NewOrchestrator(s, AlwaysAwake{}, &recordingEnqueuer{store: s}, testJobsConfig)
	res, err := orch.RequestRun(ctx)
	if err != nil {
		t.Fatalf("RequestRun: %v", err)
	}
	if res.Status != StateQueued {
		t.Fatalf("status = %s, want queued", res.Status)
	}

	otherClient := NewRedisClient(&config.RedisConfig{Addr: redisC.Addr})
	t.Cleanup(func() { _ = otherClient.Close() })
	v, ok, err := NewRedisStore(otherClient).Get(ctx, testJobsConfig.StatusKey)
	if err != nil || !ok || v != string(StateQueued) {
		t.Errorf("second client reads %q, %v, %v; want queued", v, ok, err)
	}
}
