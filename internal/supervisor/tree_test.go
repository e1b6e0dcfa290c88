// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

// countingService fails failN times, then runs until canceled.
type countingService struct {
	name   string
	failN  int32
	starts atomic.Int32
}

func (s *countingService) Serve(ctx context.Context) error {
	n := s.starts.Add(1)
	if n <= s.failN {
		return errors.New("boom")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return s.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSupervisorTree_Defaults(t *testing.T) {
	t.Parallel()
	tree, err := NewSupervisorTree(testLogger(), TreeConfig{})
	if err != nil {
		t.Fatalf("NewSupervisorTree: %v", err)
	}
	if tree.config != DefaultTreeConfig() {
		t.Errorf("config = %+v, want defaults", tree.config)
	}
	if tree.Root() == nil {
		t.Error("Root() is nil")
	}
}

func TestNewSupervisorTree_KeepsOverrides(t *testing.T) {
	t.Parallel()
	cfg := TreeConfig{FailureThreshold: 2, FailureDecay: 1, FailureBackoff: time.Second, ShutdownTimeout: time.Second}
	tree, err := NewSupervisorTree(testLogger(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if tree.config != cfg {
		t.Errorf("config = %+v, want %+v", tree.config, cfg)
	}
}

func TestSupervisorTree_RunsBothLayers(t *testing.T) {
	t.Parallel()
	tree, err := NewSupervisorTree(testLogger(), TreeConfig{FailureBackoff: 10 * time.Millisecond, ShutdownTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}

	worker := &countingService{name: "worker", failN: 2}
	api := &countingService{name: "api"}
	tree.AddWorkerService(worker)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.After(2 * time.Second)
	for worker.starts.Load() < 3 || api.starts.Load() < 1 {
		select {
		case <-deadline:
			t.Fatalf("worker starts=%d api starts=%d", worker.starts.Load(), api.starts.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	// Worker restarts must not restart the API service.
	if got := api.starts.Load(); got != 1 {
		t.Errorf("api started %d times, want 1", got)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("tree stopped with %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
}
