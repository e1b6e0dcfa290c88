// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/mangaguard/internal/config"
)

func newTestWaker(url string) (*HTTPWaker, *[]time.Duration) {
	w := NewHTTPWaker(&config.WorkerConfig{
		WakeURL:      url,
		WakeAttempts: 3,
		WakeTimeout:  time.Second,
		WakeBackoff:  2 * time.Second,
	})
	var sleeps []time.Duration
	w.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return w, &sleeps
}

func TestHTTPWaker_NoURLIsReachable(t *testing.T) {
	t.Parallel()
	w, _ := newTestWaker("")
	if !w.Wake(context.Background()) {
		t.Error("empty wake URL should count as reachable")
	}
}

func TestHTTPWaker_SucceedsAfterRetries(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	w, sleeps := newTestWaker(server.URL + "/wake")
	if !w.Wake(context.Background()) {
		t.Fatal("worker answering on the third attempt should be reachable")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if len(*sleeps) != 2 || (*sleeps)[0] != 2*time.Second {
		t.Errorf("backoffs = %v, want two 2s waits", *sleeps)
	}
}

func TestHTTPWaker_GivesUp(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	w, sleeps := newTestWaker(server.URL)
	if w.Wake(context.Background()) {
		t.Fatal("worker never answering 200 should be unreachable")
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
	if len(*sleeps) != 2 {
		t.Errorf("no backoff expected after the last attempt, got %d waits", len(*sleeps))
	}
}

func TestHTTPWaker_TimeoutCountsAsFailure(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	w, _ := newTestWaker(server.URL)
	w.attempts = 1
	w.client.Timeout = 50 * time.Millisecond
	if w.Wake(context.Background()) {
		t.Error("timed out probe should be unreachable")
	}
}

func TestHTTPWaker_StopsOnCancel(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	w, _ := newTestWaker(server.URL)
	w.sleep = sleepCtx
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if w.Wake(ctx) {
		t.Error("cancelled wake should fail")
	}
}
