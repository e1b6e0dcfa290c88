// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package jobs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tomtom215/mangaguard/internal/config"
	"github.com/tomtom215/mangaguard/internal/logging"
	"github.com/tomtom215/mangaguard/internal/metrics"
)

// Waker makes sure a worker is ready to take a run.
type Waker interface {
	// Wake reports whether the worker answered.
	Wake(ctx context.Context) bool
}

// HTTPWaker probes the worker's wake endpoint. Hosted workers that sleep
// when idle are started by the first request and answer once booted.
type HTTPWaker struct {
	url      string
	attempts int
	backoff  time.Duration
	client   *http.Client
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewHTTPWaker creates a waker from cfg. An empty WakeURL means the worker
// runs alongside the server and is always reachable.
func NewHTTPWaker(cfg *config.WorkerConfig) *HTTPWaker {
	attempts := cfg.WakeAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &HTTPWaker{
		url:      cfg.WakeURL,
		attempts: attempts,
		backoff:  cfg.WakeBackoff,
		client:   &http.Client{Timeout: cfg.WakeTimeout},
		sleep:    sleepCtx,
	}
}

// Wake implements Waker: up to attempts GETs, 200 means reachable.
func (w *HTTPWaker) Wake(ctx context.Context) bool {
	if w.url == "" {
		return true
	}
	log := logging.Ctx(ctx)

	for attempt := 1; attempt <= w.attempts; attempt++ {
		err := w.probe(ctx)
		metrics.RecordWakeAttempt(err == nil)
		if err == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("Moderation worker is awake")
			}
			return true
		}
		log.Warn().Err(err).
			Int("attempt", attempt).
			Int("max_attempts", w.attempts).
			Msg("Wake worker attempt failed")

		if attempt == w.attempts {
			break
		}
		if err := w.sleep(ctx, w.backoff); err != nil {
			return false
		}
	}
	return false
}

func (w *HTTPWaker) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wake endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// AlwaysAwake is a Waker for an embedded worker.
type AlwaysAwake struct{}

// Wake implements Waker.
func (AlwaysAwake) Wake(context.Context) bool { return true }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
