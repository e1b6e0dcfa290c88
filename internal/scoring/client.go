// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package scoring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/mangaguard/internal/config"
	"github.com/tomtom215/mangaguard/internal/logging"
	"github.com/tomtom215/mangaguard/internal/metrics"
)

const (
	maxResponseSize  = 1 << 20 // 1MB
	maxErrorBodySize = 4 * 1024
)

// ErrProviderStatus is returned for non-2xx provider responses.
var ErrProviderStatus = errors.New("provider returned non-success status")

// providerClient runs provider HTTP calls behind a rate limiter, a per-call
// timeout and a circuit breaker.
//
// The breaker uses real time (sony/gobreaker), so tests exercise it with
// small request counts and never wait for it to half-open.
type providerClient struct {
	name    string
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]
}

func newProviderClient(name string, timeout time.Duration, rps float64, burst int, mod *config.ModerationConfig) *providerClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst < 1 {
		burst = 1
	}

	return &providerClient{
		name:    name,
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
		limiter: rate.NewLimiter(limit, burst),
		cb:      newBreaker(name, mod),
	}
}

func newBreaker(name string, mod *config.ModerationConfig) *gobreaker.CircuitBreaker[[]byte] {
	minRequests := uint32(5)
	ratio := 0.6
	interval := time.Minute
	timeout := 2 * time.Minute
	halfOpen := uint32(1)
	if mod != nil {
		if mod.BreakerMinRequests > 0 {
			minRequests = mod.BreakerMinRequests
		}
		if mod.BreakerFailureRatio > 0 {
			ratio = mod.BreakerFailureRatio
		}
		if mod.BreakerInterval > 0 {
			interval = mod.BreakerInterval
		}
		if mod.BreakerTimeout > 0 {
			timeout = mod.BreakerTimeout
		}
		if mod.BreakerHalfOpenMaxReq > 0 {
			halfOpen = mod.BreakerHalfOpenMaxReq
		}
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: halfOpen,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= ratio
			if shouldTrip {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})
}

// do sends the request built by newReq and returns the response body.
func (p *providerClient) do(ctx context.Context, newReq func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limiter: %w", p.name, err)
	}

	start := time.Now()
	body, err := p.cb.Execute(func() ([]byte, error) {
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		req, err := newReq(callCtx)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := p.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("HTTP request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("%w: %d: %s", ErrProviderStatus, resp.StatusCode, readBodyForError(resp.Body))
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return data, nil
	})
	metrics.RecordScoring(p.name, time.Since(start), err)
	p.recordBreaker(err)
	return body, err
}

func (p *providerClient) recordBreaker(err error) {
	if err == nil {
		metrics.CircuitBreakerRequests.WithLabelValues(p.name, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(p.name).Set(0)
		return
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerRequests.WithLabelValues(p.name, "rejected").Inc()
		return
	}
	metrics.CircuitBreakerRequests.WithLabelValues(p.name, "failure").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(p.name).Set(float64(p.cb.Counts().ConsecutiveFailures))
}

// State returns the breaker state, for health reporting.
func (p *providerClient) State() string {
	return stateToString(p.cb.State())
}

func readBodyForError(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return "(failed to read response body)"
	}
	return string(body)
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
