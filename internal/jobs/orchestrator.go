// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/mangaguard/internal/config"
	"github.com/tomtom215/mangaguard/internal/logging"
	"github.com/tomtom215/mangaguard/internal/metrics"
)

// Enqueuer hands a run request to the worker.
type Enqueuer interface {
	Enqueue(ctx context.Context, req RunRequest) error
}

// statusReadAttempts bounds how often ReadStatus re-reads after losing a
// terminal result to a concurrent reader or request.
const statusReadAttempts = 3

// statusWriter writes states with the TTL matching their kind.
type statusWriter struct {
	store     StatusStore
	key       string
	lockTTL   time.Duration
	resultTTL time.Duration
}

func newStatusWriter(store StatusStore, cfg *config.JobsConfig) statusWriter {
	return statusWriter{
		store:     store,
		key:       cfg.StatusKey,
		lockTTL:   cfg.LockTTL,
		resultTTL: cfg.ResultTTL,
	}
}

func (w statusWriter) ttl(s State) time.Duration {
	if s.Terminal() {
		return w.resultTTL
	}
	return w.lockTTL
}

func (w statusWriter) set(ctx context.Context, s State) error {
	if err := w.store.Set(ctx, w.key, string(s), w.ttl(s)); err != nil {
		return fmt.Errorf("set job status %s: %w", s, err)
	}
	metrics.RecordJobStatus(string(s))
	return nil
}

func (w statusWriter) claim(ctx context.Context) (bool, error) {
	ok, err := w.store.SetNX(ctx, w.key, string(StateStarting), w.lockTTL)
	if err != nil {
		return false, fmt.Errorf("claim job status: %w", err)
	}
	if ok {
		metrics.RecordJobStatus(string(StateStarting))
	}
	return ok, nil
}

// swap moves the status from one state to another only if it still holds
// from.
func (w statusWriter) swap(ctx context.Context, from, to State) (bool, error) {
	ok, err := w.store.CompareAndSwap(ctx, w.key, string(from), string(to), w.ttl(to))
	if err != nil {
		return false, fmt.Errorf("set job status %s from %s: %w", to, from, err)
	}
	if ok {
		metrics.RecordJobStatus(string(to))
	}
	return ok, nil
}

// consume deletes a terminal result only if it is still the stored value.
func (w statusWriter) consume(ctx context.Context, s State) (bool, error) {
	ok, err := w.store.CompareAndDelete(ctx, w.key, string(s))
	if err != nil {
		return false, fmt.Errorf("consume job status %s: %w", s, err)
	}
	return ok, nil
}

func (w statusWriter) read(ctx context.Context) (State, error) {
	v, ok, err := w.store.Get(ctx, w.key)
	if err != nil {
		return "", fmt.Errorf("read job status: %w", err)
	}
	if !ok {
		return StateIdle, nil
	}
	s := State(v)
	if !s.Valid() {
		logging.Ctx(ctx).Warn().Str("value", v).Msg("Unknown job status, treating as idle")
		return StateIdle, nil
	}
	return s, nil
}

// Orchestrator is the operator side of the job state machine.
type Orchestrator struct {
	status   statusWriter
	waker    Waker
	enqueuer Enqueuer
	now      func() time.Time
	newID    func() string
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(store StatusStore, waker Waker, enqueuer Enqueuer, cfg *config.JobsConfig) *Orchestrator {
	return &Orchestrator{
		status:   newStatusWriter(store, cfg),
		waker:    waker,
		enqueuer: enqueuer,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

// RequestRun starts a run unless one is in flight.
func (o *Orchestrator) RequestRun(ctx context.Context) (*RequestResult, error) {
	log := logging.Ctx(ctx)

	current, err := o.status.read(ctx)
	if err != nil {
		metrics.RecordJobRequest("error")
		return nil, err
	}
	if current.InFlight() {
		metrics.RecordJobRequest("already_running")
		return nil, fmt.Errorf("%w: status is %s", ErrAlreadyRunning, current)
	}
	if current.Terminal() {
		// An unread result must not block a new run. If it changed since the
		// read, the claim below decides.
		if _, err := o.status.consume(ctx, current); err != nil {
			metrics.RecordJobRequest("error")
			return nil, err
		}
	}

	claimed, err := o.status.claim(ctx)
	if err != nil {
		metrics.RecordJobRequest("error")
		return nil, err
	}
	if !claimed {
		metrics.RecordJobRequest("already_running")
		return nil, ErrAlreadyRunning
	}

	if !o.waker.Wake(ctx) {
		o.fail(ctx)
		metrics.RecordJobRequest("worker_unreachable")
		log.Warn().Msg("Moderation worker unreachable, run not queued")
		return nil, ErrWorkerUnreachable
	}

	req := RunRequest{RunID: o.newID(), RequestedAt: o.now()}
	// queued is written before publishing so a fast worker's running is not
	// overwritten.
	if err := o.status.set(ctx, StateQueued); err != nil {
		o.fail(ctx)
		metrics.RecordJobRequest("error")
		return nil, err
	}
	if err := o.enqueuer.Enqueue(ctx, req); err != nil {
		o.fail(ctx)
		metrics.RecordJobRequest("error")
		return nil, fmt.Errorf("enqueue moderation run: %w", err)
	}

	metrics.RecordJobRequest("queued")
	log.Info().Str("run_id", req.RunID).Msg("Moderation run queued")
	return &RequestResult{RunID: req.RunID, Status: StateQueued, Message: MessageQueued}, nil
}

// ReadStatus returns the current status. A completed or failed result is
// returned once and then reset to idle.
func (o *Orchestrator) ReadStatus(ctx context.Context) (*StatusView, error) {
	var s State
	for attempt := 0; attempt < statusReadAttempts; attempt++ {
		var err error
		s, err = o.status.read(ctx)
		if err != nil {
			return nil, err
		}
		if !s.Terminal() {
			break
		}
		consumed, err := o.status.consume(ctx, s)
		if err != nil {
			return nil, err
		}
		if consumed {
			break
		}
		// Another reader took this result or a new run replaced it.
	}
	return &StatusView{Status: s, Message: s.Message()}, nil
}

func (o *Orchestrator) fail(ctx context.Context) {
	if err := o.status.set(ctx, StateFailed); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to record failed job status")
	}
}
