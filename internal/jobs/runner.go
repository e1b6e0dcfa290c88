// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package jobs

import (
	"context"
	"fmt"

	"github.com/tomtom215/mangaguard/internal/config"
	"github.com/tomtom215/mangaguard/internal/logging"
	"github.com/tomtom215/mangaguard/internal/moderation"
)

// Pipeline is the work a Runner executes.
type Pipeline interface {
	Run(ctx context.Context) (moderation.Summary, error)
}

// Runner is the worker side of the job state machine.
type Runner struct {
	status   statusWriter
	pipeline Pipeline
}

// NewRunner creates a runner.
func NewRunner(store StatusStore, pipeline Pipeline, cfg *config.JobsConfig) *Runner {
	return &Runner{status: newStatusWriter(store, cfg), pipeline: pipeline}
}

// Execute runs the pipeline for req, moving the status from queued through
// running to completed or failed. The run error is returned to the caller.
//
// A request whose queued marker is gone is dropped with ErrNotQueued. The
// marker expired or belongs to another run, and running anyway would break
// single-flight.
func (r *Runner) Execute(ctx context.Context, req RunRequest) (summary moderation.Summary, err error) {
	ctx = logging.ContextWithRunID(ctx, req.RunID)
	log := logging.Ctx(ctx)

	started, err := r.status.swap(ctx, StateQueued, StateRunning)
	if err != nil {
		// The outcome of the swap is unknown; a queued marker left behind
		// would block new runs until it expires.
		if _, failErr := r.status.swap(context.WithoutCancel(ctx), StateQueued, StateFailed); failErr != nil {
			log.Error().Err(failErr).Msg("Failed to record failed job status")
		}
		return summary, err
	}
	if !started {
		current, readErr := r.status.read(ctx)
		if readErr != nil {
			log.Error().Err(readErr).Msg("Failed to read job status")
		}
		log.Warn().Str("status", string(current)).Msg("Dropping run request that is no longer queued")
		return summary, fmt.Errorf("%w: run %s, status is %s", ErrNotQueued, req.RunID, current)
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("moderation run panicked: %v", p)
		}
		final := StateCompleted
		if err != nil {
			final = StateFailed
		}
		// The run's context may already be done; the result must still land.
		recorded, setErr := r.status.swap(context.WithoutCancel(ctx), StateRunning, final)
		switch {
		case setErr != nil:
			log.Error().Err(setErr).Msg("Failed to record job result")
		case !recorded:
			log.Warn().Str("result", string(final)).Msg("Job status changed during the run, result not recorded")
		}
	}()

	log.Info().Time("requested_at", req.RequestedAt).Msg("Moderation run picked up")
	summary, err = r.pipeline.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Moderation run failed")
		return summary, fmt.Errorf("moderation run %s: %w", req.RunID, err)
	}
	return summary, nil
}
