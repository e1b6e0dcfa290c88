// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

// Package jobs coordinates on-demand moderation runs.
//
// The run status is one string stored under a fixed key in a StatusStore:
//
//	idle -> starting -> queued -> running -> completed | failed
//	              \-> failed (worker unreachable or enqueue error)
//
// An absent key reads as idle. In-flight states are written with the lock
// TTL so a crashed worker cannot wedge the machine; completed and failed are
// written with the shorter result TTL and are consumed by the first
// ReadStatus that sees them.
//
// Transitions that depend on the stored value use CompareAndSwap or
// CompareAndDelete, so a worker only starts from queued and a consumed
// result never takes a newer marker with it.
package jobs

import (
	"errors"
	"time"
)

// State is a job status value.
type State string

// Job states.
const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateStarting, StateQueued, StateRunning, StateCompleted, StateFailed:
		return true
	}
	return false
}

// InFlight reports whether a run is starting, queued or running.
func (s State) InFlight() bool {
	return s == StateStarting || s == StateQueued || s == StateRunning
}

// Terminal reports whether s is a one-shot result state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Operator-facing messages.
const (
	MessageIdle              = "No moderation run in progress."
	MessageStarting          = "Moderation run is starting."
	MessageQueued            = "Moderation run is queued."
	MessageRunning           = "Moderation run is in progress."
	MessageCompleted         = "Moderation run completed."
	MessageFailed            = "Moderation run failed."
	MessageAlreadyRunning    = "A moderation run is already in progress."
	MessageWorkerUnreachable = "Moderation worker is unreachable. Try again later."
)

// Message returns the operator message for s.
func (s State) Message() string {
	switch s {
	case StateStarting:
		return MessageStarting
	case StateQueued:
		return MessageQueued
	case StateRunning:
		return MessageRunning
	case StateCompleted:
		return MessageCompleted
	case StateFailed:
		return MessageFailed
	default:
		return MessageIdle
	}
}

var (
	// ErrAlreadyRunning is returned by RequestRun while a run is in flight.
	ErrAlreadyRunning = errors.New("moderation run already in progress")

	// ErrWorkerUnreachable is returned by RequestRun when the wake probe fails.
	ErrWorkerUnreachable = errors.New("moderation worker unreachable")

	// ErrNotQueued is returned by Runner.Execute when the status no longer
	// holds the queued marker for the request.
	ErrNotQueued = errors.New("moderation run is not queued")
)

// StatusView is what the operator surface renders.
type StatusView struct {
	Status  State  `json:"status"`
	Message string `json:"message"`
}

// RunRequest is the message handed to the worker.
type RunRequest struct {
	RunID       string    `json:"run_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// RequestResult describes an accepted run request.
type RequestResult struct {
	RunID   string `json:"run_id"`
	Status  State  `json:"status"`
	Message string `json:"message"`
}
