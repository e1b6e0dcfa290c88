// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got '%s'", cfg.Level)
	}
	if cfg.Format != "json" {
		t.Errorf("expected default format 'json', got '%s'", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("expected default timestamp to be true")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"disabled", zerolog.Disabled},
		{"DEBUG", zerolog.DebugLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

// Tests below mutate the global logger and must not run in parallel.

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("entry_id", "abc").Msg("entry moderated")

	out := buf.String()
	if !strings.Contains(out, `"message":"entry moderated"`) {
		t.Errorf("missing message in output: %s", out)
	}
	if !strings.Contains(out, `"entry_id":"abc"`) {
		t.Errorf("missing field in output: %s", out)
	}
	if !strings.Contains(out, `"level":"info"`) {
		t.Errorf("missing level in output: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "warn", Format: "json", Output: &buf})
	defer Init(DefaultConfig())

	Info().Msg("hidden")
	Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info event should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn event should be written: %s", out)
	}
}

func TestErrIncludesError(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	defer Init(DefaultConfig())

	Err(errors.New("provider timeout")).Msg("scoring failed")

	if !strings.Contains(buf.String(), `"error":"provider timeout"`) {
		t.Errorf("expected error field, got: %s", buf.String())
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	defer Init(DefaultConfig())

	l := WithComponent("pipeline")
	l.Info().Msg("started")

	if !strings.Contains(buf.String(), `"component":"pipeline"`) {
		t.Errorf("expected component field, got: %s", buf.String())
	}
}

func TestCtxAddsIdentifiers(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "info", Output: &buf})
	defer Init(DefaultConfig())

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithCorrelationID(ctx, "corr-1")
	ctx = ContextWithRunID(ctx, "run-1")

	Ctx(ctx).Info().Msg("hello")

	out := buf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"correlation_id":"corr-1"`, `"run_id":"run-1"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output: %s", want, out)
		}
	}
}

func TestContextGetters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if CorrelationIDFromContext(ctx) != "" || RequestIDFromContext(ctx) != "" || RunIDFromContext(ctx) != "" {
		t.Error("empty context should yield empty IDs")
	}

	ctx = ContextWithNewCorrelationID(ctx)
	if id := CorrelationIDFromContext(ctx); len(id) != 8 {
		t.Errorf("correlation ID length = %d, want 8", len(id))
	}
	if id := GenerateRequestID(); len(id) != 36 {
		t.Errorf("request ID length = %d, want 36", len(id))
	}
}

func TestSlogHandler(t *testing.T) {
	var buf bytes.Buffer
	zl := NewTestLogger(&buf)
	logger := slog.New(NewSlogHandlerWithLogger(zl))

	logger.With("service", "worker").WithGroup("queue").Info("consumer started", "topic", "moderation.run", "count", 2)

	out := buf.String()
	for _, want := range []string{
		`"message":"consumer started"`,
		`"service":"worker"`,
		`"queue.topic":"moderation.run"`,
		`"queue.count":2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in output: %s", want, out)
		}
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogToZerologLevel(tt.in); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
