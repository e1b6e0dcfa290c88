// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package scoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/mangaguard/internal/config"
)

const sampleCheckResponse = `{
	"status": "success",
	"request": {"id": "req_1"},
	"nudity": {
		"sexual_activity": 0.01,
		"sexual_display": 0.02,
		"erotica": 0.03,
		"suggestive_classes": {
			"bikini": 0.50,
			"cleavage": 0.10,
			"cleavage_categories": {"very_revealing": 0.01},
			"lingerie": 0.05
		},
		"context": {
			"sea_lake_pool": 0.60,
			"indoor_other": 0.10
		}
	},
	"gore": {"prob": 0.04, "classes": {"blood": 0.01}},
	"offensive": {"prob": 0.02}
}`

func newImageAdapter(t *testing.T, handler http.HandlerFunc) *ImageAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewImageAdapter(&config.SightengineConfig{
		APIUser:   "user",
		APISecret: "secret",
		URL:       server.URL + "/1.0/check.json",
		Timeout:   2 * time.Second,
	}, nil)
}

func TestImageAdapterScore(t *testing.T) {
	t.Parallel()

	a := newImageAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if q.Get("models") != "nudity-2.0,gore,offensive" {
			t.Errorf("models = %q", q.Get("models"))
		}
		if q.Get("url") != "https://cdn.example.com/pool.jpg" {
			t.Errorf("url = %q", q.Get("url"))
		}
		if q.Get("api_user") != "user" || q.Get("api_secret") != "secret" {
			t.Errorf("credentials missing: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(sampleCheckResponse))
	})

	scores, err := a.Score(context.Background(), "https://cdn.example.com/pool.jpg")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	want := ScoreMap{
		"sexual_activity":       0.01,
		"sexual_display":        0.02,
		"erotica":               0.03,
		"suggestive_bikini":     0.50,
		"suggestive_cleavage":   0.10,
		"suggestive_lingerie":   0.05,
		"context_sea_lake_pool": 0.60,
		"context_indoor_other":  0.10,
		"gore":                  0.04,
		"offensive":             0.02,
	}
	if len(scores) != len(want) {
		t.Errorf("scores = %v, want %v", scores, want)
	}
	for k, v := range want {
		if scores[k] != v {
			t.Errorf("scores[%s] = %v, want %v", k, scores[k], v)
		}
	}
	if _, ok := scores["suggestive_cleavage_categories"]; ok {
		t.Error("nested non-numeric values should be ignored")
	}

	// 0.50 * 0.7 = 0.35, which does not strictly exceed 0.35.
	if a.IsUnsafe(scores) {
		t.Error("bikini at a pool should be safe after context adjustment")
	}
}

func TestImageAdapterEmptyURLMakesNoCall(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	a := newImageAdapter(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })

	scores, err := a.Score(context.Background(), "  ")
	if err != nil || len(scores) != 0 {
		t.Errorf("Score = %v, %v", scores, err)
	}
	if calls.Load() != 0 {
		t.Error("provider should not be called for an empty URL")
	}
}

func TestImageAdapterFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status failure", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"failure","error":{"type":"media_error","message":"image not reachable"}}`))
		}},
		{"http 500", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"garbage", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := newImageAdapter(t, tt.handler)
			scores, err := a.Score(context.Background(), "https://cdn.example.com/a.png")
			if err != nil {
				t.Fatalf("provider errors should not surface, got %v", err)
			}
			if len(scores) != 0 {
				t.Errorf("scores = %v, want empty", scores)
			}
		})
	}
}

func TestParseCheckResponseGoreProbability(t *testing.T) {
	t.Parallel()

	scores, err := parseCheckResponse([]byte(`{"status":"success","gore":{"probability":0.4}}`))
	if err != nil {
		t.Fatal(err)
	}
	if scores["gore"] != 0.4 {
		t.Errorf("gore = %v, want 0.4", scores["gore"])
	}
}

func TestImageAdapterDecisions(t *testing.T) {
	t.Parallel()

	a := NewImageAdapter(&config.SightengineConfig{URL: "http://unused"}, nil)
	tests := []struct {
		name       string
		scores     ScoreMap
		wantUnsafe bool
		wantReason string
	}{
		{
			name:       "empty",
			scores:     ScoreMap{},
			wantReason: "Image flagged for review by automated moderation.",
		},
		{
			name:       "context only",
			scores:     ScoreMap{"context_sea_lake_pool": 0.9},
			wantReason: "Image flagged for review by automated moderation.",
		},
		{
			name:       "explicit",
			scores:     ScoreMap{"sexual_display": 0.40, "suggestive_bikini": 0.40},
			wantUnsafe: true,
			wantReason: "Explicit content detected: Sexual Display (score 0.40).",
		},
		{
			name:       "explicit at threshold is safe",
			scores:     ScoreMap{"erotica": 0.15},
			wantUnsafe: false,
			wantReason: "Explicit content detected: Erotica (score 0.15).",
		},
		{
			name:       "suggestive without pool",
			scores:     ScoreMap{"suggestive_bikini": 0.50, "context_sea_lake_pool": 0.2},
			wantUnsafe: true,
			wantReason: "Suggestive content detected: Bikini (score 0.50).",
		},
		{
			name:       "suggestive other at pool uses adjusted score",
			scores:     ScoreMap{"suggestive_other": 0.60, "context_sea_lake_pool": 0.5},
			wantUnsafe: true,
			wantReason: "Suggestive content detected: Other (score 0.42).",
		},
		{
			name:       "lingerie is not dampened at pool",
			scores:     ScoreMap{"suggestive_lingerie": 0.40, "context_sea_lake_pool": 0.9},
			wantUnsafe: true,
			wantReason: "Suggestive content detected: Lingerie (score 0.40).",
		},
		{
			name:       "gore",
			scores:     ScoreMap{"gore": 0.30, "offensive": 0.10},
			wantUnsafe: true,
			wantReason: "Gore detected (score 0.30).",
		},
		{
			name:       "offensive",
			scores:     ScoreMap{"gore": 0.10, "offensive": 0.45},
			wantUnsafe: true,
			wantReason: "Offensive content detected (score 0.45).",
		},
		{
			name:       "explicit margin beats higher suggestive score",
			scores:     ScoreMap{"suggestive_bikini": 0.50, "sexual_display": 0.35},
			wantUnsafe: true,
			wantReason: "Explicit content detected: Sexual Display (score 0.35).",
		},
		{
			name:       "pool adjustment changes the headline",
			scores:     ScoreMap{"suggestive_other": 0.60, "suggestive_lingerie": 0.45, "context_sea_lake_pool": 0.5},
			wantUnsafe: true,
			wantReason: "Suggestive content detected: Lingerie (score 0.45).",
		},
		{
			name:       "unknown class falls back",
			scores:     ScoreMap{"weapon_firearm": 0.8},
			wantReason: "Image flagged due to weapon firearm (score 0.80).",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := a.IsUnsafe(tt.scores); got != tt.wantUnsafe {
				t.Errorf("IsUnsafe = %v, want %v", got, tt.wantUnsafe)
			}
			if got := a.Explain(tt.scores); got != tt.wantReason {
				t.Errorf("Explain = %q, want %q", got, tt.wantReason)
			}
		})
	}
}

func TestAdjustImageScoresDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := ScoreMap{"suggestive_bikini": 0.5, "context_sea_lake_pool": 0.6}
	out := AdjustImageScores(in)
	if in["suggestive_bikini"] != 0.5 {
		t.Error("input map was modified")
	}
	if out["suggestive_bikini"] >= 0.5 {
		t.Errorf("adjusted = %v", out["suggestive_bikini"])
	}
}

func TestImageThreshold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key    string
		want   float64
		wantOK bool
	}{
		{"sexual_activity", 0.15, true},
		{"suggestive_miniskirt", 0.35, true},
		{"gore", 0.25, true},
		{"offensive", 0.30, true},
		{"context_sea_lake_pool", 0, false},
		{"weapon", 0, false},
	}
	for _, tt := range tests {
		got, ok := ImageThreshold(tt.key)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ImageThreshold(%q) = %v, %v; want %v, %v", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}
