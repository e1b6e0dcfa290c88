// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package scoring

import (
	"math"
	"testing"
)

func TestDominant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		scores     ScoreMap
		thresholds Thresholds
		wantAttr   string
		wantOK     bool
	}{
		{
			name:       "margin beats raw score",
			scores:     ScoreMap{"a": 0.70, "b": 0.40},
			thresholds: Thresholds{"a": 0.65, "b": 0.20},
			wantAttr:   "b",
			wantOK:     true,
		},
		{
			name:       "unthresholded attributes ignored",
			scores:     ScoreMap{"context_pool": 0.99, "gore": 0.10},
			thresholds: Thresholds{"gore": 0.25},
			wantAttr:   "gore",
			wantOK:     true,
		},
		{
			name:       "all below threshold still picks the closest",
			scores:     ScoreMap{"toxicity": 0.10, "profanity": 0.35},
			thresholds: TextThresholds,
			wantAttr:   "profanity",
			wantOK:     true,
		},
		{
			name:       "tie goes to the smaller name",
			scores:     ScoreMap{"b": 0.25, "a": 0.65},
			thresholds: Thresholds{"a": 0.6, "b": 0.2},
			wantAttr:   "a",
			wantOK:     true,
		},
		{
			name:       "empty map",
			scores:     ScoreMap{},
			thresholds: TextThresholds,
			wantOK:     false,
		},
		{
			name:       "nothing thresholded",
			scores:     ScoreMap{"context_indoor": 0.9},
			thresholds: Thresholds{"gore": 0.25},
			wantOK:     false,
		},
		{
			name:       "NaN skipped",
			scores:     ScoreMap{"a": math.NaN(), "b": 0.1},
			thresholds: Thresholds{"a": 0.1, "b": 0.5},
			wantAttr:   "b",
			wantOK:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, ok := Dominant(tt.scores, tt.thresholds)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && d.Attribute != tt.wantAttr {
				t.Errorf("attribute = %q, want %q", d.Attribute, tt.wantAttr)
			}
			if ok && d.Score != tt.scores[d.Attribute] {
				t.Errorf("score = %v, want %v", d.Score, tt.scores[d.Attribute])
			}
		})
	}
}

func TestDominantDeterministic(t *testing.T) {
	t.Parallel()

	scores := ScoreMap{"c": 0.5, "b": 0.5, "a": 0.5, "d": 0.5}
	thresholds := Thresholds{"a": 0.1, "b": 0.1, "c": 0.1, "d": 0.1}
	for i := 0; i < 50; i++ {
		d, _ := Dominant(scores, thresholds)
		if d.Attribute != "a" {
			t.Fatalf("iteration %d: attribute = %q, want a", i, d.Attribute)
		}
	}
}

func TestTitleLabel(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"severe_toxicity": "Severe Toxicity",
		"identity_attack": "Identity Attack",
		"sexual_display":  "Sexual Display",
		"BIKINI":          "Bikini",
		"":                "",
	}
	for in, want := range tests {
		if got := titleLabel(in); got != want {
			t.Errorf("titleLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	t.Parallel()

	if got := truncateRunes("こんにちは世界", 5); got != "こんにちは" {
		t.Errorf("got %q", got)
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
}
