// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

// Package scoring wraps the external classifiers used by the moderation
// pipeline. Each Adapter turns one provider response into a flat
// attribute->score map and answers three questions about it: is it unsafe,
// which attribute dominates, and how to explain the verdict to a moderator.
//
// Provider failures never surface as errors: an adapter that cannot get an
// answer returns an empty ScoreMap, which callers treat as "no signal".
package scoring

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ScoreMap maps attribute names to scores in [0, 1].
type ScoreMap map[string]float64

// Thresholds maps attribute names to the score at which they trip.
type Thresholds map[string]float64

// Clone returns a copy of m.
func (m ScoreMap) Clone() ScoreMap {
	out := make(ScoreMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Adapter is one scoring provider.
type Adapter interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// Score classifies content. An empty map means no signal.
	Score(ctx context.Context, content string) (ScoreMap, error)
	IsUnsafe(scores ScoreMap) bool
	Explain(scores ScoreMap) string
	Dominant(scores ScoreMap) (Dominance, bool)
}

// Verdict bundles the decisions an Adapter makes about one ScoreMap.
type Verdict struct {
	Unsafe    bool
	Reason    string
	Dominance Dominance
	// HasDominant is false when no scored attribute has a threshold.
	HasDominant bool
}

// Evaluate runs every decision of a against scores.
func Evaluate(a Adapter, scores ScoreMap) Verdict {
	d, ok := a.Dominant(scores)
	return Verdict{
		Unsafe:      a.IsUnsafe(scores),
		Reason:      a.Explain(scores),
		Dominance:   d,
		HasDominant: ok,
	}
}

// titleLabel turns "severe_toxicity" into "Severe Toxicity".
func titleLabel(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

// truncateRunes cuts s to at most n characters.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
