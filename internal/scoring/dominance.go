// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package scoring

import (
	"math"
	"sort"
)

// marginEpsilon is the distance under which two margins count as equal.
const marginEpsilon = 1e-9

// Dominance is the attribute with the largest margin over its own threshold.
type Dominance struct {
	Attribute string  `json:"attribute"`
	Score     float64 `json:"score"`
	Margin    float64 `json:"margin"`
}

// Dominant picks the attribute maximizing score - threshold. Attributes
// without a threshold and NaN scores are ignored. Margins within
// marginEpsilon are ties, won by the lexicographically smaller name.
// It returns false when no attribute qualifies.
func Dominant(scores ScoreMap, thresholds Thresholds) (Dominance, bool) {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var best Dominance
	found := false
	for _, k := range keys {
		threshold, ok := thresholds[k]
		if !ok {
			continue
		}
		score := scores[k]
		if math.IsNaN(score) {
			continue
		}
		margin := score - threshold
		if !found || margin > best.Margin+marginEpsilon {
			best = Dominance{Attribute: k, Score: score, Margin: margin}
			found = true
		}
	}
	return best, found
}

// highest returns the attribute with the largest raw score, using the same
// tie-break as Dominant. Used only for explanation fallbacks.
func highest(scores ScoreMap, skip func(string) bool) (string, float64, bool) {
	keys := make([]string, 0, len(scores))
	for k := range scores {
		if skip == nil || !skip(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var bestKey string
	var bestScore float64
	found := false
	for _, k := range keys {
		s := scores[k]
		if math.IsNaN(s) {
			continue
		}
		if !found || s > bestScore+marginEpsilon {
			bestKey, bestScore, found = k, s, true
		}
	}
	return bestKey, bestScore, found
}
