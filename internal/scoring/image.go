// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package scoring

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mangaguard/internal/config"
	"github.com/tomtom215/mangaguard/internal/logging"
)

// Image score key prefixes.
const (
	SuggestivePrefix = "suggestive_"
	ContextPrefix    = "context_"
)

// Image thresholds trip when a score is strictly greater than the value.
const (
	explicitThreshold   = 0.15
	suggestiveThreshold = 0.35
	goreThreshold       = 0.25
	offensiveThreshold  = 0.30
)

// Pool and beach scenes make swimwear look suggestive; damp those classes.
const (
	poolContextKey    = "context_sea_lake_pool"
	poolContextMin    = 0.5
	poolContextFactor = 0.7
)

var explicitClasses = []string{"sexual_activity", "sexual_display", "erotica"}

const imageModels = "nudity-2.0,gore,offensive"

const genericImageReason = "Image flagged for review by automated moderation."

// ErrProviderFailure is a 2xx response whose body reports status "failure".
var ErrProviderFailure = errors.New("provider reported failure")

// ImageAdapter scores image URLs with a Sightengine-style check endpoint.
type ImageAdapter struct {
	client    *providerClient
	apiUser   string
	apiSecret string
	endpoint  string
}

// NewImageAdapter builds the adapter. mod may be nil for default breaker settings.
func NewImageAdapter(cfg *config.SightengineConfig, mod *config.ModerationConfig) *ImageAdapter {
	return &ImageAdapter{
		client:    newProviderClient("sightengine-api", cfg.Timeout, cfg.RateLimit, cfg.Burst, mod),
		apiUser:   cfg.APIUser,
		apiSecret: cfg.APISecret,
		endpoint:  cfg.URL,
	}
}

// Name implements Adapter.
func (a *ImageAdapter) Name() string { return "sightengine" }

// BreakerState reports the circuit breaker state.
func (a *ImageAdapter) BreakerState() string { return a.client.State() }

// Score implements Adapter. The returned map holds raw provider scores,
// context classes included; the pool adjustment is applied by the decision
// methods, not here.
func (a *ImageAdapter) Score(ctx context.Context, imageURL string) (ScoreMap, error) {
	imageURL = strings.TrimSpace(imageURL)
	if imageURL == "" {
		return ScoreMap{}, nil
	}

	u, err := url.Parse(a.endpoint)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Sightengine URL is invalid")
		return ScoreMap{}, nil
	}
	q := u.Query()
	q.Set("models", imageModels)
	q.Set("url", imageURL)
	q.Set("api_user", a.apiUser)
	q.Set("api_secret", a.apiSecret)
	u.RawQuery = q.Encode()
	reqURL := u.String()

	body, err := a.client.do(ctx, func(callCtx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(callCtx, http.MethodGet, reqURL, http.NoBody)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ScoreMap{}, ctx.Err()
		}
		logging.Ctx(ctx).Error().Err(err).Msg("Sightengine API request failed")
		return ScoreMap{}, nil
	}

	scores, err := parseCheckResponse(body)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Sightengine API response rejected")
		return ScoreMap{}, nil
	}
	return scores, nil
}

func parseCheckResponse(body []byte) (ScoreMap, error) {
	var resp map[string]interface{}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode check response: %w", err)
	}
	if status, _ := resp["status"].(string); status == "failure" {
		msg := ""
		if e, ok := resp["error"].(map[string]interface{}); ok {
			msg, _ = e["message"].(string)
		}
		return nil, fmt.Errorf("%w: %s", ErrProviderFailure, msg)
	}

	scores := ScoreMap{}
	if nudity, ok := resp["nudity"].(map[string]interface{}); ok {
		for _, key := range explicitClasses {
			if v, ok := nudity[key].(float64); ok {
				scores[key] = v
			}
		}
		flattenInto(scores, SuggestivePrefix, nudity["suggestive_classes"])
		flattenInto(scores, ContextPrefix, nudity["context"])
	}
	if gore, ok := resp["gore"].(map[string]interface{}); ok {
		if v, ok := gore["prob"].(float64); ok {
			scores["gore"] = v
		} else if v, ok := gore["probability"].(float64); ok {
			scores["gore"] = v
		}
	}
	if offensive, ok := resp["offensive"].(map[string]interface{}); ok {
		if v, ok := offensive["prob"].(float64); ok {
			scores["offensive"] = v
		}
	}
	return scores, nil
}

// flattenInto copies numeric children of group into scores under prefix.
// Nested objects (e.g. per-class sub-categories) are skipped.
func flattenInto(scores ScoreMap, prefix string, group interface{}) {
	m, ok := group.(map[string]interface{})
	if !ok {
		return
	}
	for name, value := range m {
		if v, ok := value.(float64); ok {
			scores[prefix+name] = v
		}
	}
}

// ImageThreshold returns the threshold for key, or false for context classes
// and unknown keys.
func ImageThreshold(key string) (float64, bool) {
	switch {
	case strings.HasPrefix(key, ContextPrefix):
		return 0, false
	case strings.HasPrefix(key, SuggestivePrefix):
		return suggestiveThreshold, true
	case key == "gore":
		return goreThreshold, true
	case key == "offensive":
		return offensiveThreshold, true
	}
	for _, c := range explicitClasses {
		if key == c {
			return explicitThreshold, true
		}
	}
	return 0, false
}

// AdjustImageScores applies the pool-context rule and returns a new map.
func AdjustImageScores(scores ScoreMap) ScoreMap {
	adjusted := scores.Clone()
	if scores[poolContextKey] < poolContextMin {
		return adjusted
	}
	for key, v := range scores {
		if strings.HasPrefix(key, SuggestivePrefix+"bikini") || strings.HasPrefix(key, SuggestivePrefix+"other") {
			adjusted[key] = v * poolContextFactor
		}
	}
	return adjusted
}

func imageThresholds(scores ScoreMap) Thresholds {
	t := make(Thresholds, len(scores))
	for key := range scores {
		if threshold, ok := ImageThreshold(key); ok {
			t[key] = threshold
		}
	}
	return t
}

// IsUnsafe implements Adapter: any adjusted, thresholded score strictly above
// its threshold.
func (a *ImageAdapter) IsUnsafe(scores ScoreMap) bool {
	for key, score := range AdjustImageScores(scores) {
		if threshold, ok := ImageThreshold(key); ok && score > threshold {
			return true
		}
	}
	return false
}

// Dominant implements Adapter. Scores are the adjusted values.
func (a *ImageAdapter) Dominant(scores ScoreMap) (Dominance, bool) {
	adjusted := AdjustImageScores(scores)
	return Dominant(adjusted, imageThresholds(adjusted))
}

// Explain implements Adapter.
func (a *ImageAdapter) Explain(scores ScoreMap) string {
	if len(scores) == 0 {
		return genericImageReason
	}

	// The headline is the largest margin over threshold, not the highest
	// raw score; the raw maximum is used only when nothing is thresholded.
	key, score := "", 0.0
	if d, ok := a.Dominant(scores); ok {
		key, score = d.Attribute, d.Score
	} else if k, s, ok := highest(scores, func(k string) bool { return strings.HasPrefix(k, ContextPrefix) }); ok {
		key, score = k, s
	} else {
		return genericImageReason
	}

	switch {
	case key == "sexual_activity" || key == "sexual_display" || key == "erotica":
		return fmt.Sprintf("Explicit content detected: %s (score %.2f).", titleLabel(key), score)
	case strings.HasPrefix(key, SuggestivePrefix):
		return fmt.Sprintf("Suggestive content detected: %s (score %.2f).", titleLabel(strings.TrimPrefix(key, SuggestivePrefix)), score)
	case key == "gore":
		return fmt.Sprintf("Gore detected (score %.2f).", score)
	case key == "offensive":
		return fmt.Sprintf("Offensive content detected (score %.2f).", score)
	default:
		return fmt.Sprintf("Image flagged due to %s (score %.2f).", strings.ReplaceAll(key, "_", " "), score)
	}
}
