// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package scoring

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mangaguard/internal/config"
	"github.com/tomtom215/mangaguard/internal/logging"
)

// DefaultTextMaxLength bounds text sent to the provider (its own limit is ~20k).
const DefaultTextMaxLength = 5000

// TextThresholds trip when a score meets or exceeds the value.
var TextThresholds = Thresholds{
	"toxicity":          0.65,
	"severe_toxicity":   0.55,
	"sexually_explicit": 0.60,
	"profanity":         0.40,
}

var textAttributes = []string{"TOXICITY", "SEVERE_TOXICITY", "SEXUALLY_EXPLICIT", "PROFANITY"}

const genericTextReason = "Text flagged for review by automated moderation."

// TextAdapter scores text with a Perspective-style comments:analyze endpoint.
type TextAdapter struct {
	client    *providerClient
	apiKey    string
	endpoint  string
	maxLength int
}

// NewTextAdapter builds the adapter. mod may be nil for default breaker settings.
func NewTextAdapter(cfg *config.PerspectiveConfig, mod *config.ModerationConfig) *TextAdapter {
	maxLength := DefaultTextMaxLength
	if mod != nil && mod.TextMaxLength > 0 {
		maxLength = mod.TextMaxLength
	}
	return &TextAdapter{
		client:    newProviderClient("perspective-api", cfg.Timeout, cfg.RateLimit, cfg.Burst, mod),
		apiKey:    cfg.APIKey,
		endpoint:  cfg.URL,
		maxLength: maxLength,
	}
}

// Name implements Adapter.
func (a *TextAdapter) Name() string { return "perspective" }

// BreakerState reports the circuit breaker state.
func (a *TextAdapter) BreakerState() string { return a.client.State() }

type analyzeRequest struct {
	Comment             analyzeComment         `json:"comment"`
	RequestedAttributes map[string]interface{} `json:"requestedAttributes"`
	Languages           []string               `json:"languages"`
	DoNotStore          bool                   `json:"doNotStore"`
}

type analyzeComment struct {
	Text string `json:"text"`
}

type analyzeResponse struct {
	AttributeScores map[string]struct {
		SummaryScore *struct {
			Value *float64 `json:"value"`
		} `json:"summaryScore"`
	} `json:"attributeScores"`
}

func (a *TextAdapter) clean(text string) string {
	return truncateRunes(strings.TrimSpace(text), a.maxLength)
}

// Score implements Adapter. Blank input returns an empty map without a
// provider call. Provider failures are logged and also return an empty map;
// only cancellation of ctx is returned as an error.
func (a *TextAdapter) Score(ctx context.Context, content string) (ScoreMap, error) {
	text := a.clean(content)
	if text == "" {
		return ScoreMap{}, nil
	}

	requested := make(map[string]interface{}, len(textAttributes))
	for _, attr := range textAttributes {
		requested[attr] = struct{}{}
	}
	payload, err := json.Marshal(analyzeRequest{
		Comment:             analyzeComment{Text: text},
		RequestedAttributes: requested,
		Languages:           []string{"en"},
		DoNotStore:          true,
	})
	if err != nil {
		return ScoreMap{}, fmt.Errorf("failed to encode analyze request: %w", err)
	}

	reqURL, err := a.requestURL()
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Perspective URL is invalid")
		return ScoreMap{}, nil
	}

	body, err := a.client.do(ctx, func(callCtx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, reqURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return ScoreMap{}, ctx.Err()
		}
		logging.Ctx(ctx).Error().Err(err).Msg("Perspective API request failed")
		return ScoreMap{}, nil
	}

	scores, err := parseAnalyzeResponse(body)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Perspective API response could not be decoded")
		return ScoreMap{}, nil
	}
	return scores, nil
}

func (a *TextAdapter) requestURL() (string, error) {
	u, err := url.Parse(a.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("key", a.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func parseAnalyzeResponse(body []byte) (ScoreMap, error) {
	var resp analyzeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode analyze response: %w", err)
	}
	scores := make(ScoreMap, len(resp.AttributeScores))
	for attr, s := range resp.AttributeScores {
		if s.SummaryScore == nil || s.SummaryScore.Value == nil {
			continue
		}
		scores[strings.ToLower(attr)] = *s.SummaryScore.Value
	}
	return scores, nil
}

// IsUnsafe implements Adapter: any thresholded score at or above its threshold.
func (a *TextAdapter) IsUnsafe(scores ScoreMap) bool {
	for attr, score := range scores {
		if threshold, ok := TextThresholds[attr]; ok && score >= threshold {
			return true
		}
	}
	return false
}

// Dominant implements Adapter.
func (a *TextAdapter) Dominant(scores ScoreMap) (Dominance, bool) {
	return Dominant(scores, TextThresholds)
}

// Explain implements Adapter.
func (a *TextAdapter) Explain(scores ScoreMap) string {
	if len(scores) == 0 {
		return genericTextReason
	}

	// The headline is the largest margin over threshold, not the highest
	// raw score; the raw maximum is used only when nothing is thresholded.
	attr, score := "", 0.0
	if d, ok := a.Dominant(scores); ok {
		attr, score = d.Attribute, d.Score
	} else if k, s, ok := highest(scores, nil); ok {
		attr, score = k, s
	} else {
		return genericTextReason
	}

	switch attr {
	case "toxicity":
		return fmt.Sprintf("Toxic language detected (score %.2f).", score)
	case "severe_toxicity":
		return fmt.Sprintf("Severely toxic language detected (score %.2f).", score)
	case "sexually_explicit":
		return fmt.Sprintf("Sexually explicit language detected (score %.2f).", score)
	case "profanity":
		return fmt.Sprintf("Profanity detected (score %.2f).", score)
	default:
		return fmt.Sprintf("Text flagged due to %s (score %.2f).", titleLabel(attr), score)
	}
}
