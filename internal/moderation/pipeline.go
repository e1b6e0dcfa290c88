// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

// Package moderation runs the moderation pipeline: it drains unmoderated
// audit entries, scores every content attribute they snapshot, and keeps
// the flag table consistent with the latest scores.
//
// Each entry is processed in isolation. A failure on one entry, panics
// included, is logged and leaves that entry unmoderated for the next run;
// only a failure to list entries aborts the run.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/mangaguard/internal/audit"
	"github.com/tomtom215/mangaguard/internal/flags"
	"github.com/tomtom215/mangaguard/internal/logging"
	"github.com/tomtom215/mangaguard/internal/metrics"
	"github.com/tomtom215/mangaguard/internal/scoring"
)

// ErrInvalidEntry marks an entry whose snapshot cannot be moderated.
var ErrInvalidEntry = errors.New("invalid audit entry")

// Summary reports what one run did.
type Summary struct {
	EntriesSeen      int           `json:"entries_seen"`
	EntriesModerated int           `json:"entries_moderated"`
	EntriesSkipped   int           `json:"entries_skipped"`
	AttributesScored int           `json:"attributes_scored"`
	FlagsCreated     int           `json:"flags_created"`
	FlagsResolved    int           `json:"flags_resolved"`
	Duration         time.Duration `json:"duration"`
}

// Pipeline moderates audit entries.
type Pipeline struct {
	entries audit.Store
	flags   *flags.Service
	text    scoring.Adapter
	image   scoring.Adapter
}

// New creates a pipeline reading from entries and writing flags through flagSvc.
func New(entries audit.Store, flagSvc *flags.Service, text, image scoring.Adapter) *Pipeline {
	return &Pipeline{
		entries: entries,
		flags:   flagSvc,
		text:    text,
		image:   image,
	}
}

// entryResult is the per-entry contribution to a Summary.
type entryResult struct {
	scored   int
	created  int
	resolved int
}

// Run moderates every unmoderated entry, oldest first.
func (p *Pipeline) Run(ctx context.Context) (summary Summary, err error) {
	start := time.Now()
	log := logging.Ctx(ctx)
	defer func() {
		summary.Duration = time.Since(start)
		metrics.RecordModerationRun(summary.Duration, err)
	}()

	pending, err := p.entries.ListUnmoderated(ctx)
	if err != nil {
		return summary, fmt.Errorf("list unmoderated entries: %w", err)
	}
	log.Info().Int("pending", len(pending)).Msg("Moderation run started")

	for i := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		entry := &pending[i]
		summary.EntriesSeen++

		res, err := p.processEntry(ctx, entry)
		summary.AttributesScored += res.scored
		summary.FlagsCreated += res.created
		summary.FlagsResolved += res.resolved
		if err != nil {
			summary.EntriesSkipped++
			outcome := "failed"
			if errors.Is(err, ErrInvalidEntry) {
				outcome = "invalid"
			}
			metrics.RecordModerationEntry(outcome)
			log.Error().Err(err).
				Str("entry_id", entry.ID).
				Str("target_type", string(entry.TargetType)).
				Str("target_id", entry.TargetID).
				Msg("Failed to moderate audit entry")
			continue
		}
		summary.EntriesModerated++
		metrics.RecordModerationEntry("moderated")
	}

	if open, err := p.flags.CountUnresolved(ctx); err == nil {
		metrics.FlagsOpen.Set(float64(open))
	} else {
		log.Warn().Err(err).Msg("Failed to count open flags")
	}

	log.Info().
		Int("seen", summary.EntriesSeen).
		Int("moderated", summary.EntriesModerated).
		Int("skipped", summary.EntriesSkipped).
		Int("flags_created", summary.FlagsCreated).
		Int("flags_resolved", summary.FlagsResolved).
		Dur("duration", time.Since(start)).
		Msg("Moderation run finished")
	return summary, nil
}

// processEntry moderates one entry and marks it moderated. A panic is
// converted into an error so the run can continue.
func (p *Pipeline) processEntry(ctx context.Context, entry *audit.Entry) (res entryResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while moderating entry %s: %v", entry.ID, r)
		}
	}()

	details, err := validateEntry(entry)
	if err != nil {
		return res, err
	}

	if details != nil {
		for _, attr := range details.Attributes {
			if attr.Content == "" {
				continue
			}
			if err := p.moderateAttribute(ctx, entry, attr, &res); err != nil {
				return res, err
			}
		}
	}

	if err := p.entries.MarkModerated(ctx, entry.ID); err != nil {
		return res, fmt.Errorf("mark entry moderated: %w", err)
	}
	return res, nil
}

// validateEntry returns the snapshot of entry, or nil when there is nothing
// to score.
func validateEntry(entry *audit.Entry) (*audit.Details, error) {
	if !entry.HasDetails() {
		return nil, nil
	}
	if !entry.TargetType.Moderatable() {
		return nil, fmt.Errorf("%w: %s carries details but is not moderatable", ErrInvalidEntry, entry.TargetType)
	}
	details, err := entry.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if details.TargetType != entry.TargetType {
		return nil, fmt.Errorf("%w: details describe %s, entry targets %s",
			ErrInvalidEntry, details.TargetType, entry.TargetType)
	}
	for _, attr := range details.Attributes {
		if attr.AttributeName == "" {
			return nil, fmt.Errorf("%w: attribute without a name", ErrInvalidEntry)
		}
	}
	return details, nil
}

func (p *Pipeline) moderateAttribute(ctx context.Context, entry *audit.Entry, attr audit.Attribute, res *entryResult) error {
	adapter := p.text
	if attr.IsImage {
		adapter = p.image
	}
	log := logging.Ctx(ctx).With().
		Str("entry_id", entry.ID).
		Str("attribute", attr.AttributeName).
		Str("provider", adapter.Name()).
		Logger()

	scores, err := adapter.Score(ctx, attr.Content)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("Scoring failed, skipping attribute")
		metrics.RecordModerationDecision("skipped")
		return nil
	}
	if len(scores) == 0 {
		log.Debug().Msg("No scores returned, skipping attribute")
		metrics.RecordModerationDecision("skipped")
		return nil
	}
	res.scored++

	verdict := scoring.Evaluate(adapter, scores)
	key := flags.Key{
		TargetType:  entry.TargetType,
		TargetID:    entry.TargetID,
		ContentName: attr.AttributeName,
	}
	var nf *flags.NewFlag
	if verdict.Unsafe {
		nf = &flags.NewFlag{
			Key:       key,
			Content:   attr.Content,
			IsImage:   attr.IsImage,
			Scores:    scores,
			Reason:    verdict.Reason,
			Dominance: verdict.Dominance,
		}
	}

	resolved, created, err := p.flags.Supersede(ctx, key, nf)
	if err != nil {
		return fmt.Errorf("update flags for %s: %w", attr.AttributeName, err)
	}
	res.resolved += resolved
	if resolved > 0 {
		metrics.RecordModerationDecision("auto_resolved")
	}

	if created != nil {
		res.created++
		metrics.RecordModerationDecision("flagged")
		log.Info().
			Str("flag_id", created.ID).
			Str("dominant_attribute", created.DominantAttribute).
			Float64("severity", created.SeverityScore).
			Msg("Content flagged")
		return nil
	}
	metrics.RecordModerationDecision("safe")
	return nil
}
