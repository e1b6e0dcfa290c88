// Mangaguard - Automated Content Moderation for Manga Platforms
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangaguard

package moderation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mangaguard/internal/audit"
	"github.com/tomtom215/mangaguard/internal/config"
	"github.com/tomtom215/mangaguard/internal/flags"
	"github.com/tomtom215/mangaguard/internal/scoring"
)

// fakePerspective answers comments:analyze with the scores registered for
// the exact comment text, and with low scores otherwise.
type fakePerspective struct {
	mu     sync.Mutex
	scores map[string]map[string]float64
	calls  int
}

func (f *fakePerspective) set(text string, scores map[string]float64) {
	f.mu.Lock()
	f.scores[text] = scores
	f.mu.Unlock()
}

func (f *fakePerspective) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakePerspective) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Comment struct {
			Text string `json:"text"`
		} `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls++
	scores, ok := f.scores[req.Comment.Text]
	f.mu.Unlock()
	if !ok {
		scores = map[string]float64{"toxicity": 0.05, "severe_toxicity": 0.01, "sexually_explicit": 0.02, "profanity": 0.03}
	}

	attrs := make(map[string]interface{}, len(scores))
	for k, v := range scores {
		attrs[strings.ToUpper(k)] = map[string]interface{}{"summaryScore": map[string]float64{"value": v}}
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"attributeScores": attrs})
}

// fakeSightengine answers check.json with the body registered for the url
// parameter, and with a clean result otherwise.
type fakeSightengine struct {
	mu     sync.Mutex
	bodies map[string]string
}

const cleanImage = `{"status":"success","nudity":{"sexual_activity":0.01,"sexual_display":0.01,"erotica":0.01,
	"suggestive_classes":{"bikini":0.01},"context":{"indoor_other":0.9}},"gore":{"prob":0.01},"offensive":{"prob":0.01}}`

const poolBikini = `{"status":"success","nudity":{"sexual_activity":0.01,"sexual_display":0.02,"erotica":0.03,
	"suggestive_classes":{"bikini":0.50,"lingerie":0.05},"context":{"sea_lake_pool":0.60}},"gore":{"prob":0.04},"offensive":{"prob":0.02}}`

const goreImage = `{"status":"success","nudity":{"sexual_activity":0.01,"sexual_display":0.01,"erotica":0.01},
	"gore":{"prob":0.91},"offensive":{"prob":0.02}}`

func (f *fakeSightengine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	body, ok := f.bodies[r.URL.Query().Get("url")]
	f.mu.Unlock()
	if !ok {
		body = cleanImage
	}
	_, _ = w.Write([]byte(body))
}

type fixture struct {
	pipeline    *Pipeline
	entries     *audit.MemoryStore
	flagStore   *flags.MemoryStore
	flags       *flags.Service
	logger      *audit.Logger
	perspective *fakePerspective
	sightengine *fakeSightengine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	perspective := &fakePerspective{scores: make(map[string]map[string]float64)}
	sightengine := &fakeSightengine{bodies: make(map[string]string)}
	textServer := httptest.NewServer(perspective)
	imageServer := httptest.NewServer(sightengine)
	t.Cleanup(textServer.Close)
	t.Cleanup(imageServer.Close)

	text := scoring.NewTextAdapter(&config.PerspectiveConfig{
		APIKey:  "k",
		URL:     textServer.URL + "/v1alpha1/comments:analyze",
		Timeout: 2 * time.Second,
	}, nil)
	image := scoring.NewImageAdapter(&config.SightengineConfig{
		APIUser:   "u",
		APISecret: "s",
		URL:       imageServer.URL + "/1.0/check.json",
		Timeout:   2 * time.Second,
	}, nil)

	entries := audit.NewMemoryStore()
	flagStore := flags.NewMemoryStore()
	logger := audit.NewLogger(entries)
	svc := flags.NewService(flags.NewMemoryTransactor(flagStore, entries), flagStore, logger)

	return &fixture{
		pipeline:    New(entries, svc, text, image),
		entries:     entries,
		flagStore:   flagStore,
		flags:       svc,
		logger:      logger,
		perspective: perspective,
		sightengine: sightengine,
	}
}

func (f *fixture) log(t *testing.T, action audit.Action, target audit.Target) *audit.Entry {
	t.Helper()
	e, err := f.logger.CreateLogEntry(context.Background(), &audit.Actor{ID: "u1", Username: "reader"}, action, target)
	if err != nil {
		t.Fatalf("CreateLogEntry: %v", err)
	}
	return e
}

func (f *fixture) run(t *testing.T) Summary {
	t.Helper()
	s, err := f.pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return s
}

func (f *fixture) openFlags(t *testing.T) []flags.Flag {
	t.Helper()
	open := false
	got, err := f.flags.List(context.Background(), flags.Filter{Resolved: &open})
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func (f *fixture) pending(t *testing.T) int {
	t.Helper()
	got, err := f.entries.ListUnmoderated(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return len(got)
}

func TestRun_ToxicComment(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.perspective.set("you are worthless trash", map[string]float64{
		"toxicity": 0.82, "severe_toxicity": 0.30, "sexually_explicit": 0.02, "profanity": 0.35,
	})
	f.log(t, audit.ActionCreate, audit.Comment{ID: "42", Text: "you are worthless trash"})

	s := f.run(t)
	if s.EntriesSeen != 1 || s.EntriesModerated != 1 || s.FlagsCreated != 1 || s.AttributesScored != 1 {
		t.Errorf("summary = %+v", s)
	}

	open := f.openFlags(t)
	if len(open) != 1 {
		t.Fatalf("open flags = %d, want 1", len(open))
	}
	flag := open[0]
	if flag.TargetType != audit.TargetComment || flag.TargetID != "42" || flag.ContentName != "text" {
		t.Errorf("flag key = %+v", flag.Key())
	}
	if flag.DominantAttribute != "toxicity" || flag.SeverityScore != 0.82 {
		t.Errorf("dominant = %s %v", flag.DominantAttribute, flag.SeverityScore)
	}
	if flag.Reason != "Toxic language detected (score 0.82)." {
		t.Errorf("reason = %q", flag.Reason)
	}
	if flag.IsContentImage {
		t.Error("text flag marked as image")
	}
	if flag.Details["profanity"] != 0.35 {
		t.Errorf("details = %v, want raw scores", flag.Details)
	}

	if n := f.pending(t); n != 0 {
		t.Errorf("unmoderated entries = %d, want 0", n)
	}

	// The flag's own creation entry is audited and needs no moderation.
	created, err := f.entries.Query(context.Background(), audit.Filter{TargetType: audit.TargetFlaggedContent})
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 1 || created[0].TargetID != flag.ID || !created[0].Moderated {
		t.Errorf("flag creation entries = %+v", created)
	}
}

func TestRun_Idempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.perspective.set("spam spam", map[string]float64{"toxicity": 0.70})
	f.log(t, audit.ActionCreate, audit.Comment{ID: "1", Text: "spam spam"})

	f.run(t)
	entriesAfterFirst := f.entries.Len()
	callsAfterFirst := f.perspective.callCount()

	s := f.run(t)
	if s.EntriesSeen != 0 || s.FlagsCreated != 0 || s.FlagsResolved != 0 {
		t.Errorf("second run summary = %+v, want no work", s)
	}
	if f.entries.Len() != entriesAfterFirst {
		t.Errorf("second run wrote %d audit entries", f.entries.Len()-entriesAfterFirst)
	}
	if f.perspective.callCount() != callsAfterFirst {
		t.Error("second run called the provider")
	}
	if len(f.openFlags(t)) != 1 {
		t.Error("flag count changed on second run")
	}
}

func TestRun_PoolContextIsSafe(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.sightengine.bodies["https://cdn.example/beach.png"] = poolBikini
	f.log(t, audit.ActionCreate, audit.Page{ID: "p1", ImageURL: "https://cdn.example/beach.png"})

	s := f.run(t)
	if s.AttributesScored != 1 || s.FlagsCreated != 0 || s.EntriesModerated != 1 {
		t.Errorf("summary = %+v", s)
	}
	if len(f.openFlags(t)) != 0 {
		t.Error("bikini at a pool should not be flagged")
	}
}

func TestRun_ImageFlag(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.sightengine.bodies["https://cdn.example/gore.png"] = goreImage
	f.log(t, audit.ActionCreate, audit.Comment{ID: "9", Text: "look", AttachedImageURL: "https://cdn.example/gore.png"})

	s := f.run(t)
	if s.AttributesScored != 2 || s.FlagsCreated != 1 {
		t.Errorf("summary = %+v", s)
	}
	open := f.openFlags(t)
	if len(open) != 1 {
		t.Fatalf("open flags = %d, want 1", len(open))
	}
	if !open[0].IsContentImage || open[0].ContentName != "attachedImageUrl" || open[0].DominantAttribute != "gore" {
		t.Errorf("flag = %+v", open[0])
	}
	if open[0].Reason != "Gore detected (score 0.91)." {
		t.Errorf("reason = %q", open[0].Reason)
	}
}

func TestRun_EntriesWithoutContent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.log(t, audit.ActionCreate, audit.MangaTitle{ID: "3"})
	f.log(t, audit.ActionDelete, audit.Ref{Type: audit.TargetComment, ID: "1"})

	s := f.run(t)
	if s.EntriesSeen != 1 || s.EntriesModerated != 1 || s.AttributesScored != 0 {
		t.Errorf("summary = %+v", s)
	}
	if n := f.perspective.callCount(); n != 0 {
		t.Errorf("empty attributes reached the provider %d times", n)
	}
}

func TestRun_SupersedesOnEdit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.perspective.set("first insult", map[string]float64{"toxicity": 0.70})
	f.perspective.set("second insult", map[string]float64{"toxicity": 0.95, "severe_toxicity": 0.80})

	f.log(t, audit.ActionCreate, audit.Comment{ID: "7", Text: "first insult"})
	f.run(t)
	first := f.openFlags(t)
	if len(first) != 1 {
		t.Fatalf("open flags = %d, want 1", len(first))
	}

	f.log(t, audit.ActionUpdate, audit.Comment{ID: "7", Text: "second insult"})
	s := f.run(t)
	if s.FlagsResolved != 1 || s.FlagsCreated != 1 {
		t.Errorf("summary = %+v", s)
	}

	open := f.openFlags(t)
	if len(open) != 1 || open[0].ID == first[0].ID || open[0].Content != "second insult" {
		t.Fatalf("open flags = %+v", open)
	}
	old, err := f.flags.Get(ctx, first[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if !old.Resolved || old.ResolvedAt == nil {
		t.Errorf("superseded flag not resolved: %+v", old)
	}

	resolves, err := f.entries.Query(ctx, audit.Filter{Action: audit.ActionAutoResolveFlag})
	if err != nil {
		t.Fatal(err)
	}
	if len(resolves) != 1 || resolves[0].TargetType != audit.TargetComment || resolves[0].TargetID != "7" || resolves[0].Actor != nil {
		t.Errorf("auto-resolve entries = %+v", resolves)
	}

	// Cleaning the comment resolves the remaining flag without a new one.
	f.log(t, audit.ActionUpdate, audit.Comment{ID: "7", Text: "sorry"})
	s = f.run(t)
	if s.FlagsResolved != 1 || s.FlagsCreated != 0 {
		t.Errorf("summary = %+v", s)
	}
	if len(f.openFlags(t)) != 0 {
		t.Error("clean edit should leave no open flags")
	}
}

func TestRun_InvalidEntryStaysPending(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	raw, _ := json.Marshal(audit.Details{
		TargetType: audit.TargetChapter,
		Attributes: []audit.Attribute{{AttributeName: "title", Content: "x"}},
	})
	bad := []audit.Entry{
		{ID: "genre", Action: audit.ActionCreate, TargetType: audit.TargetGenre, TargetID: "1", Details: raw},
		{ID: "mismatch", Action: audit.ActionCreate, TargetType: audit.TargetComment, TargetID: "1", Details: raw},
		{ID: "garbage", Action: audit.ActionCreate, TargetType: audit.TargetComment, TargetID: "1", Details: json.RawMessage(`[1,2`)},
	}
	for i := range bad {
		if err := f.entries.Save(ctx, &bad[i]); err != nil {
			t.Fatal(err)
		}
	}
	f.log(t, audit.ActionCreate, audit.Chapter{ID: "c1", Title: "fine"})

	s := f.run(t)
	if s.EntriesSeen != 4 || s.EntriesSkipped != 3 || s.EntriesModerated != 1 {
		t.Errorf("summary = %+v", s)
	}
	if n := f.pending(t); n != 3 {
		t.Errorf("pending = %d, want the 3 invalid entries", n)
	}
}

// panickyAdapter panics while scoring.
type panickyAdapter struct{ scoring.Adapter }

func (panickyAdapter) Name() string { return "panicky" }
func (panickyAdapter) Score(_ context.Context, content string) (scoring.ScoreMap, error) {
	if content == "boom" {
		panic("provider exploded")
	}
	return scoring.ScoreMap{}, nil
}

func TestRun_PanicIsolatedToEntry(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.pipeline.text = panickyAdapter{}

	boom := f.log(t, audit.ActionCreate, audit.Comment{ID: "1", Text: "boom"})
	f.log(t, audit.ActionCreate, audit.Comment{ID: "2", Text: "calm"})

	s := f.run(t)
	if s.EntriesSeen != 2 || s.EntriesSkipped != 1 || s.EntriesModerated != 1 {
		t.Errorf("summary = %+v", s)
	}
	got, err := f.entries.Get(context.Background(), boom.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Moderated {
		t.Error("entry that panicked should stay unmoderated")
	}
}

// failingMarkStore fails MarkModerated for one entry.
type failingMarkStore struct {
	*audit.MemoryStore
	failID string
}

func (s *failingMarkStore) MarkModerated(ctx context.Context, id string) error {
	if id == s.failID {
		return errors.New("disk full")
	}
	return s.MemoryStore.MarkModerated(ctx, id)
}

func TestRun_StoreFailureLeavesEntryForRetry(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	e := f.log(t, audit.ActionCreate, audit.Chapter{ID: "c1", Title: "a title"})
	f.pipeline.entries = &failingMarkStore{MemoryStore: f.entries, failID: e.ID}

	s := f.run(t)
	if s.EntriesSkipped != 1 || s.EntriesModerated != 0 {
		t.Errorf("summary = %+v", s)
	}
	if f.pending(t) != 1 {
		t.Error("entry should be retried on the next run")
	}

	f.pipeline.entries = f.entries
	if s := f.run(t); s.EntriesModerated != 1 {
		t.Errorf("retry summary = %+v", s)
	}
}

type failingListStore struct{ *audit.MemoryStore }

func (failingListStore) ListUnmoderated(context.Context) ([]audit.Entry, error) {
	return nil, fmt.Errorf("connection reset")
}

func TestRun_ListFailureIsFatal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.pipeline.entries = failingListStore{f.entries}

	if _, err := f.pipeline.Run(context.Background()); err == nil {
		t.Fatal("expected run-level error")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.log(t, audit.ActionCreate, audit.Chapter{ID: "c1", Title: "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.pipeline.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if f.pending(t) != 1 {
		t.Error("cancelled run should not mark entries")
	}
}
