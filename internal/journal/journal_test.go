package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/memvra/dejavu/internal/adapter"
	"github.com/memvra/dejavu/internal/codec"
	"github.com/memvra/dejavu/internal/engine"
	"github.com/memvra/dejavu/internal/pack"
	"github.com/memvra/dejavu/internal/response"
	"github.com/memvra/dejavu/internal/tokens"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func setupJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("failed to open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	j.now = func() time.Time { return t0 }
	return j
}

func respond(t *testing.T, j *Journal, query string, tier response.Tier, saved int, at time.Time) {
	t.Helper()
	ev := engine.ResponseEvent{
		Query:    query,
		Response: response.Response{Tier: tier, TokensSaved: saved},
		At:       at,
	}
	if tier != response.TierFull {
		ev.Response.ReferencedUnit = "unit-1"
		ev.Response.Similarity = 0.97
	}
	if err := j.OnResponse(ev); err != nil {
		t.Fatalf("OnResponse: %v", err)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	j := setupJournal(t)
	respond(t, j, "first", response.TierFull, 0, t0.Add(-2*time.Minute))
	respond(t, j, "second", response.TierReference, 480, t0.Add(-time.Minute))
	respond(t, j, "third", response.TierPartial, 300, t0)

	got, err := j.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].Query != "third" || got[1].Query != "second" {
		t.Errorf("order: got %q, %q", got[0].Query, got[1].Query)
	}
	if got[1].UnitID != "unit-1" || got[1].Tier != "reference" {
		t.Errorf("record: %+v", got[1])
	}
	if !got[0].CreatedAt.Equal(t0) {
		t.Errorf("created at: got %v, want %v", got[0].CreatedAt, t0)
	}

	none, err := j.Recent(0)
	if err != nil || len(none) != 0 {
		t.Errorf("Recent(0): got %v, %v", none, err)
	}
}

func TestFullResponsesSaveNothing(t *testing.T) {
	j := setupJournal(t)
	respond(t, j, "new topic", response.TierFull, 999, t0)

	got, err := j.Recent(1)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].TokensSaved != 0 || got[0].UnitID != "" {
		t.Errorf("full response record: %+v", got[0])
	}
}

func TestSavings(t *testing.T) {
	j := setupJournal(t)
	respond(t, j, "a", response.TierFull, 0, t0)
	respond(t, j, "b", response.TierReference, 480, t0)
	respond(t, j, "c", response.TierReference, 470, t0)
	respond(t, j, "d", response.TierPartial, 200, t0)

	for _, ratio := range []float64{10, 20} {
		err := j.OnRotate(engine.RotateEvent{
			Unit:   pack.Summary{ID: "u", Entries: 3},
			Result: codec.Result{OriginalSize: 100, CompressedSize: 10, Ratio: ratio, Strategy: pack.StrategyBaseline},
			At:     t0,
		})
		if err != nil {
			t.Fatalf("OnRotate: %v", err)
		}
	}
	if err := j.OnEvict(engine.EvictEvent{Unit: pack.Summary{ID: "u", Entries: 3}, Reason: engine.EvictExpired, At: t0}); err != nil {
		t.Fatalf("OnEvict: %v", err)
	}

	s, err := j.Savings()
	if err != nil {
		t.Fatalf("Savings: %v", err)
	}
	if s.Responses != 4 {
		t.Errorf("responses: got %d, want 4", s.Responses)
	}
	if s.ByTier["reference"] != 2 || s.ByTier["partial"] != 1 || s.ByTier["full"] != 1 {
		t.Errorf("by tier: %v", s.ByTier)
	}
	if s.TokensSaved != 1150 {
		t.Errorf("tokens saved: got %d, want 1150", s.TokensSaved)
	}
	if s.Rotations != 2 || s.AverageRatio != 15 {
		t.Errorf("rotations: got %d at %f, want 2 at 15", s.Rotations, s.AverageRatio)
	}
	if s.Evictions != 1 {
		t.Errorf("evictions: got %d, want 1", s.Evictions)
	}
}

func TestSavingsEmpty(t *testing.T) {
	j := setupJournal(t)
	s, err := j.Savings()
	if err != nil {
		t.Fatal(err)
	}
	if s.Responses != 0 || s.Rotations != 0 || s.AverageRatio != 0 {
		t.Errorf("empty savings: %+v", s)
	}
}

func TestPrune(t *testing.T) {
	j := setupJournal(t)
	respond(t, j, "ancient", response.TierFull, 0, t0.AddDate(0, 0, -40))
	respond(t, j, "old", response.TierFull, 0, t0.AddDate(0, 0, -31))
	respond(t, j, "recent", response.TierFull, 0, t0.AddDate(0, 0, -2))
	if err := j.OnEvict(engine.EvictEvent{Unit: pack.Summary{ID: "u"}, Reason: engine.EvictDisplaced, At: t0.AddDate(0, 0, -60)}); err != nil {
		t.Fatal(err)
	}

	n, err := j.Prune(30)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 3 {
		t.Errorf("pruned: got %d, want 3", n)
	}
	got, _ := j.Recent(10)
	if len(got) != 1 || got[0].Query != "recent" {
		t.Errorf("remaining: %+v", got)
	}

	if _, err := j.Prune(-1); err == nil {
		t.Error("expected error for negative days")
	}
}

func TestJournalAsObserver(t *testing.T) {
	j := setupJournal(t)
	cfg := engine.DefaultConfig()
	cfg.MaxEntriesPerUnit = 1
	cfg.EmbeddingDimension = 32
	cfg.AggressiveCompression = false

	e, err := engine.New(cfg, adapter.NewHash(32), engine.Options{Backend: "linear", Observer: j, Tokens: tokens.WordEstimate{}})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	for _, msg := range []string{"how do units rotate", "how do units rotate"} {
		if _, err := e.AddMessage(context.Background(), msg); err != nil {
			t.Fatal(err)
		}
	}

	s, err := j.Savings()
	if err != nil {
		t.Fatal(err)
	}
	if s.Responses != 2 || s.Rotations != 2 {
		t.Errorf("savings: %+v", s)
	}
	if s.ByTier["reference"] != 1 {
		t.Errorf("repeated question should be a reference: %v", s.ByTier)
	}
}
