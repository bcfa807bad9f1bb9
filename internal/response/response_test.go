package response

import (
	"strings"
	"testing"
	"time"

	"github.com/memvra/dejavu/internal/index"
	"github.com/memvra/dejavu/internal/pack"
	"github.com/memvra/dejavu/internal/tokens"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func settings() Settings {
	return Settings{
		SimilarityThreshold: 0.85,
		ExactThreshold:      0.95,
		FullAnswerTokens:    500,
		RecapWords:          150,
		Tokens:              tokens.WordEstimate{},
	}
}

func testPack() *pack.Pack {
	return pack.New(pack.NewEntry("CTX7D is a multidimensional engine with 7 dimensions.",
		[]float32{0.5, 0.5}, pack.KindFull, "", t0), t0)
}

func TestGenerateTiers(t *testing.T) {
	p := testPack()
	tests := []struct {
		name string
		sim  float64
		want Tier
	}{
		{"exact", 0.97, TierReference},
		{"at exact threshold", 0.95, TierReference},
		{"partial", 0.90, TierPartial},
		{"at similarity threshold", 0.85, TierPartial},
		{"below", 0.70, TierFull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Generate("What is CTX7D?", []index.Result{{Unit: p, Similarity: tt.sim}}, settings())
			if r.Tier != tt.want {
				t.Fatalf("tier: got %s, want %s", r.Tier, tt.want)
			}
			if r.Similarity != tt.sim {
				t.Errorf("similarity: got %f, want %f", r.Similarity, tt.sim)
			}
			if r.IsAdaptive() {
				if r.ReferencedUnit != p.ID {
					t.Errorf("referenced unit: got %q, want %q", r.ReferencedUnit, p.ID)
				}
				if r.TokensSaved < 1 {
					t.Errorf("adaptive response saved %d tokens", r.TokensSaved)
				}
			} else if r.TokensSaved != 0 || r.ReferencedUnit != "" {
				t.Errorf("full response: saved=%d ref=%q", r.TokensSaved, r.ReferencedUnit)
			}
		})
	}
}

func TestGenerateNoCandidates(t *testing.T) {
	r := Generate("What is CTX7D?", nil, settings())
	if r.Tier != TierFull || r.Similarity != 0 || r.TokensSaved != 0 {
		t.Errorf("got %+v", r)
	}
	if !strings.Contains(r.Content, "What is CTX7D?") {
		t.Errorf("full content should name the query: %q", r.Content)
	}
	if r.IsAdaptive() {
		t.Error("full response is not adaptive")
	}
}

func TestReferenceContent(t *testing.T) {
	p := testPack()
	r := Generate("q", []index.Result{{Unit: p, Similarity: 0.96}}, settings())

	for _, want := range []string{"Already covered", "96.0%", p.ID, "2025-03-01 12:00", "CTX7D"} {
		if !strings.Contains(r.Content, want) {
			t.Errorf("reference content missing %q: %q", want, r.Content)
		}
	}
	wantSaved := 500 - (tokens.WordEstimate{}).Count(r.Content)
	if r.TokensSaved != wantSaved {
		t.Errorf("tokens saved: got %d, want %d", r.TokensSaved, wantSaved)
	}
	if r.CompressionRatio(500) <= 5 {
		t.Errorf("reference ratio too low: %f", r.CompressionRatio(500))
	}
}

func TestPartialContentIncludesRecap(t *testing.T) {
	p := testPack()
	p.AddEntry(pack.NewEntry("The 7 dimensions are temporal, semantic and contextual.",
		[]float32{0.5, 0.5}, pack.KindFull, "", t0))
	r := Generate("q", []index.Result{{Unit: p, Similarity: 0.88}}, settings())

	if !strings.Contains(r.Content, "Quick recap") || !strings.Contains(r.Content, "temporal") {
		t.Errorf("partial content: %q", r.Content)
	}
}

func TestTokensSavedFloorsAtOne(t *testing.T) {
	s := settings()
	s.FullAnswerTokens = 1
	r := Generate("q", []index.Result{{Unit: testPack(), Similarity: 0.99}}, s)
	if r.TokensSaved != 1 {
		t.Errorf("tokens saved: got %d, want 1", r.TokensSaved)
	}
}

func TestRecap(t *testing.T) {
	p := pack.New(pack.NewEntry("line one\nline two\nline three", []float32{1}, pack.KindFull, "", t0), t0)
	p.AddEntry(pack.NewEntry("a summary", []float32{1}, pack.KindSummary, "", t0))
	p.AddEntry(pack.NewEntry("a pointer", []float32{1}, pack.KindReference, "", t0))

	got := Recap(p, 150)
	if got != "line one\nline two\n\na summary" {
		t.Errorf("recap: got %q", got)
	}

	long := pack.New(pack.NewEntry(strings.Repeat("word ", 200), []float32{1}, pack.KindFull, "", t0), t0)
	cut := Recap(long, 150)
	if !strings.HasSuffix(cut, "...") {
		t.Errorf("long recap should end with ...: %q", cut[len(cut)-10:])
	}
	if n := len(strings.Fields(strings.TrimSuffix(cut, "..."))); n != 150 {
		t.Errorf("recap words: got %d, want 150", n)
	}
}

func TestCompressionRatio(t *testing.T) {
	if got := (Response{TokensSaved: 450}).CompressionRatio(500); got != 10 {
		t.Errorf("got %f, want 10", got)
	}
	if got := (Response{TokensSaved: 500}).CompressionRatio(500); got != 1 {
		t.Errorf("got %f, want 1", got)
	}
}

func TestTierEntryKind(t *testing.T) {
	if TierReference.EntryKind() != pack.KindReference ||
		TierPartial.EntryKind() != pack.KindSummary ||
		TierFull.EntryKind() != pack.KindFull {
		t.Error("unexpected tier to kind mapping")
	}
}
