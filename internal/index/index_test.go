package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/memvra/dejavu/internal/adapter"
	"github.com/memvra/dejavu/internal/pack"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// stubEmbedder returns fixed vectors keyed by text.
func stubEmbedder(vecs map[string][]float32) adapter.Embedder {
	return adapter.EmbedderFunc(func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			v, ok := vecs[text]
			if !ok {
				return nil, errors.New("no vector for " + text)
			}
			out[i] = v
		}
		return out, nil
	})
}

func closedPack(id string, vec ...float32) *pack.Pack {
	p := pack.New(pack.NewEntry(id, vec, pack.KindFull, "", t0), t0)
	p.ID = id
	p.Close()
	return p
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	out := map[string]Backend{
		BackendHNSW:   NewHNSW(),
		BackendLinear: NewLinear(),
	}
	if sv, err := NewSQLiteVec(); err == nil {
		out[BackendSQLiteVec] = sv
	} else {
		t.Logf("skipping sqlite-vec backend: %v", err)
	}
	return out
}

func TestSearchEmptyIndex(t *testing.T) {
	ix := New(stubEmbedder(map[string][]float32{"q": {1, 0}}), nil, Options{})
	got, err := ix.Search(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil result, got %v", got)
	}
}

func TestInsertRejectsOpenUnit(t *testing.T) {
	ix := New(nil, NewLinear(), Options{})
	p := pack.New(pack.NewEntry("x", []float32{1, 0}, pack.KindFull, "", t0), t0)
	if err := ix.Insert(p); !errors.Is(err, ErrUnitOpen) {
		t.Errorf("got %v, want ErrUnitOpen", err)
	}
	if ix.Len() != 0 {
		t.Errorf("len: got %d, want 0", ix.Len())
	}
}

func TestDimensionMismatch(t *testing.T) {
	ix := New(stubEmbedder(map[string][]float32{"short": {1}}), NewLinear(), Options{Dimension: 2})

	if err := ix.Insert(closedPack("a", 1, 0, 0)); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("insert: got %v, want ErrDimensionMismatch", err)
	}
	if err := ix.Insert(closedPack("b", 1, 0)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := ix.SearchVector([]float32{1, 0, 0}, 3); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("search: got %v, want ErrDimensionMismatch", err)
	}
	if _, err := ix.Embed(context.Background(), "short"); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("embed: got %v, want ErrDimensionMismatch", err)
	}
}

func TestEmbedAdoptsDimension(t *testing.T) {
	ix := New(stubEmbedder(map[string][]float32{"a": {1, 2, 3}, "b": {1, 2}}), NewLinear(), Options{})
	if _, err := ix.Embed(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}
	if ix.Dimension() != 3 {
		t.Errorf("dimension: got %d, want 3", ix.Dimension())
	}
	if _, err := ix.Embed(context.Background(), "b"); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("got %v, want ErrDimensionMismatch", err)
	}
}

func TestEmbedUnavailable(t *testing.T) {
	failing := adapter.EmbedderFunc(func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("connection refused")
	})
	empty := adapter.EmbedderFunc(func(context.Context, []string) ([][]float32, error) {
		return [][]float32{{}}, nil
	})
	for name, e := range map[string]adapter.Embedder{"failing": failing, "empty": empty} {
		ix := New(e, NewLinear(), Options{})
		if _, err := ix.Embed(context.Background(), "q"); !errors.Is(err, ErrEmbeddingUnavailable) {
			t.Errorf("%s: got %v, want ErrEmbeddingUnavailable", name, err)
		}
	}
}

func TestSearchOrderingAcrossBackends(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()
			ix := New(nil, b, Options{})
			for _, p := range []*pack.Pack{
				closedPack("far", 0, 1),
				closedPack("near", 1, 0),
				closedPack("mid", 0.8, 0.6),
			} {
				if err := ix.Insert(p); err != nil {
					t.Fatalf("insert %s: %v", p.ID, err)
				}
			}

			got, err := ix.SearchVector([]float32{1, 0}, 3)
			if err != nil {
				t.Fatalf("search: %v", err)
			}
			want := []string{"near", "mid", "far"}
			if len(got) != len(want) {
				t.Fatalf("got %d results, want %d", len(got), len(want))
			}
			for i, id := range want {
				if got[i].Unit.ID != id {
					t.Errorf("result %d: got %s, want %s", i, got[i].Unit.ID, id)
				}
			}
			if math.Abs(got[0].Similarity-1) > 1e-6 || math.Abs(got[1].Similarity-0.8) > 1e-6 {
				t.Errorf("similarities: %f, %f", got[0].Similarity, got[1].Similarity)
			}

			top, _ := ix.SearchVector([]float32{1, 0}, 1)
			if len(top) != 1 || top[0].Unit.ID != "near" {
				t.Errorf("k=1: got %v", top)
			}
		})
	}
}

func TestSearchTieBreak(t *testing.T) {
	ix := New(nil, NewLinear(), Options{})
	a := closedPack("a", 1, 0)
	b := closedPack("b", 1, 0)
	c := closedPack("c", 1, 0)
	for _, p := range []*pack.Pack{c, b, a} {
		if err := ix.Insert(p); err != nil {
			t.Fatal(err)
		}
	}

	got, _ := ix.SearchVector([]float32{1, 0}, 3)
	if got[0].Unit.ID != "a" || got[1].Unit.ID != "b" || got[2].Unit.ID != "c" {
		t.Errorf("equal access should order by ID, got %s %s %s", got[0].Unit.ID, got[1].Unit.ID, got[2].Unit.ID)
	}

	c.Touch(t0.Add(time.Hour))
	got, _ = ix.SearchVector([]float32{1, 0}, 3)
	if got[0].Unit.ID != "c" {
		t.Errorf("most recently accessed should win ties, got %s", got[0].Unit.ID)
	}
}

func TestSearchDecay(t *testing.T) {
	now := t0.Add(48 * time.Hour)
	ix := New(nil, NewLinear(), Options{DecayHours: 24, Now: func() time.Time { return now }})

	old := closedPack("old", 1, 0)
	fresh := pack.New(pack.NewEntry("fresh", []float32{1, 0}, pack.KindFull, "", now), now)
	fresh.ID = "fresh"
	fresh.Close()
	ix.Insert(old)
	ix.Insert(fresh)

	got, _ := ix.SearchVector([]float32{1, 0}, 2)
	if got[0].Unit.ID != "fresh" {
		t.Fatalf("fresh pack should rank first, got %s", got[0].Unit.ID)
	}
	if math.Abs(got[1].Similarity-math.Exp(-2)) > 1e-6 {
		t.Errorf("decayed similarity: got %f, want %f", got[1].Similarity, math.Exp(-2))
	}
}

func TestRemoveAndGet(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()
			ix := New(nil, b, Options{})
			ix.Insert(closedPack("a", 1, 0))
			ix.Insert(closedPack("b", 0, 1))

			if _, ok := ix.Get("a"); !ok {
				t.Fatal("Get(a) should succeed")
			}
			if !ix.Remove("a") {
				t.Fatal("Remove(a) should report true")
			}
			if ix.Remove("a") {
				t.Error("second Remove(a) should report false")
			}
			if _, ok := ix.Get("a"); ok {
				t.Error("Get(a) after remove should fail")
			}
			got, _ := ix.SearchVector([]float32{1, 0}, 5)
			for _, r := range got {
				if r.Unit.ID == "a" {
					t.Error("removed unit returned by search")
				}
			}
			if ix.Len() != 1 || b.Len() != 1 {
				t.Errorf("len: index %d backend %d, want 1", ix.Len(), b.Len())
			}

			ix.Remove("b")
			if got, _ := ix.SearchVector([]float32{1, 0}, 5); len(got) != 0 {
				t.Errorf("expected empty result after removing everything, got %d", len(got))
			}
			// The backend must accept new vectors after being emptied.
			if err := ix.Insert(closedPack("c", 1, 0)); err != nil {
				t.Fatalf("insert after empty: %v", err)
			}
			if got, _ := ix.SearchVector([]float32{1, 0}, 5); len(got) != 1 {
				t.Errorf("got %d results, want 1", len(got))
			}
		})
	}
}

func TestNewBackend(t *testing.T) {
	for _, name := range []string{"", BackendHNSW, BackendLinear} {
		b, err := NewBackend(name)
		if err != nil {
			t.Fatalf("NewBackend(%q): %v", name, err)
		}
		b.Close()
	}
	if _, err := NewBackend("faiss"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestBackendDeleteChurn(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	randomVec := func() []float32 {
		v := make([]float32, 16)
		for i := range v {
			v[i] = rng.Float32()*2 - 1
		}
		return v
	}

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer b.Close()
			live := make(map[string]bool)
			for i := 0; i < 80; i++ {
				id := fmt.Sprintf("u%02d", i)
				if err := b.Add(id, randomVec()); err != nil {
					t.Fatal(err)
				}
				live[id] = true
				if i >= 10 {
					old := fmt.Sprintf("u%02d", i-10)
					if err := b.Delete(old); err != nil {
						t.Fatal(err)
					}
					delete(live, old)
				}

				ids, err := b.Search(randomVec(), 5)
				if err != nil {
					t.Fatalf("search after %d adds: %v", i+1, err)
				}
				if len(ids) == 0 || len(ids) > 5 {
					t.Fatalf("search after %d adds: got %d ids", i+1, len(ids))
				}
				for _, id := range ids {
					if !live[id] {
						t.Fatalf("search returned deleted id %s", id)
					}
				}
			}
			if b.Len() != len(live) {
				t.Errorf("len: got %d, want %d", b.Len(), len(live))
			}

			// Deleted IDs can come back.
			if err := b.Add("u00", randomVec()); err != nil {
				t.Fatal(err)
			}
			if b.Len() != len(live)+1 {
				t.Errorf("len after re-add: got %d, want %d", b.Len(), len(live)+1)
			}
			if err := b.Delete("never-added"); err != nil {
				t.Errorf("delete of unknown id: %v", err)
			}
		})
	}
}

func TestSQLiteVecErrorsArePrefixed(t *testing.T) {
	sv, err := NewSQLiteVec()
	if err != nil {
		t.Skipf("sqlite-vec unavailable: %v", err)
	}
	if err := sv.Add("a", []float32{1, 0}); err != nil {
		t.Fatal(err)
	}
	sv.Close()

	if _, err := sv.Search([]float32{1, 0}, 1); err == nil || !strings.HasPrefix(err.Error(), "index: sqlite-vec: ") {
		t.Errorf("search on closed backend: %v", err)
	}
	if err := sv.Delete("a"); err == nil || !strings.HasPrefix(err.Error(), "index: sqlite-vec: ") {
		t.Errorf("delete on closed backend: %v", err)
	}
}
