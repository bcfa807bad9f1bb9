// Package index finds the closed packs most similar to a query. An Index
// embeds text through an adapter.Embedder, asks a Backend for candidates and
// rescores them with exact cosine similarity.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/memvra/dejavu/internal/adapter"
	"github.com/memvra/dejavu/internal/pack"
)

var (
	// ErrEmbeddingUnavailable is returned when the provider fails or
	// returns no vector.
	ErrEmbeddingUnavailable = errors.New("index: embedding unavailable")
	// ErrDimensionMismatch is returned when a vector's length differs from
	// the index dimension.
	ErrDimensionMismatch = errors.New("index: dimension mismatch")
	// ErrUnitOpen is returned when inserting a pack that is still open.
	ErrUnitOpen = errors.New("index: unit is still open")
)

// Result is a pack paired with its similarity to the query.
type Result struct {
	Unit       *pack.Pack
	Similarity float64
}

// Options configures an Index.
type Options struct {
	// Dimension fixes the vector length; 0 adopts the first vector seen.
	Dimension int
	// DecayHours, when > 0, multiplies scores by each pack's decay factor.
	DecayHours float64
	// Now is the clock used for decay; defaults to time.Now.
	Now func() time.Time
}

// Index maps pack IDs to closed packs and their centroids.
type Index struct {
	embedder adapter.Embedder
	backend  Backend
	opts     Options

	mu    sync.RWMutex
	units map[string]*pack.Pack
	dim   int
}

// New returns an Index over backend. A nil backend selects the HNSW graph.
func New(embedder adapter.Embedder, backend Backend, opts Options) *Index {
	if backend == nil {
		backend = NewHNSW()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Index{
		embedder: embedder,
		backend:  backend,
		opts:     opts,
		units:    make(map[string]*pack.Pack),
		dim:      opts.Dimension,
	}
}

// Dimension returns the index dimension, 0 if not yet known.
func (ix *Index) Dimension() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dim
}

// Backend returns the name of the candidate backend.
func (ix *Index) Backend() string { return ix.backend.Name() }

// Embed returns the embedding of text. When the index has no dimension yet
// it adopts the length of this vector.
func (ix *Index) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := ix.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("%w: provider returned no vector", ErrEmbeddingUnavailable)
	}
	vec := vecs[0]

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.dim == 0 {
		ix.dim = len(vec)
	}
	if len(vec) != ix.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), ix.dim)
	}
	return vec, nil
}

// Insert adds a closed pack under its centroid. Re-inserting an ID replaces
// the previous entry.
func (ix *Index) Insert(p *pack.Pack) error {
	if !p.IsClosed() {
		return fmt.Errorf("%w: %s", ErrUnitOpen, p.ID)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.dim == 0 {
		ix.dim = len(p.Centroid)
	}
	if len(p.Centroid) != ix.dim {
		return fmt.Errorf("%w: unit %s has %d, want %d", ErrDimensionMismatch, p.ID, len(p.Centroid), ix.dim)
	}
	if _, ok := ix.units[p.ID]; ok {
		if err := ix.backend.Delete(p.ID); err != nil {
			return fmt.Errorf("index: replace %s: %w", p.ID, err)
		}
	}
	if err := ix.backend.Add(p.ID, p.Centroid); err != nil {
		return fmt.Errorf("index: insert %s: %w", p.ID, err)
	}
	ix.units[p.ID] = p
	return nil
}

// Remove drops id from the index and reports whether it was present.
func (ix *Index) Remove(id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.units[id]; !ok {
		return false
	}
	delete(ix.units, id)
	// The unit map is authoritative; a stale backend entry is filtered out
	// at search time.
	_ = ix.backend.Delete(id)
	return true
}

// Get returns the indexed pack with the given ID.
func (ix *Index) Get(id string) (*pack.Pack, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	p, ok := ix.units[id]
	return p, ok
}

// Len returns the number of indexed packs.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.units)
}

// Search embeds text and returns up to k packs by descending similarity.
func (ix *Index) Search(ctx context.Context, text string, k int) ([]Result, error) {
	vec, err := ix.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	return ix.SearchVector(vec, k)
}

// SearchVector returns up to k packs by descending similarity to vec. Ties
// go to the most recently accessed pack, then the lowest ID. An empty index
// yields an empty result.
func (ix *Index) SearchVector(vec []float32, k int) ([]Result, error) {
	if k <= 0 {
		return []Result{}, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.units) == 0 {
		return []Result{}, nil
	}
	if len(vec) != ix.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), ix.dim)
	}

	// Oversample so the exact rescoring can reorder approximate hits.
	want := k * 2
	if want > len(ix.units) {
		want = len(ix.units)
	}
	ids, err := ix.backend.Search(vec, want)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}

	now := ix.opts.Now()
	results := make([]Result, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		p, ok := ix.units[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		sim := pack.Cosine(vec, p.Centroid)
		if ix.opts.DecayHours > 0 {
			sim *= p.DecayFactorAt(now, ix.opts.DecayHours)
		}
		results = append(results, Result{Unit: p, Similarity: sim})
	}

	sortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		ta, tb := a.Unit.LastAccessed(), b.Unit.LastAccessed()
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return a.Unit.ID < b.Unit.ID
	})
}

// Close releases backend resources.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.backend.Close()
}
