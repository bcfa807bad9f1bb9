package index

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Backend proposes candidate IDs for a query vector. Implementations need
// not be exact; the Index rescores what they return.
type Backend interface {
	Name() string
	Add(id string, vec []float32) error
	Delete(id string) error
	Search(vec []float32, k int) ([]string, error)
	Len() int
	Close() error
}

// Backend names accepted by NewBackend.
const (
	BackendHNSW      = "hnsw"
	BackendLinear    = "linear"
	BackendSQLiteVec = "sqlite-vec"
)

// NewBackend constructs the named backend. An empty name selects HNSW.
func NewBackend(name string) (Backend, error) {
	switch name {
	case "", BackendHNSW:
		return NewHNSW(), nil
	case BackendLinear:
		return NewLinear(), nil
	case BackendSQLiteVec:
		return NewSQLiteVec()
	default:
		return nil, fmt.Errorf("index: unknown backend %q", name)
	}
}

// Linear scans every vector. It is exact and suits small caches.
type Linear struct {
	mu   sync.RWMutex
	vecs map[string][]float64
}

// NewLinear returns an empty linear backend.
func NewLinear() *Linear {
	return &Linear{vecs: make(map[string][]float64)}
}

func (l *Linear) Name() string { return BackendLinear }

func (l *Linear) Add(id string, vec []float32) error {
	v := toFloat64(vec)
	if n := floats.Norm(v, 2); n > 0 {
		floats.Scale(1/n, v)
	}
	l.mu.Lock()
	l.vecs[id] = v
	l.mu.Unlock()
	return nil
}

func (l *Linear) Delete(id string) error {
	l.mu.Lock()
	delete(l.vecs, id)
	l.mu.Unlock()
	return nil
}

func (l *Linear) Search(vec []float32, k int) ([]string, error) {
	q := toFloat64(vec)
	if n := floats.Norm(q, 2); n > 0 {
		floats.Scale(1/n, q)
	}

	type scored struct {
		id  string
		sim float64
	}
	l.mu.RLock()
	all := make([]scored, 0, len(l.vecs))
	for id, v := range l.vecs {
		if len(v) != len(q) {
			continue
		}
		all = append(all, scored{id: id, sim: floats.Dot(q, v)})
	}
	l.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].sim != all[j].sim {
			return all[i].sim > all[j].sim
		}
		return all[i].id < all[j].id
	})
	if len(all) > k {
		all = all[:k]
	}
	ids := make([]string, len(all))
	for i, s := range all {
		ids[i] = s.id
	}
	return ids, nil
}

func (l *Linear) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.vecs)
}

func (l *Linear) Close() error { return nil }

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
