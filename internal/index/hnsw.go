package index

import (
	"sync"

	"github.com/coder/hnsw"
)

// HNSW is an approximate nearest-neighbour graph using cosine distance.
//
// Deleted IDs are tombstoned rather than removed from the graph: the graph
// keeps serving them as neighbours and Search filters them out. Once
// tombstones outnumber half the live vectors the graph is rebuilt from the
// live set.
type HNSW struct {
	mu    sync.Mutex
	graph *hnsw.Graph[string]
	vecs  map[string][]float32
	stale int
}

// NewHNSW returns an empty graph backend.
func NewHNSW() *HNSW {
	return &HNSW{graph: newGraph(), vecs: make(map[string][]float32)}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance
	return g
}

func (h *HNSW) Name() string { return BackendHNSW }

func (h *HNSW) Add(id string, vec []float32) error {
	v := append([]float32(nil), vec...)
	h.mu.Lock()
	defer h.mu.Unlock()

	h.vecs[id] = v
	if _, ok := h.graph.Lookup(id); ok {
		// The graph still holds an older vector (live or tombstoned) under id.
		h.rebuild()
		return nil
	}
	h.graph.Add(hnsw.MakeNode(id, v))
	return nil
}

func (h *HNSW) Delete(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.vecs[id]; !ok {
		return nil
	}
	delete(h.vecs, id)
	h.stale++
	if h.stale*2 > len(h.vecs) {
		h.rebuild()
	}
	return nil
}

// rebuild replaces the graph with one holding only live vectors.
func (h *HNSW) rebuild() {
	h.graph = newGraph()
	h.stale = 0
	if len(h.vecs) == 0 {
		return
	}
	nodes := make([]hnsw.Node[string], 0, len(h.vecs))
	for id, v := range h.vecs {
		nodes = append(nodes, hnsw.MakeNode(id, v))
	}
	h.graph.Add(nodes...)
}

func (h *HNSW) Search(vec []float32, k int) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.vecs) == 0 || k <= 0 {
		return nil, nil
	}

	want := k + h.stale
	if n := h.graph.Len(); want > n {
		want = n
	}
	nodes := h.graph.Search(vec, want)
	ids := make([]string, 0, k)
	for _, n := range nodes {
		if _, ok := h.vecs[n.Key]; !ok {
			continue
		}
		ids = append(ids, n.Key)
		if len(ids) == k {
			break
		}
	}
	return ids, nil
}

func (h *HNSW) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.vecs)
}

func (h *HNSW) Close() error { return nil }
