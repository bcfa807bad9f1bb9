// Package engine ties the pack, index, codec and response packages together.
// An Engine accumulates messages into an open unit, rotates full units into
// a bounded cache of closed units, and answers each new message with an
// adaptive response.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/memvra/dejavu/internal/adapter"
	"github.com/memvra/dejavu/internal/codec"
	"github.com/memvra/dejavu/internal/index"
	"github.com/memvra/dejavu/internal/pack"
	"github.com/memvra/dejavu/internal/response"
	"github.com/memvra/dejavu/internal/tokens"
)

// Options carries the engine's collaborators. The zero value is usable.
type Options struct {
	// Backend names the index backend: "hnsw" (default), "linear" or
	// "sqlite-vec".
	Backend string
	// Codec names the baseline codec: "zstd" (default), "lz4" or "none".
	Codec    string
	Observer Observer
	Logger   *zerolog.Logger
	// Now is the engine clock; defaults to time.Now.
	Now    func() time.Time
	Tokens tokens.Counter

	// backend, when set, replaces the named backend.
	backend index.Backend
}

// Engine is safe for concurrent use.
type Engine struct {
	cfg      Config
	index    *index.Index
	codec    *codec.Engine
	cache    *lru.Cache[string, *pack.Pack]
	observer Observer
	log      zerolog.Logger
	now      func() time.Time
	settings response.Settings

	// mu guards the open unit and serialises rotation, vacuum and cache
	// writes. The eviction callback runs with mu held.
	mu        sync.Mutex
	open      *pack.Pack
	vacuuming bool
	evicted   []EvictEvent
}

// New validates cfg and returns an Engine that embeds text through embedder.
func New(cfg Config, embedder adapter.Embedder, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	backend := opts.backend
	if backend == nil {
		b, err := index.NewBackend(opts.Backend)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		backend = b
	}
	baseline, err := codec.ByName(opts.Codec)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	e := &Engine{
		cfg:      cfg,
		codec:    codec.NewEngine(baseline, cfg.DeltaThreshold),
		observer: opts.Observer,
		now:      opts.Now,
		log:      zerolog.Nop(),
	}
	if opts.Logger != nil {
		e.log = *opts.Logger
	}
	if e.now == nil {
		e.now = time.Now
	}
	counter := opts.Tokens
	if counter == nil {
		counter = tokens.Default()
	}
	e.settings = response.Settings{
		SimilarityThreshold: cfg.SimilarityThreshold,
		ExactThreshold:      cfg.ExactThreshold,
		FullAnswerTokens:    cfg.FullAnswerTokens,
		RecapWords:          cfg.RecapWords,
		Tokens:              counter,
	}
	e.index = index.New(embedder, backend, index.Options{
		Dimension:  cfg.EmbeddingDimension,
		DecayHours: cfg.DecayHours,
		Now:        e.now,
	})

	cache, err := lru.NewWithEvict[string, *pack.Pack](cfg.CacheCapacity, e.onEvict)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	e.cache = cache

	e.log.Debug().
		Str("backend", backend.Name()).
		Str("codec", baseline.Name()).
		Int("max_entries", cfg.MaxEntriesPerUnit).
		Int("cache_capacity", cfg.CacheCapacity).
		Msg("engine ready")
	return e, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config { return e.cfg }

// Close releases the index backend.
func (e *Engine) Close() error { return e.index.Close() }

// AddMessage is AddMessageWithSession without a session ID.
func (e *Engine) AddMessage(ctx context.Context, text string) (response.Response, error) {
	return e.AddMessageWithSession(ctx, text, "")
}

// AddMessageWithSession answers text from the cached units, then records it
// in the open unit, rotating when the unit reaches capacity. A failure to
// embed or search leaves the engine unchanged. A rotation failure after the
// message was recorded returns the response together with an error wrapping
// ErrRotation.
func (e *Engine) AddMessageWithSession(ctx context.Context, text, sessionID string) (response.Response, error) {
	vec, err := e.index.Embed(ctx, text)
	if err != nil {
		return response.Response{}, err
	}
	results, err := e.index.SearchVector(vec, e.cfg.SearchK)
	if err != nil {
		return response.Response{}, err
	}
	resp := response.Generate(text, results, e.settings)
	now := e.now()

	e.mu.Lock()
	if e.open != nil && e.open.Len() >= e.cfg.MaxEntriesPerUnit {
		if _, _, err := e.rotateLocked(now); err != nil {
			events := e.drainLocked()
			e.mu.Unlock()
			e.notifyEvictions(events)
			return response.Response{}, err
		}
	}

	if resp.IsAdaptive() {
		if p, ok := e.cache.Get(resp.ReferencedUnit); ok {
			p.Touch(now)
		}
	}

	entry := pack.NewEntry(text, vec, resp.Tier.EntryKind(), sessionID, now)
	if e.open == nil {
		e.open = pack.New(entry, now)
	} else {
		e.open.AddEntry(entry)
	}

	var (
		rotated *pack.Pack
		result  codec.Result
		rotErr  error
	)
	if e.open.Len() >= e.cfg.MaxEntriesPerUnit {
		rotated, result, rotErr = e.rotateLocked(now)
	}
	events := e.drainLocked()
	e.mu.Unlock()

	e.notify("response", func(o Observer) error {
		return o.OnResponse(ResponseEvent{Query: text, SessionID: sessionID, Response: resp, At: now})
	})
	if rotated != nil {
		e.notifyRotate(rotated, result, now)
	}
	e.notifyEvictions(events)

	if rotErr != nil {
		return resp, rotErr
	}
	return resp, nil
}

// FindSimilar returns up to k cached units most similar to query.
func (e *Engine) FindSimilar(ctx context.Context, query string, k int) ([]index.Result, error) {
	return e.index.Search(ctx, query, k)
}

// GetUnit returns the cached unit with the given ID without changing its
// recency. The open unit is returned as a copy.
func (e *Engine) GetUnit(id string) (*pack.Pack, bool) {
	if p, ok := e.cache.Peek(id); ok {
		return p, true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open != nil && e.open.ID == id {
		return e.open.Clone(), true
	}
	return nil, false
}

// Units returns the cached units, most recently used first.
func (e *Engine) Units() []*pack.Pack {
	keys := e.cache.Keys()
	out := make([]*pack.Pack, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if p, ok := e.cache.Peek(keys[i]); ok {
			out = append(out, p)
		}
	}
	return out
}

// ForceRotate closes the open unit regardless of its size. It returns nil
// when there is no open unit.
func (e *Engine) ForceRotate() (*pack.Pack, error) {
	now := e.now()
	e.mu.Lock()
	rotated, result, err := e.rotateLocked(now)
	events := e.drainLocked()
	e.mu.Unlock()

	if rotated != nil {
		e.notifyRotate(rotated, result, now)
	}
	e.notifyEvictions(events)
	return rotated, err
}

// Vacuum evicts every cached unit older than the temporal window and
// returns how many were removed.
func (e *Engine) Vacuum() int {
	now := e.now()
	e.mu.Lock()
	e.vacuuming = true
	n := 0
	for _, id := range e.cache.Keys() {
		p, ok := e.cache.Peek(id)
		if !ok || !p.Expired(now, e.cfg.TemporalWindowHours) {
			continue
		}
		if e.cache.Remove(id) {
			n++
		}
	}
	e.vacuuming = false
	events := e.drainLocked()
	e.mu.Unlock()

	e.notifyEvictions(events)
	if n > 0 {
		e.log.Debug().Int("evicted", n).Msg("vacuum")
	}
	return n
}

// CompressUnit re-encodes a copy of the cached unit and reports the result.
// The cached unit is not modified.
func (e *Engine) CompressUnit(id string) (codec.Result, error) {
	p, ok := e.cache.Peek(id)
	if !ok {
		return codec.Result{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.codec.CompressPack(p.Clone())
}

// DecompressUnit returns the text of every entry in the cached unit.
func (e *Engine) DecompressUnit(id string) ([]string, error) {
	p, ok := e.cache.Peek(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.codec.DecompressPack(p)
}

// rotateLocked compresses, closes, indexes and caches the open unit. On
// failure the unit stays open. Caller holds e.mu.
func (e *Engine) rotateLocked(now time.Time) (*pack.Pack, codec.Result, error) {
	p := e.open
	if p == nil {
		return nil, codec.Result{}, nil
	}

	result, err := e.codec.CompressPack(p)
	if err != nil {
		return nil, codec.Result{}, fmt.Errorf("%w: compress unit %s: %w", ErrRotation, p.ID, err)
	}
	if e.cfg.AggressiveCompression && e.cfg.TargetRatio > 0 && !result.MeetsTarget(e.cfg.TargetRatio) {
		e.log.Warn().
			Str("unit", p.ID).
			Float64("ratio", result.Ratio).
			Float64("target", e.cfg.TargetRatio).
			Msg("compression below target")
	}

	p.Close()
	if err := e.index.Insert(p); err != nil {
		p.Reopen()
		return nil, codec.Result{}, fmt.Errorf("%w: index unit %s: %w", ErrRotation, p.ID, err)
	}
	e.cache.Add(p.ID, p)
	e.open = nil

	e.log.Debug().
		Str("unit", p.ID).
		Int("entries", p.Len()).
		Float64("ratio", result.Ratio).
		Str("strategy", string(result.Strategy)).
		Time("at", now).
		Msg("unit rotated")
	return p, result, nil
}

// onEvict runs inside cache.Add and cache.Remove, with e.mu held.
func (e *Engine) onEvict(id string, p *pack.Pack) {
	e.index.Remove(id)
	reason := EvictDisplaced
	if e.vacuuming {
		reason = EvictExpired
	}
	e.evicted = append(e.evicted, EvictEvent{Unit: p.Summarize(), Reason: reason, At: e.now()})
}

func (e *Engine) drainLocked() []EvictEvent {
	events := e.evicted
	e.evicted = nil
	return events
}

func (e *Engine) notifyRotate(p *pack.Pack, result codec.Result, at time.Time) {
	e.notify("rotate", func(o Observer) error {
		return o.OnRotate(RotateEvent{Unit: p.Summarize(), Result: result, At: at})
	})
}

func (e *Engine) notifyEvictions(events []EvictEvent) {
	for _, ev := range events {
		e.log.Debug().Str("unit", ev.Unit.ID).Str("reason", string(ev.Reason)).Msg("unit evicted")
		e.notify("evict", func(o Observer) error { return o.OnEvict(ev) })
	}
}

func (e *Engine) notify(event string, fn func(Observer) error) {
	if e.observer == nil {
		return
	}
	if err := fn(e.observer); err != nil {
		e.log.Warn().Err(err).Str("event", event).Msg("observer failed")
	}
}
