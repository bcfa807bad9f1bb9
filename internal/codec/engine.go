package codec

import (
	"errors"
	"fmt"
	"time"

	"github.com/memvra/dejavu/internal/pack"
)

// Engine picks between baseline, delta and hybrid encodings.
type Engine struct {
	baseline Codec
	delta    Delta
}

// NewEngine returns an Engine using baseline for generic text and delta
// encoding at or above deltaThreshold similarity.
func NewEngine(baseline Codec, deltaThreshold float64) *Engine {
	if baseline == nil {
		baseline = Zstd{}
	}
	return &Engine{baseline: baseline, delta: Delta{Threshold: deltaThreshold}}
}

// Baseline returns the configured baseline codec.
func (e *Engine) Baseline() Codec { return e.baseline }

// Compress encodes text with the baseline codec.
func (e *Engine) Compress(text string) ([]byte, Result, error) {
	start := time.Now()
	payload, err := e.baseline.Compress([]byte(text))
	if err != nil {
		return nil, Result{}, wrapEncoding(err)
	}
	return payload, newResult(len(text), len(payload), pack.StrategyBaseline, time.Since(start)), nil
}

// CompressDelta encodes candidate against reference. Below the delta
// threshold the candidate is stored raw and the reported ratio is 1.0.
func (e *Engine) CompressDelta(candidate, reference string, similarity float64) ([]byte, Result, error) {
	start := time.Now()
	payload, applied, err := e.delta.Encode(candidate, reference, similarity)
	if err != nil {
		return nil, Result{}, err
	}
	res := newResult(len(candidate), len(payload), pack.StrategyDelta, time.Since(start))
	if !applied {
		res.Ratio = 1.0
	}
	return payload, res, nil
}

// CompressHybrid runs the baseline codec over the delta payload.
func (e *Engine) CompressHybrid(candidate, reference string, similarity float64) ([]byte, Result, error) {
	start := time.Now()
	delta, _, err := e.delta.Encode(candidate, reference, similarity)
	if err != nil {
		return nil, Result{}, err
	}
	payload, err := e.baseline.Compress(delta)
	if err != nil {
		return nil, Result{}, wrapEncoding(err)
	}
	return payload, newResult(len(candidate), len(payload), pack.StrategyHybrid, time.Since(start)), nil
}

// Decompress reverses any of the Compress methods. reference is ignored for
// baseline and none payloads.
func (e *Engine) Decompress(payload []byte, strategy pack.Strategy, reference string) (string, error) {
	switch strategy {
	case pack.StrategyNone:
		return string(payload), nil
	case pack.StrategyBaseline:
		out, err := e.baseline.Decompress(payload)
		if err != nil {
			return "", wrapDecoding(err)
		}
		return string(out), nil
	case pack.StrategyDelta:
		return e.delta.Decode(payload, reference)
	case pack.StrategyHybrid:
		delta, err := e.baseline.Decompress(payload)
		if err != nil {
			return "", wrapDecoding(err)
		}
		return e.delta.Decode(delta, reference)
	default:
		return "", fmt.Errorf("%w: unknown strategy %q", ErrDecodingFailed, strategy)
	}
}

// CompressPack encodes every entry of p in place. Entry 0 uses the baseline
// codec; each later entry also tries delta and hybrid against its
// predecessor when their embeddings are similar enough, keeping the
// smallest payload. Baseline wins ties.
func (e *Engine) CompressPack(p *pack.Pack) (Result, error) {
	start := time.Now()
	counts := make(map[pack.Strategy]int)
	var original, compressed int

	for i := range p.Entries {
		entry := &p.Entries[i]

		best, _, err := e.Compress(entry.Content)
		if err != nil {
			return Result{}, fmt.Errorf("codec: entry %d: %w", i, err)
		}
		enc := pack.Encoding{Strategy: pack.StrategyBaseline, Reference: -1, Payload: best}

		if i > 0 {
			prev := &p.Entries[i-1]
			sim := pack.Cosine(entry.Embedding, prev.Embedding)
			if sim >= e.delta.Threshold {
				delta, _, err := e.CompressDelta(entry.Content, prev.Content, sim)
				if err != nil {
					return Result{}, fmt.Errorf("codec: entry %d: %w", i, err)
				}
				if len(delta) < len(enc.Payload) {
					enc = pack.Encoding{Strategy: pack.StrategyDelta, Reference: i - 1, Payload: delta}
				}
				hybrid, _, err := e.CompressHybrid(entry.Content, prev.Content, sim)
				if err != nil {
					return Result{}, fmt.Errorf("codec: entry %d: %w", i, err)
				}
				if len(hybrid) < len(enc.Payload) {
					enc = pack.Encoding{Strategy: pack.StrategyHybrid, Reference: i - 1, Payload: hybrid}
				}
			}
		}

		entry.MarkCompressed(enc)
		counts[enc.Strategy]++
		original += entry.OriginalSize
		compressed += entry.CompressedSize
	}

	res := newResult(original, compressed, dominantStrategy(counts), time.Since(start))
	res.Counts = counts
	return res, nil
}

// DecompressPack returns the content of every entry, decoding compressed
// entries from their payloads.
func (e *Engine) DecompressPack(p *pack.Pack) ([]string, error) {
	out := make([]string, len(p.Entries))
	for i := range p.Entries {
		entry := &p.Entries[i]
		if !entry.IsCompressed() {
			out[i] = entry.Content
			continue
		}
		enc := entry.Encoding

		var reference string
		if enc.Strategy == pack.StrategyDelta || enc.Strategy == pack.StrategyHybrid {
			if enc.Reference < 0 || enc.Reference >= i {
				return nil, fmt.Errorf("codec: entry %d: %w (index %d)", i, ErrReferenceNotFound, enc.Reference)
			}
			reference = out[enc.Reference]
		}

		text, err := e.Decompress(enc.Payload, enc.Strategy, reference)
		if err != nil {
			return nil, fmt.Errorf("codec: entry %d: %w", i, err)
		}
		out[i] = text
	}
	return out, nil
}

// EstimateTotalRatio multiplies the baseline estimate for text by the delta
// estimate when a similarity is given.
func (e *Engine) EstimateTotalRatio(text string, similarity *float64) float64 {
	r := e.baseline.EstimateRatio(text)
	if similarity != nil {
		r *= e.delta.EstimateRatio(*similarity)
	}
	return r
}

// EstimateDeltaRatio exposes the delta estimate for similarity.
func (e *Engine) EstimateDeltaRatio(similarity float64) float64 {
	return e.delta.EstimateRatio(similarity)
}

func dominantStrategy(counts map[pack.Strategy]int) pack.Strategy {
	best := pack.StrategyNone
	n := 0
	for _, s := range []pack.Strategy{pack.StrategyBaseline, pack.StrategyDelta, pack.StrategyHybrid} {
		if counts[s] > n {
			best, n = s, counts[s]
		}
	}
	return best
}

func wrapEncoding(err error) error {
	if errors.Is(err, ErrEncodingFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrEncodingFailed, err)
}

func wrapDecoding(err error) error {
	if errors.Is(err, ErrDecodingFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDecodingFailed, err)
}
