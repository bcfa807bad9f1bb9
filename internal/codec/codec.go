// Package codec compresses pack entries. A baseline Codec handles generic
// text; Delta encodes an entry as word-level edits against a similar
// reference entry; hybrid runs the baseline codec over a delta payload.
package codec

import (
	"errors"
	"fmt"
	"time"

	"github.com/memvra/dejavu/internal/pack"
)

var (
	// ErrEncodingFailed is returned when a codec cannot encode its input.
	ErrEncodingFailed = errors.New("codec: encoding failed")
	// ErrDecodingFailed is returned for corrupt or inconsistent payloads.
	ErrDecodingFailed = errors.New("codec: decoding failed")
	// ErrReferenceNotFound is returned when a delta payload names a
	// reference entry that does not exist.
	ErrReferenceNotFound = fmt.Errorf("%w: reference entry not found", ErrDecodingFailed)
)

// Codec is a general-purpose lossless compressor.
type Codec interface {
	Name() string
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
	// EstimateRatio predicts the ratio for text without compressing it.
	EstimateRatio(text string) float64
}

// ByName returns the codec registered under name. An empty name selects zstd.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "zstd":
		return Zstd{}, nil
	case "lz4":
		return LZ4{}, nil
	case "none":
		return None{}, nil
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}

// Names lists the available codecs.
func Names() []string { return []string{"zstd", "lz4", "none"} }

// estimateRatio scales base by up to 40% for longer texts.
func estimateRatio(base float64, n int) float64 {
	lengthFactor := float64(n) / 1000.0
	if lengthFactor > 2 {
		lengthFactor = 2
	}
	return base * (1 + lengthFactor*0.2)
}

// Result describes one compression operation.
type Result struct {
	OriginalSize   int                   `json:"original_size"`
	CompressedSize int                   `json:"compressed_size"`
	Ratio          float64               `json:"ratio"`
	Strategy       pack.Strategy         `json:"strategy"`
	Counts         map[pack.Strategy]int `json:"counts,omitempty"`
	Elapsed        time.Duration         `json:"elapsed"`
}

func newResult(original, compressed int, strategy pack.Strategy, elapsed time.Duration) Result {
	return Result{
		OriginalSize:   original,
		CompressedSize: compressed,
		Ratio:          ratio(original, compressed),
		Strategy:       strategy,
		Elapsed:        elapsed,
	}
}

// MeetsTarget reports whether the achieved ratio reaches target.
func (r Result) MeetsTarget(target float64) bool {
	return r.Ratio >= target
}

func ratio(original, compressed int) float64 {
	if compressed <= 0 {
		return 1.0
	}
	return float64(original) / float64(compressed)
}
