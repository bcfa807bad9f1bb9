package adapter

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimension matches the common small sentence-embedding models.
const DefaultHashDimension = 384

// hashEmbedder is a local feature-hashing embedder. Lower-cased words and
// adjacent word pairs are hashed into signed buckets and the result is
// L2-normalised, so texts sharing most words score close to 1.
type hashEmbedder struct {
	dim int
}

// NewHash creates an offline embedder producing dim-dimensional vectors.
func NewHash(dim int) Provider {
	if dim <= 0 {
		dim = DefaultHashDimension
	}
	return &hashEmbedder{dim: dim}
}

func (h *hashEmbedder) Info() ModelInfo {
	return ModelInfo{Name: "feature-hash", Provider: ProviderHash, Dimension: h.dim}
}

func (h *hashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.vector(text)
	}
	return out, nil
}

func (h *hashEmbedder) vector(text string) []float32 {
	v := make([]float32, h.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		h.add(v, text, 1)
	}
	for i, w := range words {
		h.add(v, w, 1)
		if i > 0 {
			h.add(v, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func (h *hashEmbedder) add(v []float32, feature string, weight float32) {
	f := fnv.New64a()
	f.Write([]byte(feature))
	sum := f.Sum64()
	idx := int(sum % uint64(h.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	v[idx] += weight
}
