// Package pack defines the cacheable unit of related exchanges (a Pack) and
// the individual messages it holds (Entries).
package pack

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies how an Entry was recorded.
type Kind string

const (
	KindFull      Kind = "full"
	KindSummary   Kind = "summary"
	KindReference Kind = "reference"
)

// ValidKind returns true if k is a recognised entry kind.
func ValidKind(k Kind) bool {
	switch k {
	case KindFull, KindSummary, KindReference:
		return true
	}
	return false
}

// Strategy names the encoding applied to an Entry's payload.
type Strategy string

const (
	StrategyNone     Strategy = "none"
	StrategyBaseline Strategy = "baseline"
	StrategyDelta    Strategy = "delta"
	StrategyHybrid   Strategy = "hybrid"
)

// Encoding is the compressed representation of an Entry. Reference is the
// index of the entry a delta was computed against, or -1.
type Encoding struct {
	Strategy  Strategy `json:"strategy"`
	Reference int      `json:"reference"`
	Payload   []byte   `json:"-"`
}

// Entry is a single message stored inside a Pack.
type Entry struct {
	ID             string    `json:"id"`
	Kind           Kind      `json:"kind"`
	Content        string    `json:"content"`
	Embedding      []float32 `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	OriginalSize   int       `json:"original_size"`
	CompressedSize int       `json:"compressed_size,omitempty"`
	SessionID      string    `json:"session_id,omitempty"`
	Encoding       *Encoding `json:"encoding,omitempty"`
}

// NewEntry builds an Entry for content with a fresh ID.
func NewEntry(content string, embedding []float32, kind Kind, sessionID string, now time.Time) Entry {
	return Entry{
		ID:           uuid.NewString(),
		Kind:         kind,
		Content:      content,
		Embedding:    embedding,
		CreatedAt:    now,
		OriginalSize: len(content),
		SessionID:    sessionID,
	}
}

// IsCompressed reports whether a codec has encoded this entry.
func (e *Entry) IsCompressed() bool {
	return e.Encoding != nil
}

// MarkCompressed records the encoding produced by a codec.
func (e *Entry) MarkCompressed(enc Encoding) {
	e.Encoding = &enc
	e.CompressedSize = len(enc.Payload)
}

// CompressionRatio returns original/compressed for this entry, or 1.0 when
// the entry has not been compressed.
func (e *Entry) CompressionRatio() float64 {
	if e.CompressedSize <= 0 {
		return 1.0
	}
	return float64(e.OriginalSize) / float64(e.CompressedSize)
}
