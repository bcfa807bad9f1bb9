package pack

import (
	"math"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxKeywords caps the keyword list so summaries stay scannable.
const MaxKeywords = 10

// Pack groups related entries under one rolling centroid embedding.
// A Pack is open while it accepts entries and closed once rotated; closed
// packs are never mutated except for their access metadata.
type Pack struct {
	ID        string            `json:"id"`
	Centroid  []float32         `json:"-"`
	Entries   []Entry           `json:"entries"`
	CreatedAt time.Time         `json:"created_at"`
	Keywords  []string          `json:"keywords"`
	Metadata  map[string]string `json:"metadata,omitempty"`

	closed      atomic.Bool
	lastAccess  atomic.Int64 // unix nanos
	accessCount atomic.Uint64
}

// New creates an open Pack seeded with its first entry.
func New(first Entry, now time.Time) *Pack {
	centroid := make([]float32, len(first.Embedding))
	copy(centroid, first.Embedding)

	p := &Pack{
		ID:        uuid.NewString(),
		Centroid:  centroid,
		Entries:   []Entry{first},
		CreatedAt: now,
		Metadata:  make(map[string]string),
	}
	p.mergeKeywords(ExtractKeywords(first.Content))
	p.lastAccess.Store(now.UnixNano())
	return p
}

// AddEntry appends e and folds its embedding into the centroid using an
// incremental mean. It returns false, leaving the pack untouched, if the
// pack is closed.
func (p *Pack) AddEntry(e Entry) bool {
	if p.IsClosed() {
		return false
	}
	p.updateCentroid(e.Embedding)
	p.mergeKeywords(ExtractKeywords(e.Content))
	p.Entries = append(p.Entries, e)
	return true
}

// updateCentroid applies c[i] = (c[i]*n + v[i]) / (n+1), n = entries before insert.
func (p *Pack) updateCentroid(v []float32) {
	n := float32(len(p.Entries))
	for i := range p.Centroid {
		if i >= len(v) {
			break
		}
		p.Centroid[i] = (p.Centroid[i]*n + v[i]) / (n + 1)
	}
}

func (p *Pack) mergeKeywords(kws []string) {
	for _, kw := range kws {
		if len(p.Keywords) >= MaxKeywords {
			return
		}
		if containsString(p.Keywords, kw) {
			continue
		}
		p.Keywords = append(p.Keywords, kw)
	}
}

// Len returns the number of entries.
func (p *Pack) Len() int { return len(p.Entries) }

// Dimension returns the centroid dimensionality.
func (p *Pack) Dimension() int { return len(p.Centroid) }

// Close marks the pack closed. Closing is one-way except for Reopen, which
// rotation uses to hand a pack back to the open slot when indexing fails.
func (p *Pack) Close() { p.closed.Store(true) }

// Reopen reverts Close.
func (p *Pack) Reopen() { p.closed.Store(false) }

// IsClosed reports whether the pack has been rotated.
func (p *Pack) IsClosed() bool { return p.closed.Load() }

// Touch records an access.
func (p *Pack) Touch(now time.Time) {
	p.lastAccess.Store(now.UnixNano())
	p.accessCount.Add(1)
}

// LastAccessed returns the time of the most recent access (creation time if
// never accessed).
func (p *Pack) LastAccessed() time.Time {
	return time.Unix(0, p.lastAccess.Load())
}

// AccessCount returns how many times the pack has been accessed.
func (p *Pack) AccessCount() uint64 { return p.accessCount.Load() }

// TemporalDecayFactor returns exp(-hours_since_creation / decayHours).
func (p *Pack) TemporalDecayFactor(decayHours float64) float64 {
	return p.DecayFactorAt(time.Now(), decayHours)
}

// DecayFactorAt is TemporalDecayFactor evaluated at now. The result is in
// (0, 1]; a non-positive decayHours disables decay.
func (p *Pack) DecayFactorAt(now time.Time, decayHours float64) float64 {
	if decayHours <= 0 {
		return 1.0
	}
	hours := now.Sub(p.CreatedAt).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-hours / decayHours)
}

// Expired reports whether the pack's age strictly exceeds windowHours.
func (p *Pack) Expired(now time.Time, windowHours int) bool {
	return now.Sub(p.CreatedAt) > time.Duration(windowHours)*time.Hour
}

// TotalSize returns the summed original size and the summed compressed size
// of compressed entries.
func (p *Pack) TotalSize() (original, compressed int) {
	for i := range p.Entries {
		original += p.Entries[i].OriginalSize
		if p.Entries[i].IsCompressed() {
			compressed += p.Entries[i].CompressedSize
		}
	}
	return original, compressed
}

// CompressionRatio returns original/compressed over compressed entries, or
// 1.0 when no entry has been compressed.
func (p *Pack) CompressionRatio() float64 {
	var original, compressed int
	for i := range p.Entries {
		e := &p.Entries[i]
		if !e.IsCompressed() {
			continue
		}
		original += e.OriginalSize
		compressed += e.CompressedSize
	}
	if compressed == 0 {
		return 1.0
	}
	return float64(original) / float64(compressed)
}

// Clone returns a deep copy with the same ID, state and access metadata.
func (p *Pack) Clone() *Pack {
	c := &Pack{
		ID:        p.ID,
		Centroid:  append([]float32(nil), p.Centroid...),
		Entries:   make([]Entry, len(p.Entries)),
		CreatedAt: p.CreatedAt,
		Keywords:  append([]string(nil), p.Keywords...),
		Metadata:  make(map[string]string, len(p.Metadata)),
	}
	for i, e := range p.Entries {
		e.Embedding = append([]float32(nil), e.Embedding...)
		if e.Encoding != nil {
			enc := *e.Encoding
			enc.Payload = append([]byte(nil), enc.Payload...)
			e.Encoding = &enc
		}
		c.Entries[i] = e
	}
	for k, v := range p.Metadata {
		c.Metadata[k] = v
	}
	c.closed.Store(p.closed.Load())
	c.lastAccess.Store(p.lastAccess.Load())
	c.accessCount.Store(p.accessCount.Load())
	return c
}

// Summary is a flat, serialisable view of a Pack.
type Summary struct {
	ID             string    `json:"id"`
	Entries        int       `json:"entries"`
	Keywords       []string  `json:"keywords"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessed   time.Time `json:"last_accessed"`
	AccessCount    uint64    `json:"access_count"`
	OriginalSize   int       `json:"original_size"`
	CompressedSize int       `json:"compressed_size"`
	Ratio          float64   `json:"ratio"`
	Closed         bool      `json:"closed"`
}

// Summarize returns the Summary view of p.
func (p *Pack) Summarize() Summary {
	original, compressed := p.TotalSize()
	return Summary{
		ID:             p.ID,
		Entries:        len(p.Entries),
		Keywords:       append([]string(nil), p.Keywords...),
		CreatedAt:      p.CreatedAt,
		LastAccessed:   p.LastAccessed(),
		AccessCount:    p.AccessCount(),
		OriginalSize:   original,
		CompressedSize: compressed,
		Ratio:          p.CompressionRatio(),
		Closed:         p.IsClosed(),
	}
}

// ExtractKeywords pulls acronym-like tokens (upper-case letters and digits,
// at least three characters) and numbered sentences out of content, at most
// MaxKeywords of them, without duplicates.
func ExtractKeywords(content string) []string {
	var out []string
	add := func(kw string) {
		if len(out) < MaxKeywords && !containsString(out, kw) {
			out = append(out, kw)
		}
	}

	for _, w := range strings.Fields(content) {
		if utf8.RuneCountInString(w) < 3 {
			continue
		}
		if isUpperOrDigits(w) {
			add(w)
		}
	}

	for _, sentence := range strings.Split(content, ".") {
		if !strings.ContainsFunc(sentence, unicode.IsDigit) {
			continue
		}
		add(strings.TrimSpace(sentence))
	}
	return out
}

func isUpperOrDigits(w string) bool {
	for _, r := range w {
		if !unicode.IsUpper(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
