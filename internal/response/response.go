// Package response turns similarity search results into an adaptive
// response instruction: point back at an earlier unit, recap it, or ask for
// a full answer.
package response

import (
	"fmt"
	"strings"

	"github.com/memvra/dejavu/internal/index"
	"github.com/memvra/dejavu/internal/pack"
	"github.com/memvra/dejavu/internal/tokens"
)

// Tier is the level of reuse chosen for a query.
type Tier string

const (
	TierReference Tier = "reference"
	TierPartial   Tier = "partial"
	TierFull      Tier = "full"
)

// EntryKind returns the entry kind recorded for a response of this tier.
func (t Tier) EntryKind() pack.Kind {
	switch t {
	case TierReference:
		return pack.KindReference
	case TierPartial:
		return pack.KindSummary
	default:
		return pack.KindFull
	}
}

// Response is the adaptive instruction for one query.
type Response struct {
	Tier           Tier    `json:"tier"`
	Content        string  `json:"content"`
	ReferencedUnit string  `json:"referenced_unit,omitempty"`
	Similarity     float64 `json:"similarity"`
	TokensSaved    int     `json:"tokens_saved"`
}

// IsAdaptive reports whether the response reuses earlier material.
func (r Response) IsAdaptive() bool { return r.Tier != TierFull }

// CompressionRatio returns fullTokens / (fullTokens - TokensSaved), or 1.0
// when the denominator is not positive.
func (r Response) CompressionRatio(fullTokens int) float64 {
	actual := fullTokens - r.TokensSaved
	if actual <= 0 {
		return 1.0
	}
	return float64(fullTokens) / float64(actual)
}

// Settings holds the thresholds and budgets Generate works with.
type Settings struct {
	SimilarityThreshold float64
	ExactThreshold      float64
	FullAnswerTokens    int
	RecapWords          int
	Tokens              tokens.Counter
}

// Generate picks a tier from the top result and renders its content. It
// never mutates the units it reads.
func Generate(query string, results []index.Result, s Settings) Response {
	if s.Tokens == nil {
		s.Tokens = tokens.WordEstimate{}
	}
	if len(results) == 0 {
		return full(query, 0)
	}

	top := results[0]
	switch {
	case top.Similarity >= s.ExactThreshold:
		return s.adaptive(TierReference, reference(top), top)
	case top.Similarity >= s.SimilarityThreshold:
		return s.adaptive(TierPartial, partial(top, s.RecapWords), top)
	default:
		return full(query, top.Similarity)
	}
}

func (s Settings) adaptive(tier Tier, content string, top index.Result) Response {
	saved := s.FullAnswerTokens - s.Tokens.Count(content)
	if saved < 1 {
		saved = 1
	}
	return Response{
		Tier:           tier,
		Content:        content,
		ReferencedUnit: top.Unit.ID,
		Similarity:     top.Similarity,
		TokensSaved:    saved,
	}
}

func full(query string, similarity float64) Response {
	return Response{
		Tier:       TierFull,
		Content:    fmt.Sprintf("New topic: a full answer is required for %q.", query),
		Similarity: similarity,
	}
}

func pointer(p *pack.Pack) string {
	return fmt.Sprintf("unit %s (%s)\nKeywords: %s",
		p.ID, p.CreatedAt.Format("2006-01-02 15:04"), strings.Join(p.Keywords, ", "))
}

func reference(r index.Result) string {
	return fmt.Sprintf("Already covered (similarity %.1f%%).\nSee earlier discussion: %s",
		r.Similarity*100, pointer(r.Unit))
}

func partial(r index.Result, recapWords int) string {
	return fmt.Sprintf("Related to an earlier discussion (similarity %.1f%%).\n\nQuick recap:\n%s\n\nFor details see: %s",
		r.Similarity*100, Recap(r.Unit, recapWords), pointer(r.Unit))
}

// Recap summarises p: the first two lines of each full entry, summary
// entries verbatim, reference entries skipped, cut to maxWords words.
func Recap(p *pack.Pack, maxWords int) string {
	var parts []string
	for i := range p.Entries {
		e := &p.Entries[i]
		switch e.Kind {
		case pack.KindFull:
			lines := strings.SplitN(e.Content, "\n", 3)
			if len(lines) > 2 {
				lines = lines[:2]
			}
			parts = append(parts, strings.Join(lines, "\n"))
		case pack.KindSummary:
			parts = append(parts, e.Content)
		}
	}

	recap := strings.Join(parts, "\n\n")
	words := strings.Fields(recap)
	if maxWords <= 0 || len(words) <= maxWords {
		return recap
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
