// Package tokens estimates token counts for savings reporting.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens in a string.
type Counter interface {
	Count(s string) int
}

// Tokenizer wraps tiktoken for approximate token counting.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTokenizer creates a Tokenizer using the cl100k_base encoding.
func NewTokenizer() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("tokens: get encoding: %w", err)
	}
	return &Tokenizer{enc: enc}, nil
}

// Count returns the approximate number of tokens in s.
func (t *Tokenizer) Count(s string) int {
	return len(t.enc.Encode(s, nil, nil))
}

// Truncate truncates s to at most maxTokens tokens.
func (t *Tokenizer) Truncate(s string, maxTokens int) string {
	toks := t.enc.Encode(s, nil, nil)
	if len(toks) <= maxTokens {
		return s
	}
	return t.enc.Decode(toks[:maxTokens])
}

// WordEstimate approximates tokens as four per three words. It needs no
// encoding tables.
type WordEstimate struct{}

// Count returns ceil(words * 4 / 3).
func (WordEstimate) Count(s string) int {
	words := len(strings.Fields(s))
	return (words*4 + 2) / 3
}

var (
	defaultOnce    sync.Once
	defaultCounter Counter
)

// Default returns a shared cl100k_base Tokenizer, or WordEstimate when the
// encoding cannot be loaded.
func Default() Counter {
	defaultOnce.Do(func() {
		if tok, err := NewTokenizer(); err == nil {
			defaultCounter = tok
			return
		}
		defaultCounter = WordEstimate{}
	})
	return defaultCounter
}
