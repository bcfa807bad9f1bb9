package codec

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/pmezard/go-difflib/difflib"
)

// Delta payload format tags.
const (
	deltaRaw  byte = 0
	deltaCBOR byte = 1
)

type opKind uint8

const (
	opKeep opKind = iota
	opInsert
	opDelete
	opReplace
)

// deltaOp is one edit against the reference token stream. Count is the
// number of reference tokens consumed (keep, delete, replace); Text is the
// candidate text emitted (insert, replace).
type deltaOp struct {
	_     struct{} `cbor:",toarray"`
	Kind  opKind
	Count int
	Text  string
}

// Delta encodes a candidate text as word-level edits against a reference.
// Below Threshold the candidate is stored raw.
type Delta struct {
	Threshold float64
}

// Encode returns the delta payload for candidate against reference. The
// second return value is false when similarity was below the threshold and
// the candidate was stored raw.
func (d Delta) Encode(candidate, reference string, similarity float64) ([]byte, bool, error) {
	if similarity < d.Threshold {
		return append([]byte{deltaRaw}, candidate...), false, nil
	}

	ref := tokenize(reference)
	cand := tokenize(candidate)
	// Autojunk off: repeated words must stay matchable.
	matcher := difflib.NewMatcherWithJunk(ref, cand, false, nil)

	var ops []deltaOp
	for _, oc := range matcher.GetOpCodes() {
		switch oc.Tag {
		case 'e':
			ops = append(ops, deltaOp{Kind: opKeep, Count: oc.I2 - oc.I1})
		case 'd':
			ops = append(ops, deltaOp{Kind: opDelete, Count: oc.I2 - oc.I1})
		case 'i':
			ops = append(ops, deltaOp{Kind: opInsert, Text: strings.Join(cand[oc.J1:oc.J2], "")})
		case 'r':
			ops = append(ops, deltaOp{Kind: opReplace, Count: oc.I2 - oc.I1, Text: strings.Join(cand[oc.J1:oc.J2], "")})
		}
	}

	body, err := cbor.Marshal(ops)
	if err != nil {
		return nil, true, fmt.Errorf("%w: delta: %v", ErrEncodingFailed, err)
	}
	return append([]byte{deltaCBOR}, body...), true, nil
}

// Decode replays payload against reference.
func (d Delta) Decode(payload []byte, reference string) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("%w: delta: empty payload", ErrDecodingFailed)
	}
	switch payload[0] {
	case deltaRaw:
		return string(payload[1:]), nil
	case deltaCBOR:
	default:
		return "", fmt.Errorf("%w: delta: unknown format %d", ErrDecodingFailed, payload[0])
	}

	var ops []deltaOp
	if err := cbor.Unmarshal(payload[1:], &ops); err != nil {
		return "", fmt.Errorf("%w: delta: %v", ErrDecodingFailed, err)
	}

	ref := tokenize(reference)
	var b strings.Builder
	pos := 0
	for _, op := range ops {
		if op.Count < 0 || pos+op.Count > len(ref) {
			return "", fmt.Errorf("%w: delta: op overruns reference (%d+%d > %d)", ErrDecodingFailed, pos, op.Count, len(ref))
		}
		switch op.Kind {
		case opKeep:
			for _, tok := range ref[pos : pos+op.Count] {
				b.WriteString(tok)
			}
		case opInsert:
			if op.Count != 0 {
				return "", fmt.Errorf("%w: delta: insert consumes %d reference tokens", ErrDecodingFailed, op.Count)
			}
			b.WriteString(op.Text)
		case opDelete:
		case opReplace:
			b.WriteString(op.Text)
		default:
			return "", fmt.Errorf("%w: delta: unknown op %d", ErrDecodingFailed, op.Kind)
		}
		pos += op.Count
	}
	if pos != len(ref) {
		return "", fmt.Errorf("%w: delta: %d reference tokens unconsumed", ErrDecodingFailed, len(ref)-pos)
	}
	return b.String(), nil
}

// EstimateRatio maps similarity to an expected delta ratio: 1.0 below the
// threshold, then linearly from 1.5 at the threshold to 3.0 at 1.0.
func (d Delta) EstimateRatio(similarity float64) float64 {
	if similarity < d.Threshold {
		return 1.0
	}
	if similarity > 1 {
		similarity = 1
	}
	if d.Threshold >= 1 {
		return 3.0
	}
	normalized := (similarity - d.Threshold) / (1 - d.Threshold)
	return 1.5 + normalized*1.5
}

// tokenize splits s into words that carry their trailing whitespace, with
// any leading whitespace as its own token, so concatenating the tokens
// yields s exactly.
func tokenize(s string) []string {
	var toks []string
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	if i > 0 {
		toks = append(toks, s[:i])
	}
	start := i
	for i < len(s) {
		for i < len(s) && !isSpace(s[i]) {
			i++
		}
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		toks = append(toks, s[start:i])
		start = i
	}
	return toks
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
