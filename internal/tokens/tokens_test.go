package tokens

import "testing"

func newTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	tok, err := NewTokenizer()
	if err != nil {
		t.Skipf("cl100k_base unavailable: %v", err)
	}
	return tok
}

func TestTokenizer_Count(t *testing.T) {
	tok := newTokenizer(t)

	if count := tok.Count("Hello, world!"); count <= 0 {
		t.Errorf("expected positive token count, got %d", count)
	}
	if count := tok.Count(""); count != 0 {
		t.Errorf("expected 0 tokens for empty string, got %d", count)
	}
}

func TestTokenizer_Truncate(t *testing.T) {
	tok := newTokenizer(t)

	long := "This is a fairly long string that should have more than five tokens in total."
	truncated := tok.Truncate(long, 5)
	if len(truncated) >= len(long) {
		t.Error("truncated string should be shorter than original")
	}
	if n := tok.Count(truncated); n > 5 {
		t.Errorf("truncated to 5 tokens but Count says %d", n)
	}
	if got := tok.Truncate("Hi", 100); got != "Hi" {
		t.Errorf("short string should not be truncated: got %q", got)
	}
}

func TestWordEstimate(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"one", 2},
		{"one two three", 4},
		{"  spaced   out\nwords  ", 4},
	}
	for _, tt := range tests {
		if got := (WordEstimate{}).Count(tt.in); got != tt.want {
			t.Errorf("Count(%q): got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestDefaultIsShared(t *testing.T) {
	a, b := Default(), Default()
	if a == nil || a != b {
		t.Fatal("Default should return one shared counter")
	}
	if a.Count("") != 0 {
		t.Error("empty string should count 0 tokens")
	}
}
