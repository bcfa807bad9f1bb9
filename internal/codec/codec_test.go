package codec

import (
	"errors"
	"math"
	"strings"
	"testing"
)

var samples = []string{
	"",
	"a",
	"short text",
	"The engine groups related exchanges into compact units. ",
	strings.Repeat("Repeated content compresses very well with any codec. ", 40),
	"unicode: café, naïve, 日本語 テキスト",
}

func TestCodecsRoundTrip(t *testing.T) {
	for _, name := range Names() {
		c, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		for _, s := range samples {
			payload, err := c.Compress([]byte(s))
			if err != nil {
				t.Fatalf("%s: compress %q: %v", name, s, err)
			}
			got, err := c.Decompress(payload)
			if err != nil {
				t.Fatalf("%s: decompress %q: %v", name, s, err)
			}
			if string(got) != s {
				t.Errorf("%s: round trip: got %q, want %q", name, got, s)
			}
		}
	}
}

func TestByNameDefaultAndUnknown(t *testing.T) {
	c, err := ByName("")
	if err != nil || c.Name() != "zstd" {
		t.Errorf("empty name: got %v, %v; want zstd", c, err)
	}
	if _, err := ByName("brotli"); err == nil {
		t.Error("expected error for unknown codec")
	}
}

func TestRepetitiveTextShrinks(t *testing.T) {
	text := []byte(samples[4])
	for _, c := range []Codec{Zstd{}, LZ4{}} {
		payload, err := c.Compress(text)
		if err != nil {
			t.Fatal(err)
		}
		if len(payload) >= len(text) {
			t.Errorf("%s: compressed %d should be < original %d", c.Name(), len(payload), len(text))
		}
	}
}

func TestCorruptPayloads(t *testing.T) {
	tests := []struct {
		name    string
		codec   Codec
		payload []byte
	}{
		{"zstd garbage", Zstd{}, []byte("definitely not zstd")},
		{"lz4 short", LZ4{}, []byte{1}},
		{"lz4 bad mode", LZ4{}, []byte{7, 3, 'a', 'b', 'c'}},
		{"lz4 stored size mismatch", LZ4{}, []byte{lz4Stored, 5, 'a'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.codec.Decompress(tt.payload)
			if !errors.Is(err, ErrDecodingFailed) {
				t.Errorf("got %v, want ErrDecodingFailed", err)
			}
		})
	}
}

func TestEstimateRatio(t *testing.T) {
	short := Zstd{}.EstimateRatio("Short")
	long := Zstd{}.EstimateRatio(strings.Repeat("x", 1500))
	capped := Zstd{}.EstimateRatio(strings.Repeat("x", 10000))

	if short < zstdBaseRatio {
		t.Errorf("short estimate %f below base %f", short, zstdBaseRatio)
	}
	if long <= short {
		t.Errorf("estimate should grow with length: short=%f long=%f", short, long)
	}
	if math.Abs(capped-zstdBaseRatio*1.4) > 1e-9 {
		t.Errorf("capped estimate: got %f, want %f", capped, zstdBaseRatio*1.4)
	}
	if got := (None{}).EstimateRatio("anything"); got != 1.0 {
		t.Errorf("none estimate: got %f, want 1", got)
	}
}

func TestResultMeetsTarget(t *testing.T) {
	r := newResult(100, 5, "", 0)
	if r.Ratio != 20 {
		t.Fatalf("ratio: got %f, want 20", r.Ratio)
	}
	if !r.MeetsTarget(15) {
		t.Error("20x should meet 15x")
	}
	if r.MeetsTarget(25) {
		t.Error("20x should not meet 25x")
	}
	if got := newResult(10, 0, "", 0).Ratio; got != 1.0 {
		t.Errorf("zero compressed size: got %f, want 1", got)
	}
}
