package pack

import (
	"math"
	"testing"
	"time"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func entry(content string, vec ...float32) Entry {
	return NewEntry(content, vec, KindFull, "", t0)
}

func TestNewSeedsCentroid(t *testing.T) {
	p := New(entry("hello", 1, 2, 3), t0)

	if p.ID == "" {
		t.Fatal("expected an ID")
	}
	if p.Len() != 1 {
		t.Fatalf("entries: got %d, want 1", p.Len())
	}
	want := []float32{1, 2, 3}
	for i := range want {
		if p.Centroid[i] != want[i] {
			t.Errorf("centroid[%d]: got %f, want %f", i, p.Centroid[i], want[i])
		}
	}
	// The centroid must not alias the entry's embedding.
	p.Entries[0].Embedding[0] = 99
	if p.Centroid[0] != 1 {
		t.Error("centroid aliases first embedding")
	}
	if p.IsClosed() {
		t.Error("new pack should be open")
	}
	if !p.LastAccessed().Equal(t0) {
		t.Errorf("last accessed: got %v, want %v", p.LastAccessed(), t0)
	}
}

func TestAddEntryCentroidIsArithmeticMean(t *testing.T) {
	vecs := [][]float32{
		{1, 0, 4},
		{0, 1, 2},
		{2, 2, 0},
		{1, 1, 2},
	}
	p := New(entry("a", vecs[0]...), t0)
	for _, v := range vecs[1:] {
		if !p.AddEntry(entry("b", v...)) {
			t.Fatal("AddEntry rejected on open pack")
		}
	}

	for i := 0; i < 3; i++ {
		var sum float32
		for _, v := range vecs {
			sum += v[i]
		}
		mean := sum / float32(len(vecs))
		if math.Abs(float64(p.Centroid[i]-mean)) > 1e-6 {
			t.Errorf("centroid[%d]: got %f, want %f", i, p.Centroid[i], mean)
		}
	}
}

func TestClosedPackRejectsEntries(t *testing.T) {
	p := New(entry("a", 1, 0), t0)
	p.Close()
	if p.AddEntry(entry("b", 0, 1)) {
		t.Fatal("closed pack accepted an entry")
	}
	if p.Len() != 1 {
		t.Errorf("entries: got %d, want 1", p.Len())
	}
	if p.Centroid[0] != 1 || p.Centroid[1] != 0 {
		t.Errorf("centroid changed on rejected add: %v", p.Centroid)
	}

	p.Reopen()
	if !p.AddEntry(entry("b", 0, 1)) {
		t.Fatal("reopened pack rejected an entry")
	}
}

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords("The API uses HTTP2 and JSON. Version 3 shipped in 2024. ok OK no")

	has := func(kw string) bool {
		for _, g := range got {
			if g == kw {
				return true
			}
		}
		return false
	}
	for _, kw := range []string{"API", "HTTP2", "Version 3 shipped in 2024"} {
		if !has(kw) {
			t.Errorf("missing keyword %q in %v", kw, got)
		}
	}
	for _, kw := range []string{"OK", "ok", "no", "The"} {
		if has(kw) {
			t.Errorf("unexpected keyword %q in %v", kw, got)
		}
	}
}

func TestKeywordsCappedAndDeduplicated(t *testing.T) {
	p := New(entry("AAA BBB CCC DDD EEE", 1), t0)
	p.AddEntry(entry("AAA FFF GGG HHH III JJJ KKK LLL", 1))

	if len(p.Keywords) != MaxKeywords {
		t.Fatalf("keywords: got %d, want %d (%v)", len(p.Keywords), MaxKeywords, p.Keywords)
	}
	seen := map[string]bool{}
	for _, kw := range p.Keywords {
		if seen[kw] {
			t.Errorf("duplicate keyword %q", kw)
		}
		seen[kw] = true
	}
	if seen["KKK"] || seen["LLL"] {
		t.Errorf("keywords past the cap were kept: %v", p.Keywords)
	}
}

func TestDecayFactor(t *testing.T) {
	p := New(entry("a", 1), t0)

	if got := p.DecayFactorAt(t0, 24); got != 1.0 {
		t.Errorf("decay at creation: got %f, want 1", got)
	}
	got := p.DecayFactorAt(t0.Add(24*time.Hour), 24)
	if math.Abs(got-math.Exp(-1)) > 1e-9 {
		t.Errorf("decay after one period: got %f, want %f", got, math.Exp(-1))
	}
	half := p.DecayFactorAt(t0.Add(30*time.Minute), 1)
	if math.Abs(half-math.Exp(-0.5)) > 1e-9 {
		t.Errorf("fractional hours: got %f, want %f", half, math.Exp(-0.5))
	}
	if got := p.DecayFactorAt(t0.Add(1000*time.Hour), 0); got != 1.0 {
		t.Errorf("disabled decay: got %f, want 1", got)
	}
	if got := p.DecayFactorAt(t0.Add(10000*time.Hour), 1); got < 0 || got > 1 {
		t.Errorf("decay out of range: %f", got)
	}
}

func TestCompressionRatio(t *testing.T) {
	p := New(entry("aaaaaaaaaa", 1), t0)
	p.AddEntry(entry("bbbbbbbbbbbbbbbbbbbb", 1))

	if got := p.CompressionRatio(); got != 1.0 {
		t.Errorf("uncompressed ratio: got %f, want 1", got)
	}

	p.Entries[0].MarkCompressed(Encoding{Strategy: StrategyBaseline, Reference: -1, Payload: make([]byte, 5)})
	p.Entries[1].MarkCompressed(Encoding{Strategy: StrategyBaseline, Reference: -1, Payload: make([]byte, 5)})

	if got := p.CompressionRatio(); got != 3.0 {
		t.Errorf("ratio: got %f, want 3", got)
	}
	original, compressed := p.TotalSize()
	if original != 30 || compressed != 10 {
		t.Errorf("total size: got (%d, %d), want (30, 10)", original, compressed)
	}
	if got := p.Entries[1].CompressionRatio(); got != 4.0 {
		t.Errorf("entry ratio: got %f, want 4", got)
	}
}

func TestTouchRecordsAccess(t *testing.T) {
	p := New(entry("a", 1), t0)
	later := t0.Add(time.Hour)
	p.Touch(later)
	p.Touch(later)

	if p.AccessCount() != 2 {
		t.Errorf("access count: got %d, want 2", p.AccessCount())
	}
	if !p.LastAccessed().Equal(later) {
		t.Errorf("last accessed: got %v, want %v", p.LastAccessed(), later)
	}
}

func TestExpired(t *testing.T) {
	p := New(entry("a", 1), t0)

	tests := []struct {
		name   string
		now    time.Time
		window int
		want   bool
	}{
		{"inside window", t0.Add(71 * time.Hour), 72, false},
		{"exactly at window", t0.Add(72 * time.Hour), 72, false},
		{"past window", t0.Add(72*time.Hour + time.Second), 72, true},
		{"zero window same instant", t0, 0, false},
		{"zero window older", t0.Add(time.Nanosecond), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Expired(tt.now, tt.window); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	p := New(entry("a", 1, 2), t0)
	p.Entries[0].MarkCompressed(Encoding{Strategy: StrategyBaseline, Reference: -1, Payload: []byte{1, 2}})
	p.Metadata["k"] = "v"
	p.Touch(t0)
	p.Close()

	c := p.Clone()
	if c.ID != p.ID || !c.IsClosed() || c.AccessCount() != 1 {
		t.Fatalf("clone lost state: id=%s closed=%v count=%d", c.ID, c.IsClosed(), c.AccessCount())
	}

	c.Centroid[0] = 42
	c.Entries[0].Encoding.Payload[0] = 9
	c.Metadata["k"] = "changed"
	if p.Centroid[0] != 1 {
		t.Error("centroid shared with clone")
	}
	if p.Entries[0].Encoding.Payload[0] != 1 {
		t.Error("payload shared with clone")
	}
	if p.Metadata["k"] != "v" {
		t.Error("metadata shared with clone")
	}
}
