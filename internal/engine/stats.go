package engine

// Stats is a point-in-time snapshot of the engine.
type Stats struct {
	TotalUnits      int     `json:"total_units"`
	TotalEntries    int     `json:"total_entries"`
	OpenEntries     int     `json:"open_entries"`
	OriginalBytes   int     `json:"original_bytes"`
	CompressedBytes int     `json:"compressed_bytes"`
	AverageRatio    float64 `json:"average_ratio"`
	CacheCapacity   int     `json:"cache_capacity"`
}

// CacheUsage returns the share of cache capacity in use, in percent.
func (s Stats) CacheUsage() float64 {
	if s.CacheCapacity <= 0 {
		return 0
	}
	return float64(s.TotalUnits) / float64(s.CacheCapacity) * 100
}

// MeetsTarget reports whether the average ratio reaches target.
func (s Stats) MeetsTarget(target float64) bool {
	return s.AverageRatio >= target
}

// Stats reports unit counts and compression totals. TotalEntries and the
// byte totals cover cached units only; the open unit is counted separately
// in OpenEntries. AverageRatio is OriginalBytes / CompressedBytes, 0 when
// nothing has been compressed.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	open := 0
	if e.open != nil {
		open = e.open.Len()
	}
	e.mu.Unlock()

	s := Stats{OpenEntries: open, CacheCapacity: e.cfg.CacheCapacity}
	for _, p := range e.Units() {
		s.TotalUnits++
		s.TotalEntries += p.Len()
		original, compressed := p.TotalSize()
		s.OriginalBytes += original
		s.CompressedBytes += compressed
	}
	if s.CompressedBytes > 0 {
		s.AverageRatio = float64(s.OriginalBytes) / float64(s.CompressedBytes)
	}
	return s
}
