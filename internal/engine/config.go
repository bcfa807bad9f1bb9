package engine

import (
	"fmt"
)

// Config holds the engine tunables. It maps onto the [engine] table of the
// configuration file.
type Config struct {
	MaxEntriesPerUnit     int     `toml:"max_entries_per_unit"`
	CacheCapacity         int     `toml:"cache_capacity"`
	TemporalWindowHours   int     `toml:"temporal_window_hours"`
	SimilarityThreshold   float64 `toml:"similarity_threshold"`
	ExactThreshold        float64 `toml:"exact_threshold"`
	SearchK               int     `toml:"search_k"`
	AggressiveCompression bool    `toml:"aggressive_compression"`
	TargetRatio           float64 `toml:"target_ratio"`
	DeltaThreshold        float64 `toml:"delta_threshold"`
	EmbeddingDimension    int     `toml:"embedding_dimension"`
	DecayHours            float64 `toml:"decay_hours"`
	FullAnswerTokens      int     `toml:"full_answer_tokens"`
	RecapWords            int     `toml:"recap_words"`
}

// DefaultConfig returns the balanced preset.
func DefaultConfig() Config {
	return Config{
		MaxEntriesPerUnit:     20,
		CacheCapacity:         100,
		TemporalWindowHours:   72,
		SimilarityThreshold:   0.85,
		ExactThreshold:        0.95,
		SearchK:               10,
		AggressiveCompression: true,
		TargetRatio:           20.0,
		DeltaThreshold:        0.85,
		EmbeddingDimension:    384,
		DecayHours:            0,
		FullAnswerTokens:      500,
		RecapWords:            150,
	}
}

// FastConfig trades recall for latency: smaller units, a smaller cache and
// looser thresholds.
func FastConfig() Config {
	c := DefaultConfig()
	c.SimilarityThreshold = 0.80
	c.ExactThreshold = 0.90
	c.TemporalWindowHours = 48
	c.MaxEntriesPerUnit = 15
	c.CacheCapacity = 50
	c.AggressiveCompression = false
	c.SearchK = 5
	return c
}

// HighQualityConfig keeps more history and only reuses close matches.
func HighQualityConfig() Config {
	c := DefaultConfig()
	c.SimilarityThreshold = 0.90
	c.ExactThreshold = 0.97
	c.TemporalWindowHours = 168
	c.MaxEntriesPerUnit = 30
	c.CacheCapacity = 200
	c.AggressiveCompression = true
	c.EmbeddingDimension = 768
	c.SearchK = 20
	return c
}

// Preset returns the named preset: "default", "fast" or "high-quality".
func Preset(name string) (Config, error) {
	switch name {
	case "", "default":
		return DefaultConfig(), nil
	case "fast":
		return FastConfig(), nil
	case "high-quality", "high_quality":
		return HighQualityConfig(), nil
	default:
		return Config{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
	}
}

// Validate checks every field and wraps ErrInvalidConfig on failure.
func (c Config) Validate() error {
	unit := func(name string, v float64) error {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be in [0, 1]: %g", ErrInvalidConfig, name, v)
		}
		return nil
	}
	positive := func(name string, v int) error {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be > 0: %d", ErrInvalidConfig, name, v)
		}
		return nil
	}

	checks := []error{
		positive("max_entries_per_unit", c.MaxEntriesPerUnit),
		positive("cache_capacity", c.CacheCapacity),
		positive("search_k", c.SearchK),
		positive("full_answer_tokens", c.FullAnswerTokens),
		positive("recap_words", c.RecapWords),
		unit("similarity_threshold", c.SimilarityThreshold),
		unit("exact_threshold", c.ExactThreshold),
		unit("delta_threshold", c.DeltaThreshold),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}

	if c.ExactThreshold < c.SimilarityThreshold {
		return fmt.Errorf("%w: exact_threshold (%g) must be >= similarity_threshold (%g)",
			ErrInvalidConfig, c.ExactThreshold, c.SimilarityThreshold)
	}
	if c.TemporalWindowHours < 0 {
		return fmt.Errorf("%w: temporal_window_hours must be >= 0: %d", ErrInvalidConfig, c.TemporalWindowHours)
	}
	if c.TargetRatio < 0 {
		return fmt.Errorf("%w: target_ratio must be >= 0: %g", ErrInvalidConfig, c.TargetRatio)
	}
	if c.EmbeddingDimension < 0 {
		return fmt.Errorf("%w: embedding_dimension must be >= 0: %d", ErrInvalidConfig, c.EmbeddingDimension)
	}
	if c.DecayHours < 0 {
		return fmt.Errorf("%w: decay_hours must be >= 0: %g", ErrInvalidConfig, c.DecayHours)
	}
	return nil
}
