// Package config manages global (~/.config/dejavu/config.toml) and
// per-project (.dejavu/config.toml) configuration for dejavu.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/memvra/dejavu/internal/adapter"
	"github.com/memvra/dejavu/internal/codec"
	"github.com/memvra/dejavu/internal/engine"
	"github.com/memvra/dejavu/internal/index"
)

// Config holds every setting. The project file uses the same layout and
// only overrides the keys it sets.
type Config struct {
	// Preset seeds [engine] from a named preset before the table is read.
	Preset      string            `toml:"preset,omitempty"`
	Engine      engine.Config     `toml:"engine"`
	Embedder    EmbedderConfig    `toml:"embedder"`
	Keys        KeysConfig        `toml:"keys"`
	Index       IndexConfig       `toml:"index"`
	Compression CompressionConfig `toml:"compression"`
	Journal     JournalConfig     `toml:"journal"`
	Log         LogConfig         `toml:"log"`
}

type EmbedderConfig struct {
	Provider string `toml:"provider"`
	Model    string `toml:"model,omitempty"`
	Host     string `toml:"host,omitempty"`
}

type KeysConfig struct {
	OpenAI string `toml:"openai,omitempty"`
	Gemini string `toml:"gemini,omitempty"`
}

type IndexConfig struct {
	Backend string `toml:"backend"`
}

type CompressionConfig struct {
	Codec string `toml:"codec"`
}

// JournalConfig controls the SQLite audit trail. An empty Path puts the
// database under the project's .dejavu/ directory.
type JournalConfig struct {
	Enabled  bool   `toml:"enabled"`
	Path     string `toml:"path,omitempty"`
	KeepDays int    `toml:"keep_days"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultGlobal returns sensible defaults.
func DefaultGlobal() Config {
	return Config{
		Engine:      engine.DefaultConfig(),
		Embedder:    EmbedderConfig{Provider: adapter.ProviderHash},
		Index:       IndexConfig{Backend: index.BackendHNSW},
		Compression: CompressionConfig{Codec: "zstd"},
		Journal:     JournalConfig{Enabled: true, KeepDays: 30},
		Log:         LogConfig{Level: "info"},
	}
}

// Validate checks the names the engine does not validate itself, then the
// engine table.
func (c Config) Validate() error {
	if !slices.Contains(adapter.Providers(), c.Embedder.Provider) {
		return fmt.Errorf("config: unknown embedder provider %q", c.Embedder.Provider)
	}
	if _, err := codec.ByName(c.Compression.Codec); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Index.Backend {
	case index.BackendHNSW, index.BackendLinear, index.BackendSQLiteVec:
	default:
		return fmt.Errorf("config: unknown index backend %q", c.Index.Backend)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log level: %w", err)
	}
	if c.Journal.KeepDays < 0 {
		return fmt.Errorf("config: journal keep_days must be >= 0, got %d", c.Journal.KeepDays)
	}
	return c.Engine.Validate()
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "dejavu", "config.toml"), nil
}

// ProjectConfigDirPath returns the path to the project's .dejavu/ directory.
func ProjectConfigDirPath(root string) string {
	return filepath.Join(root, ".dejavu")
}

// ProjectConfigPath returns the path to the project's config file.
func ProjectConfigPath(root string) string {
	return filepath.Join(ProjectConfigDirPath(root), "config.toml")
}

// ProjectDBPath returns the default journal database path for root.
func ProjectDBPath(root string) string {
	return filepath.Join(ProjectConfigDirPath(root), "journal.db")
}

// JournalPath returns the configured journal path, falling back to the
// project database path.
func (c Config) JournalPath(root string) string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	return ProjectDBPath(root)
}

// LoadGlobal loads the global config, applying defaults for any missing values.
func LoadGlobal() (Config, error) {
	cfg := DefaultGlobal()

	path, err := GlobalConfigPath()
	if err != nil {
		applyEnv(&cfg)
		return cfg, nil
	}
	if err := decodeInto(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: load global: %w", err)
	}
	applyEnv(&cfg)
	return cfg, nil
}

// LoadProject reads .dejavu/config.toml under root on top of base.
func LoadProject(root string, base Config) (Config, error) {
	if err := decodeInto(ProjectConfigPath(root), &base); err != nil {
		return base, fmt.Errorf("config: load project: %w", err)
	}
	return base, nil
}

// Load returns the effective config for a project root: defaults, then the
// global file, then the project file, then environment keys.
func Load(root string) (Config, error) {
	global, err := LoadGlobal()
	if err != nil {
		return global, err
	}
	cfg, err := LoadProject(root, global)
	if err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

// SaveGlobal writes the global config to disk.
func SaveGlobal(cfg Config) error {
	path, err := GlobalConfigPath()
	if err != nil {
		return err
	}
	return save(path, cfg)
}

// SaveProject writes cfg to .dejavu/config.toml under root.
func SaveProject(root string, cfg Config) error {
	return save(ProjectConfigPath(root), cfg)
}

// Encode writes cfg as TOML.
func Encode(w io.Writer, cfg Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}

func save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()

	return Encode(f, cfg)
}

// decodeInto applies the file at path to cfg. A missing file is not an
// error. A preset named in the file replaces cfg.Engine before the file's
// own [engine] keys are applied.
func decodeInto(path string, cfg *Config) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	var head struct {
		Preset string `toml:"preset"`
	}
	if _, err := toml.DecodeFile(path, &head); err != nil {
		return err
	}
	if head.Preset != "" {
		preset, err := engine.Preset(head.Preset)
		if err != nil {
			return err
		}
		cfg.Engine = preset
	}

	_, err := toml.DecodeFile(path, cfg)
	return err
}

// applyEnv lets env vars override config file API keys.
func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Keys.OpenAI = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Keys.Gemini = v
	}
}

// APIKey returns the key for the configured embedder provider, if any.
func (c Config) APIKey() string {
	switch c.Embedder.Provider {
	case adapter.ProviderOpenAI:
		return c.Keys.OpenAI
	case adapter.ProviderGemini:
		return c.Keys.Gemini
	}
	return ""
}
