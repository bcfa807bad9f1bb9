package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/memvra/dejavu/internal/adapter"
	"github.com/memvra/dejavu/internal/config"
	"github.com/memvra/dejavu/internal/engine"
	"github.com/memvra/dejavu/internal/journal"
)

// session is an engine plus the optional journal observing it.
type session struct {
	root    string
	cfg     config.Config
	engine  *engine.Engine
	journal *journal.Journal
}

// openSession loads config for the current project, builds the embedder and
// engine, and attaches the journal when enabled. A journal that cannot be
// opened is logged and skipped.
func openSession() (*session, error) {
	root, err := findRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	setupLogger(os.Stderr, cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	emb, dim, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	cfg.Engine.EmbeddingDimension = dim

	s := &session{root: root, cfg: cfg}
	opts := engine.Options{
		Backend: cfg.Index.Backend,
		Codec:   cfg.Compression.Codec,
		Logger:  &logger,
	}
	if cfg.Journal.Enabled {
		path := cfg.JournalPath(root)
		if j, err := openJournal(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("journal disabled")
		} else {
			s.journal = j
			opts.Observer = j
			if cfg.Journal.KeepDays > 0 {
				if n, err := j.Prune(cfg.Journal.KeepDays); err != nil {
					logger.Warn().Err(err).Msg("journal prune failed")
				} else if n > 0 {
					logger.Debug().Int64("rows", n).Msg("journal pruned")
				}
			}
		}
	}

	e, err := engine.New(cfg.Engine, emb, opts)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.engine = e

	info := emb.Info()
	logger.Debug().
		Str("root", root).
		Str("provider", info.Provider).
		Str("model", info.Name).
		Int("dimension", dim).
		Bool("journal", s.journal != nil).
		Msg("session ready")
	return s, nil
}

// Close releases the engine and journal.
func (s *session) Close() {
	if s.engine != nil {
		_ = s.engine.Close()
	}
	if s.journal != nil {
		_ = s.journal.Close()
	}
}

// buildEmbedder returns the configured provider and the index dimension to
// use with it. The hash embedder takes its dimension from config; remote
// providers report their own, or 0 to adopt the first vector's length.
func buildEmbedder(cfg config.Config) (adapter.Provider, int, error) {
	if cfg.Embedder.Provider == adapter.ProviderHash || cfg.Embedder.Provider == "" {
		dim := cfg.Engine.EmbeddingDimension
		if dim == 0 {
			dim = adapter.DefaultHashDimension
		}
		return adapter.NewHash(dim), dim, nil
	}
	p, err := adapter.New(cfg.Embedder.Provider, cfg.Embedder.Model, cfg.APIKey(), cfg.Embedder.Host)
	if err != nil {
		return nil, 0, err
	}
	return p, p.Info().Dimension, nil
}

func openJournal(path string) (*journal.Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	return journal.Open(path)
}

// requireJournal opens the journal for read-only commands.
func requireJournal() (*journal.Journal, config.Config, error) {
	root, err := findRoot()
	if err != nil {
		return nil, config.Config{}, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, cfg, err
	}
	path := cfg.JournalPath(root)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, cfg, fmt.Errorf("no journal at %s; run `dejavu chat` or `dejavu replay` first", path)
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, cfg, fmt.Errorf("open journal: %w", err)
	}
	return j, cfg, nil
}

// findRoot returns the nearest directory, starting at the working directory,
// that contains .dejavu/. Without one it returns the working directory.
func findRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	return findRootFrom(cwd), nil
}

func findRootFrom(start string) string {
	dir, _ := filepath.Abs(start)
	for {
		if info, err := os.Stat(config.ProjectConfigDirPath(dir)); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	abs, _ := filepath.Abs(start)
	return abs
}
