package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/DanHUMassMed/sumtube/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "results")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Chunking.Workers = 2
	// Point service endpoints at closed local ports so nothing in a test
	// ever reaches the real network.
	cfg.YouTube.BaseURL = "http://127.0.0.1:1"
	cfg.Ollama.BaseURL = "http://127.0.0.1:1"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithModel overrides the Ollama model on the test config.
func WithModel(model string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Ollama.Model = model
	}
}

// WithChunking overrides the chunk size and overlap on the test config.
func WithChunking(chunkSize, overlap int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Chunking.RawChunkSize = chunkSize
		cfg.Chunking.OverlapSize = overlap
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.OutputDir)
}
