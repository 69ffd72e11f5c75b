// Package testsupport provides shared fixtures for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"captioner/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// LLM-backed stages are off by default so tests opt in explicitly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.CacheDir = filepath.Join(base, "cache")
	cfg.Paths.ModelsDir = filepath.Join(base, "models")
	cfg.Pipeline.NeedSplit = false
	cfg.Pipeline.NeedOptimize = false
	cfg.Pipeline.NeedTranslate = false

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithLLM points the config at a test LLM endpoint.
func WithLLM(baseURL, model string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.LLM.BaseURL = baseURL
		cfg.LLM.APIKey = "test-key"
		cfg.LLM.Model = model
	}
}

// WithTranslator selects the translation service for the test config.
func WithTranslator(service, endpoint string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Translator.Service = service
		cfg.Translator.DeepLXEndpoint = endpoint
		cfg.Pipeline.NeedTranslate = true
	}
}
