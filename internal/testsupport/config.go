// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"wavedaq/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Recording.OutputDir = filepath.Join(base, "recordings")
	cfg.Recording.MinFreeMiB = 0
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	// Small rates keep pipeline tests fast and deterministic.
	cfg.DAQ.SampleRate = 100
	cfg.Recording.RotateSeconds = 1

	result := &cfg
	for _, opt := range opts {
		opt(result)
	}
	return result
}

// WithSampleRate overrides the sample rate on the test config.
func WithSampleRate(rate int) ConfigOption {
	return func(c *config.Config) {
		c.DAQ.SampleRate = rate
	}
}

// WithChannels overrides the channel count on the test config.
func WithChannels(n int) ConfigOption {
	return func(c *config.Config) {
		c.DAQ.Channels = n
	}
}
