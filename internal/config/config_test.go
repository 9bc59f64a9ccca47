package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wavedaq/internal/config"
)

func TestDefaultValidatesAfterNormalize(t *testing.T) {
	cfg, resolved, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load with missing file failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for a missing file")
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if cfg.DAQ.SampleRate != 7812 {
		t.Fatalf("expected default sample rate 7812, got %d", cfg.DAQ.SampleRate)
	}
	if strings.HasPrefix(cfg.Paths.LogDir, "~") {
		t.Fatalf("expected expanded log dir, got %s", cfg.Paths.LogDir)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[daq]
serial_port = "/dev/ttyUSB3"
sample_rate = 1000
channels = 4

[recording]
rotate_seconds = 10
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved=%s exists=true, got %s %v", path, resolved, exists)
	}
	if cfg.DAQ.SerialPort != "/dev/ttyUSB3" || cfg.DAQ.SampleRate != 1000 || cfg.DAQ.Channels != 4 {
		t.Fatalf("overrides not applied: %+v", cfg.DAQ)
	}
	if cfg.Recording.RotateSeconds != 10 {
		t.Fatalf("expected rotate_seconds 10, got %d", cfg.Recording.RotateSeconds)
	}
	// Untouched sections keep their defaults.
	if cfg.DAQ.BaudRate != 3000000 {
		t.Fatalf("expected default baud rate, got %d", cfg.DAQ.BaudRate)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty serial port", func(c *config.Config) { c.DAQ.SerialPort = "" }},
		{"zero sample rate", func(c *config.Config) { c.DAQ.SampleRate = 0 }},
		{"sample rate beyond register range", func(c *config.Config) { c.DAQ.SampleRate = 70000 }},
		{"slave id out of range", func(c *config.Config) { c.DAQ.SlaveID = 248 }},
		{"too many channels", func(c *config.Config) { c.DAQ.Channels = 17 }},
		{"zero failure threshold", func(c *config.Config) { c.DAQ.FailureThreshold = 0 }},
		{"zero rotate seconds", func(c *config.Config) { c.Recording.RotateSeconds = 0 }},
		{"zero queue depth", func(c *config.Config) { c.Recording.QueueDepth = 0 }},
		{"zero buffer samples", func(c *config.Config) { c.LiveView.BufferSamples = 0 }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[daq]\nsample_rate = 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected Load to reject invalid sample rate")
	}
}

func TestCreateSampleParsesBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	defaults := config.Default()
	if cfg.DAQ.SampleRate != defaults.DAQ.SampleRate || cfg.Recording.RotateSeconds != defaults.Recording.RotateSeconds {
		t.Fatalf("sample config drifted from defaults: %+v", cfg)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Recording.OutputDir = filepath.Join(base, "recordings")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Recording.OutputDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}
