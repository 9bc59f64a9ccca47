package session

import (
	"fmt"
	"strings"
	"time"

	"wavedaq/internal/config"
	"wavedaq/internal/daq"
	"wavedaq/internal/recorder"
)

// Config carries everything one session needs, resolved at start time so a
// daemon config reload never disturbs a running session.
type Config struct {
	ID    string
	Label string

	SerialPort       string
	BaudRate         int
	SlaveID          byte
	SampleRate       int
	Channels         int
	FailureThreshold int
	ReadTimeout      time.Duration

	OutputDir     string
	RotateSeconds int
	FlushInterval time.Duration
	QueueDepth    int

	StopGrace time.Duration
}

// FromDaemonConfig builds a session config from the daemon configuration and
// a caller-supplied label.
func FromDaemonConfig(cfg *config.Config, id, label string) Config {
	return Config{
		ID:               id,
		Label:            label,
		SerialPort:       cfg.DAQ.SerialPort,
		BaudRate:         cfg.DAQ.BaudRate,
		SlaveID:          byte(cfg.DAQ.SlaveID),
		SampleRate:       cfg.DAQ.SampleRate,
		Channels:         cfg.DAQ.Channels,
		FailureThreshold: cfg.DAQ.FailureThreshold,
		ReadTimeout:      time.Duration(cfg.DAQ.ReadTimeoutMillis) * time.Millisecond,
		OutputDir:        cfg.Recording.OutputDir,
		RotateSeconds:    cfg.Recording.RotateSeconds,
		FlushInterval:    time.Duration(cfg.Recording.FlushIntervalMillis) * time.Millisecond,
		QueueDepth:       cfg.Recording.QueueDepth,
		StopGrace:        5 * time.Second,
	}
}

// Validate rejects configs a session could not run with.
func (c Config) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(c.Label) == "" {
		return fmt.Errorf("label is required")
	}
	if strings.ContainsAny(c.Label, "/\\") {
		return fmt.Errorf("label %q must not contain path separators", c.Label)
	}
	if c.SampleRate < 1 {
		return fmt.Errorf("sample rate %d must be positive", c.SampleRate)
	}
	if c.Channels < 1 {
		return fmt.Errorf("channel count %d must be positive", c.Channels)
	}
	if c.RotateSeconds < 1 {
		return fmt.Errorf("rotate seconds %d must be positive", c.RotateSeconds)
	}
	if c.QueueDepth < 1 {
		return fmt.Errorf("queue depth %d must be positive", c.QueueDepth)
	}
	return nil
}

// RotationTarget returns the per-file row budget for this config.
func (c Config) RotationTarget() int {
	return recorder.RotationTarget(c.SampleRate, c.Channels, c.RotateSeconds)
}

func (c Config) pollerConfig() daq.PollerConfig {
	return daq.PollerConfig{
		SampleRate:       c.SampleRate,
		Channels:         c.Channels,
		FailureThreshold: c.FailureThreshold,
	}
}

func (c Config) clientOptions() daq.ClientOptions {
	return daq.ClientOptions{
		SerialPort:  c.SerialPort,
		BaudRate:    c.BaudRate,
		SlaveID:     c.SlaveID,
		ReadTimeout: c.ReadTimeout,
	}
}
