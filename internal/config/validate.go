package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration values for consistency. It reports the first
// problem found so errors stay actionable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DAQ.SerialPort) == "" {
		return errors.New("daq.serial_port is required")
	}
	if c.DAQ.BaudRate <= 0 {
		return fmt.Errorf("daq.baud_rate must be positive, got %d", c.DAQ.BaudRate)
	}
	// The sensor takes the rate as a single 16-bit register write.
	if c.DAQ.SampleRate <= 0 || c.DAQ.SampleRate > 65535 {
		return fmt.Errorf("daq.sample_rate must be in 1..65535, got %d", c.DAQ.SampleRate)
	}
	if c.DAQ.SlaveID < 1 || c.DAQ.SlaveID > 247 {
		return fmt.Errorf("daq.slave_id must be a Modbus unit id in 1..247, got %d", c.DAQ.SlaveID)
	}
	if c.DAQ.Channels < 1 || c.DAQ.Channels > 16 {
		return fmt.Errorf("daq.channels must be in 1..16, got %d", c.DAQ.Channels)
	}
	if c.DAQ.FailureThreshold < 1 {
		return fmt.Errorf("daq.failure_threshold must be at least 1, got %d", c.DAQ.FailureThreshold)
	}
	if c.DAQ.ReadTimeoutMillis <= 0 {
		return fmt.Errorf("daq.read_timeout_millis must be positive, got %d", c.DAQ.ReadTimeoutMillis)
	}
	if strings.TrimSpace(c.Recording.OutputDir) == "" {
		return errors.New("recording.output_dir is required")
	}
	if c.Recording.RotateSeconds <= 0 {
		return fmt.Errorf("recording.rotate_seconds must be positive, got %d", c.Recording.RotateSeconds)
	}
	if c.Recording.FlushIntervalMillis <= 0 {
		return fmt.Errorf("recording.flush_interval_millis must be positive, got %d", c.Recording.FlushIntervalMillis)
	}
	if c.Recording.QueueDepth < 1 {
		return fmt.Errorf("recording.queue_depth must be at least 1, got %d", c.Recording.QueueDepth)
	}
	if c.Recording.MinFreeMiB < 0 {
		return fmt.Errorf("recording.min_free_mib must not be negative, got %d", c.Recording.MinFreeMiB)
	}
	if c.LiveView.BufferSamples < 1 {
		return fmt.Errorf("live_view.buffer_samples must be at least 1, got %d", c.LiveView.BufferSamples)
	}
	if c.LiveView.PushIntervalMillis <= 0 {
		return fmt.Errorf("live_view.push_interval_millis must be positive, got %d", c.LiveView.PushIntervalMillis)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir is required")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
