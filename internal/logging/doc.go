// Package logging configures slog-based logging for the wavedaq daemon and
// CLI. It provides a console handler for interactive use, a JSON handler for
// machine consumption, and shared attribute helpers used across packages.
package logging
