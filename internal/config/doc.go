// Package config loads, validates, and normalizes the TOML configuration
// shared by the wavedaq daemon and CLI.
package config
