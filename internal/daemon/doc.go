// Package daemon ties the acquisition controller, catalog store, device
// monitor, and config watcher into a single lifecycle with flock-based
// locking to prevent multiple instances.
package daemon
