// Package session runs the acquisition pipeline for one recording session:
// a device poller feeding the live buffer and a bounded recording queue,
// with lifecycle state tracked for the control surfaces.
package session
