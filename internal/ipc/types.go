package ipc

import (
	"time"

	"wavedaq/internal/serialport"
	"wavedaq/internal/session"
	"wavedaq/internal/store"
)

// SessionStartRequest begins acquisition under a label.
type SessionStartRequest struct {
	Label string `json:"label"`
}

// SessionStartResponse reports the session that was started.
type SessionStartResponse struct {
	Started bool           `json:"started"`
	Message string         `json:"message"`
	Session session.Status `json:"session"`
}

// SessionStopRequest ends the active session.
type SessionStopRequest struct{}

// SessionStopResponse reports the final session snapshot.
type SessionStopResponse struct {
	Stopped bool           `json:"stopped"`
	Message string         `json:"message"`
	Session session.Status `json:"session"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon and session status.
type StatusResponse struct {
	Running      bool           `json:"running"`
	StartedAt    time.Time      `json:"started_at"`
	ConfigPath   string         `json:"config_path"`
	CatalogPath  string         `json:"catalog_path"`
	LockPath     string         `json:"lock_path"`
	PID          int            `json:"pid"`
	Session      session.Status `json:"session"`
	LiveCounter  uint64         `json:"live_counter"`
}

// SessionListRequest lists catalog sessions, newest first.
type SessionListRequest struct {
	// Limit caps the result; zero or negative returns everything.
	Limit int `json:"limit"`
}

// SessionListResponse contains catalog sessions.
type SessionListResponse struct {
	Sessions []store.Session `json:"sessions"`
}

// FileListRequest lists the recording files of one session.
type FileListRequest struct {
	SessionID string `json:"session_id"`
}

// FileListResponse contains recording files in sequence order.
type FileListResponse struct {
	Files []store.File `json:"files"`
}

// DeviceListRequest lists serial adapters currently present.
type DeviceListRequest struct{}

// DeviceListResponse contains candidate serial adapters.
type DeviceListResponse struct {
	Devices []serialport.Device `json:"devices"`
}

// SnapshotRequest fetches the newest live samples.
type SnapshotRequest struct {
	// Limit caps the returned samples to the newest N; zero returns the
	// whole buffer.
	Limit int `json:"limit"`
}

// SnapshotSample is one live sample flattened for transport.
type SnapshotSample struct {
	Index  uint64    `json:"index"`
	Time   time.Time `json:"time"`
	Values []float64 `json:"values"`
}

// SnapshotResponse returns live samples oldest first.
type SnapshotResponse struct {
	Counter uint64           `json:"counter"`
	Samples []SnapshotSample `json:"samples"`
}
