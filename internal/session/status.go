package session

import "time"

// State is the lifecycle position of a session.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

// Active reports whether the session still owns the device.
func (s State) Active() bool {
	switch s {
	case StateStarting, StateRunning, StateStopping:
		return true
	}
	return false
}

// Status is a point-in-time snapshot of a session.
type Status struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	State     State     `json:"state"`
	StartedAt time.Time `json:"started_at,omitempty"`
	StoppedAt time.Time `json:"stopped_at,omitempty"`

	// Produced counts samples read from the device, Recorded rows written
	// to disk, Dropped rows lost to queue pressure or storage faults.
	Produced   uint64 `json:"produced"`
	Recorded   uint64 `json:"recorded"`
	Dropped    uint64 `json:"dropped"`
	ReadErrors uint64 `json:"read_errors"`

	Degraded bool   `json:"degraded"`
	Dir      string `json:"dir,omitempty"`
	Error    string `json:"error,omitempty"`
}
