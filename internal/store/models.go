package store

import "time"

// Session is one catalog row describing an acquisition session.
type Session struct {
	ID         string
	Label      string
	State      string
	SerialPort string
	SampleRate int
	Channels   int
	OutputDir  string
	StartedAt  time.Time
	StoppedAt  time.Time
	Produced   uint64
	Recorded   uint64
	Dropped    uint64
	ReadErrors uint64
	Degraded   bool
	Error      string
}

// File is one recording file produced by a session. RowCount is zero until
// the file is closed.
type File struct {
	ID        int64
	SessionID string
	Seq       int
	Path      string
	RowCount  int64
	OpenedAt  time.Time
	ClosedAt  time.Time
}
