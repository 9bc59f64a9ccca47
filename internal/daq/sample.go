package daq

import "time"

// Sample is one multi-channel reading. Instances are immutable once produced
// by the Poller; consumers must not mutate Values.
type Sample struct {
	// Index is the zero-based position of this sample within the session.
	Index uint64
	// Time is the wall-clock timestamp, derived from the session start plus
	// Index divided by the sample rate so that rotation never resets time.
	Time time.Time
	// Offset is the monotonic offset from the session start.
	Offset time.Duration
	// Values holds one reading per configured channel.
	Values []float64
}

// Batch is the ordered set of samples produced by a single tick.
type Batch []Sample
