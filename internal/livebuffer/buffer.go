// Package livebuffer keeps the most recent samples for the display layer.
package livebuffer

import (
	"sync"

	"wavedaq/internal/daq"
)

// Snapshot is a read-only, internally consistent copy of the buffer. If
// Counter reports K, Samples reflects a state at or after the K-th push.
type Snapshot struct {
	// Samples are ordered oldest to newest.
	Samples []daq.Sample
	// Counter is the total number of samples pushed since the last Reset.
	Counter uint64
}

// Buffer is a fixed-capacity overwrite-oldest ring with a running total
// counter. One writer pushes; any number of readers snapshot. Critical
// sections are bounded to the buffer capacity.
type Buffer struct {
	mu      sync.RWMutex
	ring    []daq.Sample
	next    int
	full    bool
	counter uint64
}

// New creates a buffer retaining up to capacity samples.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{ring: make([]daq.Sample, capacity)}
}

// Push appends one sample, overwriting the oldest retained sample once the
// buffer is at capacity. Push never blocks on readers longer than one
// snapshot copy.
func (b *Buffer) Push(sample daq.Sample) {
	b.mu.Lock()
	b.ring[b.next] = sample
	b.next++
	if b.next == len(b.ring) {
		b.next = 0
		b.full = true
	}
	b.counter++
	b.mu.Unlock()
}

// PushBatch appends a batch in production order.
func (b *Buffer) PushBatch(batch daq.Batch) {
	if len(batch) == 0 {
		return
	}
	b.mu.Lock()
	for _, sample := range batch {
		b.ring[b.next] = sample
		b.next++
		if b.next == len(b.ring) {
			b.next = 0
			b.full = true
		}
	}
	b.counter += uint64(len(batch))
	b.mu.Unlock()
}

// Snapshot returns a copy of the current contents plus the running counter.
func (b *Buffer) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var samples []daq.Sample
	if b.full {
		samples = make([]daq.Sample, 0, len(b.ring))
		samples = append(samples, b.ring[b.next:]...)
		samples = append(samples, b.ring[:b.next]...)
	} else {
		samples = make([]daq.Sample, b.next)
		copy(samples, b.ring[:b.next])
	}
	return Snapshot{Samples: samples, Counter: b.counter}
}

// Counter returns the total number of samples pushed since the last Reset.
func (b *Buffer) Counter() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.counter
}

// Reset clears contents and counter for a new session.
func (b *Buffer) Reset() {
	b.mu.Lock()
	for i := range b.ring {
		b.ring[i] = daq.Sample{}
	}
	b.next = 0
	b.full = false
	b.counter = 0
	b.mu.Unlock()
}
