package timetable

import (
	"sync/atomic"
)

// Publisher hands completed snapshots from the refresh worker to query
// handlers. Publication is a single pointer swap over an immutable snapshot,
// so readers never hold a lock and never observe a half-built timetable.
type Publisher struct {
	current atomic.Pointer[Snapshot]
}

// MakePublisher builds a Publisher holding an initial snapshot.
func MakePublisher(initial *Snapshot) *Publisher {
	p := &Publisher{}
	p.current.Store(initial)
	return p
}

// Publish swaps in a new snapshot. Single writer.
func (p *Publisher) Publish(snapshot *Snapshot) {
	p.current.Store(snapshot)
}

// Current returns the latest published snapshot. Callers use the returned
// snapshot exclusively for the duration of one request.
func (p *Publisher) Current() *Snapshot {
	return p.current.Load()
}
