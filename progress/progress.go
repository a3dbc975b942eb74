package progress

import (
	"sync"
	"time"
)

// Delta represents an incremental counter change emitted by the engine.  The
// fields are signed and therefore can be either positive (increment) or
// negative (decrement).
type Delta struct {
	Submitted int
	Allowed   int
	Locked    int
	Consensus int
	Flagged   int
	Denied    int
}

// Stats is a point-in-time copy of the engine counters, safe to pass around
// by value.
type Stats struct {
	// Identification, informative only, filled when the engine starts.
	EngineID  string
	StartedAt time.Time

	Submitted int
	Allowed   int
	Locked    int
	Consensus int
	Flagged   int
	Denied    int
}

// Progress keeps aggregated submission counters for one engine instance.  It
// is safe for concurrent use.
type Progress struct {
	mu       sync.Mutex
	stats    Stats
	onChange func(Stats)
}

// New creates a tracker identified by engineID.
func New(engineID string, startedAt time.Time) *Progress {
	return &Progress{stats: Stats{EngineID: engineID, StartedAt: startedAt}}
}

// Update applies the supplied delta to the tracker.  It is safe to call from
// multiple goroutines.  If an onChange callback has been registered it is
// invoked with a copy of the updated counters outside the critical section so
// that the callback can perform slow operations (e.g. JSON encoding, I/O)
// without blocking engine internals.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}

	p.mu.Lock()

	p.stats.Submitted += d.Submitted
	p.stats.Allowed += d.Allowed
	p.stats.Locked += d.Locked
	p.stats.Consensus += d.Consensus
	p.stats.Flagged += d.Flagged
	p.stats.Denied += d.Denied

	snapshot := p.stats
	cb := p.onChange

	p.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the counters suitable for read-only inspection.
func (p *Progress) Snapshot() Stats {
	if p == nil {
		return Stats{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// OnChange registers a callback invoked after every Update.
func (p *Progress) OnChange(cb func(Stats)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.onChange = cb
	p.mu.Unlock()
}
