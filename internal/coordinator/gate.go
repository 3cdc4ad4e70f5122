package coordinator

import (
	"context"
	"sync"
	"time"
)

// Gate is a single-slot, non-blocking mutual exclusion primitive for the
// verification task. It records its owner and bounds every acquisition with
// a Deadline, so a hung external call can never keep it held.
type Gate struct {
	mu       sync.Mutex
	timeout  time.Duration
	held     bool
	owner    string
	since    time.Time
	deadline *Deadline
	gen      uint64
}

// Lease identifies one acquisition of the gate. Owner IDs may repeat across
// acquisitions; a lease never does, so a late release from an expired
// acquisition cannot free a later one.
type Lease struct {
	Owner    string
	gen      uint64
	deadline *Deadline
}

// Expired reports whether the acquisition ended by its deadline firing
func (l Lease) Expired() bool {
	return l.deadline != nil && l.deadline.Fired()
}

// NewGate creates a free gate whose acquisitions expire after timeout
func NewGate(timeout time.Duration) *Gate {
	return &Gate{timeout: timeout}
}

// TryAcquire takes the gate for ownerID without waiting. It returns false
// immediately if the gate is already held. On success it arms the deadline
// and returns a context, derived from parent, for the external call; when
// the deadline fires the gate is released and onExpire runs exactly once.
func (g *Gate) TryAcquire(parent context.Context, ownerID string, onExpire func()) (context.Context, Lease, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.held {
		return nil, Lease{}, false
	}

	g.gen++
	gen := g.gen
	ctx, dl := Arm(parent, g.timeout, func() {
		g.expire(gen)
		if onExpire != nil {
			onExpire()
		}
	})
	g.held = true
	g.owner = ownerID
	g.since = time.Now()
	g.deadline = dl
	return ctx, Lease{Owner: ownerID, gen: gen, deadline: dl}, true
}

// Release frees the gate if lease is the current acquisition and its
// deadline has not fired. It reports whether this call released the gate;
// false means the lease no longer holds the gate or the expiry path already
// owns the release. Release is idempotent.
func (g *Gate) Release(lease Lease) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.held || g.gen != lease.gen || g.owner != lease.Owner {
		return false
	}
	if !g.deadline.Cancel() {
		return false
	}
	g.clear()
	return true
}

// IsHeld reports whether the gate is currently held
func (g *Gate) IsHeld() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}

// Owner returns the current owner and when it acquired the gate.
// The owner is empty when the gate is free.
func (g *Gate) Owner() (string, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.owner, g.since
}

func (g *Gate) expire(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held && g.gen == gen {
		g.clear()
	}
}

func (g *Gate) clear() {
	g.held = false
	g.owner = ""
	g.since = time.Time{}
	g.deadline = nil
}
