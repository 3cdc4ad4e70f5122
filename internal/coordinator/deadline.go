package coordinator

import (
	"context"
	"sync/atomic"
	"time"
)

const (
	deadlineArmed int32 = iota
	deadlineFired
	deadlineCancelled
)

// Deadline is a one-shot timer bound to a running task. It either fires
// once or is cancelled once; the state transition out of "armed" is the
// race arbiter between natural completion and expiry.
type Deadline struct {
	state  atomic.Int32
	timer  *time.Timer
	cancel context.CancelFunc
}

// Arm starts a deadline of duration d. The returned context is derived from
// parent and is cancelled when the deadline fires or is cancelled, so the
// external call observing it is abandoned. onExpire runs at most once, on
// the timer goroutine, after the context has been cancelled.
func Arm(parent context.Context, d time.Duration, onExpire func()) (context.Context, *Deadline) {
	ctx, cancel := context.WithCancel(parent)
	dl := &Deadline{cancel: cancel}
	dl.timer = time.AfterFunc(d, func() {
		if !dl.state.CompareAndSwap(deadlineArmed, deadlineFired) {
			return
		}
		cancel()
		if onExpire != nil {
			onExpire()
		}
	})
	return ctx, dl
}

// Cancel stops the deadline. It reports whether the cancellation won, that
// is whether the expiry callback is guaranteed not to run. Cancelling a
// fired or already cancelled deadline is a no-op that returns false.
func (d *Deadline) Cancel() bool {
	won := d.state.CompareAndSwap(deadlineArmed, deadlineCancelled)
	if won {
		d.timer.Stop()
	}
	d.cancel()
	return won
}

// Fired reports whether the deadline expired
func (d *Deadline) Fired() bool {
	return d.state.Load() == deadlineFired
}
