package coordinator

import (
	"context"
	"sync"
	"time"
)

// AdviseFunc is the advisory external call
type AdviseFunc func(ctx context.Context, query string) (string, error)

// Item is a queued advisory request. It is owned by the queue until it is
// dequeued, then by the active slot until its outcome is delivered.
type Item struct {
	RequestID  string
	Payload    string
	Sink       ReplySink[string]
	EnqueuedAt time.Time
	Position   int // 1-based position reported at enqueue time
}

// GateState is the part of the gate the drain loop consults
type GateState interface {
	IsHeld() bool
}

// QueueObserver is notified when a queued item starts and finishes.
// Callbacks run outside the queue lock.
type QueueObserver interface {
	ItemStarted(item *Item)
	ItemFinished(item *Item, outcome Outcome[string])
}

// Queue is a bounded FIFO of advisory requests drained one item at a time.
// The active item counts towards capacity until its outcome is delivered.
// A drain only starts while the gate is free; an item already running when
// the gate is taken runs to completion.
type Queue struct {
	mu       sync.Mutex
	capacity int
	timeout  time.Duration
	gate     GateState
	advise   AdviseFunc
	observer QueueObserver
	base     context.Context

	waiting  []*Item
	active   *Item
	draining bool
	closed   bool

	running sync.WaitGroup
}

// NewQueue creates an empty queue. Each started item is bounded by timeout.
// observer may be nil.
func NewQueue(capacity int, timeout time.Duration, gate GateState, advise AdviseFunc, observer QueueObserver) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		capacity: capacity,
		timeout:  timeout,
		gate:     gate,
		advise:   advise,
		observer: observer,
		base:     context.Background(),
	}
}

// Enqueue appends item at the tail and returns its 1-based position,
// counting the active item and the item itself. The position is a snapshot
// and is not updated as earlier items finish. The item is rejected with
// ErrSystemBusy while the gate is held and with ErrQueueFull at capacity;
// existing items are left untouched either way.
func (q *Queue) Enqueue(item *Item) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, ErrClosed
	}
	if q.gate.IsHeld() {
		return 0, ErrSystemBusy
	}
	if q.lenLocked() >= q.capacity {
		return 0, ErrQueueFull
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now()
	}
	q.waiting = append(q.waiting, item)
	item.Position = q.lenLocked()
	return item.Position, nil
}

// TryStartNext starts the head item if the queue is idle, non-empty and
// the gate is free. Otherwise it does nothing.
func (q *Queue) TryStartNext() {
	q.mu.Lock()
	if q.closed || q.draining || len(q.waiting) == 0 || q.gate.IsHeld() {
		q.mu.Unlock()
		return
	}

	item := q.waiting[0]
	q.waiting[0] = nil
	q.waiting = q.waiting[1:]
	q.active = item
	q.draining = true

	start := time.Now()
	ctx, dl := Arm(q.base, q.timeout, func() { q.expire(item, start) })
	q.running.Add(1)
	q.mu.Unlock()

	if q.observer != nil {
		q.observer.ItemStarted(item)
	}
	go q.execute(ctx, dl, item, start)
}

func (q *Queue) execute(ctx context.Context, dl *Deadline, item *Item, start time.Time) {
	defer q.running.Done()

	answer, err := call(ctx, func(ctx context.Context) (string, error) {
		return q.advise(ctx, item.Payload)
	})

	q.mu.Lock()
	if q.active != item || !dl.Cancel() {
		// The deadline fired first; the expiry path delivers the outcome.
		q.mu.Unlock()
		return
	}
	q.clearActiveLocked()
	q.mu.Unlock()

	q.finish(item, outcomeOf(answer, err, time.Since(start)))
}

func (q *Queue) expire(item *Item, start time.Time) {
	q.mu.Lock()
	if q.active != item {
		q.mu.Unlock()
		return
	}
	q.clearActiveLocked()
	q.mu.Unlock()

	q.finish(item, timeoutOutcome[string](time.Since(start)))
}

// finish advances the drain loop and delivers the outcome. Called exactly
// once per started item, by whichever path won its deadline.
func (q *Queue) finish(item *Item, outcome Outcome[string]) {
	q.TryStartNext()
	if q.observer != nil {
		q.observer.ItemFinished(item, outcome)
	}
	item.Sink.Deliver(outcome)
}

func (q *Queue) clearActiveLocked() {
	q.active = nil
	q.draining = false
}

func (q *Queue) lenLocked() int {
	n := len(q.waiting)
	if q.active != nil {
		n++
	}
	return n
}

// Len returns the number of items held, including the active one
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Capacity returns the maximum number of items held
func (q *Queue) Capacity() int {
	return q.capacity
}

// Draining reports whether an item is executing
func (q *Queue) Draining() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}

// Active returns the request ID of the executing item, or "" if idle
func (q *Queue) Active() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active == nil {
		return ""
	}
	return q.active.RequestID
}

// Close stops the drain loop and returns the items that were still waiting,
// in order. The active item, if any, keeps running.
func (q *Queue) Close() []*Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	pending := q.waiting
	q.waiting = nil
	return pending
}

// Wait blocks until no item is executing
func (q *Queue) Wait() {
	q.running.Wait()
}
