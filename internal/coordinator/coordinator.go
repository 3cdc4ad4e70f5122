// Package coordinator admits and runs the two task classes of the bot: the
// exclusive verification task, guarded by a Gate, and queued advisory
// tasks, serialized through a bounded FIFO Queue. Every admitted task
// produces exactly one terminal Outcome on its ReplySink.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/perbu/presensi/internal/apperr"
)

// Class identifies the task class
type Class string

const (
	ClassExclusive Class = "exclusive"
	ClassQueued    Class = "queued"
)

// VerifyFunc is the exclusive external call
type VerifyFunc[V any] func(ctx context.Context) (V, error)

// Config holds the coordinator limits
type Config struct {
	QueueCapacity    int
	ExclusiveTimeout time.Duration
	QueuedTimeout    time.Duration
}

// TaskInfo describes an admitted task
type TaskInfo struct {
	ID         string
	Class      Class
	Payload    string
	Position   int
	AdmittedAt time.Time
}

// TaskResult describes a finished task. Value holds the success payload.
type TaskResult struct {
	ID      string
	Class   Class
	Status  Status
	Kind    string
	Detail  string
	Value   any
	Elapsed time.Duration
}

// Recorder observes task lifecycle events. Calls are made outside the gate
// and queue locks and must not block for long.
type Recorder interface {
	TaskAdmitted(info TaskInfo)
	TaskStarted(id string)
	TaskFinished(result TaskResult)
}

// Option configures a Coordinator
type Option func(*options)

type options struct {
	logger   *slog.Logger
	recorder Recorder
}

// WithLogger sets the logger (default slog.Default())
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRecorder installs a lifecycle recorder
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// Coordinator binds the Gate and the Queue. It is safe for concurrent use
// and process-global: one instance serves every chat.
type Coordinator[V any] struct {
	gate     *Gate
	queue    *Queue
	verify   VerifyFunc[V]
	logger   *slog.Logger
	recorder Recorder

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// Stats is a point-in-time view of the coordinator
type Stats struct {
	GateHeld      bool
	GateOwner     string
	GateSince     time.Time
	QueueLength   int
	QueueCapacity int
	Draining      bool
	ActiveRequest string
	Closed        bool
}

// New creates a Coordinator around the two external calls
func New[V any](cfg Config, verify VerifyFunc[V], advise AdviseFunc, opts ...Option) *Coordinator[V] {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Coordinator[V]{
		gate:     NewGate(cfg.ExclusiveTimeout),
		verify:   verify,
		logger:   o.logger,
		recorder: o.recorder,
	}
	c.queue = NewQueue(cfg.QueueCapacity, cfg.QueuedTimeout, c.gate, advise, queueObserver[V]{c})
	return c
}

// SubmitExclusive starts the verification task for ownerID. It fails fast
// with ErrBusy if a verification is already running; it never waits and
// never queues. On success the outcome is delivered to sink.
func (c *Coordinator[V]) SubmitExclusive(ownerID string, sink ReplySink[V]) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	start := time.Now()
	ctx, lease, ok := c.gate.TryAcquire(context.Background(), ownerID, func() {
		c.expireExclusive(ownerID, sink, start)
	})
	if !ok {
		c.mu.Unlock()
		c.logger.Info("Verification rejected", "task_id", ownerID, "reason", ErrBusy)
		return ErrBusy
	}
	c.inflight.Add(1)
	c.mu.Unlock()

	c.logger.Info("Verification admitted", "task_id", ownerID)
	if c.recorder != nil {
		c.recorder.TaskAdmitted(TaskInfo{ID: ownerID, Class: ClassExclusive, AdmittedAt: start})
		c.recorder.TaskStarted(ownerID)
	}

	go c.runExclusive(ctx, lease, sink, start)
	return nil
}

func (c *Coordinator[V]) runExclusive(ctx context.Context, lease Lease, sink ReplySink[V], start time.Time) {
	defer c.inflight.Done()

	ownerID := lease.Owner
	val, err := call[V](ctx, c.verify)
	if !c.gate.Release(lease) {
		if lease.Expired() {
			c.logger.Debug("Verification result discarded after deadline", "task_id", ownerID, "error", err)
		} else {
			c.logger.Warn("Verification finished without holding the gate", "task_id", ownerID)
		}
		return
	}

	c.queue.TryStartNext()
	c.deliverExclusive(ownerID, sink, outcomeOf(val, err, time.Since(start)))
}

// expireExclusive runs on the deadline path after the gate was released
func (c *Coordinator[V]) expireExclusive(ownerID string, sink ReplySink[V], start time.Time) {
	c.queue.TryStartNext()
	c.deliverExclusive(ownerID, sink, timeoutOutcome[V](time.Since(start)))
}

func (c *Coordinator[V]) deliverExclusive(ownerID string, sink ReplySink[V], outcome Outcome[V]) {
	c.logFinished(ownerID, ClassExclusive, outcome.Status, outcome.Err, outcome.Elapsed)
	if c.recorder != nil {
		c.recorder.TaskFinished(resultOf(ownerID, ClassExclusive, outcome))
	}
	sink.Deliver(outcome)
}

// SubmitQueued admits an advisory request. It is rejected with
// ErrSystemBusy while a verification holds the gate and with ErrQueueFull
// at capacity. On success it returns the 1-based queue position; the
// outcome is delivered to sink once the item reaches the head and runs.
func (c *Coordinator[V]) SubmitQueued(requestID, payload string, sink ReplySink[string]) (int, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}

	item := &Item{RequestID: requestID, Payload: payload, Sink: sink, EnqueuedAt: time.Now()}
	position, err := c.queue.Enqueue(item)
	if err != nil {
		c.logger.Info("Queued request rejected", "task_id", requestID, "reason", err)
		return 0, err
	}

	c.logger.Info("Queued request admitted", "task_id", requestID, "position", position)
	if c.recorder != nil {
		c.recorder.TaskAdmitted(TaskInfo{
			ID:         requestID,
			Class:      ClassQueued,
			Payload:    payload,
			Position:   position,
			AdmittedAt: item.EnqueuedAt,
		})
	}

	c.queue.TryStartNext()
	return position, nil
}

// Stats returns a snapshot of the gate and queue
func (c *Coordinator[V]) Stats() Stats {
	held := c.gate.IsHeld()
	owner, since := c.gate.Owner()
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	return Stats{
		GateHeld:      held,
		GateOwner:     owner,
		GateSince:     since,
		QueueLength:   c.queue.Len(),
		QueueCapacity: c.queue.Capacity(),
		Draining:      c.queue.Draining(),
		ActiveRequest: c.queue.Active(),
		Closed:        closed,
	}
}

// Close stops admission, fails every item still waiting in the queue with
// a shutdown error and waits for running tasks to finish or ctx to end.
func (c *Coordinator[V]) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	pending := c.queue.Close()
	for _, item := range pending {
		outcome := shutdownOutcome(time.Since(item.EnqueuedAt))
		c.logFinished(item.RequestID, ClassQueued, outcome.Status, outcome.Err, outcome.Elapsed)
		if c.recorder != nil {
			c.recorder.TaskFinished(resultOf(item.RequestID, ClassQueued, outcome))
		}
		item.Sink.Deliver(outcome)
	}

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		c.queue.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator[V]) logFinished(id string, class Class, status Status, err *apperr.Error, elapsed time.Duration) {
	switch status {
	case StatusSuccess:
		c.logger.Info("Task completed", "task_id", id, "class", class, "elapsed", elapsed)
	case StatusTimeout:
		c.logger.Warn("Task timed out", "task_id", id, "class", class, "elapsed", elapsed)
	default:
		c.logger.Warn("Task failed", "task_id", id, "class", class, "elapsed", elapsed, "error", err)
	}
}

// queueObserver forwards queue events to the coordinator's logger and recorder
type queueObserver[V any] struct {
	c *Coordinator[V]
}

func (o queueObserver[V]) ItemStarted(item *Item) {
	o.c.logger.Debug("Queued request started", "task_id", item.RequestID, "waited", time.Since(item.EnqueuedAt))
	if o.c.recorder != nil {
		o.c.recorder.TaskStarted(item.RequestID)
	}
}

func (o queueObserver[V]) ItemFinished(item *Item, outcome Outcome[string]) {
	o.c.logFinished(item.RequestID, ClassQueued, outcome.Status, outcome.Err, outcome.Elapsed)
	if o.c.recorder != nil {
		o.c.recorder.TaskFinished(resultOf(item.RequestID, ClassQueued, outcome))
	}
}

func resultOf[T any](id string, class Class, outcome Outcome[T]) TaskResult {
	res := TaskResult{
		ID:      id,
		Class:   class,
		Status:  outcome.Status,
		Elapsed: outcome.Elapsed,
	}
	switch outcome.Status {
	case StatusSuccess:
		res.Value = outcome.Value
	case StatusError:
		res.Kind = string(outcome.Err.Kind)
		res.Detail = outcome.Err.Detail
	}
	return res
}
