package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/perbu/presensi/internal/apperr"
)

// Admission errors. They are returned synchronously by the Submit methods
// and never reach the timer or queue internals.
var (
	ErrBusy       = errors.New("verification already in progress")
	ErrSystemBusy = errors.New("system busy with verification")
	ErrQueueFull  = errors.New("queue is full")
	ErrClosed     = errors.New("coordinator closed")
)

// Status is the terminal state of an admitted task
type Status int

const (
	StatusSuccess Status = iota
	StatusError
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Outcome is the one terminal result delivered per admitted task.
// Value is only meaningful when Status is StatusSuccess, Err only when it
// is StatusError.
type Outcome[T any] struct {
	Status  Status
	Value   T
	Err     *apperr.Error
	Elapsed time.Duration
}

// ReplySink receives the terminal outcome of a task. Deliver is called
// exactly once per admitted task, outside any coordinator lock.
type ReplySink[T any] interface {
	Deliver(Outcome[T])
}

// SinkFunc adapts a function to a ReplySink
type SinkFunc[T any] func(Outcome[T])

// Deliver calls f(o)
func (f SinkFunc[T]) Deliver(o Outcome[T]) {
	f(o)
}

func outcomeOf[T any](val T, err error, elapsed time.Duration) Outcome[T] {
	if err != nil {
		return Outcome[T]{Status: StatusError, Err: apperr.Classify(err), Elapsed: elapsed}
	}
	return Outcome[T]{Status: StatusSuccess, Value: val, Elapsed: elapsed}
}

func timeoutOutcome[T any](elapsed time.Duration) Outcome[T] {
	return Outcome[T]{Status: StatusTimeout, Elapsed: elapsed}
}

func shutdownOutcome(elapsed time.Duration) Outcome[string] {
	return Outcome[string]{
		Status:  StatusError,
		Err:     apperr.New(apperr.Shutdown, "bot is shutting down"),
		Elapsed: elapsed,
	}
}

// call runs an adapter and converts a panic into an internal error
func call[T any](ctx context.Context, fn func(context.Context) (T, error)) (val T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperr.New(apperr.Internal, fmt.Sprintf("panic in external call: %v", r))
		}
	}()
	return fn(ctx)
}
