package coordinator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const waitTimeout = 2 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSink captures delivered outcomes and counts deliveries
type recordingSink[T any] struct {
	ch chan Outcome[T]
	n  atomic.Int32
}

func newSink[T any]() *recordingSink[T] {
	return &recordingSink[T]{ch: make(chan Outcome[T], 4)}
}

func (s *recordingSink[T]) Deliver(o Outcome[T]) {
	s.n.Add(1)
	s.ch <- o
}

func (s *recordingSink[T]) wait(t *testing.T) Outcome[T] {
	t.Helper()
	select {
	case o := <-s.ch:
		return o
	case <-time.After(waitTimeout):
		t.Fatal("no outcome delivered")
	}
	return Outcome[T]{}
}

func (s *recordingSink[T]) deliveries() int {
	return int(s.n.Load())
}

// stubAdvisor blocks each query until the test releases it or the context
// is cancelled
type stubAdvisor struct {
	started chan string

	mu      sync.Mutex
	release map[string]chan string
}

func newStubAdvisor() *stubAdvisor {
	return &stubAdvisor{
		started: make(chan string, 16),
		release: make(map[string]chan string),
	}
}

func (a *stubAdvisor) gate(query string) chan string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch, ok := a.release[query]
	if !ok {
		ch = make(chan string, 1)
		a.release[query] = ch
	}
	return ch
}

func (a *stubAdvisor) Advise(ctx context.Context, query string) (string, error) {
	a.started <- query
	select {
	case answer := <-a.gate(query):
		return answer, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a *stubAdvisor) answer(query, answer string) {
	a.gate(query) <- answer
}

func (a *stubAdvisor) expectStarted(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-a.started:
		if got != want {
			t.Fatalf("started %q, want %q", got, want)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("%q never started", want)
	}
}

func (a *stubAdvisor) expectIdle(t *testing.T) {
	t.Helper()
	select {
	case got := <-a.started:
		t.Fatalf("%q started, want no advisory call", got)
	case <-time.After(50 * time.Millisecond):
	}
}

// stubVerifier blocks until released or the context is cancelled
type stubVerifier struct {
	started chan struct{}
	release chan string
}

func newStubVerifier() *stubVerifier {
	return &stubVerifier{
		started: make(chan struct{}, 4),
		release: make(chan string, 1),
	}
}

func (v *stubVerifier) Verify(ctx context.Context) (string, error) {
	v.started <- struct{}{}
	select {
	case r := <-v.release:
		return r, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (v *stubVerifier) expectStarted(t *testing.T) {
	t.Helper()
	select {
	case <-v.started:
	case <-time.After(waitTimeout):
		t.Fatal("verification never started")
	}
}

// gateFlag is a GateState controlled by the test
type gateFlag struct {
	held atomic.Bool
}

func (g *gateFlag) IsHeld() bool {
	return g.held.Load()
}
