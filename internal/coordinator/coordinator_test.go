package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/perbu/presensi/internal/apperr"
)

func newTestCoordinator(t *testing.T, cfg Config, verify VerifyFunc[string], advise AdviseFunc, opts ...Option) *Coordinator[string] {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	c := New(cfg, verify, advise, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		c.Close(ctx)
	})
	return c
}

func TestSubmitExclusiveBusy(t *testing.T) {
	ver := newStubVerifier()
	c := newTestCoordinator(t, Config{QueueCapacity: 2, ExclusiveTimeout: time.Second, QueuedTimeout: time.Second},
		ver.Verify, newStubAdvisor().Advise)

	first := newSink[string]()
	if err := c.SubmitExclusive("e1", first); err != nil {
		t.Fatalf("SubmitExclusive() error = %v", err)
	}
	ver.expectStarted(t)

	second := newSink[string]()
	if err := c.SubmitExclusive("e2", second); !errors.Is(err, ErrBusy) {
		t.Fatalf("SubmitExclusive() error = %v, want ErrBusy", err)
	}

	ver.release <- "report"
	o := first.wait(t)
	if o.Status != StatusSuccess || o.Value != "report" {
		t.Errorf("outcome = %+v, want success report", o)
	}
	if second.deliveries() != 0 {
		t.Error("rejected task received an outcome")
	}
	if c.Stats().GateHeld {
		t.Error("gate held after completion")
	}
}

func TestSubmitExclusiveConcurrent(t *testing.T) {
	ver := newStubVerifier()
	c := newTestCoordinator(t, Config{QueueCapacity: 1, ExclusiveTimeout: time.Second, QueuedTimeout: time.Second},
		ver.Verify, newStubAdvisor().Advise)

	var admitted, busy atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			err := c.SubmitExclusive(fmt.Sprintf("e%d", i), newSink[string]())
			switch {
			case err == nil:
				admitted.Add(1)
			case errors.Is(err, ErrBusy):
				busy.Add(1)
			default:
				t.Errorf("SubmitExclusive() error = %v", err)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	if admitted.Load() != 1 || busy.Load() != 19 {
		t.Errorf("admitted = %d, busy = %d, want 1 and 19", admitted.Load(), busy.Load())
	}
	ver.release <- "done"
}

// Queue capacity 2: Q1 runs, Q2 waits, Q3 is rejected. An exclusive task
// admitted while Q1 runs keeps Q2 waiting until it releases the gate.
func TestCapacityAndCrossClassExclusion(t *testing.T) {
	ver := newStubVerifier()
	adv := newStubAdvisor()
	c := newTestCoordinator(t, Config{QueueCapacity: 2, ExclusiveTimeout: time.Second, QueuedTimeout: time.Second},
		ver.Verify, adv.Advise)

	s1, s2 := newSink[string](), newSink[string]()
	pos, err := c.SubmitQueued("q1", "q1", s1)
	if err != nil || pos != 1 {
		t.Fatalf("SubmitQueued(q1) = %d, %v, want 1, nil", pos, err)
	}
	adv.expectStarted(t, "q1")

	pos, err = c.SubmitQueued("q2", "q2", s2)
	if err != nil || pos != 2 {
		t.Fatalf("SubmitQueued(q2) = %d, %v, want 2, nil", pos, err)
	}
	if _, err := c.SubmitQueued("q3", "q3", newSink[string]()); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("SubmitQueued(q3) error = %v, want ErrQueueFull", err)
	}

	// The running advisory item does not block exclusive admission.
	se := newSink[string]()
	if err := c.SubmitExclusive("e", se); err != nil {
		t.Fatalf("SubmitExclusive() error = %v", err)
	}
	ver.expectStarted(t)

	adv.answer("q1", "a1")
	if o := s1.wait(t); o.Status != StatusSuccess {
		t.Fatalf("q1 status = %v, want success", o.Status)
	}
	adv.expectIdle(t)

	st := c.Stats()
	if !st.GateHeld || st.GateOwner != "e" {
		t.Errorf("Stats() gate = %v/%q, want held by e", st.GateHeld, st.GateOwner)
	}
	if st.Draining || st.QueueLength != 1 {
		t.Errorf("Stats() draining = %v, length = %d, want false, 1", st.Draining, st.QueueLength)
	}
	if _, err := c.SubmitQueued("q4", "q4", newSink[string]()); !errors.Is(err, ErrSystemBusy) {
		t.Errorf("SubmitQueued(q4) error = %v, want ErrSystemBusy", err)
	}

	ver.release <- "report"
	if o := se.wait(t); o.Status != StatusSuccess {
		t.Fatalf("exclusive status = %v, want success", o.Status)
	}
	adv.expectStarted(t, "q2")
	adv.answer("q2", "a2")
	if o := s2.wait(t); o.Value != "a2" {
		t.Errorf("q2 value = %q, want a2", o.Value)
	}
}

func TestExclusiveTimeoutFreesGate(t *testing.T) {
	ver := newStubVerifier()
	adv := newStubAdvisor()
	c := newTestCoordinator(t, Config{QueueCapacity: 2, ExclusiveTimeout: 40 * time.Millisecond, QueuedTimeout: time.Second},
		ver.Verify, adv.Advise)

	se := newSink[string]()
	if err := c.SubmitExclusive("e", se); err != nil {
		t.Fatalf("SubmitExclusive() error = %v", err)
	}
	ver.expectStarted(t)

	if _, err := c.SubmitQueued("q1", "q1", newSink[string]()); !errors.Is(err, ErrSystemBusy) {
		t.Fatalf("SubmitQueued() error = %v, want ErrSystemBusy", err)
	}

	if o := se.wait(t); o.Status != StatusTimeout {
		t.Fatalf("exclusive status = %v, want timeout", o.Status)
	}
	if c.Stats().GateHeld {
		t.Fatal("gate held after timeout outcome")
	}

	s2 := newSink[string]()
	pos, err := c.SubmitQueued("q2", "q2", s2)
	if err != nil || pos != 1 {
		t.Fatalf("SubmitQueued(q2) = %d, %v, want 1, nil", pos, err)
	}
	adv.expectStarted(t, "q2")
	adv.answer("q2", "ok")
	s2.wait(t)

	time.Sleep(20 * time.Millisecond)
	if got := se.deliveries(); got != 1 {
		t.Errorf("exclusive task got %d deliveries, want 1", got)
	}
}

func TestReusedOwnerLateResultIgnored(t *testing.T) {
	// Each call ignores its context and returns only when the test says so.
	calls := make(chan chan string, 2)
	verify := func(ctx context.Context) (string, error) {
		release := make(chan string)
		calls <- release
		return <-release, nil
	}
	c := newTestCoordinator(t, Config{QueueCapacity: 1, ExclusiveTimeout: 150 * time.Millisecond, QueuedTimeout: time.Second},
		verify, newStubAdvisor().Advise)

	s1 := newSink[string]()
	if err := c.SubmitExclusive("chat-42", s1); err != nil {
		t.Fatalf("SubmitExclusive(first) error = %v", err)
	}
	first := <-calls
	if o := s1.wait(t); o.Status != StatusTimeout {
		t.Fatalf("first status = %v, want timeout", o.Status)
	}

	s2 := newSink[string]()
	if err := c.SubmitExclusive("chat-42", s2); err != nil {
		t.Fatalf("SubmitExclusive(second) error = %v", err)
	}
	second := <-calls

	first <- "stale"
	time.Sleep(20 * time.Millisecond)

	if !c.Stats().GateHeld {
		t.Fatal("late result of the expired call freed the gate")
	}
	if got := s1.deliveries(); got != 1 {
		t.Errorf("first task got %d deliveries, want 1", got)
	}
	if err := c.SubmitExclusive("chat-43", newSink[string]()); !errors.Is(err, ErrBusy) {
		t.Errorf("SubmitExclusive(third) error = %v, want ErrBusy", err)
	}

	second <- "fresh"
	if o := s2.wait(t); o.Status != StatusSuccess || o.Value != "fresh" {
		t.Errorf("second outcome = %v %q, want success fresh", o.Status, o.Value)
	}
	if got := s2.deliveries(); got != 1 {
		t.Errorf("second task got %d deliveries, want 1", got)
	}
}

func TestExactlyOnceNearDeadline(t *testing.T) {
	const timeout = 5 * time.Millisecond
	verify := func(ctx context.Context) (string, error) {
		select {
		case <-time.After(timeout):
			return "late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	advise := func(ctx context.Context, query string) (string, error) {
		select {
		case <-time.After(timeout):
			return "late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c := newTestCoordinator(t, Config{QueueCapacity: 1, ExclusiveTimeout: timeout, QueuedTimeout: timeout}, verify, advise)

	for i := 0; i < 30; i++ {
		se := newSink[string]()
		if err := c.SubmitExclusive(fmt.Sprintf("e%d", i), se); err != nil {
			t.Fatalf("iteration %d: SubmitExclusive() error = %v", i, err)
		}
		se.wait(t)

		sq := newSink[string]()
		if _, err := c.SubmitQueued(fmt.Sprintf("q%d", i), "q", sq); err != nil {
			t.Fatalf("iteration %d: SubmitQueued() error = %v", i, err)
		}
		sq.wait(t)

		time.Sleep(2 * time.Millisecond)
		if se.deliveries() != 1 || sq.deliveries() != 1 {
			t.Fatalf("iteration %d: deliveries = %d/%d, want 1/1", i, se.deliveries(), sq.deliveries())
		}
	}
}

func TestExclusivePanicIsInternalError(t *testing.T) {
	verify := func(ctx context.Context) (string, error) {
		panic("adapter bug")
	}
	c := newTestCoordinator(t, Config{QueueCapacity: 1, ExclusiveTimeout: time.Second, QueuedTimeout: time.Second},
		verify, newStubAdvisor().Advise)

	s := newSink[string]()
	if err := c.SubmitExclusive("e", s); err != nil {
		t.Fatalf("SubmitExclusive() error = %v", err)
	}
	o := s.wait(t)
	if o.Status != StatusError || o.Err.Kind != apperr.Internal {
		t.Errorf("outcome = %v/%v, want error/internal", o.Status, o.Err)
	}
	if c.Stats().GateHeld {
		t.Error("gate held after panic")
	}
}

func TestCloseFailsWaitingItems(t *testing.T) {
	adv := newStubAdvisor()
	c := New(Config{QueueCapacity: 3, ExclusiveTimeout: time.Second, QueuedTimeout: time.Second},
		newStubVerifier().Verify, adv.Advise, WithLogger(discardLogger()))

	s1, s2 := newSink[string](), newSink[string]()
	c.SubmitQueued("q1", "q1", s1)
	adv.expectStarted(t, "q1")
	c.SubmitQueued("q2", "q2", s2)

	closed := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		closed <- c.Close(ctx)
	}()

	o := s2.wait(t)
	if o.Status != StatusError || o.Err.Kind != apperr.Shutdown {
		t.Errorf("waiting item outcome = %v/%v, want error/shutdown", o.Status, o.Err)
	}

	adv.answer("q1", "done")
	if o := s1.wait(t); o.Status != StatusSuccess {
		t.Errorf("active item status = %v, want success", o.Status)
	}
	if err := <-closed; err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if err := c.SubmitExclusive("e", newSink[string]()); !errors.Is(err, ErrClosed) {
		t.Errorf("SubmitExclusive() after Close error = %v, want ErrClosed", err)
	}
	if _, err := c.SubmitQueued("q3", "q3", newSink[string]()); !errors.Is(err, ErrClosed) {
		t.Errorf("SubmitQueued() after Close error = %v, want ErrClosed", err)
	}
	if !c.Stats().Closed {
		t.Error("Stats().Closed = false")
	}
}

func TestCloseHonoursContext(t *testing.T) {
	ver := newStubVerifier()
	c := New(Config{QueueCapacity: 1, ExclusiveTimeout: time.Second, QueuedTimeout: time.Second},
		ver.Verify, newStubAdvisor().Advise, WithLogger(discardLogger()))

	c.SubmitExclusive("e", newSink[string]())
	ver.expectStarted(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := c.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close() error = %v, want deadline exceeded", err)
	}
	ver.release <- "done"
}

type eventLog struct {
	mu       sync.Mutex
	admitted []TaskInfo
	started  []string
	finished []TaskResult
	done     chan struct{}
}

func (l *eventLog) TaskAdmitted(info TaskInfo) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.admitted = append(l.admitted, info)
}

func (l *eventLog) TaskStarted(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, id)
}

func (l *eventLog) TaskFinished(res TaskResult) {
	l.mu.Lock()
	l.finished = append(l.finished, res)
	l.mu.Unlock()
	l.done <- struct{}{}
}

func TestRecorderEvents(t *testing.T) {
	adv := newStubAdvisor()
	rec := &eventLog{done: make(chan struct{}, 4)}
	c := newTestCoordinator(t, Config{QueueCapacity: 2, ExclusiveTimeout: time.Second, QueuedTimeout: time.Second},
		newStubVerifier().Verify, adv.Advise, WithRecorder(rec))

	s := newSink[string]()
	if _, err := c.SubmitQueued("q1", "what is kkn", s); err != nil {
		t.Fatalf("SubmitQueued() error = %v", err)
	}
	adv.expectStarted(t, "what is kkn")
	adv.answer("what is kkn", "community service")
	s.wait(t)

	select {
	case <-rec.done:
	case <-time.After(waitTimeout):
		t.Fatal("TaskFinished not recorded")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.admitted) != 1 || rec.admitted[0].Payload != "what is kkn" || rec.admitted[0].Class != ClassQueued {
		t.Errorf("admitted = %+v", rec.admitted)
	}
	if len(rec.started) != 1 || rec.started[0] != "q1" {
		t.Errorf("started = %v, want [q1]", rec.started)
	}
	if len(rec.finished) != 1 || rec.finished[0].Value != "community service" || rec.finished[0].Status != StatusSuccess {
		t.Errorf("finished = %+v", rec.finished)
	}
}
