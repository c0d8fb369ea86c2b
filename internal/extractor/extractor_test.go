package extractor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"streamhub/internal/broker"
)

type fakeConn struct {
	msgs   chan *broker.Message
	errs   chan error
	closed atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{msgs: make(chan *broker.Message, 16), errs: make(chan error, 1)}
}

func (c *fakeConn) Next(ctx context.Context) (*broker.Message, error) {
	select {
	case m := <-c.msgs:
		return m, nil
	case err := <-c.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	return nil
}

type fakeDialer struct {
	conn  *fakeConn
	dials atomic.Int32
}

func (d *fakeDialer) Dial(context.Context, string, string, string, string) (broker.Conn, error) {
	d.dials.Add(1)
	return d.conn, nil
}

type recordSink struct {
	mu        sync.Mutex
	processed []*broker.Message
	fail      bool
	closed    atomic.Bool
}

func (s *recordSink) Process(_ context.Context, msg *broker.Message) error {
	s.mu.Lock()
	s.processed = append(s.processed, msg)
	s.mu.Unlock()
	if s.fail {
		return errors.New("boom")
	}
	return nil
}

func (s *recordSink) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *recordSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStartIsIdempotentAndStopReleasesEverything(t *testing.T) {
	conn := newFakeConn()
	d := &fakeDialer{conn: conn}
	s := &recordSink{}
	e := New("c1", "localhost:9092", "t", "g", d, []Attached{{Kind: "test", Sink: s}}, nil)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if got := d.dials.Load(); got != 1 {
		t.Fatalf("expected 1 dial, got %d", got)
	}

	conn.msgs <- &broker.Message{Topic: "t", Value: []byte("m1")}
	waitFor(t, func() bool { return s.count() == 1 })

	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !conn.closed.Load() {
		t.Fatal("connection not closed")
	}
	if !s.closed.Load() {
		t.Fatal("sink not closed")
	}
	// stop again is a no-op
	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestStopOnNeverStartedExtractorReleasesSinks(t *testing.T) {
	s := &recordSink{}
	e := New("c1", "a", "t", "g", &fakeDialer{conn: newFakeConn()}, []Attached{{Kind: "test", Sink: s}}, nil)
	if err := e.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !s.closed.Load() {
		t.Fatal("sink not released")
	}
}

func TestSinkFailureIsIsolated(t *testing.T) {
	conn := newFakeConn()
	bad := &recordSink{fail: true}
	good := &recordSink{}
	e := New("c1", "a", "t", "g", &fakeDialer{conn: conn},
		[]Attached{{Kind: "bad", Sink: bad}, {Kind: "good", Sink: good}}, nil)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop(context.Background())

	conn.msgs <- &broker.Message{Value: []byte("m1")}
	conn.msgs <- &broker.Message{Value: []byte("m2")}

	waitFor(t, func() bool { return good.count() == 2 && bad.count() == 2 })
}

func TestConnectionErrorTriggersSelfShutdown(t *testing.T) {
	conn := newFakeConn()
	s := &recordSink{}
	var failedWith atomic.Value
	e := New("c1", "a", "t", "g", &fakeDialer{conn: conn},
		[]Attached{{Kind: "test", Sink: s}},
		func(err error) { failedWith.Store(err) })

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	conn.errs <- errors.New("broker gone")
	waitFor(t, func() bool { return failedWith.Load() != nil })

	if !conn.closed.Load() {
		t.Fatal("connection not closed on self shutdown")
	}
	if !s.closed.Load() {
		t.Fatal("sink not closed on self shutdown")
	}
	if e.Running() {
		t.Fatal("extractor still reports running")
	}
}

func TestMessageFullyDispatchedBeforeNextPull(t *testing.T) {
	conn := newFakeConn()
	slow := &slowSink{gate: make(chan struct{})}
	e := New("c1", "a", "t", "g", &fakeDialer{conn: conn},
		[]Attached{{Kind: "slow", Sink: slow}}, nil)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop(context.Background())

	conn.msgs <- &broker.Message{Value: []byte("m1")}
	conn.msgs <- &broker.Message{Value: []byte("m2")}

	waitFor(t, func() bool { return slow.started.Load() == 1 })
	// second message must not start dispatch while the first is in flight
	time.Sleep(50 * time.Millisecond)
	if got := slow.started.Load(); got != 1 {
		t.Fatalf("expected 1 in-flight dispatch, got %d", got)
	}
	close(slow.gate)
	waitFor(t, func() bool { return slow.started.Load() == 2 })
}

type slowSink struct {
	gate    chan struct{}
	started atomic.Int32
}

func (s *slowSink) Process(_ context.Context, _ *broker.Message) error {
	if s.started.Add(1) == 1 {
		<-s.gate
	}
	return nil
}

func (s *slowSink) Close() error { return nil }

// gatedSink blocks its first Process call on gate and records whether the
// dispatch context was cancelled by the time it resumed.
type gatedSink struct {
	gate      chan struct{}
	entered   chan struct{}
	sawCancel atomic.Bool
	closed    atomic.Bool
}

func (s *gatedSink) Process(ctx context.Context, _ *broker.Message) error {
	close(s.entered)
	<-s.gate
	if ctx.Err() != nil {
		s.sawCancel.Store(true)
	}
	return nil
}

func (s *gatedSink) Close() error {
	s.closed.Store(true)
	return nil
}

func TestStopDoesNotCancelInFlightDispatch(t *testing.T) {
	conn := newFakeConn()
	s := &gatedSink{gate: make(chan struct{}), entered: make(chan struct{})}
	e := New("c1", "a", "t", "g", &fakeDialer{conn: conn},
		[]Attached{{Kind: "gated", Sink: s}}, nil)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	conn.msgs <- &broker.Message{Value: []byte("m1")}
	<-s.entered

	stopped := make(chan error, 1)
	go func() { stopped <- e.Stop(context.Background()) }()
	// let Stop cancel the loop before the blocked sink resumes
	time.Sleep(50 * time.Millisecond)
	close(s.gate)

	if err := <-stopped; err != nil {
		t.Fatalf("stop: %v", err)
	}
	if s.sawCancel.Load() {
		t.Fatal("in-flight dispatch observed a cancelled context")
	}
	if !s.closed.Load() {
		t.Fatal("sink not closed after stop")
	}
}

func TestStopWithExpiredContextStillTearsDown(t *testing.T) {
	conn := newFakeConn()
	s := &gatedSink{gate: make(chan struct{}), entered: make(chan struct{})}
	e := New("c1", "a", "t", "g", &fakeDialer{conn: conn},
		[]Attached{{Kind: "gated", Sink: s}}, nil)

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	conn.msgs <- &broker.Message{Value: []byte("m1")}
	<-s.entered

	expired, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Stop(expired); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}

	// teardown must still complete once the in-flight dispatch finishes
	close(s.gate)
	waitFor(t, func() bool { return conn.closed.Load() && s.closed.Load() })
	if e.Running() {
		t.Fatal("extractor still reports running")
	}
}
