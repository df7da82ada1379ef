package sniff

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// teardownLog records the order of teardown calls across fakes.
type teardownLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *teardownLog) add(call string) {
	l.mu.Lock()
	l.calls = append(l.calls, call)
	l.mu.Unlock()
}

func (l *teardownLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// fakeScanner hands the registered handler back to the test so it can inject
// advertisements without hardware.
type fakeScanner struct {
	mu       sync.Mutex
	handler  func(Advertisement)
	startErr error
	ready    chan struct{}
	order    *teardownLog
}

func newFakeScanner() *fakeScanner {
	return &fakeScanner{ready: make(chan struct{}), order: &teardownLog{}}
}

func (f *fakeScanner) Start(handler func(Advertisement)) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
	close(f.ready)
	return nil
}

func (f *fakeScanner) Stop() error {
	f.order.add("scanner.stop")
	return nil
}

// emit delivers one advertisement once scanning has started.
func (f *fakeScanner) emit(t *testing.T, adv Advertisement) {
	t.Helper()
	select {
	case <-f.ready:
	case <-time.After(time.Second):
		t.Fatal("scanner never started")
	}
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	handler(adv)
}

// orderedSink reports its Close into the shared teardown log.
type orderedSink struct {
	memorySink
	order *teardownLog
}

func (s *orderedSink) Close() error {
	s.order.add("sink.close")
	return s.memorySink.Close()
}

func newTestSession(scanner Scanner, duration time.Duration, sinks ...Sink) (*Session, *Pipeline) {
	pipeline := NewPipeline(Filter{}, &bytes.Buffer{}, sinks, zerolog.Nop())
	return NewSession(scanner, pipeline, sinks, duration, zerolog.Nop()), pipeline
}

func TestSessionStopsAfterDuration(t *testing.T) {
	scanner := newFakeScanner()
	session, _ := newTestSession(scanner, 30*time.Millisecond)

	start := time.Now()
	require.NoError(t, session.Run(context.Background()))

	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond,
		"must not stop before the duration elapses")
	assert.Equal(t, StateStopped, session.State())
	assert.Contains(t, scanner.order.list(), "scanner.stop")
}

func TestSessionIndefiniteStopsOnCancellation(t *testing.T) {
	scanner := newFakeScanner()
	session, _ := newTestSession(scanner, 0)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-scanner.ready
		cancel()
	}()

	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err, "cancellation is a normal completion")
	case <-time.After(2 * time.Second):
		t.Fatal("indefinite session did not stop on cancellation")
	}
	assert.Equal(t, StateStopped, session.State())
}

func TestSessionProcessesEventsInOrder(t *testing.T) {
	scanner := newFakeScanner()
	sink := &memorySink{}
	session, pipeline := newTestSession(scanner, 0, sink)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		scanner.emit(t, Advertisement{Address: "AA:AA:AA:AA:AA:AA", RSSI: -50})
		scanner.emit(t, Advertisement{Address: "BB:BB:BB:BB:BB:BB", RSSI: -70})
		scanner.emit(t, Advertisement{Address: "AA:AA:AA:AA:AA:AA", RSSI: -45})
		// Events sit in the session queue until the loop drains them; give
		// the loop a beat before requesting teardown.
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	require.NoError(t, session.Run(ctx))

	assert.Equal(t, 3, pipeline.Accepted())
	require.Len(t, sink.records, 3)
	assert.Equal(t, "AA:AA:AA:AA:AA:AA", sink.records[0].Address)
	assert.Equal(t, "BB:BB:BB:BB:BB:BB", sink.records[1].Address)
	assert.Equal(t, -45, sink.records[2].RSSI, "delivery order preserved")
	assert.Equal(t, map[string]int{
		"AA:AA:AA:AA:AA:AA": -45,
		"BB:BB:BB:BB:BB:BB": -70,
	}, pipeline.LastSeen())
}

func TestSessionStopsScannerBeforeClosingSinks(t *testing.T) {
	scanner := newFakeScanner()
	sink := &orderedSink{order: scanner.order}
	session, _ := newTestSession(scanner, 10*time.Millisecond, sink)

	require.NoError(t, session.Run(context.Background()))

	require.Equal(t, []string{"scanner.stop", "sink.close"}, scanner.order.list(),
		"discovery must be fully stopped before the sink is released")
}

func TestSessionLateEventAfterStopIsDropped(t *testing.T) {
	scanner := newFakeScanner()
	sink := &memorySink{}
	session, pipeline := newTestSession(scanner, 10*time.Millisecond, sink)

	require.NoError(t, session.Run(context.Background()))

	// The stack may still deliver an event while StopScan settles.
	assert.NotPanics(t, func() {
		scanner.emit(t, Advertisement{Address: "CC:CC:CC:CC:CC:CC", RSSI: -30})
	})
	assert.Zero(t, pipeline.Accepted())
}

func TestSessionIsSingleUse(t *testing.T) {
	scanner := newFakeScanner()
	session, _ := newTestSession(scanner, 5*time.Millisecond)

	require.NoError(t, session.Run(context.Background()))
	assert.ErrorIs(t, session.Run(context.Background()), ErrSessionReused)
}

func TestSessionStartFailureClosesSinks(t *testing.T) {
	scanner := newFakeScanner()
	scanner.startErr = errors.New("adapter unavailable")
	sink := &memorySink{}
	session, _ := newTestSession(scanner, time.Second, sink)

	err := session.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start discovery")
	assert.True(t, sink.closed, "sinks must be released on every exit path")
	assert.Equal(t, StateStopped, session.State())
}

func TestSessionReportsSinkWriteError(t *testing.T) {
	scanner := newFakeScanner()
	errBroken := errors.New("disk full")
	sink := &memorySink{writeErr: errBroken}
	session, _ := newTestSession(scanner, 0, sink)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		scanner.emit(t, Advertisement{Address: "AA:AA:AA:AA:AA:AA", RSSI: -50})
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	assert.ErrorIs(t, session.Run(ctx), errBroken)
}
