package sniff

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateScanning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrSessionReused is returned when Run is called on a session that has
// already run. Sessions are single-use.
var ErrSessionReused = errors.New("scan session is single-use")

// eventQueueSize bounds the channel between the radio callback and the
// session's event loop.
const eventQueueSize = 128

// Session owns one scan run: it starts the discovery primitive with the
// pipeline as consumer, waits for the configured duration to elapse or the
// context to be cancelled, then stops discovery and closes the sinks, in
// that order.
type Session struct {
	scanner  Scanner
	pipeline *Pipeline
	sinks    []Sink
	duration time.Duration // 0 scans until cancelled
	log      zerolog.Logger

	mu    sync.Mutex
	state State
	done  chan struct{}
}

// NewSession builds a single-use session. duration 0 means scanning persists
// until ctx passed to Run is cancelled. The sinks are the same ones the
// pipeline writes to; the session owns closing them.
func NewSession(scanner Scanner, pipeline *Pipeline, sinks []Sink, duration time.Duration, log zerolog.Logger) *Session {
	id := uuid.New()
	return &Session{
		scanner:  scanner,
		pipeline: pipeline,
		sinks:    sinks,
		duration: duration,
		log:      log.With().Str("session_id", id.String()).Logger(),
		state:    StateIdle,
		done:     make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run scans until the duration elapses or ctx is cancelled, whichever comes
// first. Both are normal completions; Run returns an error only when the
// scanner fails to start or a sink write or close failed. Events are
// consumed by a single event loop, so pipeline invocations never overlap.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionReused
	}
	s.state = StateScanning
	s.mu.Unlock()

	events := make(chan Advertisement, eventQueueSize)
	err := s.scanner.Start(func(adv Advertisement) {
		select {
		case events <- adv:
		case <-s.done:
			// Teardown has begun; late events are dropped.
		}
	})
	if err != nil {
		s.teardown()
		return fmt.Errorf("start discovery: %w", err)
	}

	if s.duration > 0 {
		s.log.Info().Dur("duration", s.duration).Msg("scan started")
	} else {
		s.log.Info().Msg("scan started, running until interrupted")
	}

	// Armed only for a finite duration; a nil channel never fires.
	var deadline <-chan time.Time
	if s.duration > 0 {
		timer := time.NewTimer(s.duration)
		defer timer.Stop()
		deadline = timer.C
	}

loop:
	for {
		select {
		case adv := <-events:
			s.pipeline.Handle(adv)
		case <-deadline:
			s.log.Info().Msg("scan duration elapsed")
			break loop
		case <-ctx.Done():
			s.log.Info().Msg("scan cancelled")
			break loop
		}
	}

	return s.teardown()
}

// teardown stops discovery before releasing the sinks so a late callback can
// never reach a closed sink through a still-running scanner.
func (s *Session) teardown() error {
	s.setState(StateStopping)
	close(s.done)

	if err := s.scanner.Stop(); err != nil {
		// Degraded, not fatal: the stack may already have stopped.
		s.log.Warn().Err(err).Msg("stop discovery")
	}

	var firstErr error
	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = s.pipeline.Err()
	}

	s.setState(StateStopped)
	s.log.Info().
		Int("detections", s.pipeline.Accepted()).
		Int("devices", len(s.pipeline.LastSeen())).
		Msg("scan stopped")
	return firstErr
}
