// Package session runs one monitoring session: a source feeding a chunk
// buffer whose windows go through the alert controller.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"soundwatch/internal/alerts"
	"soundwatch/internal/buffer"
	"soundwatch/internal/logger"
	"soundwatch/internal/metrics"
	"soundwatch/internal/source"
)

// Lifecycle errors reported by session owners
var (
	ErrSessionRunning = errors.New("a session is already running")
	ErrNoSession      = errors.New("no session")
)

// State of a session
type State string

const (
	StatePending      State = "pending"
	StateRunning      State = "running"
	StateStopped      State = "stopped"
	StateSourceClosed State = "source_closed"
	StateFailed       State = "failed"
)

// Config sizes the session pipeline
type Config struct {
	Window     int
	Hop        int
	FrameQueue int
}

// Session owns a fresh ChunkBuffer and drives the controller from a single
// goroutine. The source never waits on classification: batches that do not
// fit in the frame queue are dropped.
type Session struct {
	id   string
	src  source.Source
	buf  *buffer.ChunkBuffer
	ctrl *alerts.Controller

	frames   chan []float32
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu        sync.RWMutex
	state     State
	startedAt time.Time
	endedAt   time.Time
	err       error

	framesReceived atomic.Uint64
	framesDropped  atomic.Uint64
	samples        atomic.Uint64
	windows        atomic.Uint64
}

// New prepares a session. The controller is reset when Run starts.
func New(cfg Config, src source.Source, ctrl *alerts.Controller) (*Session, error) {
	buf, err := buffer.New(cfg.Window, cfg.Hop)
	if err != nil {
		return nil, fmt.Errorf("session buffer: %w", err)
	}
	if cfg.FrameQueue <= 0 {
		cfg.FrameQueue = 256
	}

	return &Session{
		id:     uuid.New().String(),
		src:    src,
		buf:    buf,
		ctrl:   ctrl,
		frames: make(chan []float32, cfg.FrameQueue),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		state:  StatePending,
	}, nil
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// Done is closed when Run returns
func (s *Session) Done() <-chan struct{} { return s.done }

// Stop asks the session to end. Dispatches already handed to the backends
// are not cancelled.
func (s *Session) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Run acquires and processes samples until the source ends, Stop is called
// or ctx is cancelled. It returns an error only when acquisition failed.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	log := logger.WithSession("session", s.id)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	s.ctrl.ResetSession(s.id)

	s.mu.Lock()
	s.state = StateRunning
	s.startedAt = time.Now()
	s.mu.Unlock()

	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	log.Info().
		Str("source", s.src.Name()).
		Int("window", s.buf.Window()).
		Int("hop", s.buf.Hop()).
		Int("frame_queue", cap(s.frames)).
		Msg("session started")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pipeline(ctx)
	}()

	srcErr := s.src.Run(ctx, s.enqueue)
	close(s.frames)
	wg.Wait()

	state, reason := StateSourceClosed, "source_closed"
	switch {
	case srcErr != nil:
		state, reason = StateFailed, "acquisition_error"
		srcErr = fmt.Errorf("session %s: acquisition: %w", s.id, srcErr)
	case ctx.Err() != nil:
		state, reason = StateStopped, "stopped"
	}

	// leftover samples never make a window
	s.buf.Reset()

	s.mu.Lock()
	s.state = state
	s.endedAt = time.Now()
	s.err = srcErr
	s.mu.Unlock()

	metrics.SessionsEndedTotal.WithLabelValues(reason).Inc()

	ev := log.Info()
	if srcErr != nil {
		ev = log.Error().Err(srcErr)
	}
	ev.Str("state", string(state)).
		Uint64("windows", s.windows.Load()).
		Uint64("frames_dropped", s.framesDropped.Load()).
		Msg("session ended")

	return srcErr
}

// enqueue is the emit callback handed to the source; it never blocks
func (s *Session) enqueue(batch []float32) {
	s.framesReceived.Add(1)
	metrics.FramesReceivedTotal.Inc()

	select {
	case s.frames <- batch:
	default:
		s.framesDropped.Add(1)
		metrics.FramesDroppedTotal.Inc()
	}
}

// pipeline is the only goroutine touching the buffer
func (s *Session) pipeline(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-s.frames:
			if !ok {
				return
			}
			s.samples.Add(uint64(len(batch)))
			for _, w := range s.buf.Push(batch) {
				if ctx.Err() != nil {
					// stopped mid-batch
					return
				}
				s.windows.Add(1)
				metrics.WindowsEmittedTotal.Inc()
				s.ctrl.ProcessWindow(ctx, w)
			}
		}
	}
}

// Status is a point-in-time view of a session
type Status struct {
	ID             string          `json:"id"`
	State          State           `json:"state"`
	Source         string          `json:"source"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	EndedAt        *time.Time      `json:"ended_at,omitempty"`
	Error          string          `json:"error,omitempty"`
	FramesReceived uint64          `json:"frames_received"`
	FramesDropped  uint64          `json:"frames_dropped"`
	Samples        uint64          `json:"samples"`
	Windows        uint64          `json:"windows"`
	Controller     alerts.Snapshot `json:"controller"`
}

// Status returns the current session status
func (s *Session) Status() Status {
	s.mu.RLock()
	st := Status{
		ID:     s.id,
		State:  s.state,
		Source: s.src.Name(),
	}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		st.StartedAt = &t
	}
	if !s.endedAt.IsZero() {
		t := s.endedAt
		st.EndedAt = &t
	}
	if s.err != nil {
		st.Error = s.err.Error()
	}
	s.mu.RUnlock()

	st.FramesReceived = s.framesReceived.Load()
	st.FramesDropped = s.framesDropped.Load()
	st.Samples = s.samples.Load()
	st.Windows = s.windows.Load()
	// the controller is shared; its state is ours only until the next reset
	if snap := s.ctrl.Snapshot(); snap.SessionID == s.id {
		st.Controller = snap
	}
	return st
}

// Err returns the acquisition error, if the session failed
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}
