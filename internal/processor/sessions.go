package processor

import (
	"fmt"
	"time"

	"soundwatch/internal/handlers"
	"soundwatch/internal/logger"
	"soundwatch/internal/session"
	"soundwatch/internal/source"
)

// StartSession starts a new session with a fresh buffer and a reset
// controller
func (p *Processor) StartSession() (session.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current != nil {
		return session.Status{}, session.ErrSessionRunning
	}

	src, err := source.New(p.cfg.Source, p.cfg.Audio.SampleRate, p.ingest)
	if err != nil {
		return session.Status{}, fmt.Errorf("build source: %w", err)
	}
	if p.ingest != nil {
		// samples pushed between sessions belong to no one
		p.ingest.Drain()
	}

	s, err := session.New(session.Config{
		Window:     p.cfg.Audio.Window(),
		Hop:        p.cfg.Audio.Hop(),
		FrameQueue: p.cfg.Monitor.FrameQueue,
	}, src, p.controller)
	if err != nil {
		return session.Status{}, err
	}

	p.current = s
	ctx := p.baseCtx

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := s.Run(ctx); err != nil {
			log := logger.WithSession("processor", s.ID())
			log.Error().Err(err).Msg("session failed")
		}

		p.mu.Lock()
		if p.current == s {
			p.current = nil
		}
		p.last = s
		p.mu.Unlock()
	}()

	return s.Status(), nil
}

// StopSession stops the running session and returns its final status
func (p *Processor) StopSession() (session.Status, error) {
	p.mu.Lock()
	s := p.current
	p.mu.Unlock()

	if s == nil {
		return session.Status{}, session.ErrNoSession
	}

	s.Stop()
	select {
	case <-s.Done():
	case <-time.After(p.stopWait):
		// stays current until Run returns, so no new session can reset the
		// controller under the old pipeline
		log := logger.WithSession("processor", s.ID())
		log.Warn().Msg("session did not stop in time")
		return s.Status(), nil
	}

	p.mu.Lock()
	if p.current == s {
		p.current = nil
		p.last = s
	}
	p.mu.Unlock()

	return s.Status(), nil
}

// CurrentSession returns the running session, or the last one to end
func (p *Processor) CurrentSession() (session.Status, error) {
	p.mu.Lock()
	s := p.current
	if s == nil {
		s = p.last
	}
	p.mu.Unlock()

	if s == nil {
		return session.Status{}, session.ErrNoSession
	}
	return s.Status(), nil
}

// PushSamples feeds the HTTP ingest source of the running session
func (p *Processor) PushSamples(samples []float32) error {
	if p.ingest == nil {
		return handlers.ErrIngestDisabled
	}

	p.mu.Lock()
	running := p.current != nil
	p.mu.Unlock()
	if !running {
		return session.ErrNoSession
	}

	return p.ingest.Push(samples)
}
