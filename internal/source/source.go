// Package source produces batches of audio samples for a monitoring session.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"soundwatch/internal/config"
)

// Source errors
var (
	ErrSourceClosed = errors.New("source is closed")
	ErrQueueFull    = errors.New("source queue is full")
	ErrUnknownKind  = errors.New("unknown source kind")
)

// Source acquires samples and hands them to emit until the stream ends or
// ctx is cancelled. emit must not block; Run returns nil on a clean end of
// stream or cancellation and an error when acquisition fails.
type Source interface {
	Name() string
	SampleRate() int
	Run(ctx context.Context, emit func([]float32)) error
}

// New builds the source described by cfg. The channel source is shared with
// the HTTP ingest handler, so it is passed in rather than created here.
func New(cfg config.SourceConfig, sampleRate int, ingest *Channel) (Source, error) {
	switch cfg.Kind {
	case config.SourceSynth:
		return NewSynth(cfg.Synth, sampleRate, cfg.BlockSize, cfg.Realtime), nil
	case config.SourceWAV:
		return NewWAV(cfg.Path, cfg.BlockSize, cfg.Realtime, cfg.Loop), nil
	case config.SourceRaw:
		return NewRaw(cfg.Path, sampleRate, cfg.BlockSize, cfg.Realtime), nil
	case config.SourceHTTP:
		if ingest == nil {
			return nil, errors.New("http source requires an ingest channel")
		}
		return ingest, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// pacer holds a producer to real time: after n samples it waits until
// n/rate seconds have passed since the first call.
type pacer struct {
	enabled bool
	rate    int
	start   time.Time
	emitted int64
}

func newPacer(enabled bool, rate int) *pacer {
	return &pacer{enabled: enabled && rate > 0, rate: rate}
}

// wait accounts for n more samples and sleeps if ahead of the clock
func (p *pacer) wait(ctx context.Context, n int) error {
	if !p.enabled {
		return ctx.Err()
	}
	if p.start.IsZero() {
		p.start = time.Now()
	}
	p.emitted += int64(n)

	due := p.start.Add(time.Duration(p.emitted) * time.Second / time.Duration(p.rate))
	d := time.Until(due)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// blockSizeOr returns n, or def when n is not positive
func blockSizeOr(n, def int) int {
	if n > 0 {
		return n
	}
	return def
}
