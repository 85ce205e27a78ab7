package source

import (
	"context"
	"sync"

	"soundwatch/internal/logger"
)

var _ Source = (*Channel)(nil)

// Channel is a push source: producers call Push, typically from the HTTP
// ingest handler, and Run forwards batches to the session.
type Channel struct {
	rate   int
	frames chan []float32

	mu     sync.RWMutex
	closed bool
}

// NewChannel creates a push source buffering up to capacity batches
func NewChannel(rate, capacity int) *Channel {
	if capacity <= 0 {
		capacity = 64
	}
	return &Channel{
		rate:   rate,
		frames: make(chan []float32, capacity),
	}
}

// Name implements Source
func (c *Channel) Name() string { return "http" }

// SampleRate implements Source
func (c *Channel) SampleRate() int { return c.rate }

// Push enqueues a copy of samples without blocking
func (c *Channel) Push(samples []float32) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrSourceClosed
	}

	batch := append([]float32(nil), samples...)
	select {
	case c.frames <- batch:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close ends the stream; Run returns once buffered batches are forwarded
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.frames)
	}
}

// Drain discards buffered batches, used when a session stops
func (c *Channel) Drain() int {
	n := 0
	for {
		select {
		case _, ok := <-c.frames:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// Run forwards pushed batches until ctx is cancelled or the channel is closed
func (c *Channel) Run(ctx context.Context, emit func([]float32)) error {
	log := logger.WithComponent("source").With().Str("source", c.Name()).Logger()
	log.Info().Int("sample_rate", c.rate).Msg("waiting for pushed samples")

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-c.frames:
			if !ok {
				log.Info().Msg("ingest channel closed")
				return nil
			}
			emit(batch)
		}
	}
}
