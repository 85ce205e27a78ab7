package worker

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"soundwatch/internal/logger"
	"soundwatch/internal/metrics"
)

// Pool errors
var (
	ErrPoolClosed = errors.New("worker pool is closed")
	ErrPoolFull   = errors.New("worker pool queue is full")
)

// Task is a unit of fire-and-forget work. The context is the pool's own
// context; it is only cancelled when Stop gives up waiting.
type Task func(ctx context.Context)

// Pool runs submitted tasks on a fixed number of goroutines fed by a
// bounded queue. Submit never blocks.
type Pool struct {
	name    string
	tasks   chan Task
	workers int

	mu     sync.RWMutex
	closed bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	// Metrics
	submitted atomic.Uint64
	completed atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64
}

// Config holds worker pool configuration
type Config struct {
	Name      string
	Workers   int
	QueueSize int
}

// NewPool creates a new worker pool
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Name == "" {
		cfg.Name = "dispatch"
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		name:    cfg.Name,
		tasks:   make(chan Task, cfg.QueueSize),
		workers: cfg.Workers,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	log := logger.WithComponent("worker_pool")
	log.Info().
		Str("pool", p.name).
		Int("workers", p.workers).
		Int("queue_size", cap(p.tasks)).
		Msg("starting worker pool")

	metrics.DispatchQueueCapacity.WithLabelValues(p.name).Set(float64(cap(p.tasks)))

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit enqueues a task without blocking. When the queue is full or the
// pool is stopped the task is dropped and an error is returned.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.dropped.Add(1)
		metrics.DispatchDroppedTotal.WithLabelValues(p.name).Inc()
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		p.submitted.Add(1)
		metrics.DispatchQueueSize.WithLabelValues(p.name).Set(float64(len(p.tasks)))
		return nil
	default:
		p.dropped.Add(1)
		metrics.DispatchDroppedTotal.WithLabelValues(p.name).Inc()
		return ErrPoolFull
	}
}

// Stop stops accepting tasks and waits for queued and running tasks to
// finish. If ctx expires first the pool context is cancelled and Stop
// returns ctx.Err() without waiting further.
func (p *Pool) Stop(ctx context.Context) error {
	log := logger.WithComponent("worker_pool")

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	log.Info().Str("pool", p.name).Msg("stopping worker pool")

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		log.Info().Str("pool", p.name).Msg("worker pool stopped")
		return nil
	case <-ctx.Done():
		p.cancel()
		log.Warn().
			Str("pool", p.name).
			Int("pending", len(p.tasks)).
			Msg("worker pool stop timed out, abandoning pending tasks")
		return ctx.Err()
	}
}

// worker runs tasks until the queue is closed and drained
func (p *Pool) worker(id int) {
	defer p.wg.Done()

	log := logger.WithComponent("worker").With().
		Str("pool", p.name).
		Int("worker_id", id).
		Logger()

	log.Debug().Msg("worker started")
	defer log.Debug().Msg("worker stopped")

	for task := range p.tasks {
		metrics.DispatchQueueSize.WithLabelValues(p.name).Set(float64(len(p.tasks)))
		p.run(id, task)
	}
}

// run executes one task, recovering panics so the worker survives
func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			log := logger.WithComponent("worker")
			log.Error().
				Str("pool", p.name).
				Int("worker_id", id).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("task panic recovered")
			metrics.PanicsRecovered.WithLabelValues("worker").Inc()
		}
		p.completed.Add(1)
	}()

	task(p.ctx)
}

// Stats returns worker pool statistics
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Dropped:   p.dropped.Load(),
		Panics:    p.panics.Load(),
		Queued:    len(p.tasks),
		Capacity:  cap(p.tasks),
	}
}

// Stats holds worker pool metrics
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Dropped   uint64 `json:"dropped"`
	Panics    uint64 `json:"panics"`
	Queued    int    `json:"queued"`
	Capacity  int    `json:"capacity"`
}

// Submitter is the part of Pool used by dispatchers
type Submitter interface {
	Submit(task Task) error
}
