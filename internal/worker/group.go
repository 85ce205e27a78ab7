package worker

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Lanes hands out one submitter per backend
type Lanes interface {
	Lane(name string) Submitter
}

// Group keeps one bounded pool per lane, so a stalled backend only fills its
// own queue. Every lane is sized by the same Config.
type Group struct {
	cfg Config

	mu     sync.Mutex
	pools  map[string]*Pool
	closed bool
}

// NewGroup creates an empty group. Lanes are created on first use.
func NewGroup(cfg Config) *Group {
	if cfg.Name == "" {
		cfg.Name = "dispatch"
	}
	return &Group{
		cfg:   cfg,
		pools: make(map[string]*Pool),
	}
}

// Lane returns the started pool for name, creating it on first use. Lanes
// created after Stop are already closed and drop every task.
func (g *Group) Lane(name string) Submitter {
	g.mu.Lock()
	defer g.mu.Unlock()

	if p, ok := g.pools[name]; ok {
		return p
	}

	cfg := g.cfg
	cfg.Name = g.cfg.Name + "/" + name
	p := NewPool(cfg)
	if g.closed {
		p.closed = true
		close(p.tasks)
		p.cancel()
	} else {
		p.Start()
	}
	g.pools[name] = p
	return p
}

// Stop stops every lane concurrently under the same deadline
func (g *Group) Stop(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	pools := make([]*Pool, 0, len(g.pools))
	for _, p := range g.pools {
		pools = append(pools, p)
	}
	g.mu.Unlock()

	var eg errgroup.Group
	for _, p := range pools {
		p := p
		eg.Go(func() error { return p.Stop(ctx) })
	}
	return eg.Wait()
}

// Stats sums the statistics of every lane
func (g *Group) Stats() Stats {
	var total Stats
	for _, st := range g.LaneStats() {
		total.Submitted += st.Submitted
		total.Completed += st.Completed
		total.Dropped += st.Dropped
		total.Panics += st.Panics
		total.Queued += st.Queued
		total.Capacity += st.Capacity
	}
	return total
}

// LaneStats returns statistics keyed by lane name
func (g *Group) LaneStats() map[string]Stats {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]Stats, len(g.pools))
	for name, p := range g.pools {
		out[name] = p.Stats()
	}
	return out
}
