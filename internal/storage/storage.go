// Package storage persists failure records to one or more sinks.
package storage

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"soundwatch/internal/logger"
	"soundwatch/internal/metrics"
	"soundwatch/internal/models"
	"soundwatch/internal/worker"
)

// FailureLogger persists one record per logged decision. Writes are best
// effort; durability is whatever the sink offers.
type FailureLogger interface {
	Name() string
	LogFailure(ctx context.Context, d models.Decision) error
	Close() error
}

// Fanout writes each decision to every registered sink. Each sink has its
// own dispatch lane; a failing sink is reported and skipped.
type Fanout struct {
	lanes []worker.Submitter
	sinks []FailureLogger
}

// NewFanout registers sinks in order and opens one lane per sink. The list
// is fixed for the life of the fanout.
func NewFanout(lanes worker.Lanes, sinks ...FailureLogger) *Fanout {
	f := &Fanout{sinks: append([]FailureLogger(nil), sinks...)}
	for _, s := range f.sinks {
		f.lanes = append(f.lanes, lanes.Lane("log."+s.Name()))
	}
	return f
}

// Name implements FailureLogger
func (f *Fanout) Name() string { return "fanout" }

// Len returns the number of registered sinks
func (f *Fanout) Len() int { return len(f.sinks) }

// LogFailure hands one write to each sink's lane and returns at once
func (f *Fanout) LogFailure(_ context.Context, d models.Decision) error {
	log := logger.WithComponent("storage_fanout")

	for i, s := range f.sinks {
		s := s
		if err := f.lanes[i].Submit(func(ctx context.Context) { write(ctx, s, d) }); err != nil {
			log.Warn().
				Err(err).
				Str("sink", s.Name()).
				Str("decision_id", d.ID).
				Msg("failure record dropped")
		}
	}
	return nil
}

// Close closes every sink and joins their errors
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// write runs one sink call and reports its outcome
func write(ctx context.Context, s FailureLogger, d models.Decision) {
	log := logger.WithComponent("storage").With().
		Str("sink", s.Name()).
		Str("decision_id", d.ID).
		Logger()
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("sink panic recovered")
				metrics.PanicsRecovered.WithLabelValues("sink").Inc()
				err = fmt.Errorf("sink panic: %v", r)
			}
		}()
		return s.LogFailure(ctx, d)
	}()

	duration := time.Since(start)
	metrics.DispatchDuration.WithLabelValues("log", s.Name()).Observe(duration.Seconds())

	if err != nil {
		metrics.DispatchTotal.WithLabelValues("log", s.Name(), "failed").Inc()
		log.Error().Err(err).Dur("duration", duration).Msg("failure record write failed")
		return
	}

	metrics.DispatchTotal.WithLabelValues("log", s.Name(), "success").Inc()
	log.Info().
		Str("status", d.Status.String()).
		Float64("confidence_pct", d.ConfidencePercent()).
		Dur("duration", duration).
		Msg("failure record written")
}
