// Package notify delivers alert decisions to operator-facing channels.
package notify

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"soundwatch/internal/logger"
	"soundwatch/internal/metrics"
	"soundwatch/internal/models"
	"soundwatch/internal/worker"
)

// Notifier sends an alert for a decision. Implementations are best effort:
// errors are reported by the caller and never retried.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, d models.Decision) error
}

// Fanout broadcasts each decision to every registered notifier. Each
// backend has its own dispatch lane, so a slow or failing backend affects
// neither its siblings nor the caller.
type Fanout struct {
	lanes     []worker.Submitter
	notifiers []Notifier
}

// NewFanout registers notifiers in order and opens one lane per notifier.
// The list is fixed for the life of the fanout.
func NewFanout(lanes worker.Lanes, notifiers ...Notifier) *Fanout {
	f := &Fanout{notifiers: append([]Notifier(nil), notifiers...)}
	for _, n := range f.notifiers {
		f.lanes = append(f.lanes, lanes.Lane("notify."+n.Name()))
	}
	return f
}

// Name implements Notifier
func (f *Fanout) Name() string { return "fanout" }

// Len returns the number of registered notifiers
func (f *Fanout) Len() int { return len(f.notifiers) }

// Notify hands one delivery to each backend's lane and returns at once.
// It never returns an error; drops are logged and counted.
func (f *Fanout) Notify(_ context.Context, d models.Decision) error {
	log := logger.WithComponent("notify_fanout")

	for i, n := range f.notifiers {
		n := n
		if err := f.lanes[i].Submit(func(ctx context.Context) { deliver(ctx, n, d) }); err != nil {
			log.Warn().
				Err(err).
				Str("backend", n.Name()).
				Str("decision_id", d.ID).
				Msg("notification dropped")
		}
	}
	return nil
}

// deliver runs one backend call and reports its outcome
func deliver(ctx context.Context, n Notifier, d models.Decision) {
	log := logger.WithComponent("notify").With().
		Str("backend", n.Name()).
		Str("decision_id", d.ID).
		Logger()
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("notifier panic recovered")
				metrics.PanicsRecovered.WithLabelValues("notifier").Inc()
				err = fmt.Errorf("notifier panic: %v", r)
			}
		}()
		return n.Notify(ctx, d)
	}()

	duration := time.Since(start)
	metrics.DispatchDuration.WithLabelValues("notify", n.Name()).Observe(duration.Seconds())

	if err != nil {
		metrics.DispatchTotal.WithLabelValues("notify", n.Name(), "failed").Inc()
		log.Error().Err(err).Dur("duration", duration).Msg("notification failed")
		return
	}

	metrics.DispatchTotal.WithLabelValues("notify", n.Name(), "success").Inc()
	log.Info().Dur("duration", duration).Msg("notification sent")
}

// Log is a notifier that writes alerts to the structured log
type Log struct{}

// Name implements Notifier
func (Log) Name() string { return "log" }

// Notify implements Notifier
func (Log) Notify(_ context.Context, d models.Decision) error {
	log := logger.WithSession("alert", d.SessionID)
	log.Warn().
		Str("status", d.Status.String()).
		Float64("confidence_pct", d.ConfidencePercent()).
		Time("detected_at", d.Timestamp).
		Msg("fault detected")
	return nil
}

// Message renders the human readable alert text shared by chat and mail
// backends
func Message(d models.Decision) string {
	return fmt.Sprintf(
		"ALERT: abnormal behaviour detected on the equipment.\n\n"+
			"Detected status: %s\n"+
			"Confidence: %.2f%%\n"+
			"Detected at: %s %s\n\n"+
			"Inspection by a technician is recommended.",
		d.Status, d.Confidence*100, d.Date(), d.TimeOfDay(),
	)
}
