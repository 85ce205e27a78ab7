// Package alerts decides, per classification, whether to notify and whether
// to write a failure record.
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"soundwatch/internal/classifier"
	"soundwatch/internal/logger"
	"soundwatch/internal/metrics"
	"soundwatch/internal/models"
	"soundwatch/internal/notify"
	"soundwatch/internal/storage"
)

// Policy selects how notifications and failure records are rate limited
type Policy string

const (
	// PolicyContinuous notifies on every gated-in result and rate limits
	// only the failure log.
	PolicyContinuous Policy = "continuous"

	// PolicySharedCooldown rate limits notifications with the cooldown and
	// writes at most one failure record per session.
	PolicySharedCooldown Policy = "shared-cooldown"
)

// ParsePolicy maps a config value to a Policy. Empty means continuous.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case "", PolicyContinuous:
		return PolicyContinuous, nil
	case PolicySharedCooldown:
		return PolicySharedCooldown, nil
	default:
		return "", fmt.Errorf("unknown alert policy %q", s)
	}
}

// Config holds the controller knobs. It is fixed for the controller's life.
type Config struct {
	MinConfidence float64
	Cooldown      time.Duration
	Policy        Policy
}

// Result describes what the controller did with one classification
type Result struct {
	Classification models.Classification `json:"classification"`
	Gated          bool                  `json:"gated"`
	Notified       bool                  `json:"notified"`
	Logged         bool                  `json:"logged"`
	Decision       *models.Decision      `json:"decision,omitempty"`
}

// Snapshot is a point-in-time view of controller state
type Snapshot struct {
	SessionID   string                 `json:"session_id"`
	Policy      Policy                 `json:"policy"`
	Evaluations uint64                 `json:"evaluations"`
	GatedIn     uint64                 `json:"gated_in"`
	Notified    uint64                 `json:"notified"`
	Logged      uint64                 `json:"logged"`
	Last        *models.Classification `json:"last_classification,omitempty"`
	LastNotify  *time.Time             `json:"last_notify,omitempty"`
	LastLog     *time.Time             `json:"last_log,omitempty"`
}

// Option configures a Controller
type Option func(*Controller)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// Controller turns classifications into notify and log decisions
type Controller struct {
	cfg      Config
	cls      classifier.Classifier
	notifier notify.Notifier
	failures storage.FailureLogger
	now      func() time.Time

	mu               sync.Mutex
	sessionID        string
	lastNotify       time.Time
	lastLog          time.Time
	sessionHasLogged bool
	last             *models.Classification

	evaluations uint64
	gatedIn     uint64
	notified    uint64
	logged      uint64
}

// NewController creates a controller. n and l are usually fan-outs; any
// Notifier or FailureLogger works.
func NewController(cfg Config, cls classifier.Classifier, n notify.Notifier, l storage.FailureLogger, opts ...Option) *Controller {
	if cfg.Policy == "" {
		cfg.Policy = PolicyContinuous
	}

	c := &Controller{
		cfg:      cfg,
		cls:      cls,
		notifier: n,
		failures: l,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the controller configuration
func (c *Controller) Config() Config { return c.cfg }

// ResetSession forgets both clocks and the per-session log flag. Counters are
// reset too so the snapshot describes the new session only.
func (c *Controller) ResetSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessionID = sessionID
	c.lastNotify = time.Time{}
	c.lastLog = time.Time{}
	c.sessionHasLogged = false
	c.last = nil
	c.evaluations, c.gatedIn, c.notified, c.logged = 0, 0, 0, 0

	log := logger.WithSession("alerts", sessionID)
	log.Debug().
		Str("policy", string(c.cfg.Policy)).
		Msg("controller reset")
}

// ProcessWindow classifies one window and evaluates the result. A window
// whose context ends during classification is not evaluated.
func (c *Controller) ProcessWindow(ctx context.Context, window []float32) Result {
	cls := c.cls.Predict(ctx, window)
	if ctx.Err() != nil {
		return Result{Classification: cls}
	}
	return c.Evaluate(ctx, cls)
}

// Evaluate applies the gate and the policy to one classification. Backend
// calls happen after the state update and outside the lock.
func (c *Controller) Evaluate(ctx context.Context, cls models.Classification) Result {
	c.mu.Lock()
	res := c.decide(cls)
	sessionID := c.sessionID
	c.mu.Unlock()

	if res.Decision == nil {
		return res
	}

	log := logger.WithSession("alerts", sessionID)
	d := *res.Decision

	if res.Notified {
		if err := c.notifier.Notify(ctx, d); err != nil {
			log.Error().Err(err).Str("decision_id", d.ID).Msg("notify failed")
		}
	}
	if res.Logged {
		if err := c.failures.LogFailure(ctx, d); err != nil {
			log.Error().Err(err).Str("decision_id", d.ID).Msg("failure log failed")
		}
	}

	log.Info().
		Str("decision_id", d.ID).
		Str("status", d.Status.String()).
		Float64("confidence", d.Confidence).
		Bool("notified", res.Notified).
		Bool("logged", res.Logged).
		Msg("fault decision")

	return res
}

// decide mutates controller state; callers hold c.mu
func (c *Controller) decide(cls models.Classification) Result {
	res := Result{Classification: cls}

	c.evaluations++
	last := cls
	c.last = &last

	if !c.gate(cls) {
		metrics.AlertDecisionsTotal.WithLabelValues("gated_out").Inc()
		return res
	}
	res.Gated = true
	c.gatedIn++

	now := c.now()

	switch c.cfg.Policy {
	case PolicySharedCooldown:
		if !c.elapsed(c.lastNotify, now) {
			metrics.AlertDecisionsTotal.WithLabelValues("notify_suppressed").Inc()
			return res
		}
		res.Notified = true
		c.lastNotify = now
		if !c.sessionHasLogged {
			res.Logged = true
			c.sessionHasLogged = true
			c.lastLog = now
		}
	default:
		res.Notified = true
		c.lastNotify = now
		if c.elapsed(c.lastLog, now) {
			res.Logged = true
			c.lastLog = now
		}
	}

	metrics.AlertDecisionsTotal.WithLabelValues("notify").Inc()
	if res.Logged {
		c.logged++
		metrics.AlertDecisionsTotal.WithLabelValues("log").Inc()
	} else {
		metrics.AlertDecisionsTotal.WithLabelValues("log_suppressed").Inc()
	}
	c.notified++

	d := models.NewDecision(c.sessionID, cls, now)
	res.Decision = &d
	return res
}

// gate reports whether a classification may open the alert path
func (c *Controller) gate(cls models.Classification) bool {
	if !cls.Label.IsFault() {
		return false
	}
	if c.cfg.Policy == PolicySharedCooldown {
		return true
	}
	return cls.Confidence >= c.cfg.MinConfidence
}

// elapsed reports whether the cooldown has strictly passed since t. A zero
// t means never.
func (c *Controller) elapsed(t, now time.Time) bool {
	return t.IsZero() || now.Sub(t) > c.cfg.Cooldown
}

// Snapshot returns the current controller state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		SessionID:   c.sessionID,
		Policy:      c.cfg.Policy,
		Evaluations: c.evaluations,
		GatedIn:     c.gatedIn,
		Notified:    c.notified,
		Logged:      c.logged,
	}
	if c.last != nil {
		last := *c.last
		s.Last = &last
	}
	if !c.lastNotify.IsZero() {
		t := c.lastNotify
		s.LastNotify = &t
	}
	if !c.lastLog.IsZero() {
		t := c.lastLog
		s.LastLog = &t
	}
	return s
}
