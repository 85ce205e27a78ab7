package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"soundwatch/internal/alerts"
	"soundwatch/internal/classifier"
	"soundwatch/internal/config"
	"soundwatch/internal/kafka"
	"soundwatch/internal/logger"
	"soundwatch/internal/notify"
	"soundwatch/internal/session"
	"soundwatch/internal/source"
	"soundwatch/internal/storage"
	"soundwatch/internal/worker"
)

// Processor is the high-level coordinator: it owns the dispatch lanes, the
// backends, the alert controller and at most one running session.
type Processor struct {
	cfg *config.Config

	dispatch   *worker.Group
	classifier classifier.Classifier
	notifiers  *notify.Fanout
	failures   *storage.Fanout
	controller *alerts.Controller
	ingest     *source.Channel
	mqtt       *notify.MQTT
	producer   *kafka.Producer
	httpServer *http.Server
	handler    http.Handler

	initOnce sync.Once
	initErr  error

	mu      sync.Mutex
	baseCtx context.Context
	current *session.Session
	last    *session.Session

	stopWait time.Duration

	wg sync.WaitGroup
}

// defaultStopWait bounds how long StopSession waits for the pipeline to wind
// down
const defaultStopWait = 5 * time.Second

// New constructs a Processor with given config.
func New(cfg *config.Config) *Processor {
	return &Processor{
		cfg:      cfg,
		baseCtx:  context.Background(),
		stopWait: defaultStopWait,
	}
}

// Init builds the dispatch lanes, backends, controller and HTTP handler. Run calls it;
// tests call it directly to drive Handler without a listener.
func (p *Processor) Init(ctx context.Context) error {
	p.initOnce.Do(func() {
		p.initErr = p.init(ctx)
	})
	return p.initErr
}

func (p *Processor) init(ctx context.Context) error {
	log := logger.WithComponent("processor")

	policy, err := alerts.ParsePolicy(p.cfg.Monitor.Policy)
	if err != nil {
		return err
	}

	cls, err := buildClassifier(p.cfg)
	if err != nil {
		return fmt.Errorf("failed to load classifier: %w", err)
	}
	p.classifier = classifier.NewTimed(cls)

	p.dispatch = worker.NewGroup(worker.Config{
		Name:      "dispatch",
		Workers:   p.cfg.Dispatch.Workers,
		QueueSize: p.cfg.Dispatch.QueueSize,
	})

	notifiers, err := p.buildNotifiers(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize notifiers: %w", err)
	}
	p.notifiers = notify.NewFanout(p.dispatch, notifiers...)

	sinks, err := p.buildFailureLoggers(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize failure logs: %w", err)
	}
	p.failures = storage.NewFanout(p.dispatch, sinks...)

	p.controller = alerts.NewController(alerts.Config{
		MinConfidence: p.cfg.Monitor.MinConfidence,
		Cooldown:      p.cfg.Monitor.Cooldown,
		Policy:        policy,
	}, p.classifier, p.notifiers, p.failures)

	if p.cfg.Source.Kind == config.SourceHTTP {
		p.ingest = source.NewChannel(p.cfg.Audio.SampleRate, p.cfg.Monitor.FrameQueue)
	}

	p.handler = p.router()

	log.Info().
		Str("policy", string(policy)).
		Float64("min_confidence", p.cfg.Monitor.MinConfidence).
		Dur("cooldown", p.cfg.Monitor.Cooldown).
		Int("window", p.cfg.Audio.Window()).
		Int("hop", p.cfg.Audio.Hop()).
		Int("notifiers", p.notifiers.Len()).
		Int("failure_logs", p.failures.Len()).
		Msg("processor initialized")
	return nil
}

// Handler returns the HTTP API. Init must have succeeded.
func (p *Processor) Handler() http.Handler { return p.handler }

// Run starts background goroutines and blocks until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	log := logger.WithComponent("processor")
	log.Info().Msg("processor starting")

	if err := p.Init(ctx); err != nil {
		log.Error().Err(err).Msg("failed to initialize processor")
		return err
	}

	p.mu.Lock()
	p.baseCtx = ctx
	p.mu.Unlock()

	p.httpServer = &http.Server{
		Addr:         p.cfg.Server.Address,
		Handler:      p.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		log.Info().Str("addr", p.cfg.Server.Address).Msg("starting HTTP server")
		if err := p.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.reportStats(ctx)
	}()

	if p.cfg.Monitor.AutoStart {
		if _, err := p.StartSession(); err != nil {
			log.Error().Err(err).Msg("failed to auto-start session")
		}
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	return p.Shutdown()
}

// Shutdown stops the session, the HTTP server and the dispatch lanes, then closes the
// backends. Queued dispatches get Dispatch.ShutdownTimeout to finish.
func (p *Processor) Shutdown() error {
	log := logger.WithComponent("processor")
	log.Info().Msg("initiating graceful shutdown")

	// 1. Stop acquisition
	if _, err := p.StopSession(); err != nil && !errors.Is(err, session.ErrNoSession) {
		log.Error().Err(err).Msg("session stop error")
	}

	// 2. Stop accepting new HTTP requests
	if p.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), p.cfg.Server.ShutdownTimeout)
		defer cancel()

		log.Info().Msg("stopping HTTP server")
		if err := p.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}

	// 3. Drain dispatches
	if p.dispatch != nil {
		poolCtx, cancel := context.WithTimeout(context.Background(), p.cfg.Dispatch.ShutdownTimeout)
		defer cancel()
		if err := p.dispatch.Stop(poolCtx); err != nil {
			log.Warn().Err(err).Msg("dispatch shutdown timeout - abandoning pending backend calls")
		}
	}

	// 4. Close backends
	if p.failures != nil {
		if err := p.failures.Close(); err != nil {
			log.Error().Err(err).Msg("failure log close error")
		}
	}
	if p.mqtt != nil {
		p.mqtt.Close()
	}

	// 5. Wait for all goroutines
	p.wg.Wait()

	log.Info().Msg("processor stopped gracefully")
	return nil
}

// reportStats periodically logs statistics
func (p *Processor) reportStats(ctx context.Context) {
	log := logger.WithComponent("processor")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := p.Stats()
			ev := log.Info().
				Uint64("dispatch_submitted", stats.Dispatch.Submitted).
				Uint64("dispatch_completed", stats.Dispatch.Completed).
				Uint64("dispatch_dropped", stats.Dispatch.Dropped).
				Int("dispatch_queued", stats.Dispatch.Queued)
			if stats.Producer != nil {
				ev = ev.Uint64("producer_sent", stats.Producer.MessagesSent).
					Uint64("producer_failed", stats.Producer.MessagesFailed)
			}
			if stats.Session != nil {
				ev = ev.Str("session_id", stats.Session.ID).
					Uint64("windows", stats.Session.Windows).
					Uint64("frames_dropped", stats.Session.FramesDropped)
			}
			ev.Msg("stats")
		}
	}
}

// Stats is the body of GET /stats
type Stats struct {
	Dispatch  worker.Stats            `json:"dispatch"`
	Lanes     map[string]worker.Stats `json:"lanes"`
	Producer  *kafka.ProducerStats    `json:"producer,omitempty"`
	Session   *session.Status         `json:"session,omitempty"`
	Notifiers int                     `json:"notifiers"`
	Sinks     int                     `json:"failure_logs"`
}

// Stats returns current statistics
func (p *Processor) Stats() Stats {
	s := Stats{
		Dispatch:  p.dispatch.Stats(),
		Lanes:     p.dispatch.LaneStats(),
		Notifiers: p.notifiers.Len(),
		Sinks:     p.failures.Len(),
	}
	if p.producer != nil {
		ps := p.producer.Stats()
		s.Producer = &ps
	}
	if st, err := p.CurrentSession(); err == nil {
		s.Session = &st
	}
	return s
}
