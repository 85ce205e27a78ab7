package session

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"soundwatch/internal/alerts"
	"soundwatch/internal/classifier"
	"soundwatch/internal/config"
	"soundwatch/internal/models"
	"soundwatch/internal/source"
)

// sink counts decisions on both paths
type sink struct {
	notified atomic.Uint64
	logged   atomic.Uint64
}

func (s *sink) Name() string { return "sink" }

func (s *sink) Notify(context.Context, models.Decision) error {
	s.notified.Add(1)
	return nil
}

func (s *sink) LogFailure(context.Context, models.Decision) error {
	s.logged.Add(1)
	return nil
}

func (s *sink) Close() error { return nil }

func newController(t *testing.T, cls classifier.Classifier) (*alerts.Controller, *sink) {
	t.Helper()
	out := &sink{}
	return alerts.NewController(alerts.Config{MinConfidence: 0.85, Cooldown: time.Minute}, cls, out, out), out
}

func energy(t *testing.T) classifier.Classifier {
	t.Helper()
	e := classifier.NewEnergy()
	require.NoError(t, e.Load("", ""))
	return e
}

func level(v float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestSession_RawStreamEndToEnd(t *testing.T) {
	var stream bytes.Buffer
	require.NoError(t, source.EncodeRaw(&stream, level(0.05, 400))) // normal
	require.NoError(t, source.EncodeRaw(&stream, level(0.9, 400)))  // fault
	require.NoError(t, source.EncodeRaw(&stream, level(0.05, 50)))  // residual

	ctrl, out := newController(t, energy(t))
	s, err := New(Config{Window: 100, Hop: 100, FrameQueue: 1024}, source.NewRawReader(&stream, 1000, 10), ctrl)
	require.NoError(t, err)

	require.NoError(t, s.Run(context.Background()))
	<-s.Done()

	st := s.Status()
	require.Equal(t, StateSourceClosed, st.State)
	require.Equal(t, uint64(850), st.Samples)
	require.Equal(t, uint64(8), st.Windows)
	require.Zero(t, st.FramesDropped)
	require.Equal(t, uint64(4), st.Controller.Notified)

	require.Equal(t, uint64(4), out.notified.Load())
	require.Equal(t, uint64(1), out.logged.Load())
}

func TestSession_StopAndRestart(t *testing.T) {
	ctrl, out := newController(t, energy(t))
	ingest := source.NewChannel(1000, 16)

	first, err := New(Config{Window: 10, FrameQueue: 16}, ingest, ctrl)
	require.NoError(t, err)
	go func() { _ = first.Run(context.Background()) }()

	require.NoError(t, ingest.Push(level(0.9, 10)))
	require.Eventually(t, func() bool { return out.logged.Load() == 1 }, time.Second, 5*time.Millisecond)

	// partial window is discarded on stop
	require.NoError(t, ingest.Push(level(0.9, 5)))
	require.Eventually(t, func() bool { return first.Status().Samples == 15 }, time.Second, 5*time.Millisecond)
	first.Stop()
	<-first.Done()
	require.Equal(t, StateStopped, first.Status().State)
	require.NoError(t, first.Err())

	second, err := New(Config{Window: 10, FrameQueue: 16}, ingest, ctrl)
	require.NoError(t, err)
	require.NotEqual(t, first.ID(), second.ID())
	go func() { _ = second.Run(context.Background()) }()
	defer func() {
		second.Stop()
		<-second.Done()
	}()

	// a new session logs again at once despite the one minute cooldown
	require.NoError(t, ingest.Push(level(0.9, 5)))
	require.NoError(t, ingest.Push(level(0.9, 5)))
	require.Eventually(t, func() bool { return out.logged.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, uint64(1), second.Status().Windows)
}

// failingSource emits once then fails
type failingSource struct{}

func (failingSource) Name() string { return "broken" }
func (failingSource) SampleRate() int { return 1000 }
func (failingSource) Run(_ context.Context, emit func([]float32)) error {
	emit(level(0.1, 3))
	return errors.New("device unplugged")
}

func TestSession_AcquisitionError(t *testing.T) {
	ctrl, _ := newController(t, energy(t))
	s, err := New(Config{Window: 10}, failingSource{}, ctrl)
	require.NoError(t, err)

	err = s.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "device unplugged")

	st := s.Status()
	require.Equal(t, StateFailed, st.State)
	require.Contains(t, st.Error, "device unplugged")
}

// blockingClassifier holds every Predict until released
type blockingClassifier struct {
	release chan struct{}
}

func (b *blockingClassifier) Load(string, string) error { return nil }

func (b *blockingClassifier) Predict(ctx context.Context, _ []float32) models.Classification {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return models.NewClassification(models.LabelNormal, 1)
}

// burstSource emits n batches back to back then ends
type burstSource struct {
	n int
}

func (b *burstSource) Name() string { return "burst" }
func (b *burstSource) SampleRate() int { return 1000 }
func (b *burstSource) Run(_ context.Context, emit func([]float32)) error {
	for i := 0; i < b.n; i++ {
		emit([]float32{0.1})
	}
	return nil
}

func TestSession_SlowClassifierDropsFrames(t *testing.T) {
	cls := &blockingClassifier{release: make(chan struct{})}
	ctrl, _ := newController(t, cls)

	s, err := New(Config{Window: 1, FrameQueue: 1}, &burstSource{n: 10}, ctrl)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool { return s.Status().FramesReceived == 10 }, time.Second, 5*time.Millisecond)
	close(cls.release)
	require.NoError(t, <-errc)

	st := s.Status()
	require.GreaterOrEqual(t, st.FramesDropped, uint64(8))
	require.Equal(t, uint64(10), st.FramesDropped+st.Windows)
}

// stallingClassifier reports FAULT and holds its first call until the
// context ends
type stallingClassifier struct {
	calls   atomic.Uint64
	entered chan struct{}
}

func (c *stallingClassifier) Load(string, string) error { return nil }

func (c *stallingClassifier) Predict(ctx context.Context, _ []float32) models.Classification {
	if c.calls.Add(1) == 1 {
		close(c.entered)
		<-ctx.Done()
	}
	return models.NewClassification(models.LabelFault, 0.99)
}

// heldSource emits one batch then waits to be stopped
type heldSource struct {
	batch []float32
}

func (h *heldSource) Name() string { return "held" }
func (h *heldSource) SampleRate() int { return 1000 }
func (h *heldSource) Run(ctx context.Context, emit func([]float32)) error {
	emit(h.batch)
	<-ctx.Done()
	return nil
}

func TestSession_StopMidBatchSkipsRemainingWindows(t *testing.T) {
	cls := &stallingClassifier{entered: make(chan struct{})}
	ctrl, out := newController(t, cls)

	// one batch, five windows
	s, err := New(Config{Window: 10, FrameQueue: 4}, &heldSource{batch: level(0.9, 50)}, ctrl)
	require.NoError(t, err)
	go func() { _ = s.Run(context.Background()) }()

	<-cls.entered
	s.Stop()
	<-s.Done()

	st := s.Status()
	require.Equal(t, StateStopped, st.State)
	require.Equal(t, uint64(1), st.Windows)
	require.Equal(t, uint64(1), cls.calls.Load())
	require.Zero(t, st.Controller.Evaluations)
	require.Zero(t, out.notified.Load())
	require.Zero(t, out.logged.Load())
}

func TestNew_RejectsBadWindow(t *testing.T) {
	ctrl, _ := newController(t, energy(t))
	_, err := New(Config{Window: 10, Hop: 20}, &burstSource{}, ctrl)
	require.Error(t, err)
}

func TestNew_FromConfig(t *testing.T) {
	cfg := config.Default()
	src, err := source.New(cfg.Source, cfg.Audio.SampleRate, nil)
	require.NoError(t, err)

	ctrl, _ := newController(t, energy(t))
	s, err := New(Config{Window: cfg.Audio.Window(), Hop: cfg.Audio.Hop()}, src, ctrl)
	require.NoError(t, err)
	require.Equal(t, StatePending, s.Status().State)
}
