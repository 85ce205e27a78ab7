package processor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"soundwatch/internal/alerts"
	"soundwatch/internal/config"
	"soundwatch/internal/models"
	"soundwatch/internal/session"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Audio.SampleRate = 1000
	cfg.Audio.WindowSize = 10
	cfg.Source.Kind = config.SourceHTTP
	cfg.Monitor.Cooldown = time.Minute
	cfg.Storage.CSV.Path = filepath.Join(dir, "failures.csv")
	cfg.Storage.SQLite = config.FileSinkConfig{Enabled: true, Path: filepath.Join(dir, "failures.db")}
	cfg.Server.Address = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Dispatch.ShutdownTimeout = 5 * time.Second
	return cfg
}

func request(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func loud(n int) string {
	return `{"samples":[` + strings.TrimSuffix(strings.Repeat("0.9,", n), ",") + `]}`
}

func TestProcessorRun(t *testing.T) {
	p := New(testConfig(t))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
}

func TestProcessor_HTTPSessionFlow(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg)
	require.NoError(t, p.Init(context.Background()))
	h := p.Handler()

	require.Equal(t, http.StatusOK, request(h, http.MethodGet, "/health", "").Code)

	// no session yet
	require.Equal(t, http.StatusServiceUnavailable, request(h, http.MethodPost, "/api/v1/samples", loud(10)).Code)

	require.Equal(t, http.StatusCreated, request(h, http.MethodPost, "/api/v1/sessions", "").Code)
	require.Equal(t, http.StatusConflict, request(h, http.MethodPost, "/api/v1/sessions", "").Code)

	// two fault windows: two notifications, one failure record
	require.Equal(t, http.StatusAccepted, request(h, http.MethodPost, "/api/v1/samples", loud(20)).Code)

	require.Eventually(t, func() bool {
		st, err := p.CurrentSession()
		return err == nil && st.Windows == 2
	}, 2*time.Second, 10*time.Millisecond)

	rec := request(h, http.MethodDelete, "/api/v1/sessions/current", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st session.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.Equal(t, session.StateStopped, st.State)
	require.Equal(t, uint64(2), st.Controller.Notified)
	require.Equal(t, uint64(1), st.Controller.Logged)

	rec = request(h, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, 1, stats.Notifiers)
	require.Equal(t, 2, stats.Sinks)

	require.NoError(t, p.Shutdown())

	data, err := os.ReadFile(cfg.Storage.CSV.Path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasSuffix(lines[1], ";FAULT;91.67%"), lines[1])
}

func TestProcessor_IngestDisabledForOtherSources(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source.Kind = config.SourceSynth
	cfg.Source.Realtime = true
	p := New(cfg)
	require.NoError(t, p.Init(context.Background()))

	require.Equal(t, http.StatusConflict, request(p.Handler(), http.MethodPost, "/api/v1/samples", loud(1)).Code)
	require.NoError(t, p.Shutdown())
}

func TestProcessor_StopWithoutSession(t *testing.T) {
	p := New(testConfig(t))
	require.NoError(t, p.Init(context.Background()))

	_, err := p.StopSession()
	require.ErrorIs(t, err, session.ErrNoSession)
	_, err = p.CurrentSession()
	require.ErrorIs(t, err, session.ErrNoSession)

	require.NoError(t, p.Shutdown())
}

func TestProcessor_BadClassifierParams(t *testing.T) {
	cfg := testConfig(t)
	cfg.Classifier.ParamsRef = filepath.Join(t.TempDir(), "missing.yaml")
	require.Error(t, New(cfg).Init(context.Background()))
}

// stubbornClassifier ignores cancellation and answers FAULT once released
type stubbornClassifier struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (c *stubbornClassifier) Load(string, string) error { return nil }

func (c *stubbornClassifier) Predict(context.Context, []float32) models.Classification {
	c.once.Do(func() { close(c.entered) })
	<-c.release
	return models.NewClassification(models.LabelFault, 0.99)
}

// countingSink counts decisions on both paths
type countingSink struct {
	notified atomic.Uint64
	logged   atomic.Uint64
}

func (c *countingSink) Name() string { return "counting" }

func (c *countingSink) Notify(context.Context, models.Decision) error {
	c.notified.Add(1)
	return nil
}

func (c *countingSink) LogFailure(context.Context, models.Decision) error {
	c.logged.Add(1)
	return nil
}

func (c *countingSink) Close() error { return nil }

func TestProcessor_SlowStopKeepsSessionCurrent(t *testing.T) {
	p := New(testConfig(t))
	require.NoError(t, p.Init(context.Background()))
	p.stopWait = 50 * time.Millisecond

	cls := &stubbornClassifier{entered: make(chan struct{}), release: make(chan struct{})}
	out := &countingSink{}
	p.controller = alerts.NewController(alerts.Config{MinConfidence: 0.85, Cooldown: time.Minute}, cls, out, out)

	first, err := p.StartSession()
	require.NoError(t, err)

	// three windows in one batch; the first one stalls in the classifier
	samples := make([]float32, 30)
	for i := range samples {
		samples[i] = 0.9
	}
	require.NoError(t, p.PushSamples(samples))
	<-cls.entered

	st, err := p.StopSession()
	require.NoError(t, err)
	require.Equal(t, first.ID, st.ID)

	_, err = p.StartSession()
	require.ErrorIs(t, err, session.ErrSessionRunning)

	close(cls.release)

	var second session.Status
	require.Eventually(t, func() bool {
		second, err = p.StartSession()
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	require.NotEqual(t, first.ID, second.ID)

	// the stalled window finished after stop and was discarded
	require.Zero(t, out.notified.Load())
	require.Zero(t, out.logged.Load())

	_, err = p.StopSession()
	require.NoError(t, err)
	require.NoError(t, p.Shutdown())
}
