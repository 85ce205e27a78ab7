package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"soundwatch/internal/models"
	"soundwatch/internal/worker"
)

// mockSink counts writes and can fail or stall
type mockSink struct {
	name       string
	delay      time.Duration
	shouldFail bool
	written    atomic.Uint64
	closed     atomic.Bool
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) LogFailure(context.Context, models.Decision) error {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if m.shouldFail {
		return errors.New("disk full")
	}
	m.written.Add(1)
	return nil
}

func (m *mockSink) Close() error {
	m.closed.Store(true)
	return nil
}

type mockPublisher struct {
	envelopes []*models.Envelope
}

func (p *mockPublisher) Publish(_ context.Context, e *models.Envelope) error {
	p.envelopes = append(p.envelopes, e)
	return nil
}

func (p *mockPublisher) Close() error { return nil }

func testDecision() models.Decision {
	return models.NewDecision("session-1",
		models.NewClassification(models.LabelFault, 0.98),
		time.Date(2025, 12, 4, 15, 30, 0, 0, time.Local))
}

func newLanes(t *testing.T, workers, queue int) *worker.Group {
	t.Helper()
	return worker.NewGroup(worker.Config{Name: t.Name(), Workers: workers, QueueSize: queue})
}

func drain(t *testing.T, lanes *worker.Group) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, lanes.Stop(ctx))
}

func TestFanout_SecondSinkFails(t *testing.T) {
	lanes := newLanes(t, 1, 16)

	a := &mockSink{name: "a"}
	b := &mockSink{name: "b", shouldFail: true}
	c := &mockSink{name: "c"}
	fanout := NewFanout(lanes, a, b, c)
	require.Equal(t, 3, fanout.Len())

	require.NoError(t, fanout.LogFailure(context.Background(), testDecision()))
	drain(t, lanes)

	require.Equal(t, uint64(2), a.written.Load()+b.written.Load()+c.written.Load())
	require.Equal(t, uint64(1), a.written.Load())
	require.Equal(t, uint64(1), c.written.Load())

	require.NoError(t, fanout.Close())
	require.True(t, a.closed.Load())
	require.True(t, c.closed.Load())
}

func TestFanout_DoesNotWaitForSlowSink(t *testing.T) {
	lanes := newLanes(t, 1, 16)

	slow := &mockSink{name: "slow", delay: 5 * time.Second}
	fast := &mockSink{name: "fast"}
	fanout := NewFanout(lanes, slow, fast)

	start := time.Now()
	require.NoError(t, fanout.LogFailure(context.Background(), testDecision()))
	require.Less(t, time.Since(start), 500*time.Millisecond)

	require.Eventually(t, func() bool { return fast.written.Load() == 1 }, time.Second, 10*time.Millisecond)
	drain(t, lanes)
	require.Equal(t, uint64(1), slow.written.Load())
}

func TestFanout_StalledNotifierLaneDoesNotDelayWrites(t *testing.T) {
	lanes := newLanes(t, 4, 64)

	// a notifier that hangs on every call, flooded past its queue
	release := make(chan struct{})
	stalled := lanes.Lane("notify.telegram")
	var dropped int
	for i := 0; i < 70; i++ {
		if err := stalled.Submit(func(ctx context.Context) { <-release }); err != nil {
			require.ErrorIs(t, err, worker.ErrPoolFull)
			dropped++
		}
	}
	require.Positive(t, dropped)

	sink := &mockSink{name: "csv"}
	require.NoError(t, NewFanout(lanes, sink).LogFailure(context.Background(), testDecision()))
	require.Eventually(t, func() bool { return sink.written.Load() == 1 }, 200*time.Millisecond, 5*time.Millisecond)
	require.Zero(t, lanes.LaneStats()["log.csv"].Dropped)

	close(release)
	drain(t, lanes)
}

func TestFanout_ClosedLanesDrop(t *testing.T) {
	lanes := newLanes(t, 1, 16)
	drain(t, lanes)

	sink := &mockSink{name: "late"}
	require.NoError(t, NewFanout(lanes, sink).LogFailure(context.Background(), testDecision()))
	require.Zero(t, sink.written.Load())
	require.Equal(t, uint64(1), lanes.Stats().Dropped)
}

func TestCSV_HeaderOnceAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "failures.csv")
	sink := NewCSV(path)

	ctx := context.Background()
	require.NoError(t, sink.LogFailure(ctx, testDecision()))
	require.NoError(t, sink.LogFailure(ctx, testDecision()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Equal(t, []string{
		"date;time;status;confidence",
		"2025-12-04;15:30:00;FAULT;98.00%",
		"2025-12-04;15:30:00;FAULT;98.00%",
	}, lines)
}

func TestSQLite_InsertAndRecent(t *testing.T) {
	ctx := context.Background()
	sink, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "failures.db"))
	require.NoError(t, err)
	defer sink.Close()

	first := testDecision()
	second := models.NewDecision("session-2",
		models.NewClassification(models.LabelFault, 0.875),
		time.Date(2025, 12, 5, 9, 1, 2, 0, time.Local))

	require.NoError(t, sink.LogFailure(ctx, first))
	require.NoError(t, sink.LogFailure(ctx, second))

	rows, err := sink.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, second.ID, rows[0].EventID)
	require.Equal(t, "session-2", rows[0].SessionID)
	require.Equal(t, "2025-12-05", rows[0].Date)
	require.Equal(t, "09:01:02", rows[0].Time)
	require.Equal(t, "FAULT", rows[0].Status)
	require.Equal(t, 87.5, rows[0].ConfidencePct)

	require.Equal(t, first.ID, rows[1].EventID)
}

func TestKafkaSink_Envelope(t *testing.T) {
	pub := &mockPublisher{}
	sink := NewKafka(pub, "edge-1")

	d := testDecision()
	require.NoError(t, sink.LogFailure(context.Background(), d))

	require.Len(t, pub.envelopes, 1)
	env := pub.envelopes[0]
	require.Equal(t, d, env.Decision)
	require.Equal(t, "edge-1", env.Node)
	require.Equal(t, "session-1", env.PartitionKey)
	require.Equal(t, 98.0, env.ConfidencePc)
}
