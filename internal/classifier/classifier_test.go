package classifier

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"soundwatch/internal/models"
)

func constant(v float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestEnergy_UnloadedReturnsError(t *testing.T) {
	e := NewEnergy()
	res := e.Predict(context.Background(), constant(0.5, 16))
	require.Equal(t, models.ErrorClassification(), res)
}

func TestEnergy_Labels(t *testing.T) {
	e := NewEnergy()
	require.NoError(t, e.Load("", ""))

	ctx := context.Background()
	require.Equal(t, models.LabelAmbient, e.Predict(ctx, constant(0.001, 64)).Label)
	require.Equal(t, models.LabelNormal, e.Predict(ctx, constant(0.1, 64)).Label)

	fault := e.Predict(ctx, constant(0.6, 64))
	require.Equal(t, models.LabelFault, fault.Label)
	require.InDelta(t, 0.875, fault.Confidence, 1e-6)

	// pure: same window, same answer
	require.Equal(t, fault, e.Predict(ctx, constant(0.6, 64)))
}

func TestEnergy_MalformedWindow(t *testing.T) {
	e := NewEnergy()
	require.NoError(t, e.Load("", ""))

	ctx := context.Background()
	require.Equal(t, models.LabelError, e.Predict(ctx, nil).Label)
	require.Equal(t, models.LabelError, e.Predict(ctx, []float32{0.1, float32(math.NaN())}).Label)
}

func TestEnergy_LoadParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "energy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ambient_rms: 0.1\nfault_rms: 0.2\n"), 0o600))

	e := NewEnergy()
	require.NoError(t, e.Load("", path))
	require.Equal(t, models.LabelFault, e.Predict(context.Background(), constant(0.25, 8)).Label)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("ambient_rms: 0.5\nfault_rms: 0.2\n"), 0o600))
	require.ErrorIs(t, NewEnergy().Load("", bad), ErrInvalidParam)
}

func TestRemote_Probabilities(t *testing.T) {
	var got predictRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"probabilities":[0.05,0.03,0.92]}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: pump-v2\nlabels: [AMBIENTE, FUNCIONAL, DISFUNCIONAL]\n"), 0o600))

	r := NewRemote(16000, 0)
	require.NoError(t, r.Load(srv.URL, path))

	res := r.Predict(context.Background(), constant(0.2, 32))
	require.Equal(t, models.LabelFault, res.Label)
	require.InDelta(t, 0.92, res.Confidence, 1e-9)
	require.Equal(t, "pump-v2", got.Model)
	require.Equal(t, 16000, got.SampleRate)
	require.Len(t, got.Samples, 32)
}

func TestRemote_LabelResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"label":"normal","confidence":0.97}`))
	}))
	defer srv.Close()

	r := NewRemote(16000, 0)
	require.NoError(t, r.Load(srv.URL, ""))

	res := r.Predict(context.Background(), constant(0.2, 4))
	require.Equal(t, models.NewClassification(models.LabelNormal, 0.97), res)
}

func TestRemote_FailuresAreInert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewRemote(16000, 0)
	require.Equal(t, models.ErrorClassification(), r.Predict(context.Background(), constant(0.2, 4)))

	require.NoError(t, r.Load(srv.URL, ""))
	require.Equal(t, models.ErrorClassification(), r.Predict(context.Background(), constant(0.2, 4)))
}

func TestRemote_LoadRejectsBadEndpoint(t *testing.T) {
	require.ErrorIs(t, NewRemote(16000, 0).Load("model.h5", ""), ErrInvalidParam)
}
