package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"soundwatch/internal/session"
	"soundwatch/internal/source"
)

// ErrIngestDisabled is returned by sample sinks when the configured source
// does not accept pushed samples
var ErrIngestDisabled = errors.New("sample ingest is disabled for this source")

// SampleSink accepts pushed sample batches
type SampleSink interface {
	PushSamples(samples []float32) error
}

// SamplesHandler handles sample ingestion via HTTP
type SamplesHandler struct {
	sink        SampleSink
	maxBodySize int64
}

// SamplesConfig holds configuration for the samples handler
type SamplesConfig struct {
	Sink        SampleSink
	MaxBodySize int64
}

// SamplesRequest is the JSON payload: {"samples": [...]}
type SamplesRequest struct {
	Samples []float32 `json:"samples"`
}

// SamplesResponse is returned on success
type SamplesResponse struct {
	Success  bool `json:"success"`
	Accepted int  `json:"accepted"`
}

// NewSamplesHandler creates a new samples handler
func NewSamplesHandler(cfg SamplesConfig) *SamplesHandler {
	maxBodySize := cfg.MaxBodySize
	if maxBodySize == 0 {
		maxBodySize = 10 * 1024 * 1024 // 10MB default
	}
	return &SamplesHandler{sink: cfg.Sink, maxBodySize: maxBodySize}
}

// Register mounts the ingest route on r
func (h *SamplesHandler) Register(r *mux.Router) {
	r.Handle("/api/v1/samples", h).Methods(http.MethodPost)
}

// ServeHTTP handles the samples request
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		writeError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	samples, err := parseSamples(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.sink.PushSamples(samples)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, SamplesResponse{Success: true, Accepted: len(samples)})
	case errors.Is(err, source.ErrQueueFull):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "ingest queue full, try again later")
	case errors.Is(err, session.ErrNoSession), errors.Is(err, source.ErrSourceClosed):
		writeError(w, http.StatusServiceUnavailable, "no running session")
	case errors.Is(err, ErrIngestDisabled):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// parseSamples accepts {"samples": [...]} or a bare array
func parseSamples(body []byte) ([]float32, error) {
	var samples []float32

	var req SamplesRequest
	if err := json.Unmarshal(body, &req); err == nil && req.Samples != nil {
		samples = req.Samples
	} else if err := json.Unmarshal(body, &samples); err != nil {
		return nil, errors.New("invalid JSON format: expected {\"samples\": [...]} or an array of numbers")
	}

	if len(samples) == 0 {
		return nil, errors.New("no samples provided")
	}
	for i, s := range samples {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return nil, fmt.Errorf("sample %d is not finite", i)
		}
	}
	return samples, nil
}
