// Package classifier defines the window classifier contract and the
// reference implementations the service can run with.
package classifier

import (
	"context"
	"errors"
	"math"
	"time"

	"soundwatch/internal/metrics"
	"soundwatch/internal/models"
)

// Classifier errors
var (
	ErrNotLoaded    = errors.New("classifier not loaded")
	ErrInvalidParam = errors.New("invalid classifier params")
)

// Classifier maps a window of samples to a label and confidence.
//
// Load prepares the classifier from a model reference and a params
// reference. Predict must be pure with respect to its window and must never
// fail: an unloaded classifier or a malformed window yields
// models.ErrorClassification().
type Classifier interface {
	Load(modelRef, paramsRef string) error
	Predict(ctx context.Context, window []float32) models.Classification
}

// validWindow reports whether every sample is finite and the window is non-empty
func validWindow(window []float32) bool {
	if len(window) == 0 {
		return false
	}
	for _, s := range window {
		f := float64(s)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// Timed decorates a Classifier with latency and label metrics
type Timed struct {
	Classifier
}

// NewTimed wraps c
func NewTimed(c Classifier) *Timed {
	return &Timed{Classifier: c}
}

// Predict classifies the window and records metrics
func (t *Timed) Predict(ctx context.Context, window []float32) models.Classification {
	start := time.Now()
	res := t.Classifier.Predict(ctx, window)
	metrics.ClassificationDuration.Observe(time.Since(start).Seconds())
	metrics.ClassificationsTotal.WithLabelValues(res.Label.String()).Inc()
	metrics.ClassificationConfidence.WithLabelValues(res.Label.String()).Observe(res.Confidence)
	return res
}
