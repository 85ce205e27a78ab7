package classifier

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"soundwatch/internal/models"
)

// EnergyParams are the thresholds of the energy classifier
type EnergyParams struct {
	// RMS below this is background
	AmbientRMS float64 `yaml:"ambient_rms"`
	// RMS at or above this is a fault
	FaultRMS float64 `yaml:"fault_rms"`
}

// DefaultEnergyParams suits a normalized [-1,1] microphone signal
func DefaultEnergyParams() EnergyParams {
	return EnergyParams{AmbientRMS: 0.01, FaultRMS: 0.15}
}

// Energy classifies windows by their RMS level. It stands in for a trained
// model in demos and tests; its output depends only on the window.
type Energy struct {
	mu     sync.RWMutex
	params EnergyParams
	loaded bool
}

// NewEnergy returns an unloaded energy classifier
func NewEnergy() *Energy {
	return &Energy{}
}

// Load reads thresholds from the YAML file at paramsRef. An empty paramsRef
// loads DefaultEnergyParams. modelRef is ignored.
func (e *Energy) Load(modelRef, paramsRef string) error {
	params := DefaultEnergyParams()

	if paramsRef != "" {
		data, err := os.ReadFile(paramsRef)
		if err != nil {
			return fmt.Errorf("read energy params: %w", err)
		}
		if err := yaml.Unmarshal(data, &params); err != nil {
			return fmt.Errorf("parse energy params: %w", err)
		}
	}

	if params.AmbientRMS < 0 || params.FaultRMS <= params.AmbientRMS {
		return fmt.Errorf("%w: need 0 <= ambient_rms < fault_rms, got %v and %v",
			ErrInvalidParam, params.AmbientRMS, params.FaultRMS)
	}

	e.mu.Lock()
	e.params = params
	e.loaded = true
	e.mu.Unlock()
	return nil
}

// Predict returns AMBIENT, NORMAL or FAULT according to the window RMS.
// Confidence grows with the distance from the nearest threshold.
func (e *Energy) Predict(_ context.Context, window []float32) models.Classification {
	e.mu.RLock()
	params, loaded := e.params, e.loaded
	e.mu.RUnlock()

	if !loaded || !validWindow(window) {
		return models.ErrorClassification()
	}

	rms := RMS(window)

	switch {
	case rms >= params.FaultRMS:
		// 0.5 at the threshold, approaching 1 as the level grows
		return models.NewClassification(models.LabelFault, 1-params.FaultRMS/(2*rms))
	case rms < params.AmbientRMS:
		return models.NewClassification(models.LabelAmbient, 1-rms/(2*params.AmbientRMS))
	default:
		mid := (params.AmbientRMS + params.FaultRMS) / 2
		half := (params.FaultRMS - params.AmbientRMS) / 2
		return models.NewClassification(models.LabelNormal, 1-math.Abs(rms-mid)/(2*half))
	}
}

// RMS returns the root mean square of the window
func RMS(window []float32) float64 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, s := range window {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(window)))
}
