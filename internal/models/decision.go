package models

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// Decision is the value handed to notification and log backends when the
// alert controller decides to act on a classification
type Decision struct {
	// Unique identifier for this decision
	ID string `json:"id"`

	// Monitoring session that produced the decision
	SessionID string `json:"session_id"`

	// Label that triggered the decision
	Status Label `json:"status"`

	// Classifier confidence in [0,1]
	Confidence float64 `json:"confidence"`

	// Wall clock time stamped by the controller
	Timestamp time.Time `json:"timestamp"`
}

// Validation errors
var (
	ErrEmptyDecisionID = errors.New("decision ID cannot be empty")
	ErrInvalidStatus   = errors.New("invalid status label")
	ErrConfidenceRange = errors.New("confidence must be within [0,1]")
	ErrZeroTimestamp   = errors.New("timestamp cannot be zero")
)

// NewDecision stamps a classification with an ID and time
func NewDecision(sessionID string, c Classification, ts time.Time) Decision {
	return Decision{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Status:     c.Label,
		Confidence: c.Confidence,
		Timestamp:  ts,
	}
}

// Validate checks that the decision is well formed
func (d Decision) Validate() error {
	if d.ID == "" {
		return ErrEmptyDecisionID
	}

	if !d.Status.IsValid() {
		return ErrInvalidStatus
	}

	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return ErrConfidenceRange
	}

	if d.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}

	return nil
}

// Date returns the local calendar date as YYYY-MM-DD
func (d Decision) Date() string {
	return d.Timestamp.Format("2006-01-02")
}

// TimeOfDay returns the local time as HH:MM:SS
func (d Decision) TimeOfDay() string {
	return d.Timestamp.Format("15:04:05")
}

// ConfidencePercent returns the confidence as a percentage rounded to 2 decimals
func (d Decision) ConfidencePercent() float64 {
	return math.Round(d.Confidence*100*100) / 100
}
