package models

import "math"

// Label is the closed set of classes a classifier may report
type Label string

const (
	LabelNormal  Label = "NORMAL"
	LabelAmbient Label = "AMBIENT"
	LabelFault   Label = "FAULT"
	LabelError   Label = "ERROR"
)

// IsValid checks if the label belongs to the known set
func (l Label) IsValid() bool {
	switch l {
	case LabelNormal, LabelAmbient, LabelFault, LabelError:
		return true
	default:
		return false
	}
}

// IsFault reports whether the label may open the alert path
func (l Label) IsFault() bool {
	return l == LabelFault
}

func (l Label) String() string {
	return string(l)
}

// Classification is the output of one Predict call.
// It carries no identity; consumers timestamp it themselves.
type Classification struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

// NewClassification builds a classification with a normalized label and
// confidence clamped to [0,1]. NaN confidence becomes 0.
func NewClassification(label Label, confidence float64) Classification {
	if !label.IsValid() {
		label = LabelError
	}
	return Classification{Label: label, Confidence: ClampConfidence(confidence)}
}

// ErrorClassification is the inert result returned on classifier failure
func ErrorClassification() Classification {
	return Classification{Label: LabelError, Confidence: 0}
}

// ClampConfidence restricts c to [0,1]
func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c), c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
