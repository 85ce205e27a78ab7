package models_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"soundwatch/internal/models"
)

func TestParseLabel(t *testing.T) {
	tests := []struct {
		input string
		want  models.Label
	}{
		{"FAULT", models.LabelFault},
		{"  fault ", models.LabelFault},
		{"DISFUNCIONAL", models.LabelFault},
		{"funcional", models.LabelNormal},
		{"Normal", models.LabelNormal},
		{"AMBIENTE", models.LabelAmbient},
		{"ambient", models.LabelAmbient},
		{"ERROR", models.LabelError},
		{"ERROR_TIMEOUT", models.LabelError},
		{"squeal", models.LabelError},
		{"", models.LabelError},
	}

	for _, tt := range tests {
		if got := models.ParseLabel(tt.input); got != tt.want {
			t.Errorf("ParseLabel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNewClassification(t *testing.T) {
	tests := []struct {
		name      string
		label     models.Label
		conf      float64
		wantLabel models.Label
		wantConf  float64
	}{
		{"in range", models.LabelFault, 0.9, models.LabelFault, 0.9},
		{"above one", models.LabelNormal, 1.7, models.LabelNormal, 1},
		{"negative", models.LabelAmbient, -0.2, models.LabelAmbient, 0},
		{"nan", models.LabelFault, math.NaN(), models.LabelFault, 0},
		{"unknown label", models.Label("HUM"), 0.9, models.LabelError, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := models.NewClassification(tt.label, tt.conf)
			if c.Label != tt.wantLabel {
				t.Errorf("label = %q, want %q", c.Label, tt.wantLabel)
			}
			if c.Confidence != tt.wantConf {
				t.Errorf("confidence = %v, want %v", c.Confidence, tt.wantConf)
			}
		})
	}
}

func TestLabelIsFault(t *testing.T) {
	for _, l := range []models.Label{models.LabelNormal, models.LabelAmbient, models.LabelError} {
		if l.IsFault() {
			t.Errorf("%s must not be a fault", l)
		}
	}
	if !models.LabelFault.IsFault() {
		t.Error("FAULT must be a fault")
	}
}

func TestDecisionFormatting(t *testing.T) {
	ts := time.Date(2025, 3, 7, 9, 4, 5, 0, time.Local)
	d := models.NewDecision("s-1", models.NewClassification(models.LabelFault, 0.98766), ts)

	if d.ID == "" {
		t.Fatal("decision ID not assigned")
	}
	if got := d.Date(); got != "2025-03-07" {
		t.Errorf("Date() = %q", got)
	}
	if got := d.TimeOfDay(); got != "09:04:05" {
		t.Errorf("TimeOfDay() = %q", got)
	}
	if got := d.ConfidencePercent(); got != 98.77 {
		t.Errorf("ConfidencePercent() = %v, want 98.77", got)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	other := models.NewDecision("s-1", models.NewClassification(models.LabelFault, 0.98766), ts)
	if other.ID == d.ID {
		t.Error("decision IDs must be unique")
	}
}

func TestDecisionValidate(t *testing.T) {
	valid := models.NewDecision("s", models.NewClassification(models.LabelFault, 0.9), time.Now())

	tests := []struct {
		name    string
		mutate  func(*models.Decision)
		wantErr error
	}{
		{"empty id", func(d *models.Decision) { d.ID = "" }, models.ErrEmptyDecisionID},
		{"bad status", func(d *models.Decision) { d.Status = "LOUD" }, models.ErrInvalidStatus},
		{"confidence", func(d *models.Decision) { d.Confidence = 1.2 }, models.ErrConfidenceRange},
		{"zero time", func(d *models.Decision) { d.Timestamp = time.Time{} }, models.ErrZeroTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			if err := d.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvelopeJSON(t *testing.T) {
	d := models.NewDecision("s-9", models.NewClassification(models.LabelFault, 0.5), time.Date(2025, 1, 2, 3, 4, 5, 0, time.Local))
	env := models.NewEnvelope(d, "edge-2")

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["partition_key"] != "s-9" {
		t.Errorf("partition_key = %v", got["partition_key"])
	}
	if got["date"] != "2025-01-02" || got["time"] != "03:04:05" {
		t.Errorf("date/time = %v %v", got["date"], got["time"])
	}
	if got["confidence_pct"] != 50.0 {
		t.Errorf("confidence_pct = %v", got["confidence_pct"])
	}
}
