package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"soundwatch/internal/models"
)

// CSVHeader is written once when the file is created
var CSVHeader = []string{"date", "time", "status", "confidence"}

// CSV appends failure records to a semicolon separated file
type CSV struct {
	mu   sync.Mutex
	path string
}

// NewCSV creates the sink; the file and its directory are created on the
// first write
func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

// Name implements FailureLogger
func (c *CSV) Name() string { return "csv" }

// Path returns the file location
func (c *CSV) Path() string { return c.path }

// LogFailure implements FailureLogger
func (c *CSV) LogFailure(_ context.Context, d models.Decision) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv log: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat csv log: %w", err)
	}

	w := csv.NewWriter(f)
	w.Comma = ';'
	if info.Size() == 0 {
		if err := w.Write(CSVHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	if err := w.Write(CSVRow(d)); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Close implements FailureLogger
func (c *CSV) Close() error { return nil }

// CSVRow formats a decision as date, time, status and percentage
func CSVRow(d models.Decision) []string {
	return []string{
		d.Date(),
		d.TimeOfDay(),
		d.Status.String(),
		fmt.Sprintf("%.2f%%", d.Confidence*100),
	}
}
