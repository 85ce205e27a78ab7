package storage

import (
	"context"
	"os"

	"soundwatch/internal/models"
)

// Publisher is the part of the Kafka producer the sink needs
type Publisher interface {
	Publish(ctx context.Context, envelope *models.Envelope) error
	Close() error
}

// Kafka streams failure records as JSON envelopes
type Kafka struct {
	publisher Publisher
	node      string
}

// NewKafka wraps a publisher; node defaults to the hostname
func NewKafka(publisher Publisher, node string) *Kafka {
	if node == "" {
		node, _ = os.Hostname()
		if node == "" {
			node = "unknown"
		}
	}
	return &Kafka{publisher: publisher, node: node}
}

// Name implements FailureLogger
func (k *Kafka) Name() string { return "kafka" }

// LogFailure implements FailureLogger
func (k *Kafka) LogFailure(ctx context.Context, d models.Decision) error {
	return k.publisher.Publish(ctx, models.NewEnvelope(d, k.node))
}

// Close implements FailureLogger
func (k *Kafka) Close() error {
	return k.publisher.Close()
}
