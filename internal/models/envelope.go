package models

import (
	"time"
)

// Envelope wraps a Decision with transport metadata for the Kafka sink
type Envelope struct {
	// Decision being shipped
	Decision Decision `json:"decision"`

	// Internal processing metadata
	ReceivedAt   time.Time `json:"received_at"`
	Node         string    `json:"node"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	ConfidencePc float64   `json:"confidence_pct"`
	PartitionKey string    `json:"partition_key"`
}

// NewEnvelope creates a new envelope wrapping a decision
func NewEnvelope(d Decision, node string) *Envelope {
	return &Envelope{
		Decision:     d,
		ReceivedAt:   time.Now().UTC(),
		Node:         node,
		Date:         d.Date(),
		Time:         d.TimeOfDay(),
		ConfidencePc: d.ConfidencePercent(),
		PartitionKey: d.SessionID, // partition by session for ordering
	}
}
