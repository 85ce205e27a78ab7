package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"soundwatch/internal/logger"
	"soundwatch/internal/models"
)

// ErrMQTTNotConnected is returned while the client is reconnecting
var ErrMQTTNotConnected = errors.New("mqtt not connected")

// MQTTConfig holds broker settings for the MQTT notifier
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Timeout     time.Duration
}

// alertPayload is the JSON document published for each alert
type alertPayload struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	Status        string    `json:"status"`
	Confidence    float64   `json:"confidence"`
	ConfidencePct float64   `json:"confidence_pct"`
	DetectedAt    time.Time `json:"detected_at"`
}

// MQTT publishes alerts to <prefix>/alerts
type MQTT struct {
	cfg       MQTTConfig
	client    mqtt.Client
	connected atomic.Bool
}

// NewMQTT creates the notifier; call Connect before use
func NewMQTT(cfg MQTTConfig) *MQTT {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "soundwatch"
	}
	return &MQTT{cfg: cfg}
}

// Connect dials the broker. The client keeps retrying in the background, so
// a timeout here is logged and the notifier stays registered.
func (m *MQTT) Connect(ctx context.Context) error {
	log := logger.WithComponent("mqtt_notifier")

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", m.cfg.Broker))
	opts.SetClientID(m.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		m.connected.Store(true)
		log.Info().Str("broker", m.cfg.Broker).Msg("mqtt connection established")
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		m.connected.Store(false)
		log.Warn().Err(err).Str("broker", m.cfg.Broker).Msg("mqtt connection lost, will auto-reconnect")
	}

	m.client = mqtt.NewClient(opts)
	token := m.client.Connect()

	wait := m.cfg.Timeout
	if d, ok := ctx.Deadline(); ok && time.Until(d) < wait {
		wait = time.Until(d)
	}
	if !token.WaitTimeout(wait) {
		log.Warn().Str("broker", m.cfg.Broker).Msg("mqtt connection pending, retrying in background")
		return nil
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	return nil
}

// Name implements Notifier
func (m *MQTT) Name() string { return "mqtt" }

// Topic returns the alert topic
func (m *MQTT) Topic() string { return m.cfg.TopicPrefix + "/alerts" }

// Notify implements Notifier
func (m *MQTT) Notify(_ context.Context, d models.Decision) error {
	if m.client == nil || !m.connected.Load() {
		return ErrMQTTNotConnected
	}

	payload, err := json.Marshal(alertPayload{
		ID:            d.ID,
		SessionID:     d.SessionID,
		Status:        d.Status.String(),
		Confidence:    d.Confidence,
		ConfidencePct: d.ConfidencePercent(),
		DetectedAt:    d.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	token := m.client.Publish(m.Topic(), m.cfg.QoS, false, payload)
	if !token.WaitTimeout(m.cfg.Timeout) {
		return errors.New("mqtt publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker
func (m *MQTT) Close() {
	if m.client != nil {
		m.client.Disconnect(250)
	}
}
