package processor

import (
	"context"
	"fmt"

	"soundwatch/internal/classifier"
	"soundwatch/internal/config"
	"soundwatch/internal/kafka"
	"soundwatch/internal/logger"
	"soundwatch/internal/notify"
	"soundwatch/internal/storage"
)

// buildClassifier creates and loads the configured classifier
func buildClassifier(cfg *config.Config) (classifier.Classifier, error) {
	var cls classifier.Classifier
	switch cfg.Classifier.Kind {
	case config.ClassifierRemote:
		cls = classifier.NewRemote(cfg.Audio.SampleRate, cfg.Classifier.Timeout)
	default:
		cls = classifier.NewEnergy()
	}

	if err := cls.Load(cfg.Classifier.ModelRef, cfg.Classifier.ParamsRef); err != nil {
		return nil, err
	}
	return cls, nil
}

// buildNotifiers returns the enabled notification backends in a fixed order
func (p *Processor) buildNotifiers(ctx context.Context) ([]notify.Notifier, error) {
	cfg := p.cfg.Notifiers
	log := logger.WithComponent("processor")
	var out []notify.Notifier

	if cfg.Log {
		out = append(out, notify.Log{})
	}
	if cfg.Telegram.Enabled {
		out = append(out, notify.NewTelegram(cfg.Telegram.APIBase, cfg.Telegram.Token, cfg.Telegram.ChatID, cfg.Telegram.Timeout))
	}
	if cfg.Email.Enabled {
		out = append(out, notify.NewEmail(notify.EmailConfig{
			Host:      cfg.Email.Host,
			Port:      cfg.Email.Port,
			Sender:    cfg.Email.Sender,
			Password:  cfg.Email.Password,
			Recipient: cfg.Email.Recipient,
			Timeout:   cfg.Email.Timeout,
		}))
	}
	if cfg.MQTT.Enabled {
		m := notify.NewMQTT(notify.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
			Timeout:     cfg.MQTT.Timeout,
		})
		if err := m.Connect(ctx); err != nil {
			return nil, fmt.Errorf("mqtt: %w", err)
		}
		p.mqtt = m
		out = append(out, m)
	}

	if len(out) == 0 {
		log.Warn().Msg("no notifiers enabled, alerts will only be counted")
	}
	return out, nil
}

// buildFailureLoggers returns the enabled failure log sinks in a fixed order
func (p *Processor) buildFailureLoggers(ctx context.Context) ([]storage.FailureLogger, error) {
	cfg := p.cfg.Storage
	var out []storage.FailureLogger

	if cfg.CSV.Enabled {
		out = append(out, storage.NewCSV(cfg.CSV.Path))
	}
	if cfg.SQLite.Enabled {
		db, err := storage.NewSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		out = append(out, db)
	}
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(p.cfg.Kafka.Brokers, p.cfg.Kafka.Topic, p.cfg.Kafka.Producer)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		p.producer = producer
		out = append(out, storage.NewKafka(producer, ""))
	}
	return out, nil
}
