package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func applyEnvOverrides(cfg *Config) {
	// Names kept from the first deployment of the monitor
	if v := os.Getenv("AUDIO_RATE"); v != "" {
		if rate, err := strconv.Atoi(v); err == nil {
			cfg.Audio.SampleRate = rate
		}
	}
	if v := os.Getenv("AUDIO_CHUNK_DURATION_SEC"); v != "" {
		if sec, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Audio.ChunkDuration = time.Duration(sec * float64(time.Second))
		}
	}
	if v := os.Getenv("ALERT_COOLDOWN_SEC"); v != "" {
		if sec, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Monitor.Cooldown = time.Duration(sec * float64(time.Second))
		}
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notifiers.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notifiers.Telegram.ChatID = v
	}
	if v := os.Getenv("TELEGRAM_TIMEOUT"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil {
			cfg.Notifiers.Telegram.Timeout = time.Duration(sec) * time.Second
		}
	}

	if v := os.Getenv("SOUNDWATCH_WINDOW_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Audio.WindowSize = n
		}
	}
	if v := os.Getenv("SOUNDWATCH_HOP_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Audio.HopSize = n
		}
	}
	if v := os.Getenv("SOUNDWATCH_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Monitor.Cooldown = d
		}
	}
	if v := os.Getenv("SOUNDWATCH_MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Monitor.MinConfidence = f
		}
	}
	if v := os.Getenv("SOUNDWATCH_POLICY"); v != "" {
		cfg.Monitor.Policy = strings.ToLower(v)
	}
	if v := os.Getenv("SOUNDWATCH_AUTOSTART"); v != "" {
		cfg.Monitor.AutoStart = parseBool(v)
	}
	if v := os.Getenv("SOUNDWATCH_SOURCE"); v != "" {
		cfg.Source.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("SOUNDWATCH_SOURCE_PATH"); v != "" {
		cfg.Source.Path = v
	}
	if v := os.Getenv("SOUNDWATCH_CLASSIFIER"); v != "" {
		cfg.Classifier.Kind = strings.ToLower(v)
	}
	if v := os.Getenv("SOUNDWATCH_MODEL_REF"); v != "" {
		cfg.Classifier.ModelRef = v
	}
	if v := os.Getenv("SOUNDWATCH_PARAMS_REF"); v != "" {
		cfg.Classifier.ParamsRef = v
	}
	if v := os.Getenv("SOUNDWATCH_DISPATCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dispatch.Workers = n
		}
	}
	if v := os.Getenv("SOUNDWATCH_TELEGRAM_ENABLED"); v != "" {
		cfg.Notifiers.Telegram.Enabled = parseBool(v)
	}
	if v := os.Getenv("SOUNDWATCH_EMAIL_ENABLED"); v != "" {
		cfg.Notifiers.Email.Enabled = parseBool(v)
	}
	if v := os.Getenv("SOUNDWATCH_EMAIL_SENDER"); v != "" {
		cfg.Notifiers.Email.Sender = v
	}
	if v := os.Getenv("SOUNDWATCH_EMAIL_PASSWORD"); v != "" {
		cfg.Notifiers.Email.Password = v
	}
	if v := os.Getenv("SOUNDWATCH_EMAIL_RECIPIENT"); v != "" {
		cfg.Notifiers.Email.Recipient = v
	}
	if v := os.Getenv("SOUNDWATCH_MQTT_ENABLED"); v != "" {
		cfg.Notifiers.MQTT.Enabled = parseBool(v)
	}
	if v := os.Getenv("SOUNDWATCH_MQTT_BROKER"); v != "" {
		cfg.Notifiers.MQTT.Broker = v
	}
	if v := os.Getenv("SOUNDWATCH_CSV_PATH"); v != "" {
		cfg.Storage.CSV.Path = v
	}
	if v := os.Getenv("SOUNDWATCH_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLite.Enabled = true
		cfg.Storage.SQLite.Path = v
	}
	if v := os.Getenv("SOUNDWATCH_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitCSV(v)
		cfg.Storage.Kafka.Enabled = true
	}
	if v := os.Getenv("SOUNDWATCH_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("SOUNDWATCH_HTTP_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("SOUNDWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
