package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Source kinds
const (
	SourceSynth = "synth"
	SourceWAV   = "wav"
	SourceRaw   = "raw"
	SourceHTTP  = "http"
)

// Classifier kinds
const (
	ClassifierEnergy = "energy"
	ClassifierRemote = "remote"
)

// Alert policies
const (
	PolicyContinuous     = "continuous"
	PolicySharedCooldown = "shared-cooldown"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Config holds runtime configuration for the monitor service.
type Config struct {
	Audio      AudioConfig      `yaml:"audio"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Source     SourceConfig     `yaml:"source"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Dispatch   DispatchConfig   `yaml:"dispatch"`
	Notifiers  NotifiersConfig  `yaml:"notifiers"`
	Storage    StorageConfig    `yaml:"storage"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// AudioConfig describes the sample stream and how it is windowed.
// WindowSize 0 means SampleRate * ChunkDuration; HopSize 0 means WindowSize.
type AudioConfig struct {
	SampleRate    int           `yaml:"sampleRate"`
	ChunkDuration time.Duration `yaml:"chunkDuration"`
	WindowSize    int           `yaml:"windowSize"`
	HopSize       int           `yaml:"hopSize"`
}

// MonitorConfig holds the alert policy knobs.
type MonitorConfig struct {
	Cooldown      time.Duration `yaml:"cooldown"`
	MinConfidence float64       `yaml:"minConfidence"`
	Policy        string        `yaml:"policy"`
	FrameQueue    int           `yaml:"frameQueue"`
	AutoStart     bool          `yaml:"autoStart"`
}

// SourceConfig selects the acquisition source.
type SourceConfig struct {
	Kind      string      `yaml:"kind"`
	Path      string      `yaml:"path"`
	BlockSize int         `yaml:"blockSize"`
	Realtime  bool        `yaml:"realtime"`
	Loop      bool        `yaml:"loop"`
	Synth     SynthConfig `yaml:"synth"`
}

// SynthConfig shapes the synthetic test signal.
type SynthConfig struct {
	Frequency      float64       `yaml:"frequency"`
	Amplitude      float64       `yaml:"amplitude"`
	FaultAmplitude float64       `yaml:"faultAmplitude"`
	FaultEvery     time.Duration `yaml:"faultEvery"`
	FaultDuration  time.Duration `yaml:"faultDuration"`
	Seed           int64         `yaml:"seed"`
}

// ClassifierConfig selects and loads the classifier.
type ClassifierConfig struct {
	Kind      string        `yaml:"kind"`
	ModelRef  string        `yaml:"modelRef"`
	ParamsRef string        `yaml:"paramsRef"`
	Timeout   time.Duration `yaml:"timeout"`
}

// DispatchConfig sizes the worker pool each backend gets.
type DispatchConfig struct {
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queueSize"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// NotifiersConfig lists notification backends.
type NotifiersConfig struct {
	Log      bool           `yaml:"log"`
	Telegram TelegramConfig `yaml:"telegram"`
	Email    EmailConfig    `yaml:"email"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

// TelegramConfig configures the Telegram Bot API notifier.
type TelegramConfig struct {
	Enabled bool          `yaml:"enabled"`
	Token   string        `yaml:"token"`
	ChatID  string        `yaml:"chatId"`
	APIBase string        `yaml:"apiBase"`
	Timeout time.Duration `yaml:"timeout"`
}

// EmailConfig configures the SMTP notifier.
type EmailConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	Sender    string        `yaml:"sender"`
	Password  string        `yaml:"password"`
	Recipient string        `yaml:"recipient"`
	Timeout   time.Duration `yaml:"timeout"`
}

// MQTTConfig configures the MQTT notifier.
type MQTTConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Broker      string        `yaml:"broker"`
	ClientID    string        `yaml:"clientId"`
	TopicPrefix string        `yaml:"topicPrefix"`
	QoS         byte          `yaml:"qos"`
	Timeout     time.Duration `yaml:"timeout"`
}

// StorageConfig lists failure log sinks.
type StorageConfig struct {
	CSV    FileSinkConfig  `yaml:"csv"`
	SQLite FileSinkConfig  `yaml:"sqlite"`
	Kafka  KafkaSinkConfig `yaml:"kafka"`
}

// FileSinkConfig configures a file backed sink.
type FileSinkConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// KafkaSinkConfig toggles the Kafka sink; brokers live in KafkaConfig.
type KafkaSinkConfig struct {
	Enabled bool `yaml:"enabled"`
}

// KafkaConfig holds broker settings.
type KafkaConfig struct {
	Brokers  []string       `yaml:"brokers"`
	Topic    string         `yaml:"topic"`
	Producer ProducerConfig `yaml:"producer"`
}

// ProducerConfig tunes the Kafka producer.
type ProducerConfig struct {
	PoolSize     int           `yaml:"poolSize"`
	BatchSize    int           `yaml:"batchSize"`
	BatchTimeout time.Duration `yaml:"batchTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	RequiredAcks int           `yaml:"requiredAcks"`
	Compression  string        `yaml:"compression"`
	MaxRetries   int           `yaml:"maxRetries"`
	RetryBackoff time.Duration `yaml:"retryBackoff"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxBodySize     int64         `yaml:"maxBodySize"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			SampleRate:    44100,
			ChunkDuration: 2 * time.Second,
		},
		Monitor: MonitorConfig{
			Cooldown:      10 * time.Second,
			MinConfidence: 0.85,
			Policy:        PolicyContinuous,
			FrameQueue:    256,
		},
		Source: SourceConfig{
			Kind:      SourceSynth,
			BlockSize: 1024,
			Realtime:  true,
			Synth: SynthConfig{
				Frequency:      440,
				Amplitude:      0.05,
				FaultAmplitude: 0.8,
				FaultEvery:     30 * time.Second,
				FaultDuration:  8 * time.Second,
				Seed:           1,
			},
		},
		Classifier: ClassifierConfig{
			Kind:    ClassifierEnergy,
			Timeout: 2 * time.Second,
		},
		Dispatch: DispatchConfig{
			Workers:         4,
			QueueSize:       64,
			ShutdownTimeout: 15 * time.Second,
		},
		Notifiers: NotifiersConfig{
			Log: true,
			Telegram: TelegramConfig{
				APIBase: "https://api.telegram.org",
				Timeout: 10 * time.Second,
			},
			Email: EmailConfig{
				Host:    "smtp.gmail.com",
				Port:    587,
				Timeout: 10 * time.Second,
			},
			MQTT: MQTTConfig{
				Broker:      "localhost:1883",
				ClientID:    "soundwatch",
				TopicPrefix: "soundwatch",
				QoS:         1,
				Timeout:     5 * time.Second,
			},
		},
		Storage: StorageConfig{
			CSV:    FileSinkConfig{Enabled: true, Path: "logs/failures.csv"},
			SQLite: FileSinkConfig{Path: "logs/failures.db"},
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "soundwatch.failures",
			Producer: ProducerConfig{
				PoolSize:     2,
				BatchSize:    1,
				BatchTimeout: 10 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: 1,
				Compression:  "snappy",
				MaxRetries:   3,
				RetryBackoff: 100 * time.Millisecond,
			},
		},
		Server: ServerConfig{
			Address:         ":8080",
			ShutdownTimeout: 10 * time.Second,
			MaxBodySize:     10 * 1024 * 1024,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load initialises Config from defaults, an optional YAML file and
// environment overrides, then validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SOUNDWATCH_CONFIG")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Window returns the effective window size in samples
func (a AudioConfig) Window() int {
	if a.WindowSize > 0 {
		return a.WindowSize
	}
	return int(float64(a.SampleRate) * a.ChunkDuration.Seconds())
}

// Hop returns the effective hop size in samples
func (a AudioConfig) Hop() int {
	if a.HopSize > 0 {
		return a.HopSize
	}
	return a.Window()
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	var errs []error

	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sampleRate must be positive, got %d", c.Audio.SampleRate))
	}
	if w := c.Audio.Window(); w <= 0 {
		errs = append(errs, fmt.Errorf("audio window must be positive, got %d", w))
	} else if h := c.Audio.Hop(); h > w {
		errs = append(errs, fmt.Errorf("audio.hopSize %d exceeds window %d", h, w))
	}

	if c.Monitor.Cooldown < 0 {
		errs = append(errs, errors.New("monitor.cooldown cannot be negative"))
	}
	if c.Monitor.MinConfidence < 0 || c.Monitor.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("monitor.minConfidence must be within [0,1], got %v", c.Monitor.MinConfidence))
	}
	switch c.Monitor.Policy {
	case PolicyContinuous, PolicySharedCooldown:
	default:
		errs = append(errs, fmt.Errorf("unknown monitor.policy %q", c.Monitor.Policy))
	}

	switch c.Source.Kind {
	case SourceSynth, SourceHTTP:
	case SourceWAV, SourceRaw:
		if c.Source.Path == "" {
			errs = append(errs, fmt.Errorf("source.path is required for %s source", c.Source.Kind))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown source.kind %q", c.Source.Kind))
	}

	switch c.Classifier.Kind {
	case ClassifierEnergy:
	case ClassifierRemote:
		if c.Classifier.ModelRef == "" {
			errs = append(errs, errors.New("classifier.modelRef is required for the remote classifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown classifier.kind %q", c.Classifier.Kind))
	}

	if t := c.Notifiers.Telegram; t.Enabled && (t.Token == "" || t.ChatID == "") {
		errs = append(errs, errors.New("telegram notifier requires token and chatId"))
	}
	if e := c.Notifiers.Email; e.Enabled && (e.Sender == "" || e.Password == "" || e.Recipient == "") {
		errs = append(errs, errors.New("email notifier requires sender, password and recipient"))
	}
	if m := c.Notifiers.MQTT; m.Enabled && (m.Broker == "" || m.QoS > 2) {
		errs = append(errs, errors.New("mqtt notifier requires a broker and qos in [0,2]"))
	}
	if c.Storage.CSV.Enabled && c.Storage.CSV.Path == "" {
		errs = append(errs, errors.New("storage.csv.path is required"))
	}
	if c.Storage.SQLite.Enabled && c.Storage.SQLite.Path == "" {
		errs = append(errs, errors.New("storage.sqlite.path is required"))
	}
	if c.Storage.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		errs = append(errs, errors.New("kafka sink requires brokers and topic"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
