package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" default:"info"`
		Format string `yaml:"format" default:"console"`
		Output string `yaml:"output" default:"stdout"`
	} `yaml:"log"`
	Stream struct {
		URL              string        `yaml:"url" validate:"required,uri"`
		ReconnectDelay   time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval     time.Duration `yaml:"ping_interval" default:"30s"`
		StoreRetryDelay  time.Duration `yaml:"store_retry_delay" default:"60s"`
		StartupStoreWait time.Duration `yaml:"startup_store_wait" default:"5m"`
	} `yaml:"stream"`
	Store struct {
		URL    string `yaml:"url" default:"memory://" validate:"required"`
		Prefix string `yaml:"prefix"`
	} `yaml:"store"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"trap-events"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async" default:"true"`
	} `yaml:"kafka"`
	Detector struct {
		EventLogSize        int           `yaml:"event_log_size" default:"200" validate:"gt=0"`
		ActivationCooldown  time.Duration `yaml:"activation_cooldown" default:"30s"`
		ConfluenceTolerance float64       `yaml:"confluence_tolerance" default:"50"`
		ConfluenceInterval  time.Duration `yaml:"confluence_interval" default:"5s"`
	} `yaml:"detector"`
}

// Load reads and parses a YAML configuration file, fills defaults, and
// validates required fields.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Finalize(); err != nil {
		return nil, err
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.ApplyEnv()

	if err := c.Finalize(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Read parses the YAML file and applies environment overrides without
// finalizing, so callers can layer flag overrides on top before calling
// Finalize. A missing file is not an error; the config starts empty and
// env/flags must supply the required fields.
func Read(path string) (*Config, error) {
	var c Config

	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	c.ApplyEnv()
	return &c, nil
}

// ApplyEnv overrides configuration from environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TRADE_STREAM_URL"); v != "" {
		c.Stream.URL = v
	}
	if v := os.Getenv("STORE_URL"); v != "" {
		c.Store.URL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
}

// Finalize fills defaults and validates the configuration.
func (c *Config) Finalize() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	switch {
	case c.Store.URL == "memory://" || c.Store.URL == "memory":
	case strings.HasPrefix(c.Store.URL, "redis://"):
	default:
		return fmt.Errorf("store.url must be 'memory://' or 'redis://host:port/db', got '%s'", c.Store.URL)
	}
	return nil
}
