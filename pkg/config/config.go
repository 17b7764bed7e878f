package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/leowmjw/go-temporal-trajectory/pkg/storage"
)

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// TemporalConfig points the server at a Temporal frontend
type TemporalConfig struct {
	HostPort  string `yaml:"host_port" validate:"required"`
	Namespace string `yaml:"namespace" validate:"required"`
	TaskQueue string `yaml:"task_queue" validate:"required"`
}

// StorageConfig selects the observation store
type StorageConfig struct {
	Driver string `yaml:"driver" validate:"oneof=memory sqlite"`
	Path   string `yaml:"path" validate:"required_if=Driver sqlite"`
}

// NATSConfig enables summary publishing when URL is set
type NATSConfig struct {
	URL           string `yaml:"url" validate:"omitempty,url"`
	SubjectPrefix string `yaml:"subject_prefix" validate:"required"`
	LogSubjects   bool   `yaml:"log_subjects"`
}

// MetricsConfig exposes Prometheus metrics on a separate listener when
// Addr is set. The main HTTP server always serves /metrics.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the root service configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Temporal TemporalConfig `yaml:"temporal"`
	Storage  StorageConfig  `yaml:"storage"`
	NATS     NATSConfig     `yaml:"nats"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "trajectory-task-queue",
		},
		Storage: StorageConfig{Driver: storage.DriverMemory},
		NATS:    NATSConfig{SubjectPrefix: "trajectory.summaries"},
	}
}

// Load reads an optional YAML file, applies environment overrides (a .env
// file in the working directory is honoured) and validates the result.
func Load(path string) (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = getenvDefault("HTTP_ADDR", c.Server.Addr)
	c.Temporal.HostPort = firstNonEmpty(os.Getenv("TEMPORAL_HOST_PORT"), os.Getenv("TEMPORAL_ADDRESS"), c.Temporal.HostPort)
	c.Temporal.Namespace = getenvDefault("TEMPORAL_NAMESPACE", c.Temporal.Namespace)
	c.Temporal.TaskQueue = getenvDefault("TEMPORAL_TASK_QUEUE", c.Temporal.TaskQueue)
	c.Storage.Driver = getenvDefault("STORAGE_DRIVER", c.Storage.Driver)
	c.Storage.Path = firstNonEmpty(os.Getenv("STORAGE_PATH"), os.Getenv("SQLITE_PATH"), c.Storage.Path)
	c.NATS.URL = getenvDefault("NATS_URL", c.NATS.URL)
	c.NATS.SubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", c.NATS.SubjectPrefix)
	if v := os.Getenv("LOG_NATS_SUBJECTS"); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "t", "yes", "y", "on":
			c.NATS.LogSubjects = true
		default:
			c.NATS.LogSubjects = false
		}
	}
	c.Metrics.Addr = getenvDefault("METRICS_ADDR", c.Metrics.Addr)
}

// Validate checks every section
func (c *Config) Validate() error {
	v := validator.New()
	for _, section := range []any{c.Server, c.Temporal, c.Storage, c.NATS} {
		if err := v.Struct(section); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
