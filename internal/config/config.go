// Package config resolves broker configuration from an optional YAML file
// and environment variables, the latter always taking precedence.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete, resolved broker configuration.
type Config struct {
	ListenAddr    string        `yaml:"listen_addr"`
	Capacity      int           `yaml:"capacity"`
	MaxFrameBytes int           `yaml:"max_frame_bytes"`
	IngestTimeout time.Duration `yaml:"ingest_timeout"`
	LogLevel      string        `yaml:"log_level"`
}

const (
	envListenAddr    = "BROKER_LISTEN_ADDR"
	envCapacity      = "BROKER_CAPACITY"
	envMaxFrameBytes = "BROKER_MAX_FRAME_BYTES"
	envIngestTimeout = "BROKER_INGEST_TIMEOUT"
	envLogLevel      = "BROKER_LOG_LEVEL"
)

// defaults returns the fallback configuration applied before the optional
// YAML layer, which is in turn overridden by environment variables.
func defaults() Config {
	return Config{
		ListenAddr:    ":8080",
		Capacity:      128,
		MaxFrameBytes: 8 << 20,
		IngestTimeout: 10 * time.Second,
		LogLevel:      "info",
	}
}

// Load builds a Config starting from defaults, layering a YAML file at
// path if non-empty (strict-decoded, unknown fields rejected), then
// applying any BROKER_* environment variables on top. path may be empty,
// in which case the YAML layer is skipped entirely.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(envListenAddr); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv(envCapacity); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envCapacity, err)
		}
		cfg.Capacity = n
	}
	if v, ok := os.LookupEnv(envMaxFrameBytes); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envMaxFrameBytes, err)
		}
		cfg.MaxFrameBytes = n
	}
	if v, ok := os.LookupEnv(envIngestTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envIngestTimeout, err)
		}
		cfg.IngestTimeout = d
	}
	if v, ok := os.LookupEnv(envLogLevel); ok {
		cfg.LogLevel = v
	}
	return nil
}
