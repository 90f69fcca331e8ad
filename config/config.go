// Package config provides process configuration for hookwatch.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the process configuration, read from the environment.
type Config struct {
	// Server settings
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`
	RPCPort  int `envconfig:"RPC_PORT" default:"0"` // 0 disables the JSON-RPC listener

	// Database
	DatabaseURL string `envconfig:"DATABASE_URL" default:"file:hookwatch.db?cache=shared&mode=rwc"`

	// Operator settings file, optional
	SettingsPath string `envconfig:"SETTINGS_PATH"`

	// Translation collaborator
	TranslateURL     string        `envconfig:"TRANSLATE_URL"`
	TranslateAPIKey  string        `envconfig:"TRANSLATE_API_KEY"`
	TranslateModel   string        `envconfig:"TRANSLATE_MODEL" default:"gpt-4o-mini"`
	TranslateTimeout time.Duration `envconfig:"TRANSLATE_TIMEOUT" default:"10s"`

	// Event export
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"hookwatch.events"`

	// WebSocket settings
	PingInterval   time.Duration `envconfig:"WS_PING_INTERVAL" default:"30s"`
	WriteTimeout   time.Duration `envconfig:"WS_WRITE_TIMEOUT" default:"10s"`
	ReadTimeout    time.Duration `envconfig:"WS_READ_TIMEOUT" default:"60s"`
	MaxMessageSize int64         `envconfig:"WS_MAX_MESSAGE_SIZE" default:"65536"`
	SendBuffer     int           `envconfig:"WS_SEND_BUFFER" default:"256"`

	// Snapshots
	SnapshotRecentEvents int `envconfig:"SNAPSHOT_RECENT_EVENTS" default:"50"`

	// Logging
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration with every default applied, ignoring
// the environment.
func Default() *Config {
	return &Config{
		HTTPPort:             8080,
		DatabaseURL:          "file:hookwatch.db?cache=shared&mode=rwc",
		TranslateModel:       "gpt-4o-mini",
		TranslateTimeout:     10 * time.Second,
		KafkaTopic:           "hookwatch.events",
		PingInterval:         30 * time.Second,
		WriteTimeout:         10 * time.Second,
		ReadTimeout:          60 * time.Second,
		MaxMessageSize:       65536,
		SendBuffer:           256,
		SnapshotRecentEvents: 50,
		LogLevel:             "info",
		LogFormat:            "text",
	}
}
