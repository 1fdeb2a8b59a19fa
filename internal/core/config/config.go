package config

import (
	"time"

	"github.com/swaplane/offersvc/internal/infra/natsstan"
	redisclient "github.com/swaplane/offersvc/internal/infra/redis"
	"github.com/swaplane/offersvc/internal/infra/storage/postgres"
	"github.com/swaplane/offersvc/internal/offers"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server       ServerConfig       `yaml:"server"`
	Database     postgres.Config    `yaml:"database"`
	Redis        redisclient.Config `yaml:"redis"`
	Broker       natsstan.Config    `yaml:"broker"`
	Catalog      RemoteConfig       `yaml:"catalog"`
	Chat         RemoteConfig       `yaml:"chat"`
	Resilience   ResilienceConfig   `yaml:"resilience"`
	Orchestrator offers.Config      `yaml:"orchestrator"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// RemoteConfig holds settings for a downstream HTTP dependency.
type RemoteConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ResilienceConfig tunes the retry policy and circuit breakers shared by
// the catalog and chat clients.
type ResilienceConfig struct {
	FailMax      int           `yaml:"fail_max"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}
