// Package config loads runtime configuration from the environment into a
// validated struct, using the CHAINKEEPER_-prefixed convention.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/chainkeeper/chainkeeper/internal/pkg/validator"
)

// Config holds every environment-sourced setting the ingestion binary needs.
type Config struct {
	ChainRPCURL string `envconfig:"CHAIN_RPC_URL" validate:"required,url"`

	RedisAddr     string `envconfig:"REDIS_ADDR" validate:"required"`
	RedisUsername string `envconfig:"REDIS_USERNAME"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	StartAtBlock        int64         `envconfig:"START_AT_BLOCK" default:"1" validate:"gte=0"`
	OnlyIrreversible    bool          `envconfig:"ONLY_IRREVERSIBLE" default:"false"`
	MaxHistoryLength    int           `envconfig:"MAX_HISTORY_LENGTH" default:"100" validate:"gt=0"`
	PrefetchConcurrency int           `envconfig:"PREFETCH_CONCURRENCY" default:"4" validate:"gt=0"`
	PollInterval        time.Duration `envconfig:"POLL_INTERVAL" default:"12s" validate:"gt=0"`

	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`
	OTELServiceName string `envconfig:"OTEL_SERVICE_NAME" default:"chainkeeper"`
}

// Load reads and validates Config from the environment under the
// "CHAINKEEPER" prefix (e.g. CHAINKEEPER_CHAIN_RPC_URL).
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("chainkeeper", &cfg); err != nil {
		return Config{}, err
	}

	if err := validator.Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
