// Package config loads and validates process configuration from the
// environment. Every resource identifier and tuning knob the pipeline
// depends on is a named field here; nothing reads the environment ad hoc.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Validation errors.
var (
	errNonPositiveBatchSize  = errors.New("worker batch size must be positive")
	errNonPositiveVisibility = errors.New("queue visibility timeout must be positive")
	errNonPositiveReceives   = errors.New("queue max receive count must be positive")
	errNonPositiveWindow     = errors.New("feed window must be positive")
)

type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`

	// Reasoning/generation capability. An empty or "mock" key selects the
	// deterministic mock client.
	LLMAPIKey    string `env:"LLM_API_KEY"`
	LLMModel     string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	RateLimitRPS int    `env:"RATE_LIMIT_RPS" envDefault:"1"`

	HealthPort int `env:"HEALTH_PORT" envDefault:"8080"`

	// Feed aggregation.
	FeedWindow       time.Duration `env:"FEED_WINDOW" envDefault:"24h"`
	FeedFetchTimeout time.Duration `env:"FEED_FETCH_TIMEOUT" envDefault:"10s"`

	// Scheduled pipeline trigger.
	PipelineInterval time.Duration `env:"PIPELINE_INTERVAL" envDefault:"24h"`

	// Research worker and dispatch queue.
	WorkerBatchSize        int           `env:"WORKER_BATCH_SIZE" envDefault:"10"`
	WorkerPollInterval     time.Duration `env:"WORKER_POLL_INTERVAL" envDefault:"10s"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT" envDefault:"5m"`
	QueueMaxReceiveCount   int           `env:"QUEUE_MAX_RECEIVE_COUNT" envDefault:"5"`

	// Reconciliation sweep for topics stuck in pending.
	ReconcileInterval   time.Duration `env:"RECONCILE_INTERVAL" envDefault:"1h"`
	ReconcileStaleAfter time.Duration `env:"RECONCILE_STALE_AFTER" envDefault:"2h"`

	// Database pool.
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS" envDefault:"2"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"5m"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBHealthCheckPeriod time.Duration `env:"DB_HEALTH_CHECK_PERIOD" envDefault:"30s"`
}

// Load reads .env if present, parses the environment and validates the
// result once at startup.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.WorkerBatchSize <= 0 {
		return errNonPositiveBatchSize
	}

	if c.QueueVisibilityTimeout <= 0 {
		return errNonPositiveVisibility
	}

	if c.QueueMaxReceiveCount <= 0 {
		return errNonPositiveReceives
	}

	if c.FeedWindow <= 0 {
		return errNonPositiveWindow
	}

	return nil
}
