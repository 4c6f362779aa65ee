package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Log backends.
const (
	LogBackendMemory = "memory"
	LogBackendRedis  = "redis"
	LogBackendNATS   = "nats"
)

// Config holds all application configuration.
type Config struct {
	// Embedded store
	StoreDir        string `env:"STORE_DIR"         envDefault:"./data"`
	StoreInMemory   bool   `env:"STORE_IN_MEMORY"   envDefault:"false"`
	StoreSyncWrites bool   `env:"STORE_SYNC_WRITES" envDefault:"true"`

	// Replicated log
	LogBackend          string        `env:"LOG_BACKEND"           envDefault:"memory"`
	LogPartitions       int32         `env:"LOG_PARTITIONS"        envDefault:"8"`
	PartitionsPerWorker int32         `env:"PARTITIONS_PER_WORKER" envDefault:"2"`
	PollTimeout         time.Duration `env:"POLL_TIMEOUT"          envDefault:"1s"`
	PollBatchSize       int           `env:"POLL_BATCH_SIZE"       envDefault:"256"`
	SupervisorInterval  time.Duration `env:"SUPERVISOR_INTERVAL"   envDefault:"1s"`
	WorkerRestartDelay  time.Duration `env:"WORKER_RESTART_DELAY"  envDefault:"1s"`

	// Redis
	RedisURL          string `env:"REDIS_URL"           envDefault:""`
	RedisStreamPrefix string `env:"REDIS_STREAM_PREFIX" envDefault:"accounter:log"`

	// NATS
	NATSURL          string `env:"NATS_URL"           envDefault:""`
	NATSStreamPrefix string `env:"NATS_STREAM_PREFIX" envDefault:"ACCOUNTER"`
	NATSReplicas     int    `env:"NATS_REPLICAS"      envDefault:"1"`

	// HTTP Server
	HTTPPort            string        `env:"HTTP_PORT"             envDefault:"8080"`
	HTTPReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT"     envDefault:"30s"`
	HTTPWriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT"    envDefault:"30s"`
	HTTPIdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT"     envDefault:"60s"`
	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Idempotency (needs REDIS_URL)
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	// Rate limiting (0 disables)
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS"   envDefault:"0"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"50"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	err := env.Parse(cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	var errs []error

	switch c.LogBackend {
	case LogBackendMemory:
	case LogBackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis log backend"))
		}
	case LogBackendNATS:
		if c.NATSURL == "" {
			errs = append(errs, errors.New("NATS_URL is required for the nats log backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LOG_BACKEND %q", c.LogBackend))
	}

	if c.LogPartitions <= 0 {
		errs = append(errs, fmt.Errorf("LOG_PARTITIONS must be positive, got %d", c.LogPartitions))
	}
	if c.PartitionsPerWorker <= 0 {
		errs = append(errs, fmt.Errorf("PARTITIONS_PER_WORKER must be positive, got %d", c.PartitionsPerWorker))
	}
	if !c.StoreInMemory && c.StoreDir == "" {
		errs = append(errs, errors.New("STORE_DIR is required unless STORE_IN_MEMORY is set"))
	}

	return errors.Join(errs...)
}
