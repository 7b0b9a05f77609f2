package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN          string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL          string `env:"RABBITMQ_URL,required=true"`
	RedisURL             string `env:"REDIS_URL,required=true"`
	ProviderRatePerSec   int    `env:"PROVIDER_RATE_PER_SEC,default=10"`
	WorkerConcurrency    int    `env:"WORKER_CONCURRENCY,default=8"`
	SyncIntervalSeconds  int    `env:"SYNC_INTERVAL_SECONDS,default=60"`
	SyncBatchLimit       int    `env:"SYNC_BATCH_LIMIT,default=200"`
	DefaultMarkupPercent int    `env:"DEFAULT_MARKUP_PERCENT,default=20"`
	APIPort              int    `env:"API_PORT,default=8080"`
	LogLevel             string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
