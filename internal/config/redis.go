package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// RedisConfig configures the stream that carries out-of-band play requests.
type RedisConfig struct {
	Enabled  bool   `env:"REDIS_ENABLED, default=false"`
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	Stream   string `env:"REDIS_REQUEST_STREAM, default=jukebox_requests"`
	Group    string `env:"REDIS_REQUEST_GROUP, default=jukebox_bot"`
}

func NewRedisConfigFromEnv() (*RedisConfig, error) {
	var cfg RedisConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.Enabled && cfg.Addr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required")
	}
	return &cfg, nil
}
