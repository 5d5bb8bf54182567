package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// PostgresConfig configures the play history database.
type PostgresConfig struct {
	Enabled  bool   `env:"POSTGRES_ENABLED, default=false"`
	Host     string `env:"POSTGRES_HOST"`
	Port     string `env:"POSTGRES_PORT, default=5432"`
	Username string `env:"POSTGRES_USERNAME"`
	Password string `env:"POSTGRES_PASSWORD"`
	Database string `env:"POSTGRES_DATABASE, default=dankditties"`
	SSLMode  string `env:"POSTGRES_SSLMODE, default=disable"`
}

func NewPostgresConfigFromEnv() (*PostgresConfig, error) {
	var cfg PostgresConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.Enabled {
		if err := requireAll(map[string]string{
			"POSTGRES_HOST":     cfg.Host,
			"POSTGRES_USERNAME": cfg.Username,
			"POSTGRES_PASSWORD": cfg.Password,
		}); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Username,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}
