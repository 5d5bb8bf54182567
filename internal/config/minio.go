package config

import (
	"context"

	"github.com/sethvargo/go-envconfig"
)

// MinioConfig configures the object store used to cache resolved tracks.
// The remaining fields are only read when Enabled is set.
type MinioConfig struct {
	Enabled  bool   `env:"MINIO_ENABLED, default=false"`
	Endpoint string `env:"MINIO_ENDPOINT"`
	Username string `env:"MINIO_USERNAME"`
	Password string `env:"MINIO_PASSWORD"`
	Bucket   string `env:"MINIO_BUCKET, default=dankditties"`
	Secure   bool   `env:"MINIO_SECURE, default=false"`
}

func NewMinioConfigFromEnv() (*MinioConfig, error) {
	var cfg MinioConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.Enabled {
		if err := requireAll(map[string]string{
			"MINIO_ENDPOINT": cfg.Endpoint,
			"MINIO_USERNAME": cfg.Username,
			"MINIO_PASSWORD": cfg.Password,
		}); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}
