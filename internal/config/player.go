package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// PlayerConfig configures track resolution and the playback retry policy.
type PlayerConfig struct {
	WorkDir        string        `env:"PLAYER_WORK_DIR, default=audio"`
	OutputName     string        `env:"PLAYER_OUTPUT_NAME, default=out"`
	HistorySize    int           `env:"PLAYER_HISTORY_SIZE, default=20"`
	ResolveTimeout time.Duration `env:"PLAYER_RESOLVE_TIMEOUT, default=5m"`

	RetryMaxAttempts int           `env:"PLAYER_RETRY_MAX_ATTEMPTS, default=0"`
	RetryDelay       time.Duration `env:"PLAYER_RETRY_DELAY, default=0s"`
	RetryMaxDelay    time.Duration `env:"PLAYER_RETRY_MAX_DELAY, default=30s"`

	SoundscrapeBin string `env:"PLAYER_SOUNDSCRAPE_BIN, default=soundscrape"`
	AudioFormat    string `env:"PLAYER_AUDIO_FORMAT, default=mp3"`
	AudioBitrate   string `env:"PLAYER_AUDIO_BITRATE, default=192K"`
}

func NewPlayerConfigFromEnv() (*PlayerConfig, error) {
	var cfg PlayerConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *PlayerConfig) Validate() error {
	if c.HistorySize < 0 {
		return fmt.Errorf("PLAYER_HISTORY_SIZE must not be negative, got %d", c.HistorySize)
	}
	if c.RetryMaxAttempts < 0 {
		return fmt.Errorf("PLAYER_RETRY_MAX_ATTEMPTS must not be negative, got %d", c.RetryMaxAttempts)
	}
	if c.OutputName == "" {
		return fmt.Errorf("PLAYER_OUTPUT_NAME must not be empty")
	}
	if c.ResolveTimeout <= 0 {
		return fmt.Errorf("PLAYER_RESOLVE_TIMEOUT must be positive")
	}
	return nil
}
