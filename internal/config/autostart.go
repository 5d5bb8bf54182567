package config

import (
	"context"

	"github.com/glizzus/dank-ditties/internal/schedule"
	"github.com/sethvargo/go-envconfig"
)

// AutostartConfig optionally starts playback on a cron schedule.
// An empty ChannelID means the most attended voice channel of the guild.
type AutostartConfig struct {
	Cron      string `env:"AUTOSTART_CRON"`
	ChannelID string `env:"AUTOSTART_CHANNEL_ID"`
}

func NewAutostartConfigFromEnv() (*AutostartConfig, error) {
	var cfg AutostartConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.Cron != "" {
		if err := schedule.ValidateCron(cfg.Cron); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func (c *AutostartConfig) Enabled() bool {
	return c.Cron != ""
}
