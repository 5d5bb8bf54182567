package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

type DiscordConfig struct {
	Token         string `env:"DISCORD_TOKEN, required"`
	GuildID       string `env:"DISCORD_GUILD_ID"`
	CommandPrefix string `env:"DISCORD_COMMAND_PREFIX, default=!dd"`
	LogLevel      string `env:"LOG_LEVEL, default=info"`
}

func NewDiscordConfigFromEnv() (*DiscordConfig, error) {
	var cfg DiscordConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	cfg.CommandPrefix = strings.TrimSpace(cfg.CommandPrefix)
	if cfg.CommandPrefix == "" {
		return nil, fmt.Errorf("DISCORD_COMMAND_PREFIX must not be blank")
	}

	return &cfg, nil
}
