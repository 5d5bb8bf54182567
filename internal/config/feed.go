package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// DefaultFeedEndpoint is used when FEED_ENDPOINT is unset.
const DefaultFeedEndpoint = "https://api.pushshift.io/reddit/search/submission/"

// FeedConfig configures the import of the candidate pool. When File is set
// the pool is read from a JSON array on disk instead of the HTTP feed.
type FeedConfig struct {
	Endpoint          string  `env:"FEED_ENDPOINT"`
	Subreddit         string  `env:"FEED_SUBREDDIT, default=dankditties"`
	PageSize          int     `env:"FEED_PAGE_SIZE, default=100"`
	Limit             int     `env:"FEED_LIMIT, default=10000"`
	RequestsPerSecond float64 `env:"FEED_REQUESTS_PER_SECOND, default=1"`
	File              string  `env:"FEED_FILE"`
}

func NewFeedConfigFromEnv() (*FeedConfig, error) {
	var cfg FeedConfig
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		return nil, err
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultFeedEndpoint
	}
	if cfg.PageSize <= 0 || cfg.Limit <= 0 {
		return nil, fmt.Errorf("FEED_PAGE_SIZE and FEED_LIMIT must be positive")
	}
	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("FEED_REQUESTS_PER_SECOND must be positive")
	}
	return &cfg, nil
}
