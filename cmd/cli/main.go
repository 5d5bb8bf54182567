package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/glizzus/dank-ditties/internal/config"
	"github.com/glizzus/dank-ditties/internal/datalayer"
	"github.com/glizzus/dank-ditties/internal/feed"
	"github.com/glizzus/dank-ditties/internal/generator"
	"github.com/glizzus/dank-ditties/internal/presenters"
	"github.com/glizzus/dank-ditties/internal/repository"
	"github.com/glizzus/dank-ditties/internal/requests"
	"github.com/glizzus/dank-ditties/internal/resolver"
	"github.com/glizzus/dank-ditties/internal/selector"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
)

var uuidGenerator = generator.UUIDV4Generator{}

func loadPlayerConfig() (*config.PlayerConfig, *resolver.Resolver, error) {
	cfg, err := config.NewPlayerConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, nil, err
	}
	res := resolver.New(cfg.WorkDir, cfg.OutputName, resolver.DefaultProviders(*cfg),
		resolver.WithTimeout(cfg.ResolveTimeout),
		resolver.WithFormat(cfg.AudioFormat),
	)
	return cfg, res, nil
}

func loadPool(ctx context.Context, res *resolver.Resolver) ([]string, error) {
	feedConfig, err := config.NewFeedConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return feed.Load(ctx, *feedConfig, res.Supported)
}

func main() {
	if err := config.LoadEnv(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env file: %v", err)
	}

	app := &cli.App{
		Name:        "dank-ditties-cli",
		Description: "A development CLI tool for exercising the jukebox without Discord",
		Commands: []*cli.Command{
			{
				Name:  "feed",
				Usage: "Import the candidate pool and print it as JSON",
				Action: func(c *cli.Context) error {
					_, res, err := loadPlayerConfig()
					if err != nil {
						return cli.Exit("Failed to load player config: "+err.Error(), 1)
					}
					pool, err := loadPool(c.Context, res)
					if err != nil {
						return cli.Exit("Failed to load pool: "+err.Error(), 1)
					}

					encoder := json.NewEncoder(os.Stdout)
					encoder.SetIndent("", "  ")
					return encoder.Encode(pool)
				},
			},
			{
				Name:      "resolve",
				Usage:     "Download a single URL into the playback file",
				ArgsUsage: "<url>",
				Action: func(c *cli.Context) error {
					url := c.Args().First()
					if url == "" {
						return cli.Exit("Please provide a URL to resolve", 1)
					}

					_, res, err := loadPlayerConfig()
					if err != nil {
						return cli.Exit("Failed to load player config: "+err.Error(), 1)
					}
					track, err := res.Resolve(c.Context, url)
					if err != nil {
						return cli.Exit("Failed to resolve: "+err.Error(), 1)
					}

					log.Printf("Resolved %s via %s into %s", track.URL, track.Provider, track.Path)
					return nil
				},
			},
			{
				Name:  "select",
				Usage: "Print a sequence of selections from the candidate pool",
				Action: func(c *cli.Context) error {
					cfg, res, err := loadPlayerConfig()
					if err != nil {
						return cli.Exit("Failed to load player config: "+err.Error(), 1)
					}
					pool, err := loadPool(c.Context, res)
					if err != nil {
						return cli.Exit("Failed to load pool: "+err.Error(), 1)
					}
					sel, err := selector.New(pool, selector.WithHistorySize(cfg.HistorySize))
					if err != nil {
						return cli.Exit("Failed to create selector: "+err.Error(), 1)
					}

					for i := range c.Int("count") {
						fmt.Printf("%d. %s\n", i+1, sel.Next())
					}
					return nil
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "count",
						Usage: "Number of selections to print",
						Value: 25,
					},
				},
			},
			{
				Name:      "enqueue",
				Usage:     "Publish a play request to the running bot",
				ArgsUsage: "<url>",
				Action: func(c *cli.Context) error {
					url := c.Args().First()
					if url == "" {
						return cli.Exit("Please provide a URL to enqueue", 1)
					}

					redisConfig, err := config.NewRedisConfigFromEnv()
					if err != nil {
						return cli.Exit("Failed to load redis config: "+err.Error(), 1)
					}
					if !redisConfig.Enabled {
						return cli.Exit("Redis is not enabled, set REDIS_ENABLED=true", 1)
					}

					rdb := redis.NewClient(&redis.Options{
						Addr:     redisConfig.Addr,
						Password: redisConfig.Password,
					})
					defer rdb.Close()

					req := requests.Request{
						ID:          generator.MustNext[string](&uuidGenerator),
						URL:         url,
						RequestedBy: "cli",
						RequestedAt: time.Now(),
					}
					publisher := requests.NewRedisPublisher(rdb, redisConfig.Stream)
					if err := publisher.Publish(c.Context, req); err != nil {
						return cli.Exit("Failed to publish request: "+err.Error(), 1)
					}

					log.Printf("Request %s published", req.ID)
					return nil
				},
			},
			{
				Name:  "history",
				Usage: "List the most recent plays for a specific guild",
				Action: func(c *cli.Context) error {
					guildID := c.String("guild-id")
					if guildID == "" {
						return cli.Exit("Please provide a guild ID using --guild-id", 1)
					}

					postgresConfig, err := config.NewPostgresConfigFromEnv()
					if err != nil {
						return cli.Exit("Failed to load postgres config: "+err.Error(), 1)
					}
					pool, err := datalayer.NewPostgresPoolFromConfig(c.Context, postgresConfig)
					if err != nil {
						return cli.Exit("Failed to create postgres pool: "+err.Error(), 1)
					}
					defer pool.Close()
					if err := datalayer.MigratePostgres(pool); err != nil {
						return cli.Exit("Failed to migrate postgres: "+err.Error(), 1)
					}

					repo := repository.NewPostgresPlayHistoryRepository(pool)
					records, err := repo.Recent(c.Context, guildID, c.Int("limit"))
					if err != nil {
						return cli.Exit("Failed to retrieve history: "+err.Error(), 1)
					}

					fmt.Println(presenters.PlayHistory(records).Content)
					return nil
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "guild-id",
						Usage:    "ID of the guild to list plays for",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of plays to list",
						Value: presenters.MaxListed,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error running CLI: %v", err)
	}
}
