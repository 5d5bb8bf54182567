package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glizzus/dank-ditties/internal/config"
	"github.com/glizzus/dank-ditties/internal/datalayer"
	"github.com/glizzus/dank-ditties/internal/feed"
	"github.com/glizzus/dank-ditties/internal/generator"
	"github.com/glizzus/dank-ditties/internal/handler"
	"github.com/glizzus/dank-ditties/internal/player"
	"github.com/glizzus/dank-ditties/internal/repository"
	"github.com/glizzus/dank-ditties/internal/requests"
	"github.com/glizzus/dank-ditties/internal/resolver"
	"github.com/glizzus/dank-ditties/internal/schedule"
	"github.com/glizzus/dank-ditties/internal/selector"
	"github.com/glizzus/dank-ditties/internal/voice"
	"github.com/redis/go-redis/v9"
)

func newBlobStorage(ctx context.Context) (*datalayer.MinioStorage, error) {
	minioConfig, err := config.NewMinioConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load minio config: %w", err)
	}
	if !minioConfig.Enabled {
		return nil, nil
	}

	storage, err := datalayer.NewMinioStorageFromConfig(minioConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio storage: %w", err)
	}
	if err := storage.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure minio bucket: %w", err)
	}
	slog.Info("Using blob storage", "bucket", minioConfig.Bucket)
	return storage, nil
}

func newResolver(cfg *config.PlayerConfig, storage *datalayer.MinioStorage) (*resolver.Resolver, error) {
	opts := []resolver.Option{
		resolver.WithTimeout(cfg.ResolveTimeout),
		resolver.WithFormat(cfg.AudioFormat),
	}
	if storage != nil {
		opts = append(opts, resolver.WithCache(datalayer.NewBlobTrackCache(storage)))
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	return resolver.New(cfg.WorkDir, cfg.OutputName, resolver.DefaultProviders(*cfg), opts...), nil
}

// loadPool imports the candidate pool. With blob storage the last good
// import is kept and used when the feed fails.
func loadPool(ctx context.Context, cfg *config.FeedConfig, res *resolver.Resolver, storage *datalayer.MinioStorage) ([]string, error) {
	pool, err := feed.Load(ctx, *cfg, res.Supported)
	if storage == nil {
		return pool, err
	}

	snapshot := datalayer.NewPoolSnapshot(storage)
	if err == nil && len(pool) > 0 {
		if serr := snapshot.Save(ctx, cfg.Subreddit, pool); serr != nil {
			slog.Warn("failed to save pool snapshot", "error", serr)
		}
		return pool, nil
	}

	slog.Warn("Feed import failed, using saved pool", "error", err, "size", len(pool))
	saved, serr := snapshot.Load(ctx, cfg.Subreddit)
	if serr != nil {
		return pool, errors.Join(err, serr)
	}
	return saved, nil
}

func newRecorder(ctx context.Context) (player.Recorder, func(), error) {
	postgresConfig, err := config.NewPostgresConfigFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load postgres config: %w", err)
	}
	if !postgresConfig.Enabled {
		return player.NopRecorder{}, func() {}, nil
	}

	pool, err := datalayer.NewPostgresPoolFromConfig(ctx, postgresConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := datalayer.MigratePostgres(pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
	}
	slog.Info("Recording play history", "database", postgresConfig.Database)
	return repository.NewPostgresPlayHistoryRepository(pool), pool.Close, nil
}

func consumeRequests(ctx context.Context, jukebox *player.Jukebox, ids generator.Generator[string]) error {
	redisConfig, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load redis config: %w", err)
	}
	if !redisConfig.Enabled {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisConfig.Addr,
		Password: redisConfig.Password,
	})
	receiver, err := requests.NewRedisReceiver(ctx, rdb, redisConfig.Stream, redisConfig.Group, "bot-"+generator.MustNext(ids))
	if err != nil {
		rdb.Close()
		return fmt.Errorf("failed to join request stream: %w", err)
	}

	go func() {
		defer rdb.Close()
		if err := requests.Consume(ctx, receiver, &requests.EnqueueHandler{Queue: jukebox}); err != nil {
			slog.Error("Request consumer stopped", "error", err)
		}
	}()
	slog.Info("Consuming play requests", "stream", redisConfig.Stream)
	return nil
}

func autostart(ctx context.Context, jukebox *player.Jukebox, connector *voice.DiscordConnector, guildID string) error {
	autostartConfig, err := config.NewAutostartConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load autostart config: %w", err)
	}
	if !autostartConfig.Enabled() {
		return nil
	}
	if guildID == "" {
		return errors.New("DISCORD_GUILD_ID is required for autostart")
	}

	next, err := schedule.NextRunTimes(autostartConfig.Cron, 1)
	if err == nil && len(next) > 0 {
		slog.Info("Autostart scheduled", "cron", autostartConfig.Cron, "next", next[0])
	}

	go func() {
		err := schedule.Every(ctx, autostartConfig.Cron, func(ctx context.Context) {
			channelID := autostartConfig.ChannelID
			if channelID == "" {
				guild, err := connector.Session.State.Guild(guildID)
				if err != nil {
					slog.Error("Failed to look up guild for autostart", "guildID", guildID, "error", err)
					return
				}
				channelID = voice.MaxAttendedChannel(guild)
			}
			if channelID == "" {
				slog.Info("Nobody is listening, skipping autostart")
				return
			}

			started, err := jukebox.Start(ctx, guildID, channelID)
			if err != nil {
				slog.Error("Autostart failed", "channelID", channelID, "error", err)
				return
			}
			slog.Info("Autostart fired", "channelID", channelID, "started", started)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Autostart stopped", "error", err)
		}
	}()
	return nil
}

func runBotForever() error {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	discordConfig, err := config.NewDiscordConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load discord config: %w", err)
	}
	level, err := config.ParseLogLevel(discordConfig.LogLevel)
	if err != nil {
		return err
	}
	slog.SetLogLoggerLevel(level)

	playerConfig, err := config.NewPlayerConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load player config: %w", err)
	}
	feedConfig, err := config.NewFeedConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load feed config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := newBlobStorage(ctx)
	if err != nil {
		return err
	}
	res, err := newResolver(playerConfig, storage)
	if err != nil {
		return err
	}

	pool, err := loadPool(ctx, feedConfig, res, storage)
	if err != nil {
		return fmt.Errorf("failed to load candidate pool: %w", err)
	}
	sel, err := selector.New(pool, selector.WithHistorySize(playerConfig.HistorySize))
	if err != nil {
		return fmt.Errorf("failed to create selector: %w", err)
	}
	slog.Info("Candidate pool loaded", "size", sel.PoolSize())

	recorder, closeRecorder, err := newRecorder(ctx)
	if err != nil {
		return err
	}
	defer closeRecorder()

	ids := &generator.UUIDV4Generator{}
	driver := player.NewDriver(sel, res,
		player.WithRetryPolicy(player.RetryPolicyFromConfig(*playerConfig)),
		player.WithRecorder(recorder),
		player.WithIDGenerator(ids),
	)

	connector := &voice.DiscordConnector{}
	jukebox := player.NewJukebox(sel, driver, connector.Connector(), ids)

	session, err := handler.NewSession(discordConfig.Token, handler.Handlers{
		Ready:         handler.ReadyLog,
		MessageCreate: handler.MakeMessageCreateHandler(jukebox, discordConfig.CommandPrefix),
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	connector.Session = session

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("failed to close session", "error", err)
		}
	}()

	if err := consumeRequests(ctx, jukebox, ids); err != nil {
		return err
	}
	if err := autostart(ctx, jukebox, connector, discordConfig.GuildID); err != nil {
		return err
	}

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := jukebox.Stop(shutdownCtx); err != nil {
		slog.Warn("failed to stop playback", "error", err)
	}
	return nil
}

func main() {
	if err := runBotForever(); err != nil {
		log.Fatalf("failed to run bot: %v", err)
	}
}
