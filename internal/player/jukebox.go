package player

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/glizzus/dank-ditties/internal/generator"
)

// Connector joins a voice channel.
type Connector interface {
	Connect(ctx context.Context, guildID, channelID string) (VoiceHandle, error)
}

type ConnectorFunc func(ctx context.Context, guildID, channelID string) (VoiceHandle, error)

func (f ConnectorFunc) Connect(ctx context.Context, guildID, channelID string) (VoiceHandle, error) {
	return f(ctx, guildID, channelID)
}

type Queue interface {
	Enqueue(url string) int
	Queue() []string
}

type TrackSelector interface {
	Selector
	Queue
}

// Jukebox owns the single voice session of the bot and routes commands to
// the driver and selector.
type Jukebox struct {
	mu        sync.Mutex
	session   *Session
	selector  TrackSelector
	driver    *Driver
	connector Connector
	ids       generator.Generator[string]
	logger    *slog.Logger
}

func NewJukebox(sel TrackSelector, driver *Driver, connector Connector, ids generator.Generator[string]) *Jukebox {
	return &Jukebox{
		selector:  sel,
		driver:    driver,
		connector: connector,
		ids:       ids,
		logger:    slog.Default(),
	}
}

// Start joins the channel on first use and begins playback. It reports
// false if playback was already running. Playback outlives ctx; use Stop
// to end it.
func (j *Jukebox) Start(ctx context.Context, guildID, channelID string) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.session == nil {
		voice, err := j.connector.Connect(ctx, guildID, channelID)
		if err != nil {
			return false, fmt.Errorf("unable to join voice channel: %w", err)
		}
		id, err := j.ids.Next()
		if err != nil {
			return false, fmt.Errorf("unable to generate session id: %w", err)
		}
		j.session = NewSession(id, guildID, channelID, voice)
		j.logger.Info("joined voice channel", "session_id", id, "guild_id", guildID, "channel_id", channelID)
	}

	return j.driver.Start(context.WithoutCancel(ctx), j.session), nil
}

func (j *Jukebox) Skip() bool {
	s := j.current()
	if s == nil {
		return false
	}
	return j.driver.Skip(s)
}

func (j *Jukebox) Info() string {
	s := j.current()
	if s == nil {
		return ""
	}
	return j.driver.Info(s)
}

func (j *Jukebox) State() State {
	s := j.current()
	if s == nil {
		return StateIdle
	}
	return j.driver.State(s)
}

// Enqueue adds a request and returns its queue position.
func (j *Jukebox) Enqueue(url string) int {
	return j.selector.Enqueue(url)
}

func (j *Jukebox) Queue() []string {
	return j.selector.Queue()
}

// Stop ends playback, waits for the cycle to finish and leaves the channel.
func (j *Jukebox) Stop(ctx context.Context) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	s := j.session
	if s == nil {
		return false, nil
	}

	j.driver.Stop(s)
	select {
	case <-s.Done():
	case <-ctx.Done():
		return false, ctx.Err()
	}

	j.session = nil
	if err := s.Voice().Disconnect(); err != nil {
		return true, fmt.Errorf("unable to leave voice channel: %w", err)
	}
	j.logger.Info("left voice channel", "session_id", s.ID, "guild_id", s.GuildID)
	return true, nil
}

func (j *Jukebox) current() *Session {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.session
}
