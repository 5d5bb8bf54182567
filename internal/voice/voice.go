// Package voice plays local audio files in Discord voice channels.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/dank-ditties/internal/opus"
	"github.com/glizzus/dank-ditties/internal/player"
)

var ErrAlreadyPlaying = errors.New("already playing")

// MaxAttendedChannel returns the ID of the voice channel with the most
// connected members. This returns "" if nobody is connected.
func MaxAttendedChannel(guild *discordgo.Guild) string {
	voiceChannels := make(map[string]bool, len(guild.Channels))
	for _, channel := range guild.Channels {
		if channel.Type == discordgo.ChannelTypeGuildVoice {
			voiceChannels[channel.ID] = true
		}
	}

	attendance := make(map[string]int)
	for _, vs := range guild.VoiceStates {
		if voiceChannels[vs.ChannelID] {
			attendance[vs.ChannelID]++
		}
	}

	var maxAttendedChannel string
	maxAttended := 0
	// Iterate channels, not the map, so ties resolve by channel order.
	for _, channel := range guild.Channels {
		if n := attendance[channel.ID]; n > maxAttended {
			maxAttendedChannel = channel.ID
			maxAttended = n
		}
	}
	return maxAttendedChannel
}

// UserChannel returns the voice channel a user is connected to.
func UserChannel(state *discordgo.State, guildID, userID string) (string, bool) {
	vs, err := state.VoiceState(guildID, userID)
	if err != nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

// DiscordConnector joins voice channels with a bot session.
type DiscordConnector struct {
	Session *discordgo.Session
}

func (c *DiscordConnector) Connect(_ context.Context, guildID, channelID string) (*Connection, error) {
	vc, err := c.Session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("unable to join the voice channel: %w", err)
	}
	return NewConnection(vc.OpusSend, vc), nil
}

// Connector adapts c to the player's connector contract.
func (c *DiscordConnector) Connector() player.Connector {
	return player.ConnectorFunc(func(ctx context.Context, guildID, channelID string) (player.VoiceHandle, error) {
		conn, err := c.Connect(ctx, guildID, channelID)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}

// Link is the part of a voice connection a Connection controls.
type Link interface {
	Speaking(bool) error
	Disconnect() error
}

// Connection plays one file at a time over a voice link.
type Connection struct {
	send chan<- []byte
	link Link

	mu      sync.Mutex
	playing bool
	stop    chan struct{}
}

var _ player.VoiceHandle = (*Connection)(nil)

func NewConnection(send chan<- []byte, link Link) *Connection {
	return &Connection{send: send, link: link}
}

func (c *Connection) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Play encodes the file and streams it in the background. onComplete is
// called exactly once, after the stream ended or was stopped.
func (c *Connection) Play(path string, onComplete func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playing {
		return ErrAlreadyPlaying
	}

	ctx, cancel := context.WithCancel(context.Background())
	frames, err := opus.EncodeFile(ctx, path)
	if err != nil {
		cancel()
		return err
	}

	if err := c.link.Speaking(true); err != nil {
		cancel()
		frames.Close()
		return fmt.Errorf("error setting speaking state to 'true': %w", err)
	}

	stop := make(chan struct{})
	c.playing = true
	c.stop = stop

	go func() {
		reader := opus.NewFrameReader(frames)
		err := opus.StreamToVoice(reader, c.send, stop)
		cancel()
		slog.Debug("stream finished", "path", path, "frames", reader.Frames())
		if cerr := frames.Close(); cerr != nil && err == nil {
			slog.Debug("encoder closed with error", "path", path, slog.Any("error", cerr))
		}
		if serr := c.link.Speaking(false); serr != nil {
			slog.Error("failed to stop speaking", slog.Any("error", serr))
		}

		c.mu.Lock()
		c.playing = false
		c.stop = nil
		c.mu.Unlock()

		onComplete(err)
	}()
	return nil
}

// Stop ends the current track. The completion callback still fires.
func (c *Connection) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Connection) Disconnect() error {
	c.Stop()
	return c.link.Disconnect()
}
