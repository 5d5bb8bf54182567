package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/dank-ditties/internal/presenters"
	"github.com/glizzus/dank-ditties/internal/voice"
)

type ReadyHandler = func(*discordgo.Session, *discordgo.Ready)
type MessageCreateHandler = func(*discordgo.Session, *discordgo.MessageCreate)

var ReadyLog = func(s *discordgo.Session, r *discordgo.Ready) {
	username := r.User.Username
	userID := r.User.ID
	slog.Info("Bot is ready", "username", username, "userID", userID)
}

// Controller is the jukebox as seen from chat.
type Controller interface {
	Start(ctx context.Context, guildID, channelID string) (bool, error)
	Skip() bool
	Info() string
	Enqueue(url string) int
	Queue() []string
	Stop(ctx context.Context) (bool, error)
}

type MessageSender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// VoiceLocator finds the voice channel a user is connected to.
type VoiceLocator func(guildID, userID string) (string, bool)

// CommandTimeout bounds the work done for a single chat command.
const CommandTimeout = 30 * time.Second

// Dispatcher runs parsed commands against a Controller.
type Dispatcher struct {
	Controller Controller
	Locate     VoiceLocator
	Prefix     string
}

// Dispatch runs cmd for the author of m and returns the reply.
// Errors of type *UserError are meant to be shown to the author.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command, m *discordgo.MessageCreate) (*discordgo.MessageSend, error) {
	switch cmd.Name {
	case CommandStart:
		channelID, err := d.authorChannel(m)
		if err != nil {
			return nil, err
		}
		started, err := d.Controller.Start(ctx, m.GuildID, channelID)
		if err != nil {
			return nil, fmt.Errorf("failed to start playback: %w", err)
		}
		return presenters.Started(started), nil

	case CommandSkip:
		if _, err := d.authorChannel(m); err != nil {
			return nil, err
		}
		return presenters.Skipped(d.Controller.Skip()), nil

	case CommandStop:
		if _, err := d.authorChannel(m); err != nil {
			return nil, err
		}
		stopped, err := d.Controller.Stop(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to stop playback: %w", err)
		}
		return presenters.Stopped(stopped), nil

	case CommandInfo:
		return presenters.NowPlaying(d.Controller.Info()), nil

	case CommandPlay:
		if cmd.Arg == "" {
			return nil, errMissingURL
		}
		return presenters.Enqueued(d.Controller.Enqueue(cmd.Arg)), nil

	case CommandQueue:
		return presenters.QueueListing(d.Controller.Queue()), nil

	default:
		return presenters.Help(d.Prefix), nil
	}
}

func (d *Dispatcher) authorChannel(m *discordgo.MessageCreate) (string, error) {
	if m.GuildID == "" {
		return "", errUnknownGuild
	}
	channelID, ok := d.Locate(m.GuildID, m.Author.ID)
	if !ok {
		return "", errNotInVoice
	}
	return channelID, nil
}

// Handle parses a message, dispatches it and sends the reply.
func (d *Dispatcher) Handle(ctx context.Context, sender MessageSender, m *discordgo.MessageCreate) {
	cmd, ok := ParseCommand(m.Content, d.Prefix)
	if !ok {
		return
	}
	logger := slog.With("command", cmd.Name, "guild_id", m.GuildID, "user_id", m.Author.ID)

	reply, err := d.Dispatch(ctx, cmd, m)
	if err != nil {
		var userErr *UserError
		if errors.As(err, &userErr) {
			reply = presenters.Error(userErr.Message)
		} else {
			logger.Error("Failed to handle command", "error", err)
			reply = presenters.Error("Something went wrong, try again later")
		}
	}

	if _, err := sender.ChannelMessageSendComplex(m.ChannelID, reply); err != nil {
		logger.Warn("Failed to send reply", "error", err)
	}
}

func MakeMessageCreateHandler(controller Controller, prefix string) MessageCreateHandler {
	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil || m.Author.Bot || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
			return
		}

		d := &Dispatcher{
			Controller: controller,
			Prefix:     prefix,
			Locate: func(guildID, userID string) (string, bool) {
				return voice.UserChannel(s.State, guildID, userID)
			},
		}

		ctx, cancel := context.WithTimeout(context.Background(), CommandTimeout)
		defer cancel()
		d.Handle(ctx, s, m)
	}
}

type Handlers struct {
	Ready         ReadyHandler
	MessageCreate MessageCreateHandler
}

// Intents are the gateway intents the bot needs to read commands and
// track who is in which voice channel.
const Intents = discordgo.IntentGuilds |
	discordgo.IntentGuildMessages |
	discordgo.IntentGuildVoiceStates |
	discordgo.IntentMessageContent

func NewSession(token string, handlers Handlers) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = Intents

	s.AddHandler(handlers.Ready)
	s.AddHandler(handlers.MessageCreate)

	return s, nil
}
