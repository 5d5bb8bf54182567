package player

import (
	"context"
	"sync"
)

type State int

const (
	StateIdle State = iota
	StateResolving
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// VoiceHandle is a connected voice channel that plays local audio files.
type VoiceHandle interface {
	IsPlaying() bool
	// Play starts playback and returns immediately. onComplete is called
	// exactly once when the track ends, naturally or through Stop, with a
	// non-nil error if playback broke off.
	Play(path string, onComplete func(error)) error
	Stop()
	Disconnect() error
}

// Session is the playback state of one voice channel.
type Session struct {
	ID        string
	GuildID   string
	ChannelID string

	mu         sync.Mutex
	voice      VoiceHandle
	state      State
	currentURL string
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewSession(id, guildID, channelID string, voice VoiceHandle) *Session {
	return &Session{
		ID:        id,
		GuildID:   guildID,
		ChannelID: channelID,
		voice:     voice,
	}
}

func (s *Session) Voice() VoiceHandle {
	return s.voice
}

// Done is closed when the current playback cycle has ended.
// It is already closed if the session is idle.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

func (s *Session) setCurrentURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentURL = url
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}
