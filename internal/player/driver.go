// Package player drives continuous playback in a voice session.
//
// A started session runs a single cycle goroutine: select a URL, resolve it,
// play it, wait for the completion event, repeat. Failed attempts are
// retried with a fresh selection according to a RetryPolicy.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/glizzus/dank-ditties/internal/generator"
	"github.com/glizzus/dank-ditties/internal/repository"
	"github.com/glizzus/dank-ditties/internal/resolver"
)

type Selector interface {
	Next() string
}

type Resolver interface {
	Resolve(ctx context.Context, url string) (resolver.Track, error)
}

// PanicError is a panic recovered from a playback attempt.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic during playback attempt: %v", e.Value)
}

type DriverOption func(*Driver)

func WithRetryPolicy(p RetryPolicy) DriverOption {
	return func(d *Driver) {
		d.policy = p
	}
}

func WithRecorder(r Recorder) DriverOption {
	return func(d *Driver) {
		d.recorder = r
	}
}

func WithIDGenerator(g generator.Generator[string]) DriverOption {
	return func(d *Driver) {
		d.ids = g
	}
}

func WithDriverLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = l
	}
}

type Driver struct {
	selector Selector
	resolver Resolver
	policy   RetryPolicy
	recorder Recorder
	ids      generator.Generator[string]
	logger   *slog.Logger
}

func NewDriver(sel Selector, res Resolver, opts ...DriverOption) *Driver {
	d := &Driver{
		selector: sel,
		resolver: res,
		policy:   Unbounded,
		recorder: NopRecorder{},
		ids:      &generator.UUIDV4Generator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start begins the playback cycle if the session is idle and reports
// whether it did. The cycle runs until Stop is called, ctx is done, or the
// retry policy gives up.
func (d *Driver) Start(ctx context.Context, s *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	s.state = StateResolving
	s.cancel = cancel
	s.done = make(chan struct{})

	go d.run(ctx, s, s.done)
	return true
}

// Skip stops the current track, which lets the cycle move on to the next
// one. It does nothing unless a track is playing.
func (d *Driver) Skip(s *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePlaying || !s.voice.IsPlaying() {
		return false
	}
	s.voice.Stop()
	return true
}

// Stop ends the playback cycle and silences the voice handle.
func (d *Driver) Stop(s *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateIdle {
		return false
	}
	s.cancel()
	if s.voice.IsPlaying() {
		s.voice.Stop()
	}
	return true
}

// Info returns the URL being played, or the last one attempted while the
// session is resolving.
func (d *Driver) Info(s *Session) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentURL
}

func (d *Driver) State(s *Session) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (d *Driver) run(ctx context.Context, s *Session, done chan struct{}) {
	logger := d.logger.With("session_id", s.ID, "guild_id", s.GuildID)
	logger.Info("playback started")

	defer func() {
		s.mu.Lock()
		s.state = StateIdle
		s.cancel()
		s.cancel = nil
		s.done = nil
		s.mu.Unlock()
		close(done)
		logger.Info("playback stopped")
	}()

	for ctx.Err() == nil {
		track, finished, err := d.playNext(ctx, s, logger)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("giving up on playback", slog.Any("error", err))
			}
			return
		}

		d.record(ctx, s, track, logger)

		select {
		case err := <-finished:
			if err != nil {
				logger.Warn("playback ended with error", "url", track.URL, slog.Any("error", err))
			}
		case <-ctx.Done():
			s.mu.Lock()
			if s.voice.IsPlaying() {
				s.voice.Stop()
			}
			s.mu.Unlock()
			return
		}

		s.setState(StateResolving)
	}
}

// playNext retries attempts until one starts playing or the policy gives up.
func (d *Driver) playNext(ctx context.Context, s *Session, logger *slog.Logger) (resolver.Track, <-chan error, error) {
	var (
		track    resolver.Track
		finished <-chan error
		attempt  int
	)

	operation := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		var err error
		track, finished, err = d.attempt(ctx, s, logger)
		return err
	}

	notify := func(err error, next time.Duration) {
		logger.Warn("playback attempt failed", "url", d.Info(s), "attempt", attempt, "retry_in", next, slog.Any("error", err))
	}

	if err := backoff.RetryNotify(operation, d.policy.backOff(ctx), notify); err != nil {
		return resolver.Track{}, nil, err
	}
	return track, finished, nil
}

// maxUnsupportedInARow bounds how many unsupported links one attempt skips
// before it counts as a failure.
const maxUnsupportedInARow = 100

// attempt selects until it finds a supported link, then resolves and plays
// it. Unsupported links are skipped without touching the retry policy.
func (d *Driver) attempt(ctx context.Context, s *Session, logger *slog.Logger) (track resolver.Track, finished <-chan error, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	for skipped := 0; ; skipped++ {
		if err := ctx.Err(); err != nil {
			return resolver.Track{}, nil, backoff.Permanent(err)
		}

		url := d.selector.Next()
		s.setCurrentURL(url)

		track, err = d.resolver.Resolve(ctx, url)
		if !errors.Is(err, resolver.ErrUnsupportedSource) || skipped+1 >= maxUnsupportedInARow {
			break
		}
		logger.Info("skipping unsupported source", "url", url)
	}
	if err != nil {
		return resolver.Track{}, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return resolver.Track{}, nil, backoff.Permanent(err)
	}

	ch := make(chan error, 1)
	var once sync.Once
	onComplete := func(err error) {
		once.Do(func() { ch <- err })
	}
	if err := s.voice.Play(track.Path, onComplete); err != nil {
		return resolver.Track{}, nil, fmt.Errorf("unable to start playback: %w", err)
	}
	s.state = StatePlaying
	return track, ch, nil
}

func (d *Driver) record(ctx context.Context, s *Session, track resolver.Track, logger *slog.Logger) {
	id, err := d.ids.Next()
	if err != nil {
		logger.Warn("unable to generate play record id", slog.Any("error", err))
		return
	}
	rec := repository.PlayRecord{
		ID:        id,
		SessionID: s.ID,
		GuildID:   s.GuildID,
		ChannelID: s.ChannelID,
		URL:       track.URL,
		Provider:  track.Provider,
		PlayedAt:  time.Now(),
	}
	if err := d.recorder.RecordPlay(ctx, rec); err != nil {
		logger.Warn("unable to record play", "url", track.URL, slog.Any("error", err))
	}
	logger.Info("now playing", "url", track.URL, "provider", track.Provider)
}
