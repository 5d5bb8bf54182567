package player_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glizzus/dank-ditties/internal/player"
	"github.com/glizzus/dank-ditties/internal/repository"
	"github.com/glizzus/dank-ditties/internal/resolver"
)

const waitTimeout = 2 * time.Second

type fakeVoice struct {
	mu           sync.Mutex
	playing      bool
	onComplete   func(error)
	playErrs     []error
	disconnected bool

	plays chan string
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{plays: make(chan string, 1000)}
}

var _ player.VoiceHandle = (*fakeVoice)(nil)

func (v *fakeVoice) IsPlaying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.playing
}

func (v *fakeVoice) Play(path string, onComplete func(error)) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.playErrs) > 0 {
		err := v.playErrs[0]
		v.playErrs = v.playErrs[1:]
		return err
	}
	v.playing = true
	v.onComplete = onComplete
	v.plays <- path
	return nil
}

// Stop ends the current track like a skip would.
func (v *fakeVoice) Stop() {
	v.finish(nil)
}

// finish ends the current track and runs the completion callback on
// another goroutine, as a real voice connection would.
func (v *fakeVoice) finish(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.playing {
		return
	}
	v.playing = false
	cb := v.onComplete
	v.onComplete = nil
	go cb(err)
}

func (v *fakeVoice) Disconnect() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.disconnected = true
	return nil
}

func (v *fakeVoice) waitPlay(t *testing.T) string {
	t.Helper()
	select {
	case path := <-v.plays:
		return path
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for playback to start")
		return ""
	}
}

func (v *fakeVoice) assertNoPlay(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case path := <-v.plays:
		t.Fatalf("unexpected playback of %s", path)
	case <-time.After(within):
	}
}

// scriptedSelector returns its URLs in order, cycling.
type scriptedSelector struct {
	mu    sync.Mutex
	urls  []string
	next  int
	queue []string
}

func (s *scriptedSelector) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) > 0 {
		url := s.queue[0]
		s.queue = s.queue[1:]
		return url
	}
	url := s.urls[s.next%len(s.urls)]
	s.next++
	return url
}

func (s *scriptedSelector) Enqueue(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, url)
	return len(s.queue)
}

func (s *scriptedSelector) Queue() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queue...)
}

type fakeResolver struct {
	mu    sync.Mutex
	calls []string
	fn    func(ctx context.Context, url string) error
}

func (r *fakeResolver) Resolve(ctx context.Context, url string) (resolver.Track, error) {
	r.mu.Lock()
	r.calls = append(r.calls, url)
	fn := r.fn
	r.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, url); err != nil {
			return resolver.Track{}, err
		}
	}
	return resolver.Track{URL: url, Path: "file:" + url, Provider: "fake"}, nil
}

func (r *fakeResolver) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// failing makes the listed URLs fail resolution with err.
func failing(err error, urls ...string) func(context.Context, string) error {
	return func(_ context.Context, url string) error {
		for _, u := range urls {
			if u == url {
				return err
			}
		}
		return nil
	}
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []repository.PlayRecord
}

func (r *memoryRecorder) RecordPlay(_ context.Context, rec repository.PlayRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memoryRecorder) Records() []repository.PlayRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]repository.PlayRecord(nil), r.records...)
}

func waitDone(t *testing.T, s *player.Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for the playback cycle to end")
	}
}

var errDead = errors.New("video unavailable")
