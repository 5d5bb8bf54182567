package e2e_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glizzus/dank-ditties/e2e"
	"github.com/glizzus/dank-ditties/internal/config"
	"github.com/glizzus/dank-ditties/internal/feed"
	"github.com/glizzus/dank-ditties/internal/generator"
	"github.com/glizzus/dank-ditties/internal/player"
	"github.com/glizzus/dank-ditties/internal/requests"
	"github.com/glizzus/dank-ditties/internal/resolver"
	"github.com/glizzus/dank-ditties/internal/selector"
	"github.com/google/go-cmp/cmp"
)

const waitTimeout = 5 * time.Second

// urlExtractor writes the requested URL into the output file. URLs
// containing "broken" fail to extract.
type urlExtractor struct{}

func (urlExtractor) Extract(_ context.Context, url, dir, name string) error {
	if strings.Contains(url, "broken") {
		return errors.New("video unavailable")
	}
	return os.WriteFile(filepath.Join(dir, name+".mp3"), []byte(url), 0o644)
}

// speaker is a voice connection that reports the URL inside each played
// file and only finishes a track when told to.
type speaker struct {
	mu         sync.Mutex
	onComplete func(error)
	plays      chan string
}

var _ player.VoiceHandle = (*speaker)(nil)

func newSpeaker() *speaker {
	return &speaker{plays: make(chan string, 100)}
}

func (s *speaker) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onComplete != nil
}

func (s *speaker) Play(path string, onComplete func(error)) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onComplete = onComplete
	s.plays <- string(b)
	return nil
}

func (s *speaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb := s.onComplete; cb != nil {
		s.onComplete = nil
		go cb(nil)
	}
}

func (s *speaker) Disconnect() error { return nil }

func (s *speaker) waitPlay(t *testing.T) string {
	t.Helper()
	select {
	case url := <-s.plays:
		return url
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for playback to start")
		return ""
	}
}

func newJukebox(t *testing.T, pool []string, recorder player.Recorder) (*player.Jukebox, *speaker) {
	t.Helper()

	providers := []resolver.Provider{{
		Name:      resolver.ProviderYouTube,
		Domains:   []string{"youtube.com", "youtu.be"},
		Extractor: urlExtractor{},
		Locate:    resolver.LocateExact,
	}}
	res := resolver.New(t.TempDir(), "out", providers)

	poolFile := filepath.Join(t.TempDir(), "pool.json")
	b, err := json.Marshal(pool)
	if err != nil {
		t.Fatalf("failed to marshal pool: %v", err)
	}
	if err := os.WriteFile(poolFile, b, 0o644); err != nil {
		t.Fatalf("failed to write pool: %v", err)
	}
	urls, err := feed.Load(t.Context(), config.FeedConfig{File: poolFile}, res.Supported)
	if err != nil {
		t.Fatalf("failed to load pool: %v", err)
	}

	sel, err := selector.New(urls)
	if err != nil {
		t.Fatalf("failed to create selector: %v", err)
	}

	driver := player.NewDriver(sel, res, player.WithRecorder(recorder))
	voice := newSpeaker()
	connector := player.ConnectorFunc(func(context.Context, string, string) (player.VoiceHandle, error) {
		return voice, nil
	})
	jukebox := player.NewJukebox(sel, driver, connector, &generator.UUIDV4Generator{})

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		if _, err := jukebox.Stop(ctx); err != nil {
			t.Errorf("failed to stop jukebox: %v", err)
		}
	})
	return jukebox, voice
}

func TestJukeboxRecordsPlayHistory(t *testing.T) {
	connStr := e2e.UsePostgres(t)
	repo := e2e.GetRepository(t, connStr)
	e2e.SeedGlobalNoise(t, repo)

	const guildID, channelID = "74241007174813750", "74241007174813751"
	pool := []string{
		"https://youtu.be/everything-she-wants",
		"https://www.youtube.com/watch?v=take-on-me",
		"https://youtu.be/broken",
		"https://example.com/not-a-track",
	}
	jukebox, voice := newJukebox(t, pool, repo)

	started, err := jukebox.Start(t.Context(), guildID, channelID)
	if err != nil || !started {
		t.Fatalf("Start() = %v, %v; want true, nil", started, err)
	}

	var played []string
	for i := range 3 {
		url := voice.waitPlay(t)
		if strings.Contains(url, "broken") || strings.Contains(url, "example.com") {
			t.Fatalf("played %s, which should never reach the voice channel", url)
		}
		played = append(played, url)
		if i < 2 {
			voice.Stop()
		}
	}

	var records []string
	var sessions []string
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		recent, err := repo.Recent(t.Context(), guildID, 10)
		if err != nil {
			t.Fatalf("failed to read play history: %v", err)
		}
		if len(recent) == len(played) {
			records, sessions = nil, nil
			for _, r := range recent {
				records = append(records, r.URL)
				sessions = append(sessions, r.SessionID)
			}
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	want := slices.Clone(played)
	slices.Reverse(want)
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("play history mismatch (-want +got):\n%s", diff)
	}
	if len(slices.Compact(sessions)) != 1 {
		t.Errorf("expected every play to belong to one session, got %v", sessions)
	}
	if got := jukebox.Info(); got != played[2] {
		t.Errorf("Info() = %q; want %q", got, played[2])
	}
}

func TestJukeboxPlaysStreamRequestsFirst(t *testing.T) {
	client := e2e.UseRedis(t)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	pool := []string{
		"https://youtu.be/everything-she-wants",
		"https://www.youtube.com/watch?v=take-on-me",
	}
	jukebox, voice := newJukebox(t, pool, player.NopRecorder{})

	const stream, group = "e2e_requests", "e2e_bot"
	receiver, err := requests.NewRedisReceiver(ctx, client, stream, group, "e2e-1")
	if err != nil {
		t.Fatalf("failed to create receiver: %v", err)
	}
	go requests.Consume(ctx, receiver, &requests.EnqueueHandler{Queue: jukebox})

	const requested = "https://youtu.be/requested"
	err = requests.NewRedisPublisher(client, stream).Publish(ctx, requests.Request{
		ID:          "request-1",
		URL:         requested,
		RequestedBy: "e2e",
		RequestedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to publish request: %v", err)
	}

	deadline := time.Now().Add(waitTimeout)
	for len(jukebox.Queue()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the request to be enqueued")
		}
		time.Sleep(50 * time.Millisecond)
	}

	if _, err := jukebox.Start(ctx, "guild", "channel"); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	if got := voice.waitPlay(t); got != requested {
		t.Errorf("first play = %q; want %q", got, requested)
	}
	voice.Stop()
	if got := voice.waitPlay(t); !slices.Contains(pool, got) {
		t.Errorf("second play = %q; want a pool track", got)
	}
}
