package player_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glizzus/dank-ditties/internal/generator"
	"github.com/glizzus/dank-ditties/internal/player"
	"github.com/glizzus/dank-ditties/internal/resolver"
	"github.com/google/go-cmp/cmp"
)

func newDriver(sel player.Selector, res player.Resolver, opts ...player.DriverOption) *player.Driver {
	opts = append([]player.DriverOption{player.WithIDGenerator(&generator.SequenceGenerator{Prefix: "play"})}, opts...)
	return player.NewDriver(sel, res, opts...)
}

func stopAndWait(t *testing.T, d *player.Driver, s *player.Session) {
	t.Helper()
	d.Stop(s)
	waitDone(t, s)
}

func TestDriverPlaysBackToBack(t *testing.T) {
	voice := newFakeVoice()
	sel := &scriptedSelector{urls: []string{"https://youtu.be/a", "https://youtu.be/b", "https://youtu.be/c"}}
	res := &fakeResolver{}
	d := newDriver(sel, res)
	s := player.NewSession("s1", "g1", "c1", voice)

	if !d.Start(context.Background(), s) {
		t.Fatal("Start() on an idle session returned false")
	}
	defer stopAndWait(t, d, s)

	if got := voice.waitPlay(t); got != "file:https://youtu.be/a" {
		t.Fatalf("first playback = %s", got)
	}
	if got := d.Info(s); got != "https://youtu.be/a" {
		t.Errorf("Info() = %s; want https://youtu.be/a", got)
	}
	if got := d.State(s); got != player.StatePlaying {
		t.Errorf("State() = %s; want playing", got)
	}

	voice.finish(nil)
	if got := voice.waitPlay(t); got != "file:https://youtu.be/b" {
		t.Fatalf("second playback = %s", got)
	}

	voice.finish(errors.New("stream broke"))
	if got := voice.waitPlay(t); got != "file:https://youtu.be/c" {
		t.Fatalf("third playback = %s", got)
	}
}

func TestDriverStartIsSingleFlight(t *testing.T) {
	voice := newFakeVoice()
	sel := &scriptedSelector{urls: []string{"https://youtu.be/a", "https://youtu.be/b"}}
	res := &fakeResolver{}
	d := newDriver(sel, res)
	s := player.NewSession("s1", "g1", "c1", voice)

	var started atomic.Int32
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.Start(context.Background(), s) {
				started.Add(1)
			}
		}()
	}
	wg.Wait()
	defer stopAndWait(t, d, s)

	if started.Load() != 1 {
		t.Fatalf("%d starts began a cycle; want exactly 1", started.Load())
	}

	voice.waitPlay(t)
	voice.assertNoPlay(t, 50*time.Millisecond)
	if calls := res.Calls(); len(calls) != 1 {
		t.Errorf("resolver called %d times; want 1: %v", len(calls), calls)
	}

	if d.Start(context.Background(), s) {
		t.Error("Start() while playing returned true")
	}
}

func TestDriverSkip(t *testing.T) {
	t.Run("no-op when idle", func(t *testing.T) {
		d := newDriver(&scriptedSelector{urls: []string{"a"}}, &fakeResolver{})
		s := player.NewSession("s1", "g1", "c1", newFakeVoice())
		if d.Skip(s) {
			t.Error("Skip() on an idle session returned true")
		}
	})

	t.Run("no-op while resolving", func(t *testing.T) {
		release := make(chan struct{})
		res := &fakeResolver{fn: func(ctx context.Context, _ string) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}}
		voice := newFakeVoice()
		d := newDriver(&scriptedSelector{urls: []string{"a", "b"}}, res)
		s := player.NewSession("s1", "g1", "c1", voice)

		d.Start(context.Background(), s)
		defer stopAndWait(t, d, s)

		if d.Skip(s) {
			t.Error("Skip() while resolving returned true")
		}
		if got := d.State(s); got != player.StateResolving {
			t.Errorf("State() = %s; want resolving", got)
		}
		close(release)
		if got := voice.waitPlay(t); got != "file:a" {
			t.Errorf("playback = %s; want file:a", got)
		}
	})

	t.Run("advances to the next track", func(t *testing.T) {
		voice := newFakeVoice()
		d := newDriver(&scriptedSelector{urls: []string{"a", "b"}}, &fakeResolver{})
		s := player.NewSession("s1", "g1", "c1", voice)

		d.Start(context.Background(), s)
		defer stopAndWait(t, d, s)

		voice.waitPlay(t)
		if !d.Skip(s) {
			t.Fatal("Skip() while playing returned false")
		}
		if got := voice.waitPlay(t); got != "file:b" {
			t.Errorf("playback after skip = %s; want file:b", got)
		}
	})
}

func TestDriverRetriesWithFreshSelection(t *testing.T) {
	tc := []struct {
		name string
		err  error
	}{
		{name: "unsupported source", err: resolver.ErrUnsupportedSource},
		{name: "resolution failure", err: &resolver.ResolutionError{URL: "dead", Provider: "fake", Err: errDead}},
	}

	for _, testCase := range tc {
		t.Run(testCase.name, func(t *testing.T) {
			voice := newFakeVoice()
			sel := &scriptedSelector{urls: []string{"https://vimeo.com/1", "dead", "https://youtu.be/ok"}}
			res := &fakeResolver{fn: failing(testCase.err, "https://vimeo.com/1", "dead")}
			d := newDriver(sel, res)
			s := player.NewSession("s1", "g1", "c1", voice)

			d.Start(context.Background(), s)
			defer stopAndWait(t, d, s)

			if got := voice.waitPlay(t); got != "file:https://youtu.be/ok" {
				t.Fatalf("playback = %s; want the first resolvable URL", got)
			}
			want := []string{"https://vimeo.com/1", "dead", "https://youtu.be/ok"}
			if diff := cmp.Diff(want, res.Calls()); diff != "" {
				t.Errorf("resolution order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDriverSkipsUnsupportedWithoutBackoff(t *testing.T) {
	voice := newFakeVoice()
	unsupported := []string{"https://vimeo.com/1", "https://vimeo.com/2", "https://vimeo.com/3"}
	sel := &scriptedSelector{urls: append(append([]string(nil), unsupported...), "https://youtu.be/ok")}
	res := &fakeResolver{fn: failing(resolver.ErrUnsupportedSource, unsupported...)}
	d := newDriver(sel, res, player.WithRetryPolicy(player.RetryPolicy{MaxAttempts: 2, Delay: time.Second}))
	s := player.NewSession("s1", "g1", "c1", voice)

	started := time.Now()
	d.Start(context.Background(), s)
	defer stopAndWait(t, d, s)

	if got := voice.waitPlay(t); got != "file:https://youtu.be/ok" {
		t.Fatalf("playback = %s; want file:https://youtu.be/ok", got)
	}
	if elapsed := time.Since(started); elapsed >= 500*time.Millisecond {
		t.Errorf("first playback after %s; unsupported links should not wait for the retry delay", elapsed)
	}
	if got := d.State(s); got != player.StatePlaying {
		t.Errorf("State() = %s; want playing", got)
	}
}

func TestDriverUnsupportedStreakCountsAsFailure(t *testing.T) {
	voice := newFakeVoice()
	res := &fakeResolver{fn: func(context.Context, string) error { return resolver.ErrUnsupportedSource }}
	d := newDriver(
		&scriptedSelector{urls: []string{"https://vimeo.com/1"}},
		res,
		player.WithRetryPolicy(player.RetryPolicy{MaxAttempts: 2}),
	)
	s := player.NewSession("s1", "g1", "c1", voice)

	d.Start(context.Background(), s)
	waitDone(t, s)

	if calls := len(res.Calls()); calls != 200 {
		t.Errorf("resolver called %d times; want 200", calls)
	}
	voice.assertNoPlay(t, 10*time.Millisecond)
}

func TestDriverRecoversFromPanic(t *testing.T) {
	voice := newFakeVoice()
	res := &fakeResolver{fn: func(_ context.Context, url string) error {
		if url == "boom" {
			panic("extractor exploded")
		}
		return nil
	}}
	d := newDriver(&scriptedSelector{urls: []string{"boom", "ok"}}, res)
	s := player.NewSession("s1", "g1", "c1", voice)

	d.Start(context.Background(), s)
	defer stopAndWait(t, d, s)

	if got := voice.waitPlay(t); got != "file:ok" {
		t.Fatalf("playback = %s; want file:ok", got)
	}
}

func TestDriverRetriesWhenPlaybackCannotStart(t *testing.T) {
	voice := newFakeVoice()
	voice.playErrs = []error{errors.New("voice not ready")}
	d := newDriver(&scriptedSelector{urls: []string{"a", "b"}}, &fakeResolver{})
	s := player.NewSession("s1", "g1", "c1", voice)

	d.Start(context.Background(), s)
	defer stopAndWait(t, d, s)

	if got := voice.waitPlay(t); got != "file:b" {
		t.Fatalf("playback = %s; want file:b", got)
	}
}

func TestDriverBoundedPolicyGivesUp(t *testing.T) {
	voice := newFakeVoice()
	res := &fakeResolver{fn: func(context.Context, string) error { return errDead }}
	d := newDriver(
		&scriptedSelector{urls: []string{"a", "b"}},
		res,
		player.WithRetryPolicy(player.RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond, MaxDelay: 2 * time.Millisecond}),
	)
	s := player.NewSession("s1", "g1", "c1", voice)

	if !d.Start(context.Background(), s) {
		t.Fatal("Start() on an idle session returned false")
	}
	waitDone(t, s)

	if calls := res.Calls(); len(calls) != 3 {
		t.Errorf("resolver called %d times; want 3", len(calls))
	}
	if got := d.State(s); got != player.StateIdle {
		t.Errorf("State() = %s; want idle", got)
	}
	if got := d.Info(s); got != "a" {
		t.Errorf("Info() = %s; want the last attempted URL a", got)
	}

	// A session that gave up can be started again.
	res.fn = nil
	if !d.Start(context.Background(), s) {
		t.Fatal("Start() after giving up returned false")
	}
	voice.waitPlay(t)
	stopAndWait(t, d, s)
}

func TestDriverStop(t *testing.T) {
	voice := newFakeVoice()
	res := &fakeResolver{}
	d := newDriver(&scriptedSelector{urls: []string{"a", "b"}}, res)
	s := player.NewSession("s1", "g1", "c1", voice)

	if d.Stop(s) {
		t.Error("Stop() on an idle session returned true")
	}

	d.Start(context.Background(), s)
	voice.waitPlay(t)

	if !d.Stop(s) {
		t.Fatal("Stop() while playing returned false")
	}
	waitDone(t, s)

	if voice.IsPlaying() {
		t.Error("voice still playing after Stop()")
	}
	if got := d.State(s); got != player.StateIdle {
		t.Errorf("State() = %s; want idle", got)
	}
	voice.assertNoPlay(t, 50*time.Millisecond)
	if calls := res.Calls(); len(calls) != 1 {
		t.Errorf("resolver called %d times after stop; want 1", len(calls))
	}
}

func TestDriverStopsWithContext(t *testing.T) {
	voice := newFakeVoice()
	d := newDriver(&scriptedSelector{urls: []string{"a"}}, &fakeResolver{})
	s := player.NewSession("s1", "g1", "c1", voice)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx, s)
	voice.waitPlay(t)

	cancel()
	waitDone(t, s)

	if voice.IsPlaying() {
		t.Error("voice still playing after the context was cancelled")
	}
}

func TestDriverRecordsPlays(t *testing.T) {
	voice := newFakeVoice()
	rec := &memoryRecorder{}
	d := newDriver(&scriptedSelector{urls: []string{"a", "b"}}, &fakeResolver{}, player.WithRecorder(rec))
	s := player.NewSession("s1", "g1", "c1", voice)

	d.Start(context.Background(), s)
	voice.waitPlay(t)
	voice.finish(nil)
	voice.waitPlay(t)
	stopAndWait(t, d, s)

	records := rec.Records()
	if len(records) != 2 {
		t.Fatalf("recorded %d plays; want 2", len(records))
	}
	for i, url := range []string{"a", "b"} {
		r := records[i]
		if r.URL != url || r.SessionID != "s1" || r.GuildID != "g1" || r.ChannelID != "c1" || r.Provider != "fake" {
			t.Errorf("record %d = %+v", i, r)
		}
		if r.ID == "" || r.PlayedAt.IsZero() {
			t.Errorf("record %d is missing id or time: %+v", i, r)
		}
	}
}
