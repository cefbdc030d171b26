package voice

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/priyalabs/tutor-lite/pkg/core"
	"github.com/priyalabs/tutor-lite/pkg/core/voice/tts"
)

type fakeProvider struct {
	mu    sync.Mutex
	err   error
	calls int
	texts []string
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOptions) (*tts.Synthesis, error) {
	f.mu.Lock()
	f.calls++
	f.texts = append(f.texts, text)
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &tts.Synthesis{Audio: []byte("audio:" + text), Format: "mp3"}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePlayer struct {
	mu      sync.Mutex
	playing int32
	played  []string
	block   chan struct{} // if non-nil, Play blocks until closed or ctx done
	err     error
}

func (f *fakePlayer) Play(ctx context.Context, audio []byte, format string) error {
	atomic.AddInt32(&f.playing, 1)
	defer atomic.AddInt32(&f.playing, -1)
	f.mu.Lock()
	f.played = append(f.played, string(audio))
	block := f.block
	err := f.err
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return core.NewCancelledError()
		}
	}
	return err
}

type fakeLocal struct {
	available bool
	mu        sync.Mutex
	spoken    []string
}

func (f *fakeLocal) Available() bool { return f.available }

func (f *fakeLocal) Speak(ctx context.Context, text string, opts tts.LocalOptions) error {
	f.mu.Lock()
	f.spoken = append(f.spoken, text)
	f.mu.Unlock()
	return nil
}

func (f *fakeLocal) spokenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.spoken)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPipeline_Speak_PlaysRemote(t *testing.T) {
	provider := &fakeProvider{}
	player := &fakePlayer{}
	local := &fakeLocal{available: true}

	var started, ended atomic.Int64
	var fallbackNotices atomic.Int64
	p := NewPipeline(provider, player,
		WithLocalFallback(local),
		WithPipelineCallbacks(Callbacks{
			OnStart:          func(string) { started.Add(1) },
			OnEnd:            func(string) { ended.Add(1) },
			OnFallbackNotice: func() { fallbackNotices.Add(1) },
		}),
	)

	p.Speak(context.Background(), "hello student")
	waitFor(t, "playback end", func() bool { return ended.Load() == 1 })

	if started.Load() != 1 {
		t.Fatalf("OnStart fired %d times, want 1", started.Load())
	}
	if local.spokenCount() != 0 {
		t.Fatal("local engine used despite remote success")
	}
	if fallbackNotices.Load() != 0 {
		t.Fatal("fallback advisory shown on the happy path")
	}
	if p.UsingFallback() {
		t.Fatal("UsingFallback() = true after remote success")
	}
	if p.IsSpeaking() {
		t.Fatal("IsSpeaking() = true after playback finished")
	}
}

func TestPipeline_Speak_BlankIsNoop(t *testing.T) {
	provider := &fakeProvider{}
	p := NewPipeline(provider, &fakePlayer{})
	p.Speak(context.Background(), "   ")
	time.Sleep(20 * time.Millisecond)
	if provider.callCount() != 0 {
		t.Fatalf("synthesize calls = %d, want 0", provider.callCount())
	}
}

func TestPipeline_FallbackOrdering(t *testing.T) {
	provider := &fakeProvider{err: core.NewSynthesisError("quota", nil)}
	local := &fakeLocal{available: true}

	var notices, errors, ended atomic.Int64
	p := NewPipeline(provider, &fakePlayer{},
		WithLocalFallback(local),
		WithPipelineCallbacks(Callbacks{
			OnFallbackNotice: func() { notices.Add(1) },
			OnError:          func(error) { errors.Add(1) },
			OnEnd:            func(string) { ended.Add(1) },
		}),
	)

	p.Speak(context.Background(), "fall back please")
	waitFor(t, "fallback speech end", func() bool { return ended.Load() == 1 })

	if local.spokenCount() != 1 {
		t.Fatalf("local engine spoke %d times, want 1", local.spokenCount())
	}
	if notices.Load() != 1 {
		t.Fatalf("advisory shown %d times, want 1", notices.Load())
	}
	if errors.Load() != 0 {
		t.Fatal("OnError fired even though the fallback spoke")
	}
	if !p.UsingFallback() {
		t.Fatal("UsingFallback() = false after fallback speech")
	}

	// A second fallback job does not repeat the advisory.
	p.Speak(context.Background(), "again")
	waitFor(t, "second fallback end", func() bool { return ended.Load() == 2 })
	if notices.Load() != 1 {
		t.Fatalf("advisory shown %d times after second job, want 1", notices.Load())
	}
}

func TestPipeline_FallbackUnavailable(t *testing.T) {
	provider := &fakeProvider{err: core.NewSynthesisError("down", nil)}
	local := &fakeLocal{available: false}

	errs := make(chan error, 1)
	var started atomic.Int64
	p := NewPipeline(provider, &fakePlayer{},
		WithLocalFallback(local),
		WithPipelineCallbacks(Callbacks{
			OnStart: func(string) { started.Add(1) },
			OnError: func(err error) { errs <- err },
		}),
	)

	p.Speak(context.Background(), "anyone there")

	select {
	case err := <-errs:
		if got := core.TypeOf(err); got != core.ErrVoiceUnavailable {
			t.Fatalf("error type = %q, want %q", got, core.ErrVoiceUnavailable)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("OnError never fired")
	}
	if started.Load() != 0 {
		t.Fatal("OnStart fired for a job that produced no speech")
	}
	if p.IsSpeaking() {
		t.Fatal("IsSpeaking() = true with no output path")
	}
}

func TestPipeline_SecondSpeak_StopsFirst(t *testing.T) {
	provider := &fakeProvider{}
	player := &fakePlayer{block: make(chan struct{})}

	startIDs := make(chan string, 2)
	endIDs := make(chan string, 2)
	p := NewPipeline(provider, player,
		WithPipelineCallbacks(Callbacks{
			OnStart: func(id string) { startIDs <- id },
			OnEnd:   func(id string) { endIDs <- id },
		}),
	)

	p.Speak(context.Background(), "first")
	first := <-startIDs

	p.Speak(context.Background(), "second")
	second := <-startIDs
	if second == first {
		t.Fatal("second job reused the first job id")
	}

	p.Stop()

	waitFor(t, "no active playback", func() bool {
		return atomic.LoadInt32(&player.playing) == 0
	})

	// The superseded job never reports an end.
	for {
		select {
		case id := <-endIDs:
			if id == first {
				t.Fatal("superseded job reported OnEnd")
			}
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

func TestPipeline_StopDuringStart_DoesNotRaceAudioRelease(t *testing.T) {
	provider := &fakeProvider{}
	player := &fakePlayer{}

	started := make(chan struct{})
	release := make(chan struct{})
	p := NewPipeline(provider, player,
		WithPipelineCallbacks(Callbacks{
			OnStart: func(string) {
				close(started)
				<-release
			},
		}),
	)

	p.Speak(context.Background(), "handoff")
	<-started

	// Stop releases the job's audio handle while the job is parked
	// between its state update and the playback call.
	p.Stop()
	close(release)

	waitFor(t, "playback attempt", func() bool {
		player.mu.Lock()
		defer player.mu.Unlock()
		return len(player.played) == 1
	})

	player.mu.Lock()
	defer player.mu.Unlock()
	if player.played[0] != "audio:handoff" {
		t.Fatalf("played = %q, want the synthesized audio", player.played[0])
	}
}

func TestPipeline_UsingFallback_ResetsOnRemoteSuccess(t *testing.T) {
	provider := &fakeProvider{err: core.NewSynthesisError("down", nil)}
	local := &fakeLocal{available: true}

	var ended atomic.Int64
	p := NewPipeline(provider, &fakePlayer{},
		WithLocalFallback(local),
		WithPipelineCallbacks(Callbacks{OnEnd: func(string) { ended.Add(1) }}),
	)

	p.Speak(context.Background(), "degraded")
	waitFor(t, "fallback end", func() bool { return ended.Load() == 1 })
	if !p.UsingFallback() {
		t.Fatal("UsingFallback() = false after fallback")
	}

	provider.mu.Lock()
	provider.err = nil
	provider.mu.Unlock()

	p.Speak(context.Background(), "recovered")
	waitFor(t, "remote end", func() bool { return ended.Load() == 2 })
	if p.UsingFallback() {
		t.Fatal("UsingFallback() = true after remote recovered")
	}
}

func TestPipeline_Stop_Idempotent(t *testing.T) {
	p := NewPipeline(&fakeProvider{}, &fakePlayer{})
	p.Stop()
	p.Stop()
	if p.IsSpeaking() {
		t.Fatal("IsSpeaking() = true after Stop")
	}
}
