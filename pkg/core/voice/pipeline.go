// Package voice turns tutor replies into audible speech, with a
// remote synthesis provider in front and an on-device fallback
// behind it.
package voice

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/priyalabs/tutor-lite/pkg/core"
	"github.com/priyalabs/tutor-lite/pkg/core/voice/tts"
)

// Callbacks are the pipeline's observable events. All callbacks are
// invoked outside the pipeline lock.
type Callbacks struct {
	// OnStart fires when playback of a job begins.
	OnStart func(jobID string)

	// OnEnd fires when playback of a job stops, whether it finished
	// or failed mid-play.
	OnEnd func(jobID string)

	// OnFallbackNotice fires at most once over the pipeline's
	// lifetime, the first time remote synthesis fails and the local
	// engine takes over.
	OnFallbackNotice func()

	// OnError fires when a job produces no speech at all.
	OnError func(err error)
}

// Pipeline speaks text. At most one job is ever audible: starting a
// new job stops the previous one first.
type Pipeline struct {
	remote  tts.Provider
	local   tts.LocalSynthesizer
	player  Player
	voiceID string
	logger  *slog.Logger
	cb      Callbacks

	mu            sync.Mutex
	generation    uint64
	cancel        context.CancelFunc
	current       *tts.Synthesis
	speaking      bool
	usingFallback bool
	advisoryShown bool
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLocalFallback sets the on-device synthesizer used when remote
// synthesis fails.
func WithLocalFallback(local tts.LocalSynthesizer) PipelineOption {
	return func(p *Pipeline) { p.local = local }
}

// WithVoice sets the remote voice ID.
func WithVoice(voiceID string) PipelineOption {
	return func(p *Pipeline) { p.voiceID = voiceID }
}

// WithPipelineLogger sets the logger.
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPipelineCallbacks sets the event callbacks.
func WithPipelineCallbacks(cb Callbacks) PipelineOption {
	return func(p *Pipeline) { p.cb = cb }
}

// NewPipeline creates a speech pipeline over a remote provider and a
// player.
func NewPipeline(remote tts.Provider, player Player, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		remote:  remote,
		player:  player,
		voiceID: tts.DefaultVoiceID,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Speak speaks text asynchronously, stopping any job already in
// progress. Blank text is a no-op.
func (p *Pipeline) Speak(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	p.mu.Lock()
	p.stopLocked()
	p.generation++
	gen := p.generation
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()

	jobID := uuid.NewString()
	go p.run(runCtx, gen, jobID, text)
}

// Stop halts any synthesis or playback in progress. Idempotent.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	p.stopLocked()
	p.generation++
	p.mu.Unlock()
}

func (p *Pipeline) stopLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	// Release the previous audio handle before the next job
	// allocates a new one.
	if p.current != nil {
		p.current.Release()
		p.current = nil
	}
	p.speaking = false
}

// IsSpeaking reports whether a job is currently audible.
func (p *Pipeline) IsSpeaking() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speaking
}

// UsingFallback reports whether the last completed job used the
// local engine.
func (p *Pipeline) UsingFallback() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usingFallback
}

func (p *Pipeline) run(ctx context.Context, gen uint64, jobID, text string) {
	syn, err := p.remote.Synthesize(ctx, text, tts.SynthesizeOptions{VoiceID: p.voiceID})
	if err != nil {
		if core.IsCancelled(err) || ctx.Err() != nil {
			return
		}
		p.logger.Warn("remote synthesis failed, trying local engine", "job", jobID, "error", err)
		p.runFallback(ctx, gen, jobID, text)
		return
	}

	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		syn.Release()
		return
	}
	p.current = syn
	p.speaking = true
	p.usingFallback = false
	// Copy the payload references out while holding the lock: a Stop or
	// superseding Speak releases p.current under the lock, so reading
	// syn fields after unlock would race that release.
	audio, format := syn.Audio, syn.Format
	onStart := p.cb.OnStart
	p.mu.Unlock()

	if onStart != nil {
		onStart(jobID)
	}

	playErr := p.player.Play(ctx, audio, format)

	p.mu.Lock()
	stale := gen != p.generation
	if !stale {
		p.speaking = false
		if p.current == syn {
			p.current.Release()
			p.current = nil
		}
	}
	onEnd := p.cb.OnEnd
	p.mu.Unlock()

	if stale {
		return
	}
	// Playback failures end the job; a voice that started is never
	// retried through the fallback.
	if playErr != nil && !core.IsCancelled(playErr) {
		p.logger.Warn("playback failed", "job", jobID, "error", playErr)
	}
	if onEnd != nil {
		onEnd(jobID)
	}
}

func (p *Pipeline) runFallback(ctx context.Context, gen uint64, jobID, text string) {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}
	local := p.local
	available := local != nil && local.Available()
	var advise func()
	if available {
		p.usingFallback = true
		if !p.advisoryShown {
			p.advisoryShown = true
			advise = p.cb.OnFallbackNotice
		}
		p.speaking = true
	}
	onStart := p.cb.OnStart
	onError := p.cb.OnError
	p.mu.Unlock()

	if !available {
		if onError != nil {
			onError(core.NewVoiceUnavailableError("no speech output is available"))
		}
		return
	}

	if advise != nil {
		advise()
	}
	if onStart != nil {
		onStart(jobID)
	}

	err := local.Speak(ctx, text, tts.LocalOptions{})

	p.mu.Lock()
	stale := gen != p.generation
	if !stale {
		p.speaking = false
	}
	onEnd := p.cb.OnEnd
	p.mu.Unlock()

	if stale {
		return
	}
	if err != nil && !core.IsCancelled(err) {
		p.logger.Warn("local speech failed", "job", jobID, "error", err)
	}
	if onEnd != nil {
		onEnd(jobID)
	}
}
