// Package tts provides text-to-speech synthesis for tutor replies.
package tts

import "context"

// Provider is the interface for remote synthesis services.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Synthesize converts text to a complete audio payload.
	Synthesize(ctx context.Context, text string, opts SynthesizeOptions) (*Synthesis, error)
}

// StreamProvider is implemented by providers that can stream audio
// chunks as they are generated, ahead of the full payload.
type StreamProvider interface {
	Provider
	SynthesizeStream(ctx context.Context, text string, opts SynthesizeOptions) (*SynthesisStream, error)
}

// SynthesizeOptions configures synthesis.
type SynthesizeOptions struct {
	VoiceID    string // Voice identifier
	Language   string // Language code
	Format     string // Output format: "mp3", "wav", or "pcm"
	SampleRate int    // Sample rate for pcm/wav output
}

// Synthesis is the result of synthesis. It is the audio handle owned
// by exactly one speech job; Release drops the payload so repeated
// speak calls never accumulate decoded audio.
type Synthesis struct {
	Audio  []byte
	Format string
}

// Release drops the audio payload.
func (s *Synthesis) Release() {
	if s != nil {
		s.Audio = nil
	}
}

// SynthesisStream provides streaming audio output.
type SynthesisStream struct {
	chunks chan []byte
	err    error
	done   chan struct{}
}

// NewSynthesisStream creates a new synthesis stream.
func NewSynthesisStream() *SynthesisStream {
	return &SynthesisStream{
		chunks: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
}

// Chunks returns the channel of audio chunks.
func (s *SynthesisStream) Chunks() <-chan []byte {
	return s.chunks
}

// Err returns the stream error, if any, after the stream finishes.
func (s *SynthesisStream) Err() error {
	<-s.done
	return s.err
}

// Close closes the stream.
func (s *SynthesisStream) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}

// SetError sets the stream error. For implementations.
func (s *SynthesisStream) SetError(err error) {
	s.err = err
}

// Send sends a chunk to the stream. Returns false if the stream is
// closed. For implementations.
func (s *SynthesisStream) Send(chunk []byte) bool {
	select {
	case s.chunks <- chunk:
		return true
	case <-s.done:
		return false
	}
}

// FinishSending closes the chunks channel to signal completion.
func (s *SynthesisStream) FinishSending() {
	close(s.chunks)
}

// LocalSynthesizer is an on-device speech capability, used as the
// fallback path when remote synthesis fails. It may be entirely
// unavailable on some hosts; callers must treat that as a first-class
// condition, not a crash.
type LocalSynthesizer interface {
	// Available reports whether local synthesis can run on this host.
	Available() bool

	// Speak renders text audibly and blocks until playback completes
	// or ctx is cancelled.
	Speak(ctx context.Context, text string, opts LocalOptions) error
}

// LocalOptions configures local synthesis.
type LocalOptions struct {
	Voice   string // voice or language preference, engine specific
	RateWPM int    // words per minute, 0 for engine default
}
