package voice

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/priyalabs/tutor-lite/pkg/core"
)

// Player renders a synthesized audio payload audibly. Play blocks
// until playback finishes or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, audio []byte, format string) error
}

// FFPlayPlayer plays audio through ffplay, reading the payload from
// stdin. ffplay decodes mp3 and wav itself; pcm payloads need the
// raw-format flags.
type FFPlayPlayer struct {
	path       string
	volume     int
	sampleRate int
}

// NewFFPlayPlayer creates a player using ffplay from PATH.
func NewFFPlayPlayer() *FFPlayPlayer {
	return &FFPlayPlayer{path: "ffplay", volume: 80, sampleRate: 24000}
}

// WithPath overrides the ffplay binary path.
func (p *FFPlayPlayer) WithPath(path string) *FFPlayPlayer {
	if strings.TrimSpace(path) != "" {
		p.path = path
	}
	return p
}

// WithVolume sets playback volume, 0-100.
func (p *FFPlayPlayer) WithVolume(volume int) *FFPlayPlayer {
	if volume > 0 && volume <= 100 {
		p.volume = volume
	}
	return p
}

// Play feeds the payload to ffplay and waits for it to exit. ctx
// cancellation kills the process.
func (p *FFPlayPlayer) Play(ctx context.Context, audio []byte, format string) error {
	if len(audio) == 0 {
		return nil
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-volume", fmt.Sprintf("%d", p.volume),
		"-nodisp",
		"-autoexit",
	}
	if format == "pcm" {
		args = append(args,
			"-f", "s16le",
			"-ch_layout", "mono",
			"-ar", fmt.Sprintf("%d", p.sampleRate),
		)
	}
	args = append(args, "-i", "-")

	cmd := exec.CommandContext(ctx, p.path, args...)
	cmd.Stdin = bytes.NewReader(audio)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return core.NewCancelledError()
		}
		return fmt.Errorf("ffplay: %w", err)
	}
	return nil
}
