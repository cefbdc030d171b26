package tts

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/priyalabs/tutor-lite/pkg/core"
)

// ExecSynthesizer speaks through an on-device speech engine
// (espeak-ng on Linux, say on macOS). It is the fallback path when
// remote synthesis is unavailable.
type ExecSynthesizer struct {
	binary string
}

// NewExecSynthesizer locates a local speech engine. The returned
// synthesizer reports Available() == false when no engine is
// installed; it never fails construction.
func NewExecSynthesizer() *ExecSynthesizer {
	candidates := []string{"espeak-ng", "espeak"}
	if runtime.GOOS == "darwin" {
		candidates = []string{"say", "espeak-ng", "espeak"}
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return &ExecSynthesizer{binary: path}
		}
	}
	return &ExecSynthesizer{}
}

// Available reports whether a local speech engine was found.
func (s *ExecSynthesizer) Available() bool {
	return s.binary != ""
}

// Speak renders text audibly and blocks until the engine exits or ctx
// is cancelled, which kills the engine process.
func (s *ExecSynthesizer) Speak(ctx context.Context, text string, opts LocalOptions) error {
	if s.binary == "" {
		return core.NewVoiceUnavailableError("no local speech engine installed")
	}

	var args []string
	switch {
	case isSayBinary(s.binary):
		if opts.Voice != "" {
			args = append(args, "-v", opts.Voice)
		}
		if opts.RateWPM > 0 {
			args = append(args, "-r", strconv.Itoa(opts.RateWPM))
		}
	default:
		if opts.Voice != "" {
			args = append(args, "-v", opts.Voice)
		}
		if opts.RateWPM > 0 {
			args = append(args, "-s", strconv.Itoa(opts.RateWPM))
		}
	}
	args = append(args, text)

	cmd := exec.CommandContext(ctx, s.binary, args...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return core.NewCancelledError()
		}
		return core.NewSynthesisError(fmt.Sprintf("local speech engine %s", s.binary), err)
	}
	return nil
}

func isSayBinary(path string) bool {
	return len(path) >= 3 && path[len(path)-3:] == "say"
}
