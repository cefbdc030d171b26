package commands

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/priyalabs/tutor-lite/pkg/core/voice"
	"github.com/priyalabs/tutor-lite/pkg/core/voice/tts"
)

var (
	sayGatewayURL string
	sayVoiceID    string
)

var sayCmd = &cobra.Command{
	Use:   "say [text...]",
	Short: "Speak one line of text",
	Long: `Synthesizes the given text through the gateway's TTS relay and plays
it with ffplay. If synthesis fails, the local speech engine (espeak-ng
or say) takes over.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")

		remote := tts.NewRemote(strings.TrimSuffix(sayGatewayURL, "/") + "/v1/tts")
		done := make(chan error, 1)
		pipeline := voice.NewPipeline(remote, voice.NewFFPlayPlayer(),
			voice.WithLocalFallback(tts.NewExecSynthesizer()),
			voice.WithVoice(sayVoiceID),
			voice.WithPipelineLogger(slog.Default()),
			voice.WithPipelineCallbacks(voice.Callbacks{
				OnEnd:            func(string) { done <- nil },
				OnError:          func(err error) { done <- err },
				OnFallbackNotice: func() { slog.Warn("remote synthesis unavailable, using the local engine") },
			}),
		)

		pipeline.Speak(cmd.Context(), text)
		select {
		case err := <-done:
			return err
		case <-cmd.Context().Done():
			pipeline.Stop()
			return errors.New("interrupted")
		}
	},
}

func init() {
	sayCmd.Flags().StringVar(&sayGatewayURL, "gateway", "http://localhost:8080", "tutor gateway base URL")
	sayCmd.Flags().StringVar(&sayVoiceID, "voice", tts.DefaultVoiceID, "voice ID")
}
