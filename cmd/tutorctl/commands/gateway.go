package commands

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/priyalabs/tutor-lite/pkg/gateway"
	"github.com/priyalabs/tutor-lite/pkg/gateway/config"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the tutor gateway",
	Long: `Runs the HTTP gateway serving the chat SSE relay (/v1/chat), the
speech synthesis relay (/v1/tts), /healthz, and /metrics.

All settings come from TUTOR_* environment variables; see pkg/gateway/config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFromEnv()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := gateway.New(cfg, gateway.WithLogger(slog.Default()))
		return srv.ListenAndServe(ctx)
	},
}
