// Package commands holds the tutorctl command tree.
package commands

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	envFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tutorctl",
	Short: "AI tutoring session toolkit",
	Long: `tutorctl runs the tutor gateway and drives learning sessions from
the terminal.

Examples:
  # Run the gateway (reads TUTOR_* environment variables)
  tutorctl gateway

  # Start an interactive tutoring session against a gateway
  tutorctl session --gateway http://localhost:8080 --name Asha

  # Speak one line of text
  tutorctl say "Namaste! Let's learn quadratic equations."
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initEnv)

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default .env if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(sayCmd)
}

func initEnv() {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("could not load env file", "path", envFile, "error", err)
		}
	} else {
		_ = godotenv.Load()
	}

	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))
}
