package commands

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"voice-orb/config"
)

var flagConfig string

var rootCmd = &cobra.Command{
	Use:   "orb",
	Short: "Tap-to-talk voice assistant",
	Long: `orb drives one voice interaction at a time: it listens for a question,
sends the transcript to the configured assistant and speaks the reply.

Capture and playback can run in the terminal, through local audio tools,
or in a browser page served by the bridge.`,
	SilenceUsage: true,
}

// Command returns the root cobra command for mounting into a parent CLI.
func Command() *cobra.Command {
	return rootCmd
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "config.yaml", "path to config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(askCmd)
}

func setupLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
