package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"voice-orb/config"
	"voice-orb/internal/domain"
)

var askCmd = &cobra.Command{
	Use:   "ask <text...>",
	Short: "Send one question to the assistant and print the reply",
	Long: `Send a typed question straight to the configured assistant, skipping
speech capture and playback.

Example:
  orb ask --config config.yaml "what does my plan cover?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg.Log, os.Stderr)

	assistant, err := newAssistant(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout())
	defer cancel()

	req := domain.NewPendingRequest(strings.Join(args, " "), time.Now())
	logger.Debug("asking", "request_id", req.ID, "backend", cfg.Assistant.Backend)

	reply, err := assistant.Ask(ctx, req)
	if err != nil {
		return fmt.Errorf("asking assistant: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}
