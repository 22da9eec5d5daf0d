package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"voice-orb/config"
	"voice-orb/internal/application"
	"voice-orb/internal/domain"
	"voice-orb/internal/infra/bridge"
	"voice-orb/internal/infra/capture"
	"voice-orb/internal/infra/pushover"
	"voice-orb/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the voice interaction loop",
	Long: `Run the voice controller with the configured capture, assistant and
speech output.

Press Enter to tap the orb. With console capture, the next line you type
is taken as the spoken question. With the bridge, open the printed address
in a browser and click the orb there.

Example:
  orb run --config config.yaml`,
	RunE: runOrb,
}

func runOrb(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(cfg.Log, os.Stderr)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	var b *bridge.Bridge
	if cfg.UsesBridge() {
		b = bridge.New(cfg.Bridge.Addr, cfg.Assistant.Name, logger)
	}

	assistant, err := newAssistant(cfg)
	if err != nil {
		return err
	}
	capt, err := newCapture(cfg, b, logger)
	if err != nil {
		return err
	}
	output, err := newOutput(cfg, b, cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}

	renderer := ui.NewRenderer(cmd.OutOrStdout(), cfg.Assistant.Name)
	defer renderer.Close()

	notifier := newNotifier(cfg, renderer, b, logger)

	controllerCfg := application.DefaultControllerConfig()
	controllerCfg.Voice = newVoice(cfg.Voice)
	controllerCfg.RequestTimeout = cfg.RequestTimeout()

	ctrl := application.NewController(capt, assistant, output, notifier, controllerCfg, logger)
	ctrl.Subscribe(renderer)

	if b != nil {
		ctrl.Subscribe(b)
		b.OnActivate(ctrl.Activate)
		if err := b.Listen(ctx); err != nil {
			return fmt.Errorf("starting bridge: %w", err)
		}
		defer b.Shutdown()
		fmt.Fprintf(cmd.OutOrStdout(), "Open http://localhost%s in a browser to use the orb.\n", cfg.Bridge.Addr)
	}

	if tc, ok := capt.(*capture.TranscribingCapture); ok {
		// a source that fails to open stays unavailable and each tap reports it
		if err := tc.Open(ctx); err != nil {
			logger.Warn("opening audio source", "error", err)
		}
		defer tc.Close()
	}

	console, _ := capt.(*capture.ConsoleCapture)
	go readTaps(ctx, cmd.InOrStdin(), ctrl, console, logger)

	logger.Info("starting voice orb",
		"backend", cfg.Assistant.Backend,
		"capture", cfg.Capture.Source,
		"speech", cfg.Speech.Output,
	)

	if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("controller error", "error", err)
		return err
	}
	return nil
}

func newNotifier(cfg *config.Config, renderer *ui.Renderer, b *bridge.Bridge, logger *slog.Logger) application.Notifier {
	notifiers := application.MultiNotifier{renderer}
	if b != nil {
		notifiers = append(notifiers, b)
	}
	if cfg.Pushover.Enabled {
		push := pushover.NewClient(cfg.Pushover.Token, cfg.Pushover.UserKey, cfg.Assistant.Name)
		notifiers = append(notifiers, application.NewAsyncNotifier(push, logger))
	}
	return notifiers
}

// readTaps turns terminal input into orb taps. A line typed while the
// console capture is listening becomes the transcript instead.
func readTaps(ctx context.Context, in io.Reader, ctrl *application.Controller, console *capture.ConsoleCapture, logger *slog.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if console != nil && console.Feed(scanner.Text()) {
			continue
		}
		wasIdle := ctrl.State() == domain.StateIdle
		ctrl.Activate()
		if console != nil && wasIdle {
			// hold the next line until the session opened by this tap is waiting for it
			waitListening(ctx, console, time.Second)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("reading terminal input", "error", err)
	}
}

func waitListening(ctx context.Context, console *capture.ConsoleCapture, limit time.Duration) {
	deadline := time.After(limit)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for !console.Listening() {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-ticker.C:
		}
	}
}
