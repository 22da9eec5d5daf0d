package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"voice-orb/internal/application"
	"voice-orb/internal/domain"
)

// DefaultCommand speaks through espeak-ng.
var DefaultCommand = []string{"espeak-ng", "-v", "{lang}", "-s", "{wpm}", "-p", "{pitch_pct}", "{text}"}

// CommandOutput speaks by running an external text-to-speech program, one
// process per utterance. Cancel kills the running process.
type CommandOutput struct {
	args   []string
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

func NewCommandOutput(args []string, logger *slog.Logger) *CommandOutput {
	if len(args) == 0 {
		args = DefaultCommand
	}
	return &CommandOutput{args: args, logger: logger}
}

func (c *CommandOutput) Name() string {
	return "command/" + c.args[0]
}

func (c *CommandOutput) Speak(ctx context.Context, u domain.Utterance, onDone application.SpeechHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	args := ExpandArgs(c.args, u)
	cmdCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(cmdCtx, args[0], args[1:]...)

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("starting %s: %w", args[0], err)
	}

	c.cancel = cancel
	gen := c.gen
	c.logger.Debug("speaking", "command", args[0], "pid", cmd.Process.Pid)

	go func() {
		err := cmd.Wait()
		cancel()

		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.cancel = nil
		c.mu.Unlock()

		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				err = fmt.Errorf("%s exited with status %d", args[0], exitErr.ExitCode())
			}
			onDone(err)
			return
		}
		onDone(nil)
	}()

	return nil
}

func (c *CommandOutput) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *CommandOutput) stopLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// ExpandArgs fills the utterance placeholders in a command template:
// {text}, {locale}, {lang}, {rate}, {pitch}, {wpm} and {pitch_pct}.
func ExpandArgs(template []string, u domain.Utterance) []string {
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	pitch := u.Pitch
	if pitch <= 0 {
		pitch = 1
	}

	r := strings.NewReplacer(
		"{text}", u.Text,
		"{locale}", u.Locale,
		"{lang}", strings.ToLower(u.Locale),
		"{rate}", strconv.FormatFloat(rate, 'f', -1, 64),
		"{pitch}", strconv.FormatFloat(pitch, 'f', -1, 64),
		"{wpm}", strconv.Itoa(int(math.Round(175*rate))),
		"{pitch_pct}", strconv.Itoa(int(math.Min(99, math.Round(50*pitch)))),
	)

	out := make([]string, len(template))
	for i, arg := range template {
		out[i] = r.Replace(arg)
	}
	return out
}
