package speech

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"voice-orb/internal/application"
	"voice-orb/internal/domain"
)

const (
	wordsPerSecond     = 2.5
	minSpeakingTime    = 500 * time.Millisecond
	consoleSpeakPrefix = "» "
)

// ConsoleOutput prints utterances and reports completion after the time it
// would take to say them aloud.
type ConsoleOutput struct {
	w io.Writer

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

func NewConsoleOutput(w io.Writer) *ConsoleOutput {
	return &ConsoleOutput{w: w}
}

func (c *ConsoleOutput) Name() string {
	return "console"
}

func (c *ConsoleOutput) Speak(_ context.Context, u domain.Utterance, onDone application.SpeechHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	if _, err := fmt.Fprintln(c.w, consoleSpeakPrefix+u.Text); err != nil {
		return fmt.Errorf("writing utterance: %w", err)
	}

	gen := c.gen
	c.timer = time.AfterFunc(SpeakingTime(u), func() {
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		c.mu.Unlock()

		onDone(nil)
	})
	return nil
}

func (c *ConsoleOutput) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *ConsoleOutput) stopLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// SpeakingTime estimates how long an utterance takes to say at its rate.
func SpeakingTime(u domain.Utterance) time.Duration {
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	words := len(strings.Fields(u.Text))
	d := time.Duration(float64(words) / (wordsPerSecond * rate) * float64(time.Second))
	if d < minSpeakingTime {
		return minSpeakingTime
	}
	return d
}
