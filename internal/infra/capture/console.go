package capture

import (
	"context"
	"errors"
	"strings"
	"sync"

	"voice-orb/internal/application"
	"voice-orb/internal/domain"
)

var ErrSessionActive = errors.New("capture session already active")

// ConsoleCapture takes the next typed line as the transcript. A blank line
// counts as silence.
type ConsoleCapture struct {
	mu      sync.Mutex
	handler application.CaptureHandler
}

func NewConsoleCapture() *ConsoleCapture {
	return &ConsoleCapture{}
}

func (c *ConsoleCapture) Name() string {
	return "console"
}

func (c *ConsoleCapture) Available() bool {
	return true
}

func (c *ConsoleCapture) Start(_ context.Context, _ domain.CaptureOptions, onResult application.CaptureHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handler != nil {
		return ErrSessionActive
	}
	c.handler = onResult
	return nil
}

// Listening reports whether a session is waiting for a line.
func (c *ConsoleCapture) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler != nil
}

// Feed completes the active session with line. It reports false when no
// session was waiting.
func (c *ConsoleCapture) Feed(line string) bool {
	h := c.take()
	if h == nil {
		return false
	}

	if text := strings.TrimSpace(line); text != "" {
		h(domain.CaptureOK(text))
	} else {
		h(domain.CaptureFailed(domain.ReasonNoSpeech, nil))
	}
	return true
}

func (c *ConsoleCapture) Stop() error {
	if h := c.take(); h != nil {
		h(domain.CaptureFailed(domain.ReasonAborted, nil))
	}
	return nil
}

func (c *ConsoleCapture) take() application.CaptureHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	h := c.handler
	c.handler = nil
	return h
}
