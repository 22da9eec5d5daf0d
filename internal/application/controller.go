package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"voice-orb/internal/domain"
)

type ControllerConfig struct {
	Voice          domain.Voice
	RequestTimeout time.Duration
}

func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		Voice:          domain.DefaultVoice(),
		RequestTimeout: 30 * time.Second,
	}
}

type eventKind int

const (
	eventActivate eventKind = iota
	eventCapture
	eventReply
	eventSpeechDone
)

type event struct {
	kind      eventKind
	cycle     uint64
	capture   domain.CaptureResult
	reply     string
	requestID string
	err       error
}

// Controller drives one voice interaction at a time through
// idle -> listening -> processing -> speaking -> idle.
//
// All transitions run on the goroutine that called Run. Adapters report
// back by posting events; every event carries the cycle it belongs to so
// callbacks from an abandoned cycle are dropped.
type Controller struct {
	capture   SpeechCapture
	assistant RemoteAssistant
	output    SpeechOutput
	notifier  Notifier
	cfg       ControllerConfig
	logger    *slog.Logger

	events   chan event
	done     chan struct{}
	doneOnce sync.Once
	running  atomic.Bool

	mu        sync.RWMutex
	state     domain.State
	observers []StateObserver

	// owned by the event loop
	cycle         uint64
	cancelRequest context.CancelFunc
}

func NewController(
	capture SpeechCapture,
	assistant RemoteAssistant,
	output SpeechOutput,
	notifier Notifier,
	cfg ControllerConfig,
	logger *slog.Logger,
) *Controller {
	if notifier == nil {
		notifier = &NoopNotifier{}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultControllerConfig().RequestTimeout
	}
	return &Controller{
		capture:   capture,
		assistant: assistant,
		output:    output,
		notifier:  notifier,
		cfg:       cfg,
		logger:    logger,
		events:    make(chan event, 32),
		done:      make(chan struct{}),
		state:     domain.StateIdle,
	}
}

func (c *Controller) State() domain.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Subscribe registers an observer and immediately reports the current state to it.
func (c *Controller) Subscribe(o StateObserver) {
	c.mu.Lock()
	c.observers = append(c.observers, o)
	current := c.state
	c.mu.Unlock()

	o.StateChanged(current)
}

// Activate is the orb click. From idle it starts listening, from speaking it
// cancels playback, and in every other state it does nothing.
func (c *Controller) Activate() {
	c.post(event{kind: eventActivate})
}

func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("controller already running")
	}
	defer c.teardown()

	c.logger.Info("voice controller ready",
		"capture", c.capture.Name(),
		"output", c.output.Name(),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case eventActivate:
		c.handleActivate(ctx)
	case eventCapture:
		c.handleCapture(ctx, ev)
	case eventReply:
		c.handleReply(ctx, ev)
	case eventSpeechDone:
		c.handleSpeechDone(ctx, ev)
	}
}

func (c *Controller) handleActivate(ctx context.Context) {
	switch state := c.State(); state {
	case domain.StateIdle:
		if !c.capture.Available() {
			c.fail(ctx, domain.KindCapabilityUnavailable, domain.ErrCaptureUnavailable)
			return
		}

		c.cycle++
		cycle := c.cycle
		c.setState(domain.StateListening)

		opts := domain.DefaultCaptureOptions(c.cfg.Voice.Locale)
		err := c.capture.Start(ctx, opts, func(result domain.CaptureResult) {
			c.post(event{kind: eventCapture, cycle: cycle, capture: result})
		})
		if err != nil {
			c.fail(ctx, domain.KindCaptureFailed, fmt.Errorf("starting capture: %w", err))
		}

	case domain.StateSpeaking:
		c.cycle++
		c.output.Cancel()
		c.logger.Info("speech interrupted by user")
		c.setState(domain.StateIdle)

	default:
		c.logger.Debug("ignoring activation", "state", state)
	}
}

func (c *Controller) handleCapture(ctx context.Context, ev event) {
	if !c.current(ev, domain.StateListening) {
		c.logger.Debug("dropping stale capture result", "cycle", ev.cycle)
		return
	}

	result := ev.capture
	if !result.OK() {
		reason := result.Reason
		if reason == "" {
			reason = domain.ReasonNoSpeech
		}
		err := result.Err
		if err == nil {
			err = domain.ErrEmptyTranscript
		}
		c.fail(ctx, domain.KindCaptureFailed, fmt.Errorf("%s: %w", reason, err))
		return
	}

	req := domain.NewPendingRequest(strings.TrimSpace(result.Transcript), time.Now())
	c.logger.Info("transcribed", "text", req.Transcript, "request_id", req.ID)
	c.setState(domain.StateProcessing)

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	cycle := c.cycle

	// the deadline holds even when the assistant ignores its context
	timer := time.AfterFunc(c.cfg.RequestTimeout, func() {
		c.post(event{
			kind:      eventReply,
			cycle:     cycle,
			requestID: req.ID,
			err:       fmt.Errorf("waiting for reply: %w", context.DeadlineExceeded),
		})
	})
	c.cancelRequest = func() {
		timer.Stop()
		cancel()
	}

	go func() {
		defer cancel()
		reply, err := c.assistant.Ask(reqCtx, req)
		c.post(event{kind: eventReply, cycle: cycle, reply: reply, requestID: req.ID, err: err})
	}()
}

func (c *Controller) handleReply(ctx context.Context, ev event) {
	if !c.current(ev, domain.StateProcessing) {
		c.logger.Debug("dropping stale reply", "cycle", ev.cycle, "request_id", ev.requestID)
		return
	}
	if c.cancelRequest != nil {
		c.cancelRequest()
		c.cancelRequest = nil
	}

	if ev.err != nil {
		c.fail(ctx, domain.KindTransportFailed, ev.err)
		return
	}

	c.logger.Info("assistant replied", "request_id", ev.requestID, "chars", len(ev.reply))
	c.setState(domain.StateSpeaking)

	cycle := c.cycle
	c.output.Cancel()
	err := c.output.Speak(ctx, c.cfg.Voice.Utterance(ev.reply), func(err error) {
		c.post(event{kind: eventSpeechDone, cycle: cycle, err: err})
	})
	if err != nil {
		c.fail(ctx, domain.KindSynthesisFailed, fmt.Errorf("starting speech: %w", err))
	}
}

func (c *Controller) handleSpeechDone(ctx context.Context, ev event) {
	if !c.current(ev, domain.StateSpeaking) {
		c.logger.Debug("dropping stale speech completion", "cycle", ev.cycle)
		return
	}

	if ev.err != nil {
		c.fail(ctx, domain.KindSynthesisFailed, ev.err)
		return
	}
	c.setState(domain.StateIdle)
}

func (c *Controller) current(ev event, want domain.State) bool {
	return ev.cycle == c.cycle && c.State() == want
}

// fail returns the controller to idle and surfaces the error once.
func (c *Controller) fail(ctx context.Context, kind domain.ErrorKind, err error) {
	ierr := domain.NewInteractionError(kind, err)
	c.logger.Warn("interaction failed", "kind", kind, "error", err, "cycle", c.cycle)

	c.setState(domain.StateIdle)

	if nerr := c.notifier.Notify(ctx, domain.NotificationFor(ierr)); nerr != nil {
		c.logger.Error("notifying", "error", nerr)
	}
}

func (c *Controller) setState(next domain.State) {
	c.mu.Lock()
	prev := c.state
	if prev == next {
		c.mu.Unlock()
		return
	}
	c.state = next
	observers := make([]StateObserver, len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	c.logger.Info("state changed", "from", prev, "to", next, "cycle", c.cycle)
	for _, o := range observers {
		o.StateChanged(next)
	}
}

func (c *Controller) teardown() {
	c.doneOnce.Do(func() { close(c.done) })

	if c.cancelRequest != nil {
		c.cancelRequest()
		c.cancelRequest = nil
	}
	if err := c.capture.Stop(); err != nil {
		c.logger.Warn("stopping capture", "error", err)
	}
	c.output.Cancel()
	c.setState(domain.StateIdle)
}
