package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"voice-orb/internal/application"
	"voice-orb/internal/domain"
)

const waitTimeout = 2 * time.Second

type mockCapture struct {
	mu        sync.Mutex
	available bool
	startErr  error
	starts    int
	stops     int
	opts      domain.CaptureOptions
	handler   application.CaptureHandler
	started   chan struct{}
}

func newMockCapture() *mockCapture {
	return &mockCapture{available: true, started: make(chan struct{}, 16)}
}

func (m *mockCapture) Available() bool { return m.available }
func (m *mockCapture) Name() string    { return "mock" }

func (m *mockCapture) Start(_ context.Context, opts domain.CaptureOptions, onResult application.CaptureHandler) error {
	m.mu.Lock()
	m.starts++
	m.opts = opts
	m.handler = onResult
	m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.started <- struct{}{}
	return nil
}

func (m *mockCapture) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return nil
}

func (m *mockCapture) deliver(result domain.CaptureResult) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	h(result)
}

func (m *mockCapture) startCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

type reply struct {
	text string
	err  error
	// echo answers with the transcript of whichever request receives it.
	echo bool
}

type mockAssistant struct {
	asked   chan domain.PendingRequest
	replies chan reply
	// ignoreCtx makes Ask wait for a reply even after its context ends.
	ignoreCtx bool
}

func newMockAssistant() *mockAssistant {
	return &mockAssistant{
		asked:   make(chan domain.PendingRequest, 16),
		replies: make(chan reply, 16),
	}
}

func (m *mockAssistant) Ask(ctx context.Context, req domain.PendingRequest) (string, error) {
	m.asked <- req
	if m.ignoreCtx {
		r := <-m.replies
		if r.echo {
			return "re: " + req.Transcript, nil
		}
		return r.text, r.err
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-m.replies:
		return r.text, r.err
	}
}

type mockOutput struct {
	mu       sync.Mutex
	spoken   []domain.Utterance
	cancels  int
	speakErr error
	handler  application.SpeechHandler
	spoke    chan struct{}
}

func newMockOutput() *mockOutput {
	return &mockOutput{spoke: make(chan struct{}, 16)}
}

func (m *mockOutput) Name() string { return "mock" }

func (m *mockOutput) Speak(_ context.Context, u domain.Utterance, onDone application.SpeechHandler) error {
	m.mu.Lock()
	m.spoken = append(m.spoken, u)
	m.handler = onDone
	m.mu.Unlock()
	if m.speakErr != nil {
		return m.speakErr
	}
	m.spoke <- struct{}{}
	return nil
}

func (m *mockOutput) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels++
}

func (m *mockOutput) finish(err error) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	h(err)
}

func (m *mockOutput) snapshot() ([]domain.Utterance, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Utterance(nil), m.spoken...), m.cancels
}

type recordingNotifier struct {
	notes chan domain.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n domain.Notification) error {
	r.notes <- n
	return nil
}

type harness struct {
	ctrl      *application.Controller
	capture   *mockCapture
	assistant *mockAssistant
	output    *mockOutput
	notifier  *recordingNotifier
	states    chan domain.State
	cancel    context.CancelFunc
	done      chan error
}

func newHarness(t *testing.T, configure func(h *harness, cfg *application.ControllerConfig)) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{
		capture:   newMockCapture(),
		assistant: newMockAssistant(),
		output:    newMockOutput(),
		notifier:  &recordingNotifier{notes: make(chan domain.Notification, 16)},
		states:    make(chan domain.State, 64),
		done:      make(chan error, 1),
	}

	cfg := application.DefaultControllerConfig()
	if configure != nil {
		configure(h, &cfg)
	}

	h.ctrl = application.NewController(h.capture, h.assistant, h.output, h.notifier, cfg, logger)
	h.ctrl.Subscribe(application.StateObserverFunc(func(s domain.State) {
		h.states <- s
	}))
	h.expectState(t, domain.StateIdle)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		h.done <- h.ctrl.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

func (h *harness) expectState(t *testing.T, want domain.State) {
	t.Helper()
	select {
	case got := <-h.states:
		if got != want {
			t.Fatalf("state: got %s, want %s", got, want)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("timeout waiting for state %s", want)
	}
}

func (h *harness) expectNoState(t *testing.T) {
	t.Helper()
	select {
	case got := <-h.states:
		t.Fatalf("unexpected transition to %s", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func (h *harness) expectNotification(t *testing.T, kind domain.ErrorKind) domain.Notification {
	t.Helper()
	select {
	case n := <-h.notifier.notes:
		if n.Kind != kind {
			t.Fatalf("notification kind: got %s, want %s", n.Kind, kind)
		}
		if n.Message == "" {
			t.Error("notification has no message")
		}
		return n
	case <-time.After(waitTimeout):
		t.Fatalf("timeout waiting for %s notification", kind)
	}
	return domain.Notification{}
}

func (h *harness) expectNoNotification(t *testing.T) {
	t.Helper()
	select {
	case n := <-h.notifier.notes:
		t.Fatalf("unexpected notification %s", n.Kind)
	default:
	}
}

func wait(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(waitTimeout):
		t.Fatalf("timeout waiting for %s", what)
	}
}

func (h *harness) expectAsked(t *testing.T) domain.PendingRequest {
	t.Helper()
	select {
	case req := <-h.assistant.asked:
		return req
	case <-time.After(waitTimeout):
		t.Fatal("timeout waiting for assistant request")
	}
	return domain.PendingRequest{}
}

// listen drives the controller from idle into listening.
func (h *harness) listen(t *testing.T) {
	t.Helper()
	h.ctrl.Activate()
	h.expectState(t, domain.StateListening)
	wait(t, h.capture.started, "capture start")
}

// speak drives the controller from idle into speaking with the given reply.
func (h *harness) speak(t *testing.T, text string) {
	t.Helper()
	h.listen(t)
	h.capture.deliver(domain.CaptureOK("hello"))
	h.expectState(t, domain.StateProcessing)
	h.expectAsked(t)
	h.assistant.replies <- reply{text: text}
	h.expectState(t, domain.StateSpeaking)
	wait(t, h.output.spoke, "speech start")
}

func TestController_FullCycle(t *testing.T) {
	h := newHarness(t, nil)

	h.listen(t)
	if h.capture.opts.Locale != "en-US" || h.capture.opts.Continuous || h.capture.opts.InterimResults {
		t.Errorf("capture options: got %+v", h.capture.opts)
	}

	h.capture.deliver(domain.CaptureOK("What is covered under my plan?"))
	h.expectState(t, domain.StateProcessing)

	req := h.expectAsked(t)
	if req.Transcript != "What is covered under my plan?" {
		t.Errorf("transcript: got %q", req.Transcript)
	}
	if req.ID == "" {
		t.Error("request has no ID")
	}
	if _, err := time.Parse(domain.TimestampLayout, req.Timestamp()); err != nil {
		t.Errorf("timestamp %q: %v", req.Timestamp(), err)
	}

	h.assistant.replies <- reply{text: "Your plan covers outpatient visits."}
	h.expectState(t, domain.StateSpeaking)
	wait(t, h.output.spoke, "speech start")

	spoken, _ := h.output.snapshot()
	if len(spoken) != 1 || spoken[0].Text != "Your plan covers outpatient visits." {
		t.Fatalf("spoken: got %+v", spoken)
	}
	if spoken[0].Rate != 1.0 || spoken[0].Pitch != 1.0 || spoken[0].Locale != "en-US" {
		t.Errorf("voice settings: got %+v", spoken[0])
	}

	h.output.finish(nil)
	h.expectState(t, domain.StateIdle)
	h.expectNoNotification(t)

	if got := h.ctrl.State(); got != domain.StateIdle {
		t.Errorf("State(): got %s, want idle", got)
	}
}

func TestController_CapturePermissionDenied(t *testing.T) {
	h := newHarness(t, nil)

	h.listen(t)
	h.capture.deliver(domain.CaptureFailed(domain.ReasonNotAllowed, errors.New("permission denied")))
	h.expectState(t, domain.StateIdle)
	h.expectNotification(t, domain.KindCaptureFailed)

	select {
	case <-h.assistant.asked:
		t.Fatal("assistant must not be called after a capture error")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestController_BlankTranscript(t *testing.T) {
	h := newHarness(t, nil)

	h.listen(t)
	h.capture.deliver(domain.CaptureOK("   "))
	h.expectState(t, domain.StateIdle)
	h.expectNotification(t, domain.KindCaptureFailed)
}

func TestController_CaptureStartError(t *testing.T) {
	h := newHarness(t, func(h *harness, _ *application.ControllerConfig) {
		h.capture.startErr = errors.New("device busy")
	})

	h.ctrl.Activate()
	h.expectState(t, domain.StateListening)
	h.expectState(t, domain.StateIdle)
	h.expectNotification(t, domain.KindCaptureFailed)
}

func TestController_CaptureUnavailable(t *testing.T) {
	h := newHarness(t, func(h *harness, _ *application.ControllerConfig) {
		h.capture.available = false
	})

	h.ctrl.Activate()
	h.expectNotification(t, domain.KindCapabilityUnavailable)
	h.expectNoState(t)

	if n := h.capture.startCount(); n != 0 {
		t.Errorf("capture starts: got %d, want 0", n)
	}
}

func TestController_AssistantFailure(t *testing.T) {
	h := newHarness(t, nil)

	h.listen(t)
	h.capture.deliver(domain.CaptureOK("hello"))
	h.expectState(t, domain.StateProcessing)
	h.expectAsked(t)

	h.assistant.replies <- reply{err: errors.New("webhook returned 500")}
	h.expectState(t, domain.StateIdle)
	h.expectNotification(t, domain.KindTransportFailed)

	if spoken, _ := h.output.snapshot(); len(spoken) != 0 {
		t.Errorf("spoken after transport failure: %+v", spoken)
	}
}

func TestController_RequestTimeout(t *testing.T) {
	h := newHarness(t, func(_ *harness, cfg *application.ControllerConfig) {
		cfg.RequestTimeout = 50 * time.Millisecond
	})

	h.listen(t)
	h.capture.deliver(domain.CaptureOK("hello"))
	h.expectState(t, domain.StateProcessing)
	h.expectAsked(t)

	h.expectState(t, domain.StateIdle)
	n := h.expectNotification(t, domain.KindTransportFailed)
	if n.Title == "" {
		t.Error("notification has no title")
	}
}

func TestController_RequestTimeoutWithUnresponsiveAssistant(t *testing.T) {
	h := newHarness(t, func(h *harness, cfg *application.ControllerConfig) {
		cfg.RequestTimeout = 50 * time.Millisecond
		h.assistant.ignoreCtx = true
	})

	h.listen(t)
	h.capture.deliver(domain.CaptureOK("hello"))
	h.expectState(t, domain.StateProcessing)
	h.expectAsked(t)

	h.expectState(t, domain.StateIdle)
	h.expectNotification(t, domain.KindTransportFailed)

	// the reply arrives after the deadline and is dropped
	h.assistant.replies <- reply{text: "too late"}
	h.expectNoState(t)
	h.expectNoNotification(t)

	if spoken, _ := h.output.snapshot(); len(spoken) != 0 {
		t.Errorf("late reply was spoken: %+v", spoken)
	}
}

func TestController_LateReplyAfterNewCycle(t *testing.T) {
	h := newHarness(t, func(h *harness, cfg *application.ControllerConfig) {
		cfg.RequestTimeout = 200 * time.Millisecond
		h.assistant.ignoreCtx = true
	})

	h.listen(t)
	h.capture.deliver(domain.CaptureOK("first question"))
	h.expectState(t, domain.StateProcessing)
	h.expectAsked(t)
	h.expectState(t, domain.StateIdle)
	h.expectNotification(t, domain.KindTransportFailed)

	h.listen(t)
	h.capture.deliver(domain.CaptureOK("second question"))
	h.expectState(t, domain.StateProcessing)
	h.expectAsked(t)

	// both requests answer now; only the current cycle's reply may be spoken
	h.assistant.replies <- reply{echo: true}
	h.assistant.replies <- reply{echo: true}
	h.expectState(t, domain.StateSpeaking)
	wait(t, h.output.spoke, "speech start")
	h.expectNoState(t)

	spoken, _ := h.output.snapshot()
	if len(spoken) != 1 || spoken[0].Text != "re: second question" {
		t.Errorf("spoken: got %+v", spoken)
	}
}

func TestController_InterruptSpeaking(t *testing.T) {
	h := newHarness(t, nil)

	h.speak(t, "a long answer")
	_, cancelsBefore := h.output.snapshot()

	h.ctrl.Activate()
	h.expectState(t, domain.StateIdle)

	_, cancelsAfter := h.output.snapshot()
	if cancelsAfter != cancelsBefore+1 {
		t.Errorf("cancels: got %d, want %d", cancelsAfter, cancelsBefore+1)
	}

	// completion of the interrupted utterance must not move the controller
	h.output.finish(nil)
	h.expectNoState(t)
	h.expectNoNotification(t)

	select {
	case <-h.assistant.asked:
		t.Fatal("no request may be issued on cancellation")
	default:
	}
}

func TestController_SynthesisError(t *testing.T) {
	h := newHarness(t, nil)

	h.speak(t, "hello there")
	h.output.finish(errors.New("audio device lost"))
	h.expectState(t, domain.StateIdle)
	h.expectNotification(t, domain.KindSynthesisFailed)
}

func TestController_SpeakStartError(t *testing.T) {
	h := newHarness(t, func(h *harness, _ *application.ControllerConfig) {
		h.output.speakErr = errors.New("no voices installed")
	})

	h.listen(t)
	h.capture.deliver(domain.CaptureOK("hello"))
	h.expectState(t, domain.StateProcessing)
	h.expectAsked(t)
	h.assistant.replies <- reply{text: "hi"}

	h.expectState(t, domain.StateSpeaking)
	h.expectState(t, domain.StateIdle)
	h.expectNotification(t, domain.KindSynthesisFailed)
}

func TestController_ActivationIsIdempotentWhileBusy(t *testing.T) {
	h := newHarness(t, nil)

	h.listen(t)
	h.ctrl.Activate()
	h.ctrl.Activate()
	h.expectNoState(t)
	if n := h.capture.startCount(); n != 1 {
		t.Fatalf("capture starts: got %d, want 1", n)
	}

	h.capture.deliver(domain.CaptureOK("hello"))
	h.expectState(t, domain.StateProcessing)
	h.expectAsked(t)

	h.ctrl.Activate()
	h.ctrl.Activate()
	h.expectNoState(t)

	select {
	case <-h.assistant.asked:
		t.Fatal("activation during processing issued a second request")
	default:
	}
	if n := h.capture.startCount(); n != 1 {
		t.Errorf("capture starts: got %d, want 1", n)
	}
}

func TestController_StaleCaptureResultIgnored(t *testing.T) {
	h := newHarness(t, nil)

	h.listen(t)
	h.capture.deliver(domain.CaptureFailed(domain.ReasonNoSpeech, nil))
	h.expectState(t, domain.StateIdle)
	h.expectNotification(t, domain.KindCaptureFailed)

	// a late result from the finished session
	h.capture.deliver(domain.CaptureOK("too late"))
	h.expectNoState(t)

	select {
	case <-h.assistant.asked:
		t.Fatal("late capture result issued a request")
	default:
	}
}

func TestController_NextCycleAfterIdle(t *testing.T) {
	h := newHarness(t, nil)

	h.speak(t, "first")
	h.output.finish(nil)
	h.expectState(t, domain.StateIdle)

	h.speak(t, "second")
	spoken, _ := h.output.snapshot()
	if len(spoken) != 2 || spoken[1].Text != "second" {
		t.Errorf("spoken: got %+v", spoken)
	}
}

func TestController_RunTwice(t *testing.T) {
	h := newHarness(t, nil)

	// give the first Run a moment to claim the loop
	h.listen(t)

	if err := h.ctrl.Run(context.Background()); err == nil {
		t.Error("second Run: expected error")
	}
}

func TestController_TeardownReturnsToIdle(t *testing.T) {
	h := newHarness(t, nil)

	h.listen(t)
	h.cancel()

	h.expectState(t, domain.StateIdle)
	if err := <-h.done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run: got %v, want context.Canceled", err)
	}
	h.done <- nil

	h.capture.mu.Lock()
	stops := h.capture.stops
	h.capture.mu.Unlock()
	if stops == 0 {
		t.Error("capture was not stopped on teardown")
	}
}
