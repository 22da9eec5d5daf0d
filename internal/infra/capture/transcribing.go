package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"voice-orb/internal/application"
	"voice-orb/internal/domain"
	"voice-orb/internal/infra/audio"
)

// TranscribingCapture records one clip from an audio source and turns it
// into a transcript with a speech-to-text backend.
type TranscribingCapture struct {
	source application.AudioSource
	stt    application.SpeechToText
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTranscribingCapture(source application.AudioSource, stt application.SpeechToText, logger *slog.Logger) *TranscribingCapture {
	return &TranscribingCapture{
		source: source,
		stt:    stt,
		logger: logger,
	}
}

func (t *TranscribingCapture) Name() string {
	return "transcribing/" + t.source.Name()
}

func (t *TranscribingCapture) Available() bool {
	return t.source.Available()
}

func (t *TranscribingCapture) Start(ctx context.Context, _ domain.CaptureOptions, onResult application.CaptureHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return ErrSessionActive
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		result := t.record(sessionCtx)

		t.mu.Lock()
		t.cancel = nil
		t.mu.Unlock()
		cancel()

		onResult(result)
	}()

	return nil
}

func (t *TranscribingCapture) record(ctx context.Context) domain.CaptureResult {
	clip, err := t.source.NextClip(ctx)
	if err != nil {
		return domain.CaptureFailed(reasonFor(err), fmt.Errorf("recording: %w", err))
	}

	t.logger.Debug("transcribing clip", "bytes", len(clip))

	text, err := t.stt.Transcribe(ctx, clip)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return domain.CaptureFailed(domain.ReasonAborted, err)
		}
		return domain.CaptureFailed(domain.ReasonNetwork, fmt.Errorf("transcribing: %w", err))
	}
	if text == "" {
		return domain.CaptureFailed(domain.ReasonNoSpeech, domain.ErrEmptyTranscript)
	}

	return domain.CaptureOK(text)
}

func reasonFor(err error) domain.CaptureReason {
	switch {
	case errors.Is(err, context.Canceled):
		return domain.ReasonAborted
	case errors.Is(err, audio.ErrSilence):
		return domain.ReasonNoSpeech
	default:
		return domain.ReasonAudioCapture
	}
}

// Stop aborts the running session, if any, and waits for it to report.
func (t *TranscribingCapture) Stop() error {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
	return nil
}

// Open starts the underlying audio source.
func (t *TranscribingCapture) Open(ctx context.Context) error {
	if err := t.source.Start(ctx); err != nil {
		return fmt.Errorf("starting %s source: %w", t.source.Name(), err)
	}
	return nil
}

// Close aborts any session and releases the audio source.
func (t *TranscribingCapture) Close() error {
	t.Stop()
	return t.source.Stop()
}
