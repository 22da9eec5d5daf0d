package application

import (
	"context"

	"voice-orb/internal/domain"
)

// CaptureHandler receives the single result of a capture session.
type CaptureHandler func(result domain.CaptureResult)

// SpeechCapture produces one final transcript per Start call. Implementations
// must invoke the handler at most once per session.
type SpeechCapture interface {
	Available() bool
	Start(ctx context.Context, opts domain.CaptureOptions, onResult CaptureHandler) error
	Stop() error
	Name() string
}

// SpeechHandler is called once when an utterance ends: nil on natural
// completion, non-nil on synthesis failure. It is not called after Cancel.
type SpeechHandler func(err error)

// SpeechOutput plays at most one utterance at a time. Speak replaces any
// utterance still playing.
type SpeechOutput interface {
	Speak(ctx context.Context, u domain.Utterance, onDone SpeechHandler) error
	Cancel()
	Name() string
}
