package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type ErrorKind string

const (
	KindCapabilityUnavailable ErrorKind = "capability_unavailable"
	KindCaptureFailed         ErrorKind = "capture_failed"
	KindTransportFailed       ErrorKind = "transport_failed"
	KindSynthesisFailed       ErrorKind = "synthesis_failed"
)

var (
	ErrCaptureUnavailable = errors.New("speech recognition is not available")
	ErrEmptyTranscript    = errors.New("no speech detected")
)

// InteractionError classifies a failure at the controller boundary.
type InteractionError struct {
	Kind ErrorKind
	Err  error
}

func (e *InteractionError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *InteractionError) Unwrap() error {
	return e.Err
}

func NewInteractionError(kind ErrorKind, err error) *InteractionError {
	return &InteractionError{Kind: kind, Err: err}
}

// Notification is a one-shot, dismissible message for the user.
type Notification struct {
	ID      string
	Kind    ErrorKind
	Title   string
	Message string
}

var notificationTitles = map[ErrorKind]string{
	KindCapabilityUnavailable: "Speech recognition not supported",
	KindCaptureFailed:         "Didn't catch that",
	KindTransportFailed:       "Connection error",
	KindSynthesisFailed:       "Playback error",
}

var notificationMessages = map[ErrorKind]string{
	KindCapabilityUnavailable: "Your browser or device does not support speech recognition.",
	KindCaptureFailed:         "Could not understand your request. Please try again.",
	KindTransportFailed:       "Failed to reach the assistant. Please try again.",
	KindSynthesisFailed:       "Could not play the response.",
}

// NotificationFor builds the user-facing notification for a classified error.
func NotificationFor(err *InteractionError) Notification {
	return Notification{
		ID:      uuid.NewString(),
		Kind:    err.Kind,
		Title:   notificationTitles[err.Kind],
		Message: notificationMessages[err.Kind],
	}
}
