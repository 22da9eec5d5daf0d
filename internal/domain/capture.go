package domain

import "strings"

// CaptureReason mirrors the error codes reported by browser speech recognition.
type CaptureReason string

const (
	ReasonNoSpeech     CaptureReason = "no-speech"
	ReasonNotAllowed   CaptureReason = "not-allowed"
	ReasonAudioCapture CaptureReason = "audio-capture"
	ReasonAborted      CaptureReason = "aborted"
	ReasonNetwork      CaptureReason = "network"
	ReasonNoResult     CaptureReason = "no-result"
)

// CaptureResult is the outcome of one single-shot capture session: either a
// transcript or the reason no transcript was produced.
type CaptureResult struct {
	Transcript string
	Reason     CaptureReason
	Err        error
}

func CaptureOK(transcript string) CaptureResult {
	return CaptureResult{Transcript: transcript}
}

func CaptureFailed(reason CaptureReason, err error) CaptureResult {
	if reason == "" {
		reason = ReasonNoResult
	}
	return CaptureResult{Reason: reason, Err: err}
}

// OK reports whether the session produced a usable transcript.
func (r CaptureResult) OK() bool {
	return r.Reason == "" && r.Err == nil && strings.TrimSpace(r.Transcript) != ""
}

// CaptureOptions configures a single recognition pass.
type CaptureOptions struct {
	Locale         string
	Continuous     bool
	InterimResults bool
}

func DefaultCaptureOptions(locale string) CaptureOptions {
	return CaptureOptions{Locale: locale}
}
