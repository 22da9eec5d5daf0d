package domain

import (
	"time"

	"github.com/google/uuid"
)

// TimestampLayout matches JavaScript's Date.prototype.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// PendingRequest is a transcript in flight to the remote assistant.
type PendingRequest struct {
	ID         string
	Transcript string
	CapturedAt time.Time
}

func NewPendingRequest(transcript string, capturedAt time.Time) PendingRequest {
	return PendingRequest{
		ID:         uuid.NewString(),
		Transcript: transcript,
		CapturedAt: capturedAt,
	}
}

func (r PendingRequest) Timestamp() string {
	return r.CapturedAt.UTC().Format(TimestampLayout)
}

// Utterance is one unit of synthesized speech.
type Utterance struct {
	Text   string
	Locale string
	Rate   float64
	Pitch  float64
}

type Voice struct {
	Locale string
	Rate   float64
	Pitch  float64
}

func DefaultVoice() Voice {
	return Voice{
		Locale: "en-US",
		Rate:   1.0,
		Pitch:  1.0,
	}
}

func (v Voice) Utterance(text string) Utterance {
	return Utterance{
		Text:   text,
		Locale: v.Locale,
		Rate:   v.Rate,
		Pitch:  v.Pitch,
	}
}
