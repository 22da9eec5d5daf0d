package bridge

// Message is the JSON envelope exchanged with the browser page over /ws.
type Message struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	State  string `json:"state,omitempty"`
	Status string `json:"status,omitempty"`
	Hint   string `json:"hint,omitempty"`
	Text   string `json:"text,omitempty"`
	Reason string `json:"reason,omitempty"`
	Title  string `json:"title,omitempty"`
	Kind   string `json:"kind,omitempty"`

	Locale         string  `json:"locale,omitempty"`
	Rate           float64 `json:"rate,omitempty"`
	Pitch          float64 `json:"pitch,omitempty"`
	Continuous     bool    `json:"continuous,omitempty"`
	InterimResults bool    `json:"interimResults,omitempty"`

	// hello
	Recognition bool `json:"recognition,omitempty"`
	Synthesis   bool `json:"synthesis,omitempty"`
}

// server -> page
const (
	TypeState        = "state"
	TypeNotification = "notification"
	TypeCaptureStart = "capture.start"
	TypeCaptureStop  = "capture.stop"
	TypeSpeechSpeak  = "speech.speak"
	TypeSpeechCancel = "speech.cancel"
)

// page -> server
const (
	TypeHello         = "hello"
	TypeActivate      = "activate"
	TypeCaptureResult = "capture.result"
	TypeCaptureError  = "capture.error"
	TypeCaptureEnd    = "capture.end"
	TypeSpeechEnd     = "speech.end"
	TypeSpeechError   = "speech.error"
)
