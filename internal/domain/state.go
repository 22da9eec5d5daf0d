package domain

type State string

const (
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateProcessing State = "processing"
	StateSpeaking   State = "speaking"
)

// States lists every interaction state in cycle order.
var States = []State{StateIdle, StateListening, StateProcessing, StateSpeaking}

func (s State) Valid() bool {
	switch s {
	case StateIdle, StateListening, StateProcessing, StateSpeaking:
		return true
	default:
		return false
	}
}

func (s State) String() string {
	return string(s)
}
