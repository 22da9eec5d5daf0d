package ui

import (
	"fmt"

	"voice-orb/internal/domain"
)

const DefaultAssistantName = "Shealth.ai"

// Card is a suggestion shown under the orb while idle.
type Card struct {
	Title       string
	Description string
}

var SuggestionCards = []Card{
	{Title: "Check Coverage", Description: "Ask about your insurance benefits"},
	{Title: "Book Appointments", Description: "Schedule with in-network providers"},
	{Title: "Track Claims", Description: "Monitor your claim status"},
}

// StatusMessage is the caption shown under the orb for a state.
func StatusMessage(state domain.State, assistant string) string {
	switch state {
	case domain.StateListening:
		return "Listening..."
	case domain.StateProcessing:
		return "Analyzing your request..."
	case domain.StateSpeaking:
		return fmt.Sprintf("%s is speaking...", assistant)
	default:
		return "Tap to speak"
	}
}

// IdleHint tells the user how to start while the orb is idle.
func IdleHint(assistant string) string {
	return fmt.Sprintf("Say \"Hey %s\" or tap the orb to start", shortName(assistant))
}

func shortName(assistant string) string {
	for i, r := range assistant {
		if r == '.' {
			return assistant[:i]
		}
	}
	return assistant
}
