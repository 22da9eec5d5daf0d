package application

import (
	"context"

	"voice-orb/internal/domain"
)

// RemoteAssistant turns a transcript into a natural-language reply.
type RemoteAssistant interface {
	Ask(ctx context.Context, req domain.PendingRequest) (string, error)
}
