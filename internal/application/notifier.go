package application

import (
	"context"
	"log/slog"

	"voice-orb/internal/domain"
)

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}

type NoopNotifier struct{}

func (n *NoopNotifier) Notify(_ context.Context, _ domain.Notification) error {
	return nil
}

// MultiNotifier delivers to every notifier and returns the first error.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n domain.Notification) error {
	var firstErr error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// AsyncNotifier hands notifications to a slow notifier without blocking the
// caller. Delivery errors are logged.
type AsyncNotifier struct {
	next   Notifier
	logger *slog.Logger
}

func NewAsyncNotifier(next Notifier, logger *slog.Logger) *AsyncNotifier {
	return &AsyncNotifier{next: next, logger: logger}
}

func (a *AsyncNotifier) Notify(ctx context.Context, n domain.Notification) error {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := a.next.Notify(ctx, n); err != nil {
			a.logger.Error("delivering notification", "error", err, "kind", n.Kind)
		}
	}()
	return nil
}
