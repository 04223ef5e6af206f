package interfaces

import (
	"context"

	"confluence-trading-bot/internal/types"
)

// Notifier delivers chat alerts. Failures are logged and never block a cycle.
type Notifier interface {
	Notify(ctx context.Context, event types.NotifyEvent) error
}
