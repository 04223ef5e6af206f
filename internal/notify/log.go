package notify

import (
	"context"

	"confluence-trading-bot/internal/interfaces"
	"confluence-trading-bot/internal/logger"
	"confluence-trading-bot/internal/types"
)

// Log is the default notifier: events land in the structured log only.
type Log struct{}

var _ interfaces.Notifier = (*Log)(nil)

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Notify(ctx context.Context, ev types.NotifyEvent) error {
	logger.Info(ctx, "ALERT "+Format(ev),
		"kind", ev.Kind,
		"instrument", ev.Instrument,
		"ticket", ev.Ticket,
	)
	return nil
}
