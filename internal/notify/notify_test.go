package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"confluence-trading-bot/internal/types"
)

func TestFormatPerKind(t *testing.T) {
	assert.Contains(t, Format(types.NotifyEvent{
		Kind:       types.NotifyTradeOpened,
		Instrument: "EURUSD",
		Ticket:     42,
		StopLoss:   1.09,
		TakeProfit: 1.12,
		Message:    "BUY via momentum",
	}), "Trade opened #42 EURUSD BUY via momentum")

	assert.Contains(t, Format(types.NotifyEvent{
		Kind:       types.NotifyBreakeven,
		Instrument: "EURUSD",
		Ticket:     42,
		StopLoss:   1.10020,
	}), "Breakeven #42")

	assert.Contains(t, Format(types.NotifyEvent{
		Kind:    types.NotifyConnectionLost,
		Message: "dial tcp: refused",
	}), "Connection lost")

	assert.Contains(t, Format(types.NotifyEvent{
		Kind:       types.NotifyOrderRejected,
		Instrument: "EURUSD",
		Message:    "INSUFFICIENT_MARGIN",
	}), "INSUFFICIENT_MARGIN")
}

func TestLogNotifierNeverFails(t *testing.T) {
	n := NewLog()
	err := n.Notify(context.Background(), types.NotifyEvent{
		Kind:       types.NotifyTrailingUpdate,
		Instrument: "EURUSD",
		Ticket:     7,
		StopLoss:   1.101,
	})
	assert.NoError(t, err)
}
