package interfaces

import (
	"context"

	"confluence-trading-bot/internal/types"
)

// Broker is the gateway to the trading venue. Implementations live in
// internal/broker; the core only requests stop-loss modifications and order
// placement, it never owns positions.
type Broker interface {
	GetPositions(ctx context.Context) ([]types.Position, error)
	GetTick(ctx context.Context, instrument string) (types.Tick, error)
	ModifyStopLoss(ctx context.Context, ticket int64, newSL, newTP float64) error
	PlaceOrder(ctx context.Context, decision types.TradeDecision) (ticket int64, err error)
	IsConnected() bool
	Reconnect(ctx context.Context) error
}
