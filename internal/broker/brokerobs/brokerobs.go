package brokerobs

import (
	"context"

	"confluence-trading-bot/internal/interfaces"
	"confluence-trading-bot/internal/logger"
	"confluence-trading-bot/internal/trace"
	"confluence-trading-bot/internal/types"
)

// observableBroker wraps a Broker with logging and tracing.
type observableBroker struct {
	broker interfaces.Broker
}

var _ interfaces.Broker = (*observableBroker)(nil)

func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{
		broker: broker,
	}
}

func (ob *observableBroker) GetPositions(ctx context.Context) ([]types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.GetPositions")
	defer span.End()

	positions, err := ob.broker.GetPositions(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch positions", err)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Positions fetched", "count", len(positions))
	return positions, nil
}

func (ob *observableBroker) GetTick(ctx context.Context, instrument string) (types.Tick, error) {
	ctx, span := trace.StartSpan(ctx, "broker.GetTick")
	defer span.End()

	tick, err := ob.broker.GetTick(ctx, instrument)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch tick", err, "instrument", instrument)
		return types.Tick{}, err
	}

	logger.DebugSkip(ctx, 1, "Tick fetched",
		"instrument", instrument,
		"bid", tick.Bid,
		"ask", tick.Ask,
	)
	return tick, nil
}

func (ob *observableBroker) PlaceOrder(ctx context.Context, d types.TradeDecision) (int64, error) {
	ctx, span := trace.StartSpan(ctx, "broker.PlaceOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing order",
		"instrument", d.Instrument,
		"direction", d.Direction,
		"volume", d.Volume,
		"strategy", d.StrategyName,
	)

	ticket, err := ob.broker.PlaceOrder(ctx, d)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err,
			"instrument", d.Instrument,
			"direction", d.Direction,
		)
		return 0, err
	}

	logger.InfoSkip(ctx, 1, "Order placed",
		"instrument", d.Instrument,
		"ticket", ticket,
	)
	return ticket, nil
}

func (ob *observableBroker) ModifyStopLoss(ctx context.Context, ticket int64, newSL, newTP float64) error {
	ctx, span := trace.StartSpan(ctx, "broker.ModifyStopLoss")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Modifying stop loss",
		"ticket", ticket,
		"new_sl", newSL,
		"new_tp", newTP,
	)

	if err := ob.broker.ModifyStopLoss(ctx, ticket, newSL, newTP); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to modify stop loss", err, "ticket", ticket)
		return err
	}
	return nil
}

func (ob *observableBroker) IsConnected() bool {
	return ob.broker.IsConnected()
}

func (ob *observableBroker) Reconnect(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "broker.Reconnect")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Reconnecting broker")
	if err := ob.broker.Reconnect(ctx); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Reconnect failed", err)
		return err
	}
	logger.InfoSkip(ctx, 1, "Broker reconnected")
	return nil
}
