package engine

import (
	"context"
	"errors"

	"confluence-trading-bot/internal/interfaces"
	"confluence-trading-bot/internal/logger"
	"confluence-trading-bot/internal/signal"
	"confluence-trading-bot/internal/store"
	"confluence-trading-bot/internal/strategy"
	"confluence-trading-bot/internal/ta"
	"confluence-trading-bot/internal/types"
)

// Engine runs one signal cycle for a single instrument: bars in, indicators,
// strategies, aggregation, order placement. Position truth lives at the
// broker; the engine only carries a per-instrument last-decision cache so a
// decision is not re-emitted while its source bar is still the latest.
type Engine struct {
	cfg        *store.Config
	quotes     interfaces.QuoteSource
	broker     interfaces.Broker
	strategies *strategy.Set
	filter     *signal.Filter
	notifier   interfaces.Notifier
	state      *State
}

var _ interfaces.SignalEngine = (*Engine)(nil)

func New(cfg *store.Config, quotes interfaces.QuoteSource, brk interfaces.Broker, set *strategy.Set, filter *signal.Filter, notifier interfaces.Notifier) *Engine {
	return &Engine{
		cfg:        cfg,
		quotes:     quotes,
		broker:     brk,
		strategies: set,
		filter:     filter,
		notifier:   notifier,
		state:      NewState(),
	}
}

func (e *Engine) Step(ctx context.Context, instrument string) (*types.StepResult, error) {
	bars, err := e.quotes.GetBars(ctx, instrument, e.cfg.Timeframe, e.cfg.BarCount)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch bars", err, "instrument", instrument)
		return nil, err
	}
	logger.Debug(ctx, "Bars fetched", "instrument", instrument, "count", len(bars))

	snap, err := ta.Compute(bars)
	if err != nil {
		if errors.Is(err, types.ErrInsufficientData) {
			logger.Info(ctx, "Not enough bars for indicators, skipping instrument",
				"instrument", instrument,
				"bars", len(bars),
			)
			return &types.StepResult{Instrument: instrument, Reason: "insufficient_data"}, nil
		}
		return nil, err
	}
	logger.Debug(ctx, "Indicators computed",
		"instrument", instrument,
		"rsi", snap.RSI,
		"macd_hist", snap.MACDHistogram,
		"bb_upper", snap.BBUpper,
		"bb_lower", snap.BBLower,
		"atr", snap.ATR,
		"momentum", snap.Momentum,
		"volume_ratio", snap.VolumeRatio,
	)

	result := &types.StepResult{
		Instrument: instrument,
		Price:      snap.LastClose,
		Time:       bars[len(bars)-1].Ts,
	}

	candidates := e.strategies.Evaluate(ctx, snap, instrument)
	result.Candidates = len(candidates)
	if len(candidates) == 0 {
		result.Reason = "no_candidates"
		return result, nil
	}

	tick, err := e.broker.GetTick(ctx, instrument)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch tick", err, "instrument", instrument)
		return nil, err
	}

	decisions := e.filter.Apply(ctx,
		candidates,
		map[string]types.Tick{instrument: tick},
		map[string]float64{instrument: snap.ATR},
	)
	if len(decisions) == 0 {
		result.Reason = "below_confidence_floor"
		return result, nil
	}

	kept := make([]types.TradeDecision, 0, len(decisions))
	for _, d := range decisions {
		if e.state.Duplicate(d.Instrument, d.Direction, result.Time) {
			logger.Info(ctx, "Decision already emitted for this bar, suppressing",
				"instrument", d.Instrument,
				"direction", d.Direction,
				"bar_time", result.Time,
			)
			continue
		}
		kept = append(kept, d)
	}
	result.Decisions = kept
	if len(kept) == 0 {
		result.Reason = "duplicate_decision"
		return result, nil
	}

	occupied, err := e.hasOpenPosition(ctx, instrument)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to check open positions", err, "instrument", instrument)
		return nil, err
	}
	if occupied {
		logger.Info(ctx, "Position already open, holding decision",
			"instrument", instrument,
			"direction", decisions[0].Direction,
		)
		result.Reason = "position_open"
		return result, nil
	}

	for _, d := range kept {
		ticket, err := e.place(ctx, d)
		if err != nil {
			var rej *types.RejectedError
			if errors.As(err, &rej) {
				// A rejection is terminal for this bar; only a new bar or the
				// opposite direction produces a fresh attempt.
				e.state.Record(d.Instrument, d.Direction, result.Time)
			}
			continue
		}
		e.state.Record(d.Instrument, d.Direction, result.Time)
		result.Tickets = append(result.Tickets, ticket)
	}
	return result, nil
}

// place submits one decision. Rejections are terminal for the decision; the
// caller records them in the last-decision cache so the same bar is not
// retried.
func (e *Engine) place(ctx context.Context, d types.TradeDecision) (int64, error) {
	ticket, err := e.broker.PlaceOrder(ctx, d)
	if err != nil {
		var rej *types.RejectedError
		if errors.As(err, &rej) {
			logger.Warn(ctx, "Order rejected by broker",
				"instrument", d.Instrument,
				"direction", d.Direction,
				"reason_code", rej.ReasonCode,
				"detail", rej.Detail,
			)
			e.notify(ctx, types.NotifyEvent{
				Kind:       types.NotifyOrderRejected,
				Instrument: d.Instrument,
				Message:    rej.ReasonCode,
			})
			return 0, err
		}
		logger.ErrorWithErr(ctx, "Order placement failed", err,
			"instrument", d.Instrument,
			"direction", d.Direction,
		)
		return 0, err
	}

	logger.Decision(ctx, d.Instrument, string(d.Direction), d.Confidence, d.StrategyName,
		"ticket", ticket,
		"entry", d.EntryPrice,
		"stop_loss", d.StopLoss,
		"take_profit", d.TakeProfit,
		"volume", d.Volume,
	)
	e.notify(ctx, types.NotifyEvent{
		Kind:       types.NotifyTradeOpened,
		Instrument: d.Instrument,
		Ticket:     ticket,
		StopLoss:   d.StopLoss,
		TakeProfit: d.TakeProfit,
		Message:    string(d.Direction) + " via " + d.StrategyName,
	})
	return ticket, nil
}

func (e *Engine) hasOpenPosition(ctx context.Context, instrument string) (bool, error) {
	positions, err := e.broker.GetPositions(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range positions {
		if p.Instrument == instrument {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) notify(ctx context.Context, ev types.NotifyEvent) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, ev); err != nil {
		logger.Warn(ctx, "Notification failed", "kind", ev.Kind, "error", err)
	}
}
