package monitor

import (
	"context"
	"sync"
	"time"

	"confluence-trading-bot/internal/interfaces"
	"confluence-trading-bot/internal/logger"
	"confluence-trading-bot/internal/risk"
	"confluence-trading-bot/internal/store"
	"confluence-trading-bot/internal/trace"
	"confluence-trading-bot/internal/types"
)

// Loop drives the two periodic cycles: the signal cycle that evaluates
// strategies and opens trades, and the faster risk cycle that protects open
// positions. Cycles share the broker connection but never overlap with each
// other; each runs under its own deadline so a stalled collaborator can only
// lose that one cycle.
type Loop struct {
	cfg      *store.Config
	engine   interfaces.SignalEngine
	broker   interfaces.Broker
	machine  *risk.Machine
	registry *risk.Registry
	notifier interfaces.Notifier

	mu        sync.Mutex // serializes signal and risk cycles
	lastAlert time.Time  // connection-lost alert suppression
}

func New(cfg *store.Config, eng interfaces.SignalEngine, brk interfaces.Broker, machine *risk.Machine, registry *risk.Registry, notifier interfaces.Notifier) *Loop {
	return &Loop{
		cfg:      cfg,
		engine:   eng,
		broker:   brk,
		machine:  machine,
		registry: registry,
		notifier: notifier,
	}
}

// Run blocks until ctx is cancelled. Each cycle runs on its own ticker
// goroutine so a slow signal cycle cannot starve the risk ticker; the shared
// mutex still keeps the cycles from executing concurrently. The first signal
// cycle fires immediately.
func (l *Loop) Run(ctx context.Context) error {
	logger.Info(ctx, "Monitor loop started",
		"instruments", l.cfg.Instruments,
		"signal_cycle_s", l.cfg.SignalCycleSeconds,
		"risk_cycle_s", l.cfg.RiskCycleSeconds,
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		l.signalCycle(ctx)
		l.runTicker(ctx, time.Duration(l.cfg.SignalCycleSeconds)*time.Second, l.signalCycle)
	}()
	go func() {
		defer wg.Done()
		l.runTicker(ctx, time.Duration(l.cfg.RiskCycleSeconds)*time.Second, l.riskCycle)
	}()
	wg.Wait()

	logger.Info(ctx, "Monitor loop stopping")
	return ctx.Err()
}

func (l *Loop) runTicker(ctx context.Context, period time.Duration, cycle func(context.Context)) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cycle(ctx)
		}
	}
}

func (l *Loop) signalCycle(parent context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, cancel := l.cycleContext(parent)
	defer cancel()

	if !l.ensureConnected(ctx) {
		return
	}

	for _, instrument := range l.cfg.Instruments {
		if ctx.Err() != nil {
			logger.Warn(ctx, "Signal cycle deadline reached, remaining instruments skipped")
			return
		}
		if _, err := l.engine.Step(ctx, instrument); err != nil {
			// Step already logged the cause; the next cycle retries from scratch.
			continue
		}
	}
}

func (l *Loop) riskCycle(parent context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, cancel := l.cycleContext(parent)
	defer cancel()

	ctx, span := trace.StartSpan(ctx, "monitor.riskCycle")
	defer span.End()

	if !l.ensureConnected(ctx) {
		return
	}

	positions, err := l.broker.GetPositions(ctx)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch positions, risk cycle skipped", err)
		l.alertConnection(ctx, err)
		return
	}

	open := make(map[int64]struct{}, len(positions))
	for _, pos := range positions {
		open[pos.Ticket] = struct{}{}
		l.protect(ctx, pos)
	}

	for _, ticket := range l.registry.Prune(open) {
		logger.Info(ctx, "Position closed, risk state dropped", "ticket", ticket)
	}
}

// protect runs the state machine for one position and applies its plan.
// Modifications apply in order; a failed one stops the sequence so a trailing
// stop is never set on top of a failed breakeven.
func (l *Loop) protect(ctx context.Context, pos types.Position) {
	tick, err := l.broker.GetTick(ctx, pos.Instrument)
	if err != nil {
		logger.Warn(ctx, "No tick for open position, skipping",
			"ticket", pos.Ticket,
			"instrument", pos.Instrument,
			"error", err,
		)
		return
	}

	st := l.registry.Obtain(pos.Ticket)
	for _, mod := range l.machine.Plan(ctx, pos, tick, st) {
		if err := l.broker.ModifyStopLoss(ctx, mod.Ticket, mod.NewSL, mod.NewTP); err != nil {
			if code, ok := types.IsRejected(err); ok {
				logger.Warn(ctx, "Stop modification rejected",
					"ticket", mod.Ticket,
					"kind", mod.Kind,
					"new_sl", mod.NewSL,
					"reason_code", code,
				)
			} else {
				logger.ErrorWithErr(ctx, "Stop modification failed", err,
					"ticket", mod.Ticket,
					"kind", mod.Kind,
				)
			}
			return
		}

		l.machine.Commit(st, mod)
		logger.Risk(ctx, mod.Instrument, string(mod.Kind),
			"ticket", mod.Ticket,
			"new_sl", mod.NewSL,
			"profit_pips", mod.ProfitPips,
			"mode", mod.Mode,
		)
		l.notifyMod(ctx, mod)
	}
}

func (l *Loop) notifyMod(ctx context.Context, mod risk.Modification) {
	if l.notifier == nil {
		return
	}
	kind := types.NotifyTrailingUpdate
	if mod.Kind == risk.ModBreakeven {
		kind = types.NotifyBreakeven
	}
	ev := types.NotifyEvent{
		Kind:       kind,
		Instrument: mod.Instrument,
		Ticket:     mod.Ticket,
		StopLoss:   mod.NewSL,
		TakeProfit: mod.NewTP,
	}
	if err := l.notifier.Notify(ctx, ev); err != nil {
		logger.Warn(ctx, "Notification failed", "kind", kind, "error", err)
	}
}

// ensureConnected verifies the broker link, attempting one immediate
// reconnect and then fixed-backoff retries. Returns false when the cycle
// should be skipped.
func (l *Loop) ensureConnected(ctx context.Context) bool {
	if l.broker.IsConnected() {
		return true
	}

	logger.Warn(ctx, "Broker connection lost, reconnecting")
	backoff := time.Duration(l.cfg.Reconnect.BackoffSeconds) * time.Second
	for attempt := 1; attempt <= l.cfg.Reconnect.MaxAttempts; attempt++ {
		if err := l.broker.Reconnect(ctx); err == nil {
			logger.Info(ctx, "Broker reconnected", "attempt", attempt)
			return true
		} else if attempt == l.cfg.Reconnect.MaxAttempts {
			l.alertConnection(ctx, err)
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
	}
	return false
}

// alertConnection sends at most one connection alert per backoff window, so a
// persistent outage cannot storm the notifier.
func (l *Loop) alertConnection(ctx context.Context, err error) {
	window := time.Duration(l.cfg.Reconnect.BackoffSeconds) * time.Second
	if time.Since(l.lastAlert) < window {
		return
	}
	l.lastAlert = time.Now()

	if l.notifier == nil {
		return
	}
	ev := types.NotifyEvent{
		Kind:    types.NotifyConnectionLost,
		Message: err.Error(),
	}
	if nerr := l.notifier.Notify(ctx, ev); nerr != nil {
		logger.Warn(ctx, "Notification failed", "kind", ev.Kind, "error", nerr)
	}
}

func (l *Loop) cycleContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(l.cfg.CycleTimeoutSeconds) * time.Second
	return context.WithTimeout(parent, timeout)
}
