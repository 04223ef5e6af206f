package risk

import (
	"context"

	"confluence-trading-bot/internal/logger"
	"confluence-trading-bot/internal/types"
)

// ModKind distinguishes the two stop-loss modifications the machine issues.
type ModKind string

const (
	ModBreakeven ModKind = "BREAKEVEN"
	ModTrailing  ModKind = "TRAILING"
)

// Modification is one planned stop-loss change for a ticket. The caller
// applies it through the broker gateway and, only on success, commits it back
// into the state via Commit.
type Modification struct {
	Kind       ModKind
	Ticket     int64
	Instrument string
	NewSL      float64
	NewTP      float64 // existing TP, passed through unchanged
	ProfitPips float64
	Mode       Mode
}

// Machine decides breakeven and trailing-stop adjustments for open positions.
// It is a pure planner over (position, tick, state); all broker I/O stays
// with the caller so a failed modification simply leaves the state untouched
// for the next cycle.
type Machine struct {
	cfg Config
}

// NewMachine builds a machine with the given parameter set.
func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// Config exposes the machine's parameter set (read-only).
func (m *Machine) Config() Config { return m.cfg }

// Plan evaluates one position against its risk state and returns the
// modifications to request this cycle, in application order. A position with
// zero or negative floating profit is never touched.
func (m *Machine) Plan(ctx context.Context, pos types.Position, tick types.Tick, st *PositionRiskState) []Modification {
	profitPips := m.cfg.ProfitPips(pos, tick)
	if profitPips <= 0 || pos.FloatingProfit <= 0 {
		return nil
	}

	mode := m.selectMode(ctx, pos, profitPips, st)
	params := m.cfg.Params(mode)
	pip := m.cfg.PipSize(pos.Instrument)

	var mods []Modification

	// refSL tracks the stop as it would stand after earlier modifications in
	// this plan, so both checks compare against the effective stop.
	refSL := pos.StopLoss

	// Breakeven: at most once per ticket, ever.
	if !st.BreakevenApplied && profitPips >= params.BreakevenTriggerPips {
		candidate := breakevenStop(pos, params.BreakevenOffsetPips*pip)
		if improves(pos.Direction, refSL, candidate) {
			mods = append(mods, Modification{
				Kind:       ModBreakeven,
				Ticket:     pos.Ticket,
				Instrument: pos.Instrument,
				NewSL:      candidate,
				NewTP:      pos.TakeProfit,
				ProfitPips: profitPips,
				Mode:       mode,
			})
			refSL = candidate
		}
	}

	// Trailing: independent of breakeven, re-fires on each favorable
	// advance that clears the minimum step.
	if profitPips >= params.TrailingTriggerPips {
		candidate := trailingStop(pos, tick, params.TrailingDistancePips*pip)
		if improves(pos.Direction, refSL, candidate) && m.clearsMinStep(pos.Direction, refSL, candidate, pip) {
			mods = append(mods, Modification{
				Kind:       ModTrailing,
				Ticket:     pos.Ticket,
				Instrument: pos.Instrument,
				NewSL:      candidate,
				NewTP:      pos.TakeProfit,
				ProfitPips: profitPips,
				Mode:       mode,
			})
		}
	}

	return mods
}

// Commit records a successfully applied modification in the ticket state.
// Breakeven is terminal; trailing updates the watermark.
func (m *Machine) Commit(st *PositionRiskState, mod Modification) {
	switch mod.Kind {
	case ModBreakeven:
		st.BreakevenApplied = true
	case ModTrailing:
		st.TrailingActive = true
		st.LastTrailingStop = mod.NewSL
	}
}

// selectMode recomputes the mode each cycle, but once a ticket has reached
// protective it stays pinned there: a transient pullback must not loosen the
// triggers again.
func (m *Machine) selectMode(ctx context.Context, pos types.Position, profitPips float64, st *PositionRiskState) Mode {
	if st.Mode == Protective {
		return Protective
	}
	if profitPips >= m.cfg.ProtectiveThresholdPips || pos.FloatingProfit >= m.cfg.ProtectiveThresholdUSD {
		st.Mode = Protective
		logger.Info(ctx, "Position pinned to protective mode",
			"ticket", pos.Ticket,
			"instrument", pos.Instrument,
			"profit_pips", profitPips,
			"floating_profit", pos.FloatingProfit,
		)
		return Protective
	}
	return Conservative
}

// breakevenStop is the entry price shifted by the offset toward profit.
func breakevenStop(pos types.Position, offset float64) float64 {
	if pos.Direction == types.Buy {
		return pos.EntryPrice + offset
	}
	return pos.EntryPrice - offset
}

// trailingStop follows the exit-side market price at the trailing distance.
func trailingStop(pos types.Position, tick types.Tick, distance float64) float64 {
	if pos.Direction == types.Buy {
		return tick.Bid - distance
	}
	return tick.Ask + distance
}

// improves reports whether candidate is strictly better than the current
// stop-loss: higher for a long, lower for a short, anything when no stop is
// set yet. This is what keeps the applied stop sequence monotone.
func improves(dir types.Direction, current, candidate float64) bool {
	if current == 0 {
		return true
	}
	if dir == types.Buy {
		return candidate > current
	}
	return candidate < current
}

// clearsMinStep requires the trailing improvement to exceed the configured
// minimum step in pips.
func (m *Machine) clearsMinStep(dir types.Direction, current, candidate float64, pip float64) bool {
	if current == 0 {
		return true
	}
	step := (candidate - current) / pip
	if dir == types.Sell {
		step = -step
	}
	return step >= m.cfg.MinStepPips
}
