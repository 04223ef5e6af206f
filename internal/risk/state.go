package risk

import (
	"strings"
	"time"

	"confluence-trading-bot/internal/types"
)

// Mode selects the trigger parameter set for a ticket.
type Mode string

const (
	// Conservative uses patient triggers for freshly profitable positions.
	Conservative Mode = "CONSERVATIVE"
	// Protective uses tight triggers once a position has proven itself.
	// Once reached, the mode is pinned for the ticket's lifetime.
	Protective Mode = "PROTECTIVE"
)

// PositionRiskState is the per-ticket record driven exclusively by the risk
// state machine. Breakeven and trailing are independent facets: both start
// false, breakeven becomes true at most once, trailing re-fires on each
// favorable advance.
type PositionRiskState struct {
	Ticket           int64
	BreakevenApplied bool
	TrailingActive   bool
	LastTrailingStop float64
	Mode             Mode
	FirstSeen        time.Time
}

// ModeParams are the trigger distances for one mode, in pips.
type ModeParams struct {
	BreakevenTriggerPips float64 `yaml:"breakeven_trigger_pips"`
	BreakevenOffsetPips  float64 `yaml:"breakeven_offset_pips"`
	TrailingTriggerPips  float64 `yaml:"trailing_trigger_pips"`
	TrailingDistancePips float64 `yaml:"trailing_distance_pips"`
}

// Config captures all tunable parameters of the risk state machine.
type Config struct {
	Conservative ModeParams `yaml:"conservative"`
	Protective   ModeParams `yaml:"protective"`
	// MinStepPips is the minimum improvement for a trailing modification,
	// avoiding broker-rate-limited thrashing on micro-movements.
	MinStepPips float64 `yaml:"min_step_pips"`
	// Protective mode engages at either threshold.
	ProtectiveThresholdPips float64 `yaml:"protective_threshold_pips"`
	ProtectiveThresholdUSD  float64 `yaml:"protective_threshold_usd"`
	// PipSizes overrides the per-instrument pip size; instruments quoted in
	// JPY default to 0.01, everything else to DefaultPipSize.
	PipSizes       map[string]float64 `yaml:"pip_sizes"`
	DefaultPipSize float64            `yaml:"default_pip_size"`
}

// DefaultConfig returns the built-in parameter set.
func DefaultConfig() Config {
	return Config{
		Conservative: ModeParams{
			BreakevenTriggerPips: 20,
			BreakevenOffsetPips:  2,
			TrailingTriggerPips:  30,
			TrailingDistancePips: 15,
		},
		Protective: ModeParams{
			BreakevenTriggerPips: 10,
			BreakevenOffsetPips:  3,
			TrailingTriggerPips:  15,
			TrailingDistancePips: 10,
		},
		MinStepPips:             6,
		ProtectiveThresholdPips: 40,
		ProtectiveThresholdUSD:  50,
		DefaultPipSize:          0.0001,
	}
}

// Params returns the trigger set for the given mode.
func (c Config) Params(m Mode) ModeParams {
	if m == Protective {
		return c.Protective
	}
	return c.Conservative
}

// PipSize resolves the pip size for an instrument.
func (c Config) PipSize(instrument string) float64 {
	if v, ok := c.PipSizes[instrument]; ok && v > 0 {
		return v
	}
	if strings.Contains(strings.ToUpper(instrument), "JPY") {
		return 0.01
	}
	if c.DefaultPipSize > 0 {
		return c.DefaultPipSize
	}
	return 0.0001
}

// ProfitPips converts a position's floating move into signed pips using the
// exit-side price: bid for a long, ask for a short.
func (c Config) ProfitPips(pos types.Position, tick types.Tick) float64 {
	pip := c.PipSize(pos.Instrument)
	if pos.Direction == types.Buy {
		return (tick.Bid - pos.EntryPrice) / pip
	}
	return (pos.EntryPrice - tick.Ask) / pip
}
