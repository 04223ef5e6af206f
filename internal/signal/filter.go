package signal

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"confluence-trading-bot/internal/logger"
	"confluence-trading-bot/internal/stops"
	"confluence-trading-bot/internal/types"
)

// Filter merges candidate signals into at most one sized TradeDecision per
// instrument per cycle.
type Filter struct {
	confidenceFloor float64
	sizer           stops.Model
}

// New builds a filter with the configured confidence floor and stop model.
func New(confidenceFloor float64, sizer stops.Model) *Filter {
	return &Filter{confidenceFloor: confidenceFloor, sizer: sizer}
}

// Apply discards candidates below the confidence floor, keeps the single
// strongest candidate per instrument, and sizes the survivors into trade
// decisions at the instrument's current mid price. atrs supplies the ATR used
// for level sizing, keyed by instrument.
//
// Guarantee: at most one decision per instrument, so the same cycle can never
// emit contradictory decisions for an instrument.
func (f *Filter) Apply(ctx context.Context, candidates []types.CandidateSignal, ticks map[string]types.Tick, atrs map[string]float64) []types.TradeDecision {
	grouped := make(map[string][]types.CandidateSignal)
	for _, c := range candidates {
		if c.Strength < f.confidenceFloor {
			logger.Debug(ctx, "Candidate below confidence floor",
				"instrument", c.Instrument,
				"strategy", c.SourceStrategy,
				"strength", c.Strength,
				"floor", f.confidenceFloor,
			)
			continue
		}
		grouped[c.Instrument] = append(grouped[c.Instrument], c)
	}

	decisions := make([]types.TradeDecision, 0, len(grouped))
	for instrument, group := range grouped {
		winner := pickStrongest(group)

		tick, ok := ticks[instrument]
		if !ok {
			logger.Warn(ctx, "No tick for instrument, dropping decision", "instrument", instrument)
			continue
		}
		entry := tick.Mid()
		sl, tp := f.sizer.Levels(winner.Direction, entry, atrs[instrument], winner.Strength)

		decisions = append(decisions, types.TradeDecision{
			ID:           uuid.NewString(),
			Instrument:   instrument,
			Direction:    winner.Direction,
			Confidence:   winner.Strength,
			EntryPrice:   entry,
			StopLoss:     sl,
			TakeProfit:   tp,
			Volume:       f.sizer.Volume(winner.Strength),
			StrategyName: winner.SourceStrategy,
			CreatedAt:    time.Now(),
		})
	}

	// Deterministic output order for logging and tests.
	sort.Slice(decisions, func(i, j int) bool { return decisions[i].Instrument < decisions[j].Instrument })
	return decisions
}

// pickStrongest keeps the candidate with maximum strength. Ties prefer the
// larger confluence tag set, then the earliest timestamp.
func pickStrongest(group []types.CandidateSignal) types.CandidateSignal {
	best := group[0]
	for _, c := range group[1:] {
		switch {
		case c.Strength > best.Strength:
			best = c
		case c.Strength == best.Strength && len(c.ConfluenceTags) > len(best.ConfluenceTags):
			best = c
		case c.Strength == best.Strength && len(c.ConfluenceTags) == len(best.ConfluenceTags) && c.Timestamp.Before(best.Timestamp):
			best = c
		}
	}
	return best
}
