package strategy

import (
	"context"
	"fmt"

	"confluence-trading-bot/internal/interfaces"
	"confluence-trading-bot/internal/logger"
	"confluence-trading-bot/internal/types"
)

// Set is the ordered collection of registered strategies. Strategies are
// independent: a failure (error or panic) in one is logged and contributes an
// empty result, never blocking the others.
type Set struct {
	strategies []interfaces.Strategy
}

// NewSet registers strategies in evaluation order. Order only affects log
// output; the aggregator is order-insensitive.
func NewSet(strategies ...interfaces.Strategy) *Set {
	return &Set{strategies: strategies}
}

// Names lists the registered strategy names in order.
func (s *Set) Names() []string {
	out := make([]string, len(s.strategies))
	for i, st := range s.strategies {
		out[i] = st.Name()
	}
	return out
}

// Evaluate runs every strategy against the snapshot and merges their
// candidates.
func (s *Set) Evaluate(ctx context.Context, snap types.IndicatorSnapshot, instrument string) []types.CandidateSignal {
	var all []types.CandidateSignal
	for _, st := range s.strategies {
		candidates, err := evaluateOne(ctx, st, snap, instrument)
		if err != nil {
			logger.Warn(ctx, "Strategy failed, continuing without it",
				"strategy", st.Name(),
				"instrument", instrument,
				"error", err,
			)
			continue
		}
		all = append(all, candidates...)
	}
	return all
}

// evaluateOne isolates a single strategy run, converting panics to errors.
func evaluateOne(ctx context.Context, st interfaces.Strategy, snap types.IndicatorSnapshot, instrument string) (candidates []types.CandidateSignal, err error) {
	defer func() {
		if r := recover(); r != nil {
			candidates = nil
			err = fmt.Errorf("strategy %s panicked: %v", st.Name(), r)
		}
	}()
	return st.Evaluate(ctx, snap, instrument)
}
