package interfaces

import (
	"context"

	"confluence-trading-bot/internal/types"
)

// Strategy scores one indicator snapshot and produces zero or more candidate
// signals. Strategies are independent and order-insensitive; an error from
// one must not block the others.
type Strategy interface {
	Name() string
	Evaluate(ctx context.Context, snap types.IndicatorSnapshot, instrument string) ([]types.CandidateSignal, error)
}
