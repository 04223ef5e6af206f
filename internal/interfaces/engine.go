package interfaces

import (
	"context"

	"confluence-trading-bot/internal/types"
)

// SignalEngine runs one signal cycle step for a single instrument.
type SignalEngine interface {
	Step(ctx context.Context, instrument string) (*types.StepResult, error)
}
