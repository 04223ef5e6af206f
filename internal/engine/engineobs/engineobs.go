package engineobs

import (
	"context"
	"time"

	"confluence-trading-bot/internal/interfaces"
	"confluence-trading-bot/internal/logger"
	"confluence-trading-bot/internal/trace"
	"confluence-trading-bot/internal/types"
)

type observableEngine struct {
	engine interfaces.SignalEngine
}

var _ interfaces.SignalEngine = (*observableEngine)(nil)

func Wrap(eng interfaces.SignalEngine) interfaces.SignalEngine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Step(ctx context.Context, instrument string) (*types.StepResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Step")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting signal cycle",
		"instrument", instrument,
	)

	result, err := oe.engine.Step(ctx, instrument)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Signal cycle failed", err,
			"instrument", instrument,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Signal cycle completed",
		"instrument", instrument,
		"candidates", result.Candidates,
		"decisions", len(result.Decisions),
		"tickets", len(result.Tickets),
		"reason", result.Reason,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}
