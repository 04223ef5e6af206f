package oracleobs

import (
	"context"
	"time"

	"confluence-trading-bot/internal/interfaces"
	"confluence-trading-bot/internal/logger"
	"confluence-trading-bot/internal/trace"
)

type observableOracle struct {
	oracle interfaces.AdvisoryOracle
}

var _ interfaces.AdvisoryOracle = (*observableOracle)(nil)

func Wrap(oracle interfaces.AdvisoryOracle) interfaces.AdvisoryOracle {
	return &observableOracle{
		oracle: oracle,
	}
}

func (oo *observableOracle) Ask(ctx context.Context, prompt interfaces.OraclePrompt) interfaces.OracleResult {
	ctx, span := trace.StartSpan(ctx, "oracle.Ask")
	defer span.End()

	start := time.Now()

	logger.DebugSkip(ctx, 1, "Asking oracle",
		"instrument", prompt.Instrument,
		"timeframes", len(prompt.Snapshots),
		"headlines", len(prompt.Headlines),
	)

	result := oo.oracle.Ask(ctx, prompt)
	switch result.Kind {
	case interfaces.AdviceError:
		logger.ErrorWithErrSkip(ctx, 1, "Oracle call failed", result.Err,
			"instrument", prompt.Instrument,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	case interfaces.AdviceNoSignal:
		logger.DebugSkip(ctx, 1, "Oracle declined to signal",
			"instrument", prompt.Instrument,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	case interfaces.AdviceDecision:
		logger.InfoSkip(ctx, 1, "Oracle advice received",
			"instrument", prompt.Instrument,
			"direction", result.Advice.Direction,
			"confidence_pct", result.Advice.ConfidencePercent,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return result
}
