package interfaces

import (
	"context"

	"confluence-trading-bot/internal/types"
)

// AdviceKind tags an oracle result. A response that cannot be parsed or that
// reports low confidence is never promoted to a decision.
type AdviceKind int

const (
	AdviceNoSignal AdviceKind = iota
	AdviceDecision
	AdviceError
)

// Advice is the decision tuple returned by the advisory oracle.
type Advice struct {
	Direction         types.Direction
	ConfidencePercent float64
	Entry             float64
	StopLoss          float64
	TakeProfit        float64
	Rationale         string
}

// OracleResult is the tagged union of oracle outcomes.
type OracleResult struct {
	Kind   AdviceKind
	Advice Advice
	Err    error
}

// OraclePrompt is the structured multi-timeframe context sent to the oracle.
type OraclePrompt struct {
	Instrument   string
	CurrentPrice float64
	// Snapshots keyed by timeframe, e.g. "1m", "5m", "1h".
	Snapshots map[string]types.IndicatorSnapshot
	Headlines []string
}

// AdvisoryOracle is the optional LLM-backed strategy collaborator. Calls must
// be time-bounded by the supplied context.
type AdvisoryOracle interface {
	Ask(ctx context.Context, prompt OraclePrompt) OracleResult
}
