package noop

import (
	"context"

	"confluence-trading-bot/internal/interfaces"
)

// Oracle is the fallback advisor used when no LLM is configured. It always
// answers no-signal, so the rule-based strategies run unassisted.
type Oracle struct{}

var _ interfaces.AdvisoryOracle = (*Oracle)(nil)

func New() *Oracle {
	return &Oracle{}
}

func (o *Oracle) Ask(ctx context.Context, prompt interfaces.OraclePrompt) interfaces.OracleResult {
	return interfaces.OracleResult{Kind: interfaces.AdviceNoSignal}
}
