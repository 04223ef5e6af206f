package strategy

import (
	"context"
	"errors"
	"time"

	"confluence-trading-bot/internal/interfaces"
	"confluence-trading-bot/internal/logger"
	"confluence-trading-bot/internal/ta"
	"confluence-trading-bot/internal/types"
)

// HeadlineSource supplies recent headlines for an instrument. Optional; a nil
// source means the prompt carries no news context.
type HeadlineSource interface {
	Headlines(ctx context.Context, instrument string) []string
}

// Oracle wraps the advisory oracle collaborator as a regular strategy. It
// fetches additional timeframes itself so the oracle sees multi-timeframe
// context, and converts only high-confidence decisions into candidates.
// Malformed or timed-out responses contribute nothing - never guessed.
type Oracle struct {
	oracle     interfaces.AdvisoryOracle
	quotes     interfaces.QuoteSource
	news       HeadlineSource
	timeframes []string
	barCount   int
	minConf    float64
}

// NewOracle builds the oracle-backed strategy. minConfidencePercent below the
// collaborator floor of 70 is raised to it.
func NewOracle(o interfaces.AdvisoryOracle, quotes interfaces.QuoteSource, news HeadlineSource, minConfidencePercent float64) *Oracle {
	if minConfidencePercent < 70 {
		minConfidencePercent = 70
	}
	return &Oracle{
		oracle:     o,
		quotes:     quotes,
		news:       news,
		timeframes: []string{"5m", "1h"},
		barCount:   120,
		minConf:    minConfidencePercent,
	}
}

func (s *Oracle) Name() string { return "advisory_oracle" }

func (s *Oracle) Evaluate(ctx context.Context, snap types.IndicatorSnapshot, instrument string) ([]types.CandidateSignal, error) {
	prompt := interfaces.OraclePrompt{
		Instrument:   instrument,
		CurrentPrice: snap.LastClose,
		Snapshots:    map[string]types.IndicatorSnapshot{"1m": snap},
	}

	for _, tf := range s.timeframes {
		bars, err := s.quotes.GetBars(ctx, instrument, tf, s.barCount)
		if err != nil {
			logger.Warn(ctx, "Oracle context timeframe unavailable", "instrument", instrument, "timeframe", tf, "error", err)
			continue
		}
		tfSnap, err := ta.Compute(bars)
		if err != nil {
			if errors.Is(err, types.ErrInsufficientData) {
				continue
			}
			return nil, err
		}
		prompt.Snapshots[tf] = tfSnap
	}

	if s.news != nil {
		prompt.Headlines = s.news.Headlines(ctx, instrument)
	}

	res := s.oracle.Ask(ctx, prompt)
	switch res.Kind {
	case interfaces.AdviceDecision:
		// fall through
	case interfaces.AdviceError:
		logger.Warn(ctx, "Oracle returned error, treating as no signal", "instrument", instrument, "error", res.Err)
		return nil, nil
	default:
		return nil, nil
	}

	if res.Advice.ConfidencePercent < s.minConf {
		logger.Debug(ctx, "Oracle confidence below floor", "instrument", instrument, "confidence_pct", res.Advice.ConfidencePercent, "floor", s.minConf)
		return nil, nil
	}

	return []types.CandidateSignal{{
		Instrument:     instrument,
		Direction:      res.Advice.Direction,
		Strength:       res.Advice.ConfidencePercent / 100,
		ConfluenceTags: []string{"oracle_decision", "multi_timeframe"},
		SourceStrategy: s.Name(),
		Timestamp:      time.Now(),
	}}, nil
}
