package strategy

import (
	"context"
	"math"
	"time"

	"confluence-trading-bot/internal/types"
)

// MeanReversion fades moves that push price through a Bollinger band edge
// while RSI sits at an extreme.
type MeanReversion struct{}

func NewMeanReversion() *MeanReversion { return &MeanReversion{} }

func (s *MeanReversion) Name() string { return "mean_reversion" }

func (s *MeanReversion) Evaluate(_ context.Context, snap types.IndicatorSnapshot, instrument string) ([]types.CandidateSignal, error) {
	const (
		oversold   = 30.0
		overbought = 70.0
	)

	price := snap.LastClose
	var dir types.Direction
	var extremity float64

	switch {
	case price <= snap.BBLower && snap.RSI < oversold:
		dir = types.Buy
		extremity = oversold - snap.RSI
	case price >= snap.BBUpper && snap.RSI > overbought:
		dir = types.Sell
		extremity = snap.RSI - overbought
	default:
		return nil, nil
	}

	// 0.6 at the band touch, growing with how deep RSI sits past the
	// threshold (30 points past = fully saturated).
	strength := math.Min(1, 0.6+extremity/30*0.4)

	return []types.CandidateSignal{{
		Instrument:     instrument,
		Direction:      dir,
		Strength:       strength,
		ConfluenceTags: []string{"bollinger_edge", "rsi_extreme"},
		SourceStrategy: s.Name(),
		Timestamp:      time.Now(),
	}}, nil
}
