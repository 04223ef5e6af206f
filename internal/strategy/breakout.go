package strategy

import (
	"context"
	"math"
	"time"

	"confluence-trading-bot/internal/types"
)

// Breakout triggers when the close clears the prior 20-bar range on heavy
// volume.
type Breakout struct{}

func NewBreakout() *Breakout { return &Breakout{} }

func (s *Breakout) Name() string { return "breakout" }

func (s *Breakout) Evaluate(_ context.Context, snap types.IndicatorSnapshot, instrument string) ([]types.CandidateSignal, error) {
	const volumeFloor = 1.5

	if snap.VolumeRatio <= volumeFloor {
		return nil, nil
	}
	if math.IsNaN(snap.High20) || math.IsNaN(snap.Low20) {
		return nil, nil
	}

	price := snap.LastClose
	var dir types.Direction
	var rangeRef float64
	switch {
	case price > snap.High20:
		dir = types.Buy
		rangeRef = snap.High20
	case price < snap.Low20:
		dir = types.Sell
		rangeRef = snap.Low20
	default:
		return nil, nil
	}

	// Strength grows with the size of the break relative to ATR.
	strength := 0.6
	if snap.ATR > 0 {
		strength = math.Min(1, 0.6+math.Abs(price-rangeRef)/snap.ATR*0.2)
	}

	return []types.CandidateSignal{{
		Instrument:     instrument,
		Direction:      dir,
		Strength:       strength,
		ConfluenceTags: []string{"range_break", "volume_spike"},
		SourceStrategy: s.Name(),
		Timestamp:      time.Now(),
	}}, nil
}
