package strategy

import (
	"context"
	"math"
	"time"

	"confluence-trading-bot/internal/types"
)

// Momentum triggers on a momentum zero cross confirmed by volume, as long as
// RSI is not already stretched in the trade direction.
type Momentum struct{}

func NewMomentum() *Momentum { return &Momentum{} }

func (s *Momentum) Name() string { return "momentum" }

func (s *Momentum) Evaluate(_ context.Context, snap types.IndicatorSnapshot, instrument string) ([]types.CandidateSignal, error) {
	const volumeFloor = 1.1

	if snap.VolumeRatio <= volumeFloor {
		return nil, nil
	}

	var dir types.Direction
	tags := []string{"momentum_cross", "volume_confirm"}
	switch {
	case snap.PrevMomentum <= 0 && snap.Momentum > 0 && snap.RSI < 70:
		dir = types.Buy
	case snap.PrevMomentum >= 0 && snap.Momentum < 0 && snap.RSI > 30:
		dir = types.Sell
	default:
		return nil, nil
	}

	// Base 0.5 for the cross itself, up to +0.4 for the size of the move and
	// a small kicker for unusually heavy volume.
	strength := 0.5 + math.Min(0.4, math.Abs(snap.Momentum)/10)
	if snap.VolumeRatio > 1.5 {
		strength = math.Min(1, strength+0.1)
		tags = append(tags, "volume_spike")
	}

	return []types.CandidateSignal{{
		Instrument:     instrument,
		Direction:      dir,
		Strength:       strength,
		ConfluenceTags: tags,
		SourceStrategy: s.Name(),
		Timestamp:      time.Now(),
	}}, nil
}
