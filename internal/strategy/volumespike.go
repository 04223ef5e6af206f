package strategy

import (
	"context"
	"math"
	"time"

	"confluence-trading-bot/internal/types"
)

// VolumeSpike reads an outsized volume bar as participation and takes the
// direction the bar closed in, confirmed by the short-term price change.
type VolumeSpike struct{}

func NewVolumeSpike() *VolumeSpike { return &VolumeSpike{} }

func (s *VolumeSpike) Name() string { return "volume_spike" }

func (s *VolumeSpike) Evaluate(_ context.Context, snap types.IndicatorSnapshot, instrument string) ([]types.CandidateSignal, error) {
	const spikeRatio = 2.0

	if snap.VolumeRatio < spikeRatio {
		return nil, nil
	}

	var dir types.Direction
	switch {
	case snap.PriceChange5m > 0 && snap.LastClose > snap.BBMiddle:
		dir = types.Buy
	case snap.PriceChange5m < 0 && snap.LastClose < snap.BBMiddle:
		dir = types.Sell
	default:
		// Spike with no directional agreement is noise.
		return nil, nil
	}

	strength := math.Min(1, 0.4+(snap.VolumeRatio-spikeRatio)*0.15)

	return []types.CandidateSignal{{
		Instrument:     instrument,
		Direction:      dir,
		Strength:       strength,
		ConfluenceTags: []string{"volume_spike", "direction_confirm"},
		SourceStrategy: s.Name(),
		Timestamp:      time.Now(),
	}}, nil
}
