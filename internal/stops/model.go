package stops

import (
	"confluence-trading-bot/internal/types"
)

// Model derives stop-loss and take-profit levels from ATR, direction and
// signal strength. Defaults give a risk:reward of at least 1:1.5 before the
// strong-signal amplification widens the target further.
type Model struct {
	// ATRStopMult is the stop distance in ATR multiples.
	ATRStopMult float64
	// ATRTargetMult is the take-profit distance in ATR multiples.
	ATRTargetMult float64
	// StrongStrength is the strength above which the target is amplified.
	StrongStrength float64
	// StrongTargetBoost scales the take-profit distance for strong signals.
	StrongTargetBoost float64
	// MinDistancePct is the floor distance as a fraction of entry price,
	// applied when ATR is degenerate (~0) to avoid zero-width stops.
	MinDistancePct float64
	// BaseVolume is the lot size for an ordinary signal.
	BaseVolume float64
	// MaxVolume caps the amplified lot size.
	MaxVolume float64
}

// DefaultModel returns the model with the documented defaults.
func DefaultModel() Model {
	return Model{
		ATRStopMult:       1.0,
		ATRTargetMult:     2.0,
		StrongStrength:    0.8,
		StrongTargetBoost: 1.5,
		MinDistancePct:    0.002,
		BaseVolume:        0.01,
		MaxVolume:         0.10,
	}
}

// Volume maps signal strength to a lot size: the base lot, amplified 1.5x on
// strong signals, capped at MaxVolume.
func (m Model) Volume(strength float64) float64 {
	vol := m.BaseVolume
	if strength > m.StrongStrength {
		vol *= m.StrongTargetBoost
	}
	if m.MaxVolume > 0 && vol > m.MaxVolume {
		vol = m.MaxVolume
	}
	return vol
}

// Levels returns stop-loss and take-profit prices for a trade entered at
// entry with the given ATR and signal strength.
func (m Model) Levels(direction types.Direction, entry, atr, strength float64) (stopLoss, takeProfit float64) {
	floor := entry * m.MinDistancePct
	base := atr
	if base < floor {
		base = floor
	}

	stopDist := m.ATRStopMult * base
	targetDist := m.ATRTargetMult * base
	if strength > m.StrongStrength {
		targetDist *= m.StrongTargetBoost
	}

	if direction == types.Buy {
		return entry - stopDist, entry + targetDist
	}
	return entry + stopDist, entry - targetDist
}
