package ta

import (
	"math"

	"confluence-trading-bot/internal/types"
)

const (
	// minBars is the floor for Bollinger(20) and the ATR window; shorter
	// histories fail with ErrInsufficientData and the instrument is skipped
	// for the cycle.
	minBars = 20

	rsiPeriod    = 14
	atrPeriod    = 14
	bbWindow     = 20
	bbStdDev     = 2.0
	volumeWindow = 20
	// Lookbacks for the short/long percent-change fields, in bars.
	change5mBars = 5
	change1hBars = 60
)

// Compute derives a full IndicatorSnapshot from an oldest-first bar window.
// Pure and deterministic: same bars, same snapshot.
func Compute(bars []types.Bar) (types.IndicatorSnapshot, error) {
	if len(bars) < minBars {
		return types.IndicatorSnapshot{}, types.ErrInsufficientData
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	vols := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		vols[i] = b.Volume
	}

	macd, macdSig, macdHist := MACD(closes)
	mid, up, low := Bollinger(closes, bbWindow, bbStdDev)
	hi20, lo20 := HighestLowest(highs, lows, bbWindow)

	snap := types.IndicatorSnapshot{
		RSI:           RSI(closes, rsiPeriod),
		MACD:          macd,
		MACDSignal:    macdSig,
		MACDHistogram: macdHist,
		BBUpper:       up,
		BBMiddle:      mid,
		BBLower:       low,
		ATR:           ATR(highs, lows, closes, atrPeriod),
		Momentum:      Momentum(closes),
		PrevMomentum:  Momentum(closes[:len(closes)-1]),
		VolumeRatio:   VolumeRatio(vols, volumeWindow),
		PriceChange5m: PercentChange(closes, change5mBars),
		PriceChange1h: PercentChange(closes, change1hBars),
		High20:        hi20,
		Low20:         lo20,
		LastClose:     closes[len(closes)-1],
		LastVolume:    vols[len(vols)-1],
		BarCount:      len(bars),
	}
	if math.IsNaN(snap.ATR) {
		snap.ATR = 0
	}
	return snap, nil
}

// VolumeRatio compares the latest volume to its trailing n-bar average.
// Returns 1 (neutral) when the average is zero or the window is short.
func VolumeRatio(vols []float64, n int) float64 {
	avg := SMA(vols, n)
	if math.IsNaN(avg) || avg == 0 {
		return 1
	}
	return vols[len(vols)-1] / avg
}
