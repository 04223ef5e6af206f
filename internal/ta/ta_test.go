package ta

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confluence-trading-bot/internal/types"
)

func flatBars(n int, close float64) []types.Bar {
	bars := make([]types.Bar, n)
	for i := range bars {
		bars[i] = types.Bar{
			Ts:     int64(i) * 60_000,
			Open:   close,
			High:   close + 0.5,
			Low:    close - 0.5,
			Close:  close,
			Volume: 1000,
		}
	}
	return bars
}

func TestComputeRejectsShortWindow(t *testing.T) {
	_, err := Compute(flatBars(19, 100))
	require.ErrorIs(t, err, types.ErrInsufficientData)

	_, err = Compute(nil)
	require.ErrorIs(t, err, types.ErrInsufficientData)

	_, err = Compute(flatBars(20, 100))
	require.NoError(t, err)
}

func TestRSINeutralOnShortSeries(t *testing.T) {
	closes := make([]float64, 14)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	assert.Equal(t, 50.0, RSI(closes, 14))
}

func TestRSISaturatesWithoutLosses(t *testing.T) {
	closes := make([]float64, 15)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	assert.Equal(t, 100.0, RSI(closes, 14))
}

func TestRSIMidrange(t *testing.T) {
	// Alternating equal gains and losses should sit at 50.
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
		if i%2 == 1 {
			closes[i] = 101
		}
	}
	assert.InDelta(t, 50.0, RSI(closes, 14), 0.01)
}

func TestATRFlatSeries(t *testing.T) {
	bars := flatBars(30, 100)
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		highs[i], lows[i], closes[i] = b.High, b.Low, b.Close
	}
	// Every bar spans exactly 1.0, so the mean true range is 1.0.
	assert.InDelta(t, 1.0, ATR(highs, lows, closes, 14), 1e-9)
	assert.True(t, math.IsNaN(ATR(highs[:10], lows[:10], closes[:10], 14)))
}

func TestMomentum(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 100, 100, 100, 100, 100, 110}
	assert.InDelta(t, 10.0, Momentum(closes), 1e-9)

	assert.Zero(t, Momentum(closes[:9]))
}

func TestBollingerFlatSeries(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 50
	}
	mid, up, low := Bollinger(closes, 20, 2)
	assert.Equal(t, 50.0, mid)
	assert.Equal(t, 50.0, up)
	assert.Equal(t, 50.0, low)
}

func TestHighestLowestExcludesLatestBar(t *testing.T) {
	highs := []float64{1, 2, 3, 9}
	lows := []float64{0.5, 1, 2, 0.1}
	hi, lo := HighestLowest(highs, lows, 3)
	assert.Equal(t, 3.0, hi)
	assert.Equal(t, 0.5, lo)
}

func TestVolumeRatio(t *testing.T) {
	vols := make([]float64, 20)
	for i := range vols {
		vols[i] = 100
	}
	vols[19] = 250
	ratio := VolumeRatio(vols, 20)
	assert.InDelta(t, 250.0/107.5, ratio, 1e-9)

	assert.Equal(t, 1.0, VolumeRatio([]float64{1, 2}, 20))
	assert.Equal(t, 1.0, VolumeRatio(make([]float64, 20), 20))
}

func TestComputeSnapshotFields(t *testing.T) {
	bars := flatBars(60, 100)
	// Spike the last close and volume so derived fields move.
	bars[59].Close = 102
	bars[59].High = 102.5
	bars[59].Volume = 3000

	snap, err := Compute(bars)
	require.NoError(t, err)

	assert.Equal(t, 60, snap.BarCount)
	assert.Equal(t, 102.0, snap.LastClose)
	assert.Equal(t, 3000.0, snap.LastVolume)
	assert.Greater(t, snap.VolumeRatio, 1.0)
	assert.Greater(t, snap.Momentum, 0.0)
	assert.Zero(t, snap.PrevMomentum)
	assert.Equal(t, 100.5, snap.High20)
	assert.Greater(t, snap.RSI, 50.0)
	assert.False(t, math.IsNaN(snap.BBUpper))
	assert.GreaterOrEqual(t, snap.ATR, 0.0)
}
