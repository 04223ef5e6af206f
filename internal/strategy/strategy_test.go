package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confluence-trading-bot/internal/interfaces"
	"confluence-trading-bot/internal/types"
)

func baseSnapshot() types.IndicatorSnapshot {
	return types.IndicatorSnapshot{
		RSI:         50,
		BBUpper:     102,
		BBMiddle:    100,
		BBLower:     98,
		ATR:         0.5,
		VolumeRatio: 1.0,
		High20:      101,
		Low20:       99,
		LastClose:   100,
		BarCount:    60,
	}
}

func TestMomentumBuyOnZeroCross(t *testing.T) {
	snap := baseSnapshot()
	snap.PrevMomentum = -0.2
	snap.Momentum = 1.5
	snap.VolumeRatio = 1.2
	snap.RSI = 60

	sigs, err := NewMomentum().Evaluate(context.Background(), snap, "EURUSD")
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, types.Buy, sigs[0].Direction)
	assert.InDelta(t, 0.65, sigs[0].Strength, 1e-9)
	assert.Contains(t, sigs[0].ConfluenceTags, "momentum_cross")
}

func TestMomentumSuppressedWithoutVolume(t *testing.T) {
	snap := baseSnapshot()
	snap.PrevMomentum = -0.2
	snap.Momentum = 1.5
	snap.VolumeRatio = 1.0

	sigs, err := NewMomentum().Evaluate(context.Background(), snap, "EURUSD")
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestMomentumSuppressedByStretchedRSI(t *testing.T) {
	snap := baseSnapshot()
	snap.PrevMomentum = -0.2
	snap.Momentum = 1.5
	snap.VolumeRatio = 1.2
	snap.RSI = 75

	sigs, err := NewMomentum().Evaluate(context.Background(), snap, "EURUSD")
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestMeanReversionBuyAtLowerBand(t *testing.T) {
	// RSI collapsed from the mid-50s to 28 while price pierced the lower
	// band on rising volume; expect a BUY with strength >= 0.6.
	snap := baseSnapshot()
	snap.RSI = 28
	snap.LastClose = 97.9
	snap.VolumeRatio = 1.4

	sigs, err := NewMeanReversion().Evaluate(context.Background(), snap, "EURUSD")
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, types.Buy, sigs[0].Direction)
	assert.GreaterOrEqual(t, sigs[0].Strength, 0.6)
	assert.Equal(t, []string{"bollinger_edge", "rsi_extreme"}, sigs[0].ConfluenceTags)
}

func TestMeanReversionNeedsBothConditions(t *testing.T) {
	snap := baseSnapshot()
	snap.RSI = 28
	snap.LastClose = 99 // inside the bands

	sigs, err := NewMeanReversion().Evaluate(context.Background(), snap, "EURUSD")
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestBreakoutSellBelowRange(t *testing.T) {
	snap := baseSnapshot()
	snap.LastClose = 98.8
	snap.VolumeRatio = 1.8

	sigs, err := NewBreakout().Evaluate(context.Background(), snap, "EURUSD")
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, types.Sell, sigs[0].Direction)
	assert.Greater(t, sigs[0].Strength, 0.6)
}

func TestBreakoutRequiresVolume(t *testing.T) {
	snap := baseSnapshot()
	snap.LastClose = 101.5
	snap.VolumeRatio = 1.2

	sigs, err := NewBreakout().Evaluate(context.Background(), snap, "EURUSD")
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

func TestVolumeSpikeNeedsDirectionAgreement(t *testing.T) {
	snap := baseSnapshot()
	snap.VolumeRatio = 2.5
	snap.PriceChange5m = 0.4
	snap.LastClose = 99 // below the mean, contradicts the rise

	sigs, err := NewVolumeSpike().Evaluate(context.Background(), snap, "EURUSD")
	require.NoError(t, err)
	assert.Empty(t, sigs)

	snap.LastClose = 101
	sigs, err = NewVolumeSpike().Evaluate(context.Background(), snap, "EURUSD")
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, types.Buy, sigs[0].Direction)
	assert.InDelta(t, 0.475, sigs[0].Strength, 1e-9)
}

func TestConfluenceRequiresThreeOfFour(t *testing.T) {
	snap := baseSnapshot()
	snap.RSI = 58
	snap.MACD = 0.3
	snap.MACDSignal = 0.1
	snap.LastClose = 101 // above mid, inside upper band

	sigs, err := NewConfluence().Evaluate(context.Background(), snap, "EURUSD")
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, types.Buy, sigs[0].Direction)
	assert.Equal(t, 1.0, sigs[0].Strength)
	assert.Len(t, sigs[0].ConfluenceTags, 4)

	// Drop MACD agreement and the RSI zone: only two checks left.
	snap.MACDSignal = 0.5
	snap.RSI = 75
	sigs, err = NewConfluence().Evaluate(context.Background(), snap, "EURUSD")
	require.NoError(t, err)
	assert.Empty(t, sigs)
}

type panicStrategy struct{}

func (panicStrategy) Name() string { return "panicky" }
func (panicStrategy) Evaluate(context.Context, types.IndicatorSnapshot, string) ([]types.CandidateSignal, error) {
	panic("boom")
}

type errStrategy struct{}

func (errStrategy) Name() string { return "broken" }
func (errStrategy) Evaluate(context.Context, types.IndicatorSnapshot, string) ([]types.CandidateSignal, error) {
	return nil, errors.New("collaborator down")
}

func TestSetIsolatesFailures(t *testing.T) {
	snap := baseSnapshot()
	snap.RSI = 28
	snap.LastClose = 97.9

	set := NewSet(panicStrategy{}, errStrategy{}, NewMeanReversion())
	got := set.Evaluate(context.Background(), snap, "EURUSD")
	require.Len(t, got, 1)
	assert.Equal(t, "mean_reversion", got[0].SourceStrategy)

	assert.Equal(t, []string{"panicky", "broken", "mean_reversion"}, set.Names())
}

var _ interfaces.Strategy = panicStrategy{}
