package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confluence-trading-bot/internal/types"
)

const pip = 0.0001

func buyPosition(ticket int64, entry float64) types.Position {
	return types.Position{
		Ticket:     ticket,
		Instrument: "EURUSD",
		Direction:  types.Buy,
		Volume:     0.01,
		EntryPrice: entry,
		TakeProfit: entry + 200*pip,
	}
}

func tickAtBid(bid float64) types.Tick {
	return types.Tick{Bid: bid, Ask: bid + 1*pip}
}

func TestPlanNeverTouchesUnprofitablePosition(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := &PositionRiskState{Ticket: 1, Mode: Conservative}

	pos := buyPosition(1, 1.00000)
	pos.FloatingProfit = -3

	// Deep in profit by price but negative account P/L: still untouched.
	assert.Nil(t, m.Plan(context.Background(), pos, tickAtBid(1.00500), st))

	// Flat price: zero pips, untouched.
	pos.FloatingProfit = 0
	assert.Nil(t, m.Plan(context.Background(), pos, tickAtBid(1.00000), st))

	// Losing price: untouched even with stale positive account P/L.
	pos.FloatingProfit = 5
	assert.Nil(t, m.Plan(context.Background(), pos, tickAtBid(0.99900), st))
}

func TestBreakevenFiresExactlyOnceAcrossOscillations(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := &PositionRiskState{Ticket: 7, Mode: Conservative}
	pos := buyPosition(7, 1.00000)
	pos.FloatingProfit = 2.5

	var applied []Modification
	for cycle := 0; cycle < 50; cycle++ {
		// Profit oscillates around the 20-pip breakeven trigger: 25 pips on
		// even cycles, 15 on odd ones. Trailing (30-pip trigger) never arms.
		bid := 1.00000 + 25*pip
		if cycle%2 == 1 {
			bid = 1.00000 + 15*pip
		}
		mods := m.Plan(context.Background(), pos, tickAtBid(bid), st)
		for _, mod := range mods {
			m.Commit(st, mod)
			pos.StopLoss = mod.NewSL
			applied = append(applied, mod)
		}
	}

	require.Len(t, applied, 1)
	assert.Equal(t, ModBreakeven, applied[0].Kind)
	assert.InDelta(t, 1.00000+2*pip, applied[0].NewSL, 1e-9)
	assert.True(t, st.BreakevenApplied)
	assert.False(t, st.TrailingActive)
}

func TestTrailingStopsAreMonotoneForBuy(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := &PositionRiskState{Ticket: 2, Mode: Conservative}
	pos := buyPosition(2, 1.00000)
	pos.FloatingProfit = 3
	st.BreakevenApplied = true // isolate trailing behavior

	bids := []float64{
		1.00000 + 35*pip, // arms trailing: stop at bid-15
		1.00000 + 38*pip, // +3 pips improvement, below min step 6
		1.00000 + 45*pip, // fires again: +10 pips ... protective threshold hit at 40
		1.00000 + 30*pip, // pullback, candidate worse, never loosened
	}
	var stops []float64
	for _, bid := range bids {
		mods := m.Plan(context.Background(), pos, tickAtBid(bid), st)
		for _, mod := range mods {
			require.Equal(t, ModTrailing, mod.Kind)
			m.Commit(st, mod)
			pos.StopLoss = mod.NewSL
			stops = append(stops, mod.NewSL)
		}
	}

	require.Len(t, stops, 2)
	assert.InDelta(t, 1.00000+20*pip, stops[0], 1e-9)
	for i := 1; i < len(stops); i++ {
		assert.Greater(t, stops[i], stops[i-1], "stop only ratchets up for a long")
	}
	assert.True(t, st.TrailingActive)
	assert.InDelta(t, stops[len(stops)-1], st.LastTrailingStop, 1e-9)
}

func TestTrailingStopsAreMonotoneForSell(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := &PositionRiskState{Ticket: 3, Mode: Conservative}
	pos := types.Position{
		Ticket:         3,
		Instrument:     "EURUSD",
		Direction:      types.Sell,
		Volume:         0.01,
		EntryPrice:     1.00000,
		FloatingProfit: 3,
	}
	st.BreakevenApplied = true

	asks := []float64{
		1.00000 - 35*pip,
		1.00000 - 45*pip,
		1.00000 - 36*pip, // pullback toward entry
	}
	var stops []float64
	for _, ask := range asks {
		tick := types.Tick{Bid: ask - 1*pip, Ask: ask}
		for _, mod := range m.Plan(context.Background(), pos, tick, st) {
			require.Equal(t, ModTrailing, mod.Kind)
			m.Commit(st, mod)
			pos.StopLoss = mod.NewSL
			stops = append(stops, mod.NewSL)
		}
	}

	require.Len(t, stops, 2)
	assert.InDelta(t, 1.00000-20*pip, stops[0], 1e-9)
	assert.Less(t, stops[1], stops[0], "stop only ratchets down for a short")
}

func TestProtectiveModePinsAndTightensTriggers(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := &PositionRiskState{Ticket: 4, Mode: Conservative}
	pos := buyPosition(4, 1.00000)
	pos.FloatingProfit = 4

	// 45 pips crosses the 40-pip protective threshold.
	mods := m.Plan(context.Background(), pos, tickAtBid(1.00000+45*pip), st)
	require.NotEmpty(t, mods)
	assert.Equal(t, Protective, st.Mode)
	for _, mod := range mods {
		assert.Equal(t, Protective, mod.Mode)
		m.Commit(st, mod)
		pos.StopLoss = mod.NewSL
	}

	// Pullback to 12 pips: conservative breakeven (20) would not fire, but
	// the ticket stays pinned protective where the trigger is 10. Breakeven
	// already applied, so only the mode visibility matters here.
	mods = m.Plan(context.Background(), pos, tickAtBid(1.00000+12*pip), st)
	for _, mod := range mods {
		assert.Equal(t, Protective, mod.Mode)
	}
	assert.Equal(t, Protective, st.Mode)
}

func TestProtectivePinnedByUSDThreshold(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := &PositionRiskState{Ticket: 5, Mode: Conservative}
	pos := buyPosition(5, 1.00000)
	pos.FloatingProfit = 55 // above the 50 USD threshold at only 12 pips

	mods := m.Plan(context.Background(), pos, tickAtBid(1.00000+12*pip), st)
	assert.Equal(t, Protective, st.Mode)
	// Protective breakeven trigger is 10 pips, so 12 pips fires it.
	require.Len(t, mods, 1)
	assert.Equal(t, ModBreakeven, mods[0].Kind)
	assert.InDelta(t, 1.00000+3*pip, mods[0].NewSL, 1e-9)
}

func TestBreakevenAndTrailingInOneCycle(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := &PositionRiskState{Ticket: 6, Mode: Conservative}
	pos := buyPosition(6, 1.00000)
	pos.FloatingProfit = 5

	// 50 pips pins protective (trigger 10/offset 3, trail 15/distance 10).
	mods := m.Plan(context.Background(), pos, tickAtBid(1.00000+50*pip), st)
	require.Len(t, mods, 2)
	assert.Equal(t, ModBreakeven, mods[0].Kind)
	assert.InDelta(t, 1.00000+3*pip, mods[0].NewSL, 1e-9)
	assert.Equal(t, ModTrailing, mods[1].Kind)
	assert.InDelta(t, 1.00000+40*pip, mods[1].NewSL, 1e-9)
	assert.Greater(t, mods[1].NewSL, mods[0].NewSL, "trailing improves on the fresh breakeven stop")
}

func TestUncommittedPlanLeavesStateUntouched(t *testing.T) {
	m := NewMachine(DefaultConfig())
	st := &PositionRiskState{Ticket: 8, Mode: Conservative}
	pos := buyPosition(8, 1.00000)
	pos.FloatingProfit = 3

	mods := m.Plan(context.Background(), pos, tickAtBid(1.00000+25*pip), st)
	require.Len(t, mods, 1)
	// Broker rejected: no Commit. The same plan must come back next cycle.
	assert.False(t, st.BreakevenApplied)

	again := m.Plan(context.Background(), pos, tickAtBid(1.00000+25*pip), st)
	require.Len(t, again, 1)
	assert.Equal(t, mods[0].NewSL, again[0].NewSL)
}

func TestPipSizeResolution(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.0001, cfg.PipSize("EURUSD"))
	assert.Equal(t, 0.01, cfg.PipSize("USDJPY"))

	cfg.PipSizes = map[string]float64{"XAUUSD": 0.1}
	assert.Equal(t, 0.1, cfg.PipSize("XAUUSD"))
}

func TestProfitPipsUsesExitSide(t *testing.T) {
	cfg := DefaultConfig()
	long := types.Position{Instrument: "EURUSD", Direction: types.Buy, EntryPrice: 1.00000}
	short := types.Position{Instrument: "EURUSD", Direction: types.Sell, EntryPrice: 1.00000}
	tick := types.Tick{Bid: 1.00100, Ask: 1.00120}

	assert.InDelta(t, 10, cfg.ProfitPips(long, tick), 1e-9)
	assert.InDelta(t, -12, cfg.ProfitPips(short, tick), 1e-9)
}

func TestRegistryObtainAndPrune(t *testing.T) {
	r := NewRegistry()
	a := r.Obtain(1)
	b := r.Obtain(1)
	assert.Same(t, a, b)
	assert.Equal(t, Conservative, a.Mode)

	r.Obtain(2)
	r.Obtain(3)
	require.Equal(t, 3, r.Len())

	removed := r.Prune(map[int64]struct{}{2: {}})
	assert.ElementsMatch(t, []int64{1, 3}, removed)
	assert.Equal(t, 1, r.Len())

	_, ok := r.Snapshot(2)
	assert.True(t, ok)
	_, ok = r.Snapshot(1)
	assert.False(t, ok)
}
