package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confluence-trading-bot/internal/interfaces"
	"confluence-trading-bot/internal/risk"
	"confluence-trading-bot/internal/store"
	"confluence-trading-bot/internal/types"
)

type fakeBroker struct {
	mu            sync.Mutex
	positions     []types.Position
	positionsErr  error
	tick          types.Tick
	tickErr       error
	modifyErr     error
	modifications []risk.Modification
	modifyCalls   int
	connected     bool
	reconnectErr  error
}

var _ interfaces.Broker = (*fakeBroker)(nil)

func (f *fakeBroker) GetPositions(context.Context) ([]types.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.positionsErr != nil {
		return nil, f.positionsErr
	}
	return f.positions, nil
}

func (f *fakeBroker) GetTick(context.Context, string) (types.Tick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tick, f.tickErr
}

func (f *fakeBroker) PlaceOrder(context.Context, types.TradeDecision) (int64, error) {
	return 0, errors.New("not used")
}

func (f *fakeBroker) ModifyStopLoss(_ context.Context, ticket int64, newSL, newTP float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.modifyCalls++
	if f.modifyErr != nil {
		return f.modifyErr
	}
	f.modifications = append(f.modifications, risk.Modification{Ticket: ticket, NewSL: newSL, NewTP: newTP})
	for i := range f.positions {
		if f.positions[i].Ticket == ticket {
			f.positions[i].StopLoss = newSL
		}
	}
	return nil
}

func (f *fakeBroker) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeBroker) Reconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reconnectErr != nil {
		return f.reconnectErr
	}
	f.connected = true
	return nil
}

type countingNotifier struct {
	mu     sync.Mutex
	events []types.NotifyEvent
}

func (n *countingNotifier) Notify(_ context.Context, ev types.NotifyEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *countingNotifier) byKind(kind types.NotifyKind) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, ev := range n.events {
		if ev.Kind == kind {
			c++
		}
	}
	return c
}

func testConfig() *store.Config {
	cfg := &store.Config{}
	cfg.Mode = "DRY_RUN"
	cfg.Broker = "SIM"
	cfg.Instruments = []string{"EURUSD"}
	cfg.SignalCycleSeconds = 60
	cfg.RiskCycleSeconds = 35
	cfg.CycleTimeoutSeconds = 5
	cfg.Reconnect.BackoffSeconds = 1
	cfg.Reconnect.MaxAttempts = 2
	cfg.Risk = risk.DefaultConfig()
	return cfg
}

func newLoop(cfg *store.Config, brk interfaces.Broker, n interfaces.Notifier) (*Loop, *risk.Registry) {
	reg := risk.NewRegistry()
	return New(cfg, nil, brk, risk.NewMachine(cfg.Risk), reg, n), reg
}

func TestRiskCycleAppliesAndCommitsModifications(t *testing.T) {
	brk := &fakeBroker{
		connected: true,
		positions: []types.Position{{
			Ticket:         11,
			Instrument:     "EURUSD",
			Direction:      types.Buy,
			EntryPrice:     1.00000,
			FloatingProfit: 3,
		}},
		tick: types.Tick{Bid: 1.00250, Ask: 1.00260}, // 25 pips
	}
	notifier := &countingNotifier{}
	loop, reg := newLoop(testConfig(), brk, notifier)

	loop.riskCycle(context.Background())

	require.Len(t, brk.modifications, 1)
	assert.InDelta(t, 1.00020, brk.modifications[0].NewSL, 1e-9)

	st, ok := reg.Snapshot(11)
	require.True(t, ok)
	assert.True(t, st.BreakevenApplied)
	assert.Equal(t, 1, notifier.byKind(types.NotifyBreakeven))

	// Same market next cycle: nothing left to do.
	loop.riskCycle(context.Background())
	assert.Len(t, brk.modifications, 1)
}

func TestRiskCycleSurvivesPositionsOutage(t *testing.T) {
	brk := &fakeBroker{
		connected:    true,
		positionsErr: types.Unavailable("broker", errors.New("timeout")),
	}
	notifier := &countingNotifier{}
	loop, _ := newLoop(testConfig(), brk, notifier)

	// Three consecutive failing cycles: no modifications, no panic, and the
	// alert suppression keeps it to a single notification in the window.
	for i := 0; i < 3; i++ {
		loop.riskCycle(context.Background())
	}

	assert.Zero(t, brk.modifyCalls)
	assert.LessOrEqual(t, notifier.byKind(types.NotifyConnectionLost), 1)
}

func TestRiskCycleFailedModifyIsNotCommitted(t *testing.T) {
	brk := &fakeBroker{
		connected: true,
		positions: []types.Position{{
			Ticket:         12,
			Instrument:     "EURUSD",
			Direction:      types.Buy,
			EntryPrice:     1.00000,
			FloatingProfit: 3,
		}},
		tick:      types.Tick{Bid: 1.00250, Ask: 1.00260},
		modifyErr: &types.RejectedError{ReasonCode: "MARKET_CLOSED"},
	}
	loop, reg := newLoop(testConfig(), brk, &countingNotifier{})

	loop.riskCycle(context.Background())

	st, ok := reg.Snapshot(12)
	require.True(t, ok)
	assert.False(t, st.BreakevenApplied, "rejected modification must not be committed")

	// Broker recovers: the same breakeven is re-planned and applied.
	brk.mu.Lock()
	brk.modifyErr = nil
	brk.mu.Unlock()
	loop.riskCycle(context.Background())

	st, _ = reg.Snapshot(12)
	assert.True(t, st.BreakevenApplied)
}

func TestRiskCyclePrunesClosedTickets(t *testing.T) {
	brk := &fakeBroker{
		connected: true,
		positions: []types.Position{{
			Ticket:         13,
			Instrument:     "EURUSD",
			Direction:      types.Buy,
			EntryPrice:     1.00000,
			FloatingProfit: 1,
		}},
		tick: types.Tick{Bid: 1.00050, Ask: 1.00060},
	}
	loop, reg := newLoop(testConfig(), brk, &countingNotifier{})

	loop.riskCycle(context.Background())
	assert.Equal(t, 1, reg.Len())

	brk.mu.Lock()
	brk.positions = nil
	brk.mu.Unlock()
	loop.riskCycle(context.Background())
	assert.Zero(t, reg.Len())
}

func TestEnsureConnectedReconnects(t *testing.T) {
	brk := &fakeBroker{connected: false}
	loop, _ := newLoop(testConfig(), brk, &countingNotifier{})

	assert.True(t, loop.ensureConnected(context.Background()))
	assert.True(t, brk.IsConnected())
}

func TestEnsureConnectedAlertsOncePerWindow(t *testing.T) {
	brk := &fakeBroker{
		connected:    false,
		reconnectErr: errors.New("refused"),
	}
	cfg := testConfig()
	cfg.Reconnect.BackoffSeconds = 0 // no sleeping in tests; window is 0s
	notifier := &countingNotifier{}
	loop, _ := newLoop(cfg, brk, notifier)

	assert.False(t, loop.ensureConnected(context.Background()))
	assert.GreaterOrEqual(t, notifier.byKind(types.NotifyConnectionLost), 1)
}

type countingEngine struct {
	mu    sync.Mutex
	delay time.Duration
	steps int
}

func (e *countingEngine) Step(_ context.Context, instrument string) (*types.StepResult, error) {
	e.mu.Lock()
	e.steps++
	e.mu.Unlock()
	if e.delay > 0 {
		time.Sleep(e.delay)
	}
	return &types.StepResult{Instrument: instrument}, nil
}

func (e *countingEngine) stepCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.steps
}

func TestRunDrivesBothCyclesIndependently(t *testing.T) {
	brk := &fakeBroker{
		connected: true,
		positions: []types.Position{{
			Ticket:     7,
			Instrument: "EURUSD",
			Direction:  types.Buy,
			EntryPrice: 1.00000,
		}},
		tick: types.Tick{Bid: 1.00000, Ask: 1.00002},
	}
	cfg := testConfig()
	cfg.SignalCycleSeconds = 3600 // only the immediate first signal cycle runs
	cfg.RiskCycleSeconds = 1
	eng := &countingEngine{delay: 1200 * time.Millisecond}

	reg := risk.NewRegistry()
	loop := New(cfg, eng, brk, risk.NewMachine(cfg.Risk), reg, &countingNotifier{})

	ctx, cancel := context.WithTimeout(context.Background(), 2200*time.Millisecond)
	defer cancel()
	err := loop.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, 1, eng.stepCount())
	assert.GreaterOrEqual(t, reg.Len(), 1, "risk cycle ran despite the slow signal cycle")
}
