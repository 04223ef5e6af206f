package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"confluence-trading-bot/internal/interfaces"
	"confluence-trading-bot/internal/logger"
	"confluence-trading-bot/internal/types"
)

// Gateway is the dry-run broker: random-walk quotes, in-memory positions,
// instant fills. It implements both the trading gateway and the quote source
// so a full loop can run without any external account.
type Gateway struct {
	mu         sync.Mutex
	rng        *rand.Rand
	prices     map[string]float64
	positions  map[int64]*types.Position
	nextTicket int64
	spreadPct  float64
	connected  bool
}

var (
	_ interfaces.Broker      = (*Gateway)(nil)
	_ interfaces.QuoteSource = (*Gateway)(nil)
)

func New(seed int64) *Gateway {
	return &Gateway{
		rng:        rand.New(rand.NewSource(seed)),
		prices:     map[string]float64{},
		positions:  map[int64]*types.Position{},
		nextTicket: 1000,
		spreadPct:  0.0001,
		connected:  true,
	}
}

// GetBars synthesizes a random-walk window ending at the instrument's current
// simulated price. Bars are oldest first.
func (g *Gateway) GetBars(ctx context.Context, instrument, timeframe string, count int) ([]types.Bar, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkConnected(); err != nil {
		return nil, err
	}

	step, err := timeframeDuration(timeframe)
	if err != nil {
		return nil, err
	}

	base := g.price(instrument)
	now := time.Now().Truncate(step)
	bars := make([]types.Bar, 0, count)
	price := base * (1 - 0.0002*float64(count))
	for i := 0; i < count; i++ {
		open := price
		price *= 1 + (g.rng.Float64()-0.498)*0.001
		high := max(open, price) * (1 + g.rng.Float64()*0.0004)
		low := min(open, price) * (1 - g.rng.Float64()*0.0004)
		bars = append(bars, types.Bar{
			Ts:     now.Add(-step * time.Duration(count-i)).UnixMilli(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  price,
			Volume: 500 + g.rng.Float64()*1000,
		})
	}
	g.prices[instrument] = price
	return bars, nil
}

func (g *Gateway) GetTick(ctx context.Context, instrument string) (types.Tick, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkConnected(); err != nil {
		return types.Tick{}, err
	}

	p := g.price(instrument)
	p *= 1 + (g.rng.Float64()-0.5)*0.0002
	g.prices[instrument] = p

	half := p * g.spreadPct / 2
	tick := types.Tick{Bid: p - half, Ask: p + half}
	g.markToMarket(instrument, tick)
	return tick, nil
}

func (g *Gateway) GetPositions(ctx context.Context) ([]types.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkConnected(); err != nil {
		return nil, err
	}

	out := make([]types.Position, 0, len(g.positions))
	for _, p := range g.positions {
		out = append(out, *p)
	}
	return out, nil
}

func (g *Gateway) PlaceOrder(ctx context.Context, d types.TradeDecision) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkConnected(); err != nil {
		return 0, err
	}
	if d.Volume <= 0 {
		return 0, &types.RejectedError{ReasonCode: "INVALID_VOLUME", Detail: fmt.Sprintf("volume %.4f", d.Volume)}
	}

	g.nextTicket++
	ticket := g.nextTicket
	g.positions[ticket] = &types.Position{
		Ticket:     ticket,
		Instrument: d.Instrument,
		Direction:  d.Direction,
		Volume:     d.Volume,
		EntryPrice: d.EntryPrice,
		StopLoss:   d.StopLoss,
		TakeProfit: d.TakeProfit,
	}
	logger.Info(ctx, "Simulated order filled",
		"ticket", ticket,
		"instrument", d.Instrument,
		"direction", d.Direction,
		"entry", d.EntryPrice,
		"volume", d.Volume,
	)
	return ticket, nil
}

func (g *Gateway) ModifyStopLoss(ctx context.Context, ticket int64, newSL, newTP float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkConnected(); err != nil {
		return err
	}

	pos, ok := g.positions[ticket]
	if !ok {
		return &types.RejectedError{ReasonCode: "UNKNOWN_TICKET", Detail: fmt.Sprintf("ticket %d", ticket)}
	}
	pos.StopLoss = newSL
	if newTP > 0 {
		pos.TakeProfit = newTP
	}
	return nil
}

func (g *Gateway) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

func (g *Gateway) Reconnect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = true
	return nil
}

// SetConnected toggles the simulated link state, for exercising reconnect
// handling in tests.
func (g *Gateway) SetConnected(up bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = up
}

// ClosePosition removes a simulated position, as a closed trade would at a
// real broker.
func (g *Gateway) ClosePosition(ticket int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.positions, ticket)
}

func (g *Gateway) checkConnected() error {
	if !g.connected {
		return types.Unavailable("sim broker", fmt.Errorf("connection down"))
	}
	return nil
}

// price returns the current simulated price, seeding new instruments from the
// instrument name so runs are reproducible per seed.
func (g *Gateway) price(instrument string) float64 {
	if p, ok := g.prices[instrument]; ok {
		return p
	}
	p := 1.0 + g.rng.Float64()*0.5
	if len(instrument) > 0 && instrument[0] >= 'A' && instrument[0] <= 'F' {
		p *= 100
	}
	g.prices[instrument] = p
	return p
}

func (g *Gateway) markToMarket(instrument string, tick types.Tick) {
	for _, pos := range g.positions {
		if pos.Instrument != instrument {
			continue
		}
		if pos.Direction == types.Buy {
			pos.FloatingProfit = (tick.Bid - pos.EntryPrice) * pos.Volume * 100000
		} else {
			pos.FloatingProfit = (pos.EntryPrice - tick.Ask) * pos.Volume * 100000
		}
	}
}

func timeframeDuration(tf string) (time.Duration, error) {
	switch tf {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe %q", tf)
	}
}
