package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"

	"confluence-trading-bot/internal/interfaces"
	"confluence-trading-bot/internal/logger"
	"confluence-trading-bot/internal/types"
)

// Gateway adapts the Binance USD-M futures API to the broker and quote-source
// contracts. Positions on Binance are keyed by symbol, not ticket, so the
// gateway assigns a ticket per symbol-side from the opening order ID and keeps
// it stable while the position stays open.
type Gateway struct {
	client  *futures.Client
	limiter *rate.Limiter

	mu        sync.Mutex
	tickets   map[string]int64 // symbol -> ticket
	connected bool
}

var (
	_ interfaces.Broker      = (*Gateway)(nil)
	_ interfaces.QuoteSource = (*Gateway)(nil)
)

func New(apiKey, secretKey string) *Gateway {
	return &Gateway{
		client: futures.NewClient(apiKey, secretKey),
		// Binance allows 2400 request weight/min; stay well under it.
		limiter:   rate.NewLimiter(rate.Limit(10), 20),
		tickets:   map[string]int64{},
		connected: true,
	}
}

func (g *Gateway) GetBars(ctx context.Context, instrument, timeframe string, count int) ([]types.Bar, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	klines, err := g.client.NewKlinesService().
		Symbol(instrument).
		Interval(timeframe).
		Limit(count).
		Do(ctx)
	if err != nil {
		return nil, g.wrap("klines", err)
	}

	bars := make([]types.Bar, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, types.Bar{
			Ts:     k.OpenTime,
			Open:   parseFloat(k.Open),
			High:   parseFloat(k.High),
			Low:    parseFloat(k.Low),
			Close:  parseFloat(k.Close),
			Volume: parseFloat(k.Volume),
		})
	}
	return bars, nil
}

func (g *Gateway) GetTick(ctx context.Context, instrument string) (types.Tick, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return types.Tick{}, err
	}
	books, err := g.client.NewListBookTickersService().Symbol(instrument).Do(ctx)
	if err != nil {
		return types.Tick{}, g.wrap("book ticker", err)
	}
	if len(books) == 0 {
		return types.Tick{}, types.Unavailable("binance", fmt.Errorf("no book ticker for %s", instrument))
	}
	return types.Tick{
		Bid: parseFloat(books[0].BidPrice),
		Ask: parseFloat(books[0].AskPrice),
	}, nil
}

func (g *Gateway) GetPositions(ctx context.Context) ([]types.Position, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	risks, err := g.client.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, g.wrap("position risk", err)
	}

	var out []types.Position
	seen := map[string]struct{}{}
	for _, r := range risks {
		amt := parseFloat(r.PositionAmt)
		if amt == 0 {
			continue
		}
		dir := types.Buy
		if amt < 0 {
			dir = types.Sell
			amt = -amt
		}
		seen[r.Symbol] = struct{}{}

		sl, tp, err := g.protectiveOrders(ctx, r.Symbol)
		if err != nil {
			return nil, err
		}
		out = append(out, types.Position{
			Ticket:         g.ticketFor(r.Symbol),
			Instrument:     r.Symbol,
			Direction:      dir,
			Volume:         amt,
			EntryPrice:     parseFloat(r.EntryPrice),
			StopLoss:       sl,
			TakeProfit:     tp,
			FloatingProfit: parseFloat(r.UnRealizedProfit),
		})
	}

	// Forget tickets of closed positions so a reopened symbol gets a new one.
	g.mu.Lock()
	for sym := range g.tickets {
		if _, ok := seen[sym]; !ok {
			delete(g.tickets, sym)
		}
	}
	g.mu.Unlock()
	return out, nil
}

func (g *Gateway) PlaceOrder(ctx context.Context, d types.TradeDecision) (int64, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	side := futures.SideTypeBuy
	if d.Direction == types.Sell {
		side = futures.SideTypeSell
	}
	res, err := g.client.NewCreateOrderService().
		Symbol(d.Instrument).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(formatQty(d.Volume)).
		NewClientOrderID("cb-" + d.ID).
		Do(ctx)
	if err != nil {
		return 0, g.wrap("create order", err)
	}

	g.mu.Lock()
	g.tickets[d.Instrument] = res.OrderID
	g.mu.Unlock()

	if err := g.placeProtection(ctx, d.Instrument, side, d.StopLoss, d.TakeProfit); err != nil {
		logger.Warn(ctx, "Entry filled but protective orders failed",
			"instrument", d.Instrument,
			"order_id", res.OrderID,
			"error", err,
		)
	}
	return res.OrderID, nil
}

// ModifyStopLoss cancels the symbol's close-position orders and re-places them
// at the new levels. Binance has no in-place modify for stop orders, so the
// position is briefly unprotected between the cancel and the re-place; on a
// re-place failure the previous levels are restored.
func (g *Gateway) ModifyStopLoss(ctx context.Context, ticket int64, newSL, newTP float64) error {
	symbol := g.symbolFor(ticket)
	if symbol == "" {
		return &types.RejectedError{ReasonCode: "UNKNOWN_TICKET", Detail: fmt.Sprintf("ticket %d", ticket)}
	}

	oldSL, oldTP, err := g.protectiveOrders(ctx, symbol)
	if err != nil {
		return err
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := g.client.NewCancelAllOpenOrdersService().Symbol(symbol).Do(ctx); err != nil {
		return g.wrap("cancel orders", err)
	}

	risks, err := g.client.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return g.wrap("position risk", err)
	}
	var entrySide futures.SideType
	found := false
	for _, r := range risks {
		if amt := parseFloat(r.PositionAmt); amt > 0 {
			entrySide, found = futures.SideTypeBuy, true
		} else if amt < 0 {
			entrySide, found = futures.SideTypeSell, true
		}
	}
	if !found {
		return &types.RejectedError{ReasonCode: "POSITION_CLOSED", Detail: symbol}
	}

	if err := g.placeProtection(ctx, symbol, entrySide, newSL, newTP); err != nil {
		logger.Warn(ctx, "Protective orders cancelled but replacement failed, position unprotected",
			"symbol", symbol,
			"ticket", ticket,
			"error", err,
		)
		if oldSL > 0 || oldTP > 0 {
			if rerr := g.placeProtection(ctx, symbol, entrySide, oldSL, oldTP); rerr != nil {
				logger.ErrorWithErr(ctx, "Could not restore previous protective orders, position unprotected until next risk cycle", rerr,
					"symbol", symbol,
					"ticket", ticket,
					"old_sl", oldSL,
					"old_tp", oldTP,
				)
			}
		}
		return err
	}
	return nil
}

func (g *Gateway) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

func (g *Gateway) Reconnect(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := g.client.NewPingService().Do(ctx); err != nil {
		return types.Unavailable("binance", err)
	}
	g.mu.Lock()
	g.connected = true
	g.mu.Unlock()
	return nil
}

// placeProtection submits the close-position stop and target orders for an
// open position. exit side is the opposite of the entry side.
func (g *Gateway) placeProtection(ctx context.Context, symbol string, entrySide futures.SideType, sl, tp float64) error {
	exit := futures.SideTypeSell
	if entrySide == futures.SideTypeSell {
		exit = futures.SideTypeBuy
	}

	if sl > 0 {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
		_, err := g.client.NewCreateOrderService().
			Symbol(symbol).
			Side(exit).
			Type(futures.OrderTypeStopMarket).
			StopPrice(formatPrice(sl)).
			ClosePosition(true).
			WorkingType(futures.WorkingTypeMarkPrice).
			Do(ctx)
		if err != nil {
			return g.wrap("stop order", err)
		}
	}
	if tp > 0 {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
		_, err := g.client.NewCreateOrderService().
			Symbol(symbol).
			Side(exit).
			Type(futures.OrderTypeTakeProfitMarket).
			StopPrice(formatPrice(tp)).
			ClosePosition(true).
			WorkingType(futures.WorkingTypeMarkPrice).
			Do(ctx)
		if err != nil {
			return g.wrap("take profit order", err)
		}
	}
	return nil
}

// protectiveOrders reads the current close-position stop levels for a symbol.
func (g *Gateway) protectiveOrders(ctx context.Context, symbol string) (sl, tp float64, err error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return 0, 0, err
	}
	orders, err := g.client.NewListOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, 0, g.wrap("open orders", err)
	}
	for _, o := range orders {
		switch o.Type {
		case futures.OrderTypeStopMarket:
			sl = parseFloat(o.StopPrice)
		case futures.OrderTypeTakeProfitMarket:
			tp = parseFloat(o.StopPrice)
		}
	}
	return sl, tp, nil
}

func (g *Gateway) ticketFor(symbol string) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.tickets[symbol]; ok {
		return t
	}
	// Position predates this process; derive a stable synthetic ticket.
	var t int64
	for _, c := range symbol {
		t = t*31 + int64(c)
	}
	g.tickets[symbol] = t
	return t
}

func (g *Gateway) symbolFor(ticket int64) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	for sym, t := range g.tickets {
		if t == ticket {
			return sym
		}
	}
	return ""
}

// wrap maps API errors onto the shared taxonomy: explicit exchange rejections
// become RejectedError, everything else is a collaborator outage.
func (g *Gateway) wrap(op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		g.mu.Lock()
		g.connected = true // the exchange answered
		g.mu.Unlock()
		return &types.RejectedError{
			ReasonCode: strconv.FormatInt(apiErr.Code, 10),
			Detail:     apiErr.Message,
		}
	}
	g.mu.Lock()
	g.connected = false
	g.mu.Unlock()
	return types.Unavailable("binance "+op, err)
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 5, 64)
}
