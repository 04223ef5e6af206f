package types

import "time"

// Direction of a candidate signal or trade decision.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Opposite returns the mirrored direction.
func (d Direction) Opposite() Direction {
	if d == Buy {
		return Sell
	}
	return Buy
}

// Bar is a single OHLCV bar. Sequences are always ordered oldest-first,
// most-recent-last, and are immutable once produced by the quote source.
type Bar struct {
	Ts     int64 // open time, unix milliseconds
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// IndicatorSnapshot holds every per-instrument indicator value derived from
// one trailing bar window. Recomputed each signal cycle, never mutated.
type IndicatorSnapshot struct {
	RSI           float64
	MACD          float64
	MACDSignal    float64
	MACDHistogram float64
	BBUpper       float64
	BBMiddle      float64
	BBLower       float64
	ATR           float64
	Momentum      float64
	// PrevMomentum is the momentum of the window shifted back one bar,
	// so strategies can detect a zero cross without keeping state.
	PrevMomentum  float64
	VolumeRatio   float64
	PriceChange5m float64
	PriceChange1h float64

	// Prior 20-bar extremes, excluding the latest bar (breakout reference).
	High20 float64
	Low20  float64

	LastClose  float64
	LastVolume float64
	BarCount   int
}

// CandidateSignal is one strategy's vote for a trade. Ephemeral: produced and
// consumed within a single signal cycle.
type CandidateSignal struct {
	Instrument     string
	Direction      Direction
	Strength       float64 // [0,1]
	ConfluenceTags []string
	SourceStrategy string
	Timestamp      time.Time
}

// TradeDecision is the aggregator's single decision for an instrument in one
// cycle, sized by the stop model and handed to the broker gateway.
type TradeDecision struct {
	ID           string    `json:"id"`
	Instrument   string    `json:"instrument"`
	Direction    Direction `json:"direction"`
	Confidence   float64   `json:"confidence"`
	EntryPrice   float64   `json:"entry_price"`
	StopLoss     float64   `json:"stop_loss"`
	TakeProfit   float64   `json:"take_profit"`
	Volume       float64   `json:"volume"`
	StrategyName string    `json:"strategy"`
	CreatedAt    time.Time `json:"created_at"`
}

// StepResult summarizes one signal-cycle step for an instrument.
type StepResult struct {
	Instrument string          `json:"instrument"`
	Price      float64         `json:"price"`
	Time       int64           `json:"time"`
	Candidates int             `json:"candidates"`
	Decisions  []TradeDecision `json:"decisions"`
	Tickets    []int64         `json:"tickets,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// Position is the broker-owned snapshot of an open position. The system never
// invents or deletes positions; it only requests stop-loss modifications.
type Position struct {
	Ticket         int64
	Instrument     string
	Direction      Direction
	Volume         float64
	EntryPrice     float64
	StopLoss       float64 // 0 when the position has no stop-loss yet
	TakeProfit     float64
	FloatingProfit float64 // account currency
}

// Tick is a current bid/ask quote.
type Tick struct {
	Bid float64
	Ask float64
}

// Mid returns the bid/ask midpoint.
func (t Tick) Mid() float64 { return (t.Bid + t.Ask) / 2 }

// NotifyKind classifies notifier events.
type NotifyKind string

const (
	NotifyTradeOpened    NotifyKind = "TRADE_OPENED"
	NotifyBreakeven      NotifyKind = "BREAKEVEN_APPLIED"
	NotifyTrailingUpdate NotifyKind = "TRAILING_UPDATED"
	NotifyConnectionLost NotifyKind = "CONNECTION_LOST"
	NotifyOrderRejected  NotifyKind = "ORDER_REJECTED"
)

// NotifyEvent is the payload handed to the notifier. Fire-and-forget from the
// core's perspective.
type NotifyEvent struct {
	Kind       NotifyKind
	Instrument string
	Ticket     int64
	StopLoss   float64
	TakeProfit float64
	Message    string
}
