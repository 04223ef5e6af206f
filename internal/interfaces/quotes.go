package interfaces

import (
	"context"

	"confluence-trading-bot/internal/types"
)

// QuoteSource supplies ordered OHLCV history, oldest-first.
type QuoteSource interface {
	GetBars(ctx context.Context, instrument, timeframe string, count int) ([]types.Bar, error)
}
