package strategy

import (
	"context"
	"time"

	"confluence-trading-bot/internal/types"
)

// Confluence scores four independent indicator checks (RSI zone, MACD vs
// signal, price vs SMA20, Bollinger position) and emits only when at least
// three agree on a direction. Strength is score/4.
type Confluence struct{}

func NewConfluence() *Confluence { return &Confluence{} }

func (s *Confluence) Name() string { return "confluence" }

const confluenceMinScore = 3

func (s *Confluence) Evaluate(_ context.Context, snap types.IndicatorSnapshot, instrument string) ([]types.CandidateSignal, error) {
	bullScore, bullTags := s.score(snap, types.Buy)
	bearScore, bearTags := s.score(snap, types.Sell)

	var (
		dir   types.Direction
		score int
		tags  []string
	)
	switch {
	case bullScore >= confluenceMinScore && bullScore > bearScore:
		dir, score, tags = types.Buy, bullScore, bullTags
	case bearScore >= confluenceMinScore && bearScore > bullScore:
		dir, score, tags = types.Sell, bearScore, bearTags
	default:
		return nil, nil
	}

	return []types.CandidateSignal{{
		Instrument:     instrument,
		Direction:      dir,
		Strength:       float64(score) / 4,
		ConfluenceTags: tags,
		SourceStrategy: s.Name(),
		Timestamp:      time.Now(),
	}}, nil
}

// score counts aligned indicators for one direction, 1 point each.
func (s *Confluence) score(snap types.IndicatorSnapshot, dir types.Direction) (int, []string) {
	score := 0
	var tags []string
	add := func(tag string) {
		score++
		tags = append(tags, tag)
	}

	if dir == types.Buy {
		if snap.RSI > 50 && snap.RSI < 70 {
			add("rsi_bull")
		}
		if snap.MACD > snap.MACDSignal {
			add("macd_bull")
		}
		if snap.LastClose > snap.BBMiddle {
			add("above_sma20")
		}
		if snap.LastClose > snap.BBMiddle && snap.LastClose < snap.BBUpper {
			add("bb_upper_half")
		}
	} else {
		if snap.RSI < 50 && snap.RSI > 30 {
			add("rsi_bear")
		}
		if snap.MACD < snap.MACDSignal {
			add("macd_bear")
		}
		if snap.LastClose < snap.BBMiddle {
			add("below_sma20")
		}
		if snap.LastClose < snap.BBMiddle && snap.LastClose > snap.BBLower {
			add("bb_lower_half")
		}
	}
	return score, tags
}
