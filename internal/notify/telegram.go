package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"confluence-trading-bot/internal/interfaces"
	"confluence-trading-bot/internal/types"
)

// Telegram delivers alerts to a chat. Delivery is best effort with a short
// client timeout so a slow Telegram API can never stall a cycle.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

var _ interfaces.Notifier = (*Telegram)(nil)

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram init: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Notify(ctx context.Context, ev types.NotifyEvent) error {
	msg := tgbotapi.NewMessage(t.chatID, Format(ev))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Format renders an event as a compact human-readable alert line.
func Format(ev types.NotifyEvent) string {
	switch ev.Kind {
	case types.NotifyTradeOpened:
		return fmt.Sprintf("📈 Trade opened #%d %s %s | SL %.5f TP %.5f",
			ev.Ticket, ev.Instrument, ev.Message, ev.StopLoss, ev.TakeProfit)
	case types.NotifyBreakeven:
		return fmt.Sprintf("🔒 Breakeven #%d %s | SL -> %.5f", ev.Ticket, ev.Instrument, ev.StopLoss)
	case types.NotifyTrailingUpdate:
		return fmt.Sprintf("🎯 Trailing #%d %s | SL -> %.5f", ev.Ticket, ev.Instrument, ev.StopLoss)
	case types.NotifyConnectionLost:
		return fmt.Sprintf("⚠️ Connection lost: %s", ev.Message)
	case types.NotifyOrderRejected:
		return fmt.Sprintf("🚫 Order rejected %s: %s", ev.Instrument, ev.Message)
	default:
		return fmt.Sprintf("%s %s %s", ev.Kind, ev.Instrument, ev.Message)
	}
}
