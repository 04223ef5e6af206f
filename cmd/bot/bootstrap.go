package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"confluence-trading-bot/internal/broker/binance"
	"confluence-trading-bot/internal/broker/brokerobs"
	"confluence-trading-bot/internal/broker/sim"
	"confluence-trading-bot/internal/engine"
	"confluence-trading-bot/internal/engine/engineobs"
	"confluence-trading-bot/internal/interfaces"
	"confluence-trading-bot/internal/logger"
	"confluence-trading-bot/internal/news"
	"confluence-trading-bot/internal/notify"
	"confluence-trading-bot/internal/oracle"
	"confluence-trading-bot/internal/oracle/noop"
	"confluence-trading-bot/internal/oracle/oracleobs"
	"confluence-trading-bot/internal/signal"
	"confluence-trading-bot/internal/stops"
	"confluence-trading-bot/internal/store"
	"confluence-trading-bot/internal/strategy"
	"confluence-trading-bot/internal/trace"
)

// initializeSystem loads the environment and brings up logging and tracing.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// initializeBroker builds the configured gateway wrapped with observability.
// The sim gateway doubles as the quote source; the live gateway serves both
// roles from the same client.
func initializeBroker(ctx context.Context, cfg *store.Config) (interfaces.Broker, interfaces.QuoteSource) {
	if cfg.Mode == "DRY_RUN" || cfg.Broker == "SIM" {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
		g := sim.New(time.Now().UnixNano())
		return brokerobs.Wrap(g), g
	}

	g := binance.New(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_SECRET_KEY"))
	logger.Info(ctx, "Using LIVE Binance futures gateway")
	return brokerobs.Wrap(g), g
}

// initializeOracle builds the advisory oracle with observability.
func initializeOracle(ctx context.Context, cfg *store.Config) interfaces.AdvisoryOracle {
	var o interfaces.AdvisoryOracle
	switch {
	case cfg.Oracle.Enabled && cfg.Oracle.Provider == "CLAUDE":
		o = oracle.NewClaude(cfg)
	default:
		o = noop.New()
		logger.Info(ctx, "No oracle configured - rule-based strategies only")
	}
	return oracleobs.Wrap(o)
}

// initializeNotifier selects Telegram when credentials are present, otherwise
// alerts go to the structured log.
func initializeNotifier(ctx context.Context, cfg *store.Config) interfaces.Notifier {
	if cfg.Notifier.Provider == "TELEGRAM" {
		token := os.Getenv("TELEGRAM_BOT_TOKEN")
		chatID, _ := strconv.ParseInt(os.Getenv("TELEGRAM_CHAT_ID"), 10, 64)
		if token != "" && chatID != 0 {
			t, err := notify.NewTelegram(token, chatID)
			if err == nil {
				logger.Info(ctx, "Telegram notifier enabled", "chat_id", chatID)
				return t
			}
			logger.Warn(ctx, "Telegram init failed, falling back to log notifier", "error", err)
		} else {
			logger.Warn(ctx, "TELEGRAM_BOT_TOKEN/TELEGRAM_CHAT_ID missing, falling back to log notifier")
		}
	}
	return notify.NewLog()
}

// initializeStrategies registers the rule-based strategy set, appending the
// oracle-backed strategy when configured.
func initializeStrategies(ctx context.Context, cfg *store.Config, quotes interfaces.QuoteSource, adv interfaces.AdvisoryOracle) *strategy.Set {
	list := []interfaces.Strategy{
		strategy.NewMomentum(),
		strategy.NewMeanReversion(),
		strategy.NewBreakout(),
		strategy.NewVolumeSpike(),
		strategy.NewConfluence(),
	}

	if cfg.Oracle.Enabled {
		var headlines strategy.HeadlineSource
		if cfg.News.Enabled {
			headlines = news.NewScraper(cfg.News.MaxHeadlines, time.Duration(cfg.News.CacheMinutes)*time.Minute)
			logger.Info(ctx, "News headlines enabled for oracle prompts")
		}
		list = append(list, strategy.NewOracle(adv, quotes, headlines, cfg.Oracle.MinConfidencePct))
	}

	set := strategy.NewSet(list...)
	logger.Info(ctx, "Strategies registered", "strategies", set.Names())
	return set
}

// initializeEngine assembles the signal-cycle engine with observability.
func initializeEngine(cfg *store.Config, quotes interfaces.QuoteSource, brk interfaces.Broker, set *strategy.Set, notifier interfaces.Notifier) interfaces.SignalEngine {
	model := stops.Model{
		ATRStopMult:       cfg.Stops.ATRStopMult,
		ATRTargetMult:     cfg.Stops.ATRTargetMult,
		StrongStrength:    cfg.Stops.StrongStrength,
		StrongTargetBoost: cfg.Stops.StrongTargetBoost,
		MinDistancePct:    cfg.Stops.MinDistancePct,
		BaseVolume:        cfg.Stops.BaseVolume,
		MaxVolume:         cfg.Stops.MaxVolume,
	}
	filter := signal.New(cfg.ConfidenceFloor, model)
	return engineobs.Wrap(engine.New(cfg, quotes, brk, set, filter, notifier))
}
