package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"confluence-trading-bot/internal/logger"
	"confluence-trading-bot/internal/monitor"
	"confluence-trading-bot/internal/risk"
	"confluence-trading-bot/internal/store"
	"confluence-trading-bot/internal/trace"
)

func main() {
	if err := initializeSystem(); err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer trace.Shutdown(context.Background())

	configPath := "config.yaml"
	if p := os.Getenv("BOT_CONFIG"); p != "" {
		configPath = p
	}
	cfg, err := store.LoadConfig(configPath)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", configPath)
		os.Exit(1)
	}

	broker, quotes := initializeBroker(ctx, cfg)
	adv := initializeOracle(ctx, cfg)
	notifier := initializeNotifier(ctx, cfg)
	set := initializeStrategies(ctx, cfg, quotes, adv)
	eng := initializeEngine(cfg, quotes, broker, set, notifier)

	machine := risk.NewMachine(cfg.Risk)
	registry := risk.NewRegistry()
	loop := monitor.New(cfg, eng, broker, machine, registry, notifier)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigc
		logger.Info(ctx, "Shutting down", "signal", s.String())
		cancel()
	}()

	logger.Info(ctx, "Bot started", "mode", cfg.Mode, "broker", cfg.Broker)
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorWithErr(ctx, "Monitor loop exited", err)
		os.Exit(1)
	}
}
