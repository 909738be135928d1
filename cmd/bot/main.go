// Command bot runs a single-pair spot market-making agent against a CLOB
// venue.
//
// Architecture:
//
//	main.go                — entry point: loads config, wires the agent, waits for SIGINT/SIGTERM
//	internal/engine         — control loop: expire → reprice → ensure → crash-check → reconcile
//	internal/strategy       — local order book, inventory ledger, quoting, reconciliation
//	internal/safety         — crash and stale-feed detection, cancel-all-and-flatten
//	internal/market         — pair resolution and best-bid/best-offer tracking
//	internal/exchange       — REST Gateway, WebSocket BBO feed, wallet signing
//	internal/api            — read-only HTTP/WebSocket status dashboard
//
// How it makes money:
//
//	The agent posts a buy below mid price and a sell above mid price. When
//	both sides fill, it earns the spread. Inventory skew widens the spread
//	on the side that would add to an existing position and narrows the side
//	that would reduce it, so the agent leans toward flat.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"spotmm/internal/api"
	"spotmm/internal/config"
	"spotmm/internal/engine"
	"spotmm/internal/exchange"
	"spotmm/internal/market"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("SPOTMM_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	signer, err := exchange.NewSigner(cfg.Wallet)
	if err != nil {
		logger.Error("failed to load wallet", "error", err)
		os.Exit(1)
	}

	gw := exchange.NewClient(*cfg, signer, logger)

	ref := market.StaticReferenceData{
		Symbol:    cfg.Market.Market,
		PriceTick: decimal.NewFromFloat(cfg.Market.PriceTick),
	}

	bot, err := engine.New(*cfg, gw, ref, signer.Address().Hex(), logger)
	if err != nil {
		logger.Error("failed to create agent", "error", err)
		os.Exit(1)
	}

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, bot, *cfg, logger)
		bot.SetFillLogCallback(apiServer.BroadcastFill)
		bot.SetSnapshotCallback(apiServer.PushSnapshot)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("status server failed", "error", err)
			}
		}()
		logger.Info("status dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- bot.Run(ctx) }()

	logger.Info("spot market maker started",
		"pair", bot.Pair().Symbol,
		"order_size", cfg.Strategy.OrderSizeUSD,
		"max_base_position", cfg.Strategy.MaxBasePosition,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
		<-runDone
	case err := <-runDone:
		if err != nil && ctx.Err() == nil {
			logger.Error("agent exited", "error", err)
			exitCode = 1
		}
		cancel()
	}

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop status server", "error", err)
		}
	}
	os.Exit(exitCode)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
