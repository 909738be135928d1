// Command cancelall cancels every resting order for the configured pair and
// exits. It is a standalone operational tool: it never starts the control
// loop in internal/engine and never touches inventory bookkeeping, so it is
// safe to run while the bot binary is stopped or even while it's running
// (the next tick will simply find no open orders to reconcile).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"spotmm/internal/config"
	"spotmm/internal/exchange"
	"spotmm/internal/market"
	"spotmm/pkg/types"
)

var cfgPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cancelall",
	Short: "Cancel every resting order for the configured pair and exit",
	Long:  "cancelall loads the same configuration as the bot, queries the venue for open orders on the configured pair, and cancels all of them in one bulk_cancel round trip.",
	RunE:  runCancelAll,
}

func init() {
	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "configs/config.yaml", "path to the agent's config file")
}

func runCancelAll(cmd *cobra.Command, args []string) error {
	if p := os.Getenv("SPOTMM_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	signer, err := exchange.NewSigner(cfg.Wallet)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}

	gw := exchange.NewClient(*cfg, signer, logger)

	ref := market.StaticReferenceData{
		Symbol:    cfg.Market.Market,
		PriceTick: decimal.NewFromFloat(cfg.Market.PriceTick),
	}
	pair, err := market.Resolve(cfg.Market, ref)
	if err != nil {
		return fmt.Errorf("resolve pair: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	address := signer.Address().Hex()

	open, err := gw.OpenOrders(ctx, address)
	if err != nil {
		return fmt.Errorf("list open orders: %w", err)
	}

	var reqs []types.BulkCancelRequest
	for _, o := range open {
		if o.Coin != pair.BaseCoin {
			continue
		}
		reqs = append(reqs, types.BulkCancelRequest{Coin: pair.BaseCoin, OrderID: o.OrderID})
	}

	if len(reqs) == 0 {
		logger.Info("no open orders", "pair", pair.Symbol)
		return nil
	}

	results, err := gw.BulkCancel(ctx, reqs)
	if err != nil {
		return fmt.Errorf("bulk cancel: %w", err)
	}

	var ok, failed int
	for _, r := range results {
		switch r.Outcome.Kind {
		case types.CancelOK, types.CancelUnknown:
			ok++
		default:
			failed++
			logger.Error("cancel failed", "order_id", r.OrderID, "error", r.Outcome.Err)
		}
	}

	logger.Info("cancelall finished", "pair", pair.Symbol, "requested", len(reqs), "ok", ok, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d cancels failed", failed, len(reqs))
	}
	return nil
}
