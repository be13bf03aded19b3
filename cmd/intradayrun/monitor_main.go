package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/intradayrun/internal/live"
	"github.com/sawpanic/intradayrun/internal/market"
	"github.com/sawpanic/intradayrun/internal/metrics"
	"github.com/sawpanic/intradayrun/internal/strategy"
)

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the live trading loop against the paper broker",
		Long: `Run the live order management loop.

The loop polls each symbol, evaluates entries, and manages the pending
entry / unprotected / protected position lifecycle with bracket orders.
Orders route to the built-in paper broker, which quotes from recorded
bar CSVs in the data directory (same layout as the backtest command).`,
		RunE: runMonitor,
	}

	cmd.Flags().StringSlice("symbols", nil, "Symbols to monitor (required)")
	cmd.Flags().String("data-dir", "data", "Directory holding the bar CSV files")
	cmd.Flags().String("strategy", "breakout", "Strategy variant: breakout or pullback")
	cmd.Flags().String("config", "", "Strategy config YAML (overrides --strategy)")
	cmd.Flags().Duration("poll-interval", 15*time.Second, "Delay between polling cycles")
	cmd.Flags().Duration("stale-after", 5*time.Minute, "Cancel unfilled entries older than this")
	cmd.Flags().String("metrics-addr", ":9187", "Prometheus metrics listen address (empty to disable)")
	_ = cmd.MarkFlagRequired("symbols")

	return cmd
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	symbols, _ := cmd.Flags().GetStringSlice("symbols")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	variant, _ := cmd.Flags().GetString("strategy")
	configPath, _ := cmd.Flags().GetString("config")
	pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
	staleAfter, _ := cmd.Flags().GetDuration("stale-after")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	strategyCfg, err := loadStrategy(configPath, variant)
	if err != nil {
		return err
	}
	evaluator, err := strategy.NewEvaluator(strategyCfg)
	if err != nil {
		return err
	}

	loc := evaluator.Clock().Location()
	broker := live.NewPaperBroker()
	for i, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		symbols[i] = symbol

		fine, err := market.LoadBars(filepath.Join(dataDir, symbol+"_10s.csv"), loc)
		if err != nil {
			return fmt.Errorf("%s: %w", symbol, err)
		}
		coarse, err := market.LoadBars(filepath.Join(dataDir, symbol+"_1m.csv"), loc)
		if err != nil {
			return fmt.Errorf("%s: %w", symbol, err)
		}
		broker.Load(symbol, fine, coarse)
	}

	liveCfg := live.DefaultConfig()
	liveCfg.Symbols = symbols
	liveCfg.PollInterval = pollInterval
	liveCfg.StaleEntryAfter = staleAfter

	registry := metrics.NewRegistry()
	if metricsAddr != "" {
		registry.Serve(metricsAddr)
	}

	trader, err := live.NewTrader(liveCfg, evaluator, broker, broker, registry)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := trader.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("Monitor stopped")
	return nil
}
