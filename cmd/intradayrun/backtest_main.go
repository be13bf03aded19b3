package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/intradayrun/internal/backtest"
	"github.com/sawpanic/intradayrun/internal/market"
	"github.com/sawpanic/intradayrun/internal/report"
	"github.com/sawpanic/intradayrun/internal/strategy"
)

func newBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the strategy over recorded bars",
		Long: `Replay the strategy over recorded OHLCV bars.

Each symbol needs two CSV files in the data directory:
  <SYMBOL>_10s.csv   fine bars driving execution and exits
  <SYMBOL>_1m.csv    coarse bars driving pattern and VWAP evaluation

Both files use the header timestamp,open,high,low,close,volume with
timestamps in exchange time.`,
		RunE: runBacktest,
	}

	cmd.Flags().StringSlice("symbols", nil, "Symbols to backtest (required)")
	cmd.Flags().String("data-dir", "data", "Directory holding the bar CSV files")
	cmd.Flags().String("strategy", "breakout", "Strategy variant: breakout or pullback")
	cmd.Flags().String("config", "", "Strategy config YAML (overrides --strategy)")
	cmd.Flags().Float64("capital", 500, "Initial capital per symbol in USD")
	cmd.Flags().Int("warmup", 360, "Fine bars to skip before trading")
	cmd.Flags().Int("equity-sample", 1, "Record equity every N fine bars")
	cmd.Flags().String("ledger", "", "Write the trade ledger to this CSV file")
	_ = cmd.MarkFlagRequired("symbols")

	return cmd
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	symbols, _ := cmd.Flags().GetStringSlice("symbols")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	variant, _ := cmd.Flags().GetString("strategy")
	configPath, _ := cmd.Flags().GetString("config")
	capital, _ := cmd.Flags().GetFloat64("capital")
	warmup, _ := cmd.Flags().GetInt("warmup")
	equitySample, _ := cmd.Flags().GetInt("equity-sample")
	ledgerPath, _ := cmd.Flags().GetString("ledger")

	strategyCfg, err := loadStrategy(configPath, variant)
	if err != nil {
		return err
	}
	evaluator, err := strategy.NewEvaluator(strategyCfg)
	if err != nil {
		return err
	}

	btCfg := backtest.DefaultConfig()
	btCfg.InitialCapital = capital
	btCfg.WarmupBars = warmup
	btCfg.EquitySampleBars = equitySample
	engine, err := backtest.NewEngine(btCfg, evaluator)
	if err != nil {
		return err
	}

	loc := evaluator.Clock().Location()
	results := make([]*backtest.Result, 0, len(symbols))
	for _, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))

		fine, err := market.LoadBars(filepath.Join(dataDir, symbol+"_10s.csv"), loc)
		if err != nil {
			return fmt.Errorf("%s: %w", symbol, err)
		}
		coarse, err := market.LoadBars(filepath.Join(dataDir, symbol+"_1m.csv"), loc)
		if err != nil {
			return fmt.Errorf("%s: %w", symbol, err)
		}

		log.Info().Str("symbol", symbol).
			Int("fine_bars", len(fine)).Int("coarse_bars", len(coarse)).
			Str("variant", string(strategyCfg.Variant)).
			Msg("Running backtest")

		result, err := engine.Run(symbol, fine, coarse)
		if err != nil {
			return err
		}
		results = append(results, result)
	}

	combined := backtest.Combine(results)
	fmt.Println(report.Summary(combined))
	if len(results) > 1 {
		fmt.Println(report.BySymbol(results))
	}

	if ledgerPath != "" {
		if err := report.WriteLedger(ledgerPath, combined.Trades); err != nil {
			return err
		}
		log.Info().Str("path", ledgerPath).Int("trades", len(combined.Trades)).
			Msg("Trade ledger written")
	}
	return nil
}

// loadStrategy resolves the strategy config: a YAML file when given,
// otherwise the named variant's defaults.
func loadStrategy(configPath, variant string) (*strategy.Config, error) {
	if configPath != "" {
		return strategy.LoadConfig(configPath)
	}
	return strategy.DefaultStrategyFor(strategy.Variant(variant))
}
