package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "v1.0.0"

func main() {
	// Initialize structured logging
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     "intradayrun",
		Short:   "Intraday momentum strategy runner",
		Version: version,
		Long: `IntradayRun - Rule-based intraday momentum trading

Detects breakout and pullback setups on small-cap momentum stocks,
gates entries on volume, MACD and VWAP, and manages positions with
bracket orders. Runs the same strategy code in backtests and live.`,
	}

	rootCmd.AddCommand(newBacktestCmd())
	rootCmd.AddCommand(newMonitorCmd())
	rootCmd.AddCommand(newConfigCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
