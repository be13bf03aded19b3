package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/sawpanic/intradayrun/internal/strategy"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and generate strategy configuration",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print a strategy config as YAML",
		Long: `Print a strategy config as YAML.

With --config the file is loaded, validated and echoed back; otherwise
the defaults for --strategy are printed.`,
		RunE: runConfigShow,
	}
	showCmd.Flags().String("strategy", "breakout", "Strategy variant: breakout or pullback")
	showCmd.Flags().String("config", "", "Strategy config YAML to load instead of defaults")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default strategy config file",
		RunE:  runConfigInit,
	}
	initCmd.Flags().String("strategy", "breakout", "Strategy variant: breakout or pullback")
	initCmd.Flags().String("out", "config/strategy.yaml", "Output path")

	cmd.AddCommand(showCmd)
	cmd.AddCommand(initCmd)
	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	variant, _ := cmd.Flags().GetString("strategy")
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := loadStrategy(configPath, variant)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	variant, _ := cmd.Flags().GetString("strategy")
	out, _ := cmd.Flags().GetString("out")

	cfg, err := strategy.DefaultStrategyFor(strategy.Variant(variant))
	if err != nil {
		return err
	}
	if err := strategy.SaveConfig(cfg, out); err != nil {
		return err
	}
	log.Info().Str("path", out).Str("variant", variant).Msg("Config written")
	return nil
}
