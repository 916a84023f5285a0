package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"StockPulse/pkg/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "stockpulse",
	Short:         "Stock history analysis and batch scanning",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path")
	rootCmd.AddCommand(serveCmd, analyzeCmd, scanCmd, testAPICmd)
}

// loadConfig reads the config file with environment overrides. One-shot commands log to
// stderr so stdout carries only NDJSON.
func loadConfig(oneShot bool) (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, err
	}
	if oneShot {
		cfg.Log.Output = "stderr"
		cfg.Log.Format = "console"
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
