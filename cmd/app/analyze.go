package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"StockPulse/internal/di"
	"StockPulse/internal/domain/models"
)

var (
	market    string
	startDate string
	endDate   string
	stream    bool
	minScore  int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <code>",
	Short: "Analyze one symbol and print fragments as NDJSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var scanCmd = &cobra.Command{
	Use:   "scan <code> [code...]",
	Short: "Scan symbols and print fragments as NDJSON",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runScan,
}

func init() {
	for _, c := range []*cobra.Command{analyzeCmd, scanCmd} {
		c.Flags().StringVarP(&market, "market", "m", "A", "market type: A, HK, US, ETF or LOF")
		c.Flags().StringVar(&startDate, "start", "", "start date, YYYYMMDD or YYYY-MM-DD")
		c.Flags().StringVar(&endDate, "end", "", "end date, YYYYMMDD or YYYY-MM-DD")
		c.Flags().BoolVar(&stream, "stream", false, "emit narrative chunks as they arrive")
	}
	scanCmd.Flags().IntVar(&minScore, "min-score", 60, "score at or above which a symbol is matched")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	tk, ctx, stop, err := toolkit(cmd)
	if err != nil {
		return err
	}
	defer stop()

	req := models.AnalyzeRequest{Symbol: args[0], Market: market, StartDate: startDate, EndDate: endDate, Stream: stream}
	return writeNDJSON(cmd.OutOrStdout(), tk.Orchestrator.Analyze(ctx, req))
}

func runScan(cmd *cobra.Command, args []string) error {
	tk, ctx, stop, err := toolkit(cmd)
	if err != nil {
		return err
	}
	defer stop()

	req := models.ScanRequest{Symbols: args, Market: market, MinScore: minScore, StartDate: startDate, EndDate: endDate, Stream: stream}
	return writeNDJSON(cmd.OutOrStdout(), tk.Orchestrator.Scan(ctx, req))
}

func toolkit(cmd *cobra.Command) (*di.Toolkit, context.Context, context.CancelFunc, error) {
	cfg, err := loadConfig(true)
	if err != nil {
		return nil, nil, nil, err
	}
	tk, err := di.InitializeToolkit(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialization failed: %w", err)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	return tk, ctx, stop, nil
}

// writeNDJSON prints one fragment per line and fails if any fragment was an error.
func writeNDJSON(w io.Writer, frags <-chan models.Fragment) error {
	enc := json.NewEncoder(w)
	failed := 0
	for f := range frags {
		if f.Kind == models.KindError {
			failed++
		}
		if err := enc.Encode(f); err != nil {
			for range frags {
			}
			return fmt.Errorf("write fragment: %w", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d error fragment(s)", failed)
	}
	return nil
}
