package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/quantbr/ticksynth/internal/store"
)

func newSummaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize previously generated data",
		RunE:  runSummary,
	}

	cmd.Flags().String("output", "", "Output directory to inspect (overrides config)")

	return cmd
}

func runSummary(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		cfg.OutputDir = v
	}

	organizer, err := store.NewOrganizer(cfg.OutputDir)
	if err != nil {
		return err
	}

	summary := organizer.Summarize()
	if summary.TotalTickers == 0 {
		fmt.Printf("No generated data under %s\n", cfg.OutputDir)
		return nil
	}

	fmt.Printf("Output root: %s\n", cfg.OutputDir)
	fmt.Printf("Tickers: %d\n\n", summary.TotalTickers)

	tickers := make([]string, 0, len(summary.Tickers))
	for ticker := range summary.Tickers {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		ts := summary.Tickers[ticker]
		if ts.LiquidityLevel > 0 {
			fmt.Printf("  %-12s %3d sessions  liquidity level %d\n", ticker, ts.NumDates, ts.LiquidityLevel)
		} else {
			fmt.Printf("  %-12s %3d sessions\n", ticker, ts.NumDates)
		}
		if len(ts.Dates) > 0 {
			fmt.Printf("               %s .. %s\n", ts.Dates[0], ts.Dates[len(ts.Dates)-1])
		}
	}
	return nil
}
