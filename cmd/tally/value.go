package main

import (
	"fmt"

	"github.com/newthinker/tally/internal/core"
	"github.com/newthinker/tally/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var valueTransactions string

var valueCmd = &cobra.Command{
	Use:   "value",
	Short: "Value the portfolio day by day over the horizon",
	RunE:  runValue,
}

func init() {
	valueCmd.Flags().StringVarP(&valueTransactions, "transactions", "t", "transactions.csv", "transaction table path")
	rootCmd.AddCommand(valueCmd)
}

func runValue(cmd *cobra.Command, args []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.finish()

	ctx, cancel := signalContext()
	defer cancel()

	records, err := rt.loadTransactions(ctx, valueTransactions)
	if err != nil {
		return err
	}

	result, err := rt.app.Value(ctx, records)
	if err != nil {
		return fmt.Errorf("valuation failed: %w", err)
	}

	dir, err := rt.reports.WriteValuation(ctx, result)
	if err != nil {
		return fmt.Errorf("writing reports: %w", err)
	}
	rt.log.Info("reports written", zap.String("dir", dir))

	fmt.Printf("Run %s as of %s\n", result.RunID, core.FormatDate(result.AsOf))
	if n := len(result.Portfolio); n > 0 {
		last := result.Portfolio[n-1]
		fmt.Printf("  Portfolio value: %s (%d instruments", report.Money(last.Value), last.Instruments)
		if last.Incomplete() {
			fmt.Printf(", %d unpriced", last.Gaps)
		}
		fmt.Println(")")
	}
	for _, s := range result.Skipped {
		fmt.Printf("  Skipped %s: %s\n", s.InstrumentID, s.Reason)
	}
	fmt.Printf("  Reports: %s\n", dir)
	return nil
}
