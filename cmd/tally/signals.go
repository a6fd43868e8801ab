package main

import (
	"fmt"

	"github.com/newthinker/tally/internal/core"
	"github.com/newthinker/tally/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var signalsTransactions string

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Evaluate sell, alert and breakout rules for open positions",
	RunE:  runSignals,
}

func init() {
	signalsCmd.Flags().StringVarP(&signalsTransactions, "transactions", "t", "transactions.csv", "transaction table path")
	rootCmd.AddCommand(signalsCmd)
}

func runSignals(cmd *cobra.Command, args []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.finish()

	ctx, cancel := signalContext()
	defer cancel()

	records, err := rt.loadTransactions(ctx, signalsTransactions)
	if err != nil {
		return err
	}

	result, err := rt.app.Signals(ctx, records)
	if err != nil {
		return fmt.Errorf("signal run failed: %w", err)
	}

	dir, err := rt.reports.WriteSignals(ctx, result)
	if err != nil {
		return fmt.Errorf("writing reports: %w", err)
	}
	rt.log.Info("reports written", zap.String("dir", dir))

	for name, err := range rt.notifiers.NotifyAll(ctx, result.Verdicts) {
		rt.log.Error("notification failed", zap.String("notifier", name), zap.Error(err))
	}

	fmt.Printf("Run %s as of %s\n", result.RunID, core.FormatDate(result.AsOf))
	for _, v := range result.Verdicts {
		if !v.Sell && !v.Alert && !v.BreakoutMet {
			continue
		}
		fmt.Printf("  %-14s price %s  ema %s  rsi %s  sell=%t alert=%t breakout=%t\n",
			v.InstrumentID,
			report.Money(v.Metrics.CurrentPrice),
			report.Money(v.Metrics.EMA),
			report.Money(v.Metrics.RSI),
			v.Sell, v.Alert, v.BreakoutMet,
		)
	}
	fmt.Printf("  %d evaluated, %d skipped\n", len(result.Verdicts), len(result.Skipped))
	fmt.Printf("  Reports: %s\n", dir)
	return nil
}
