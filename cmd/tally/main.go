package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	debug   bool
	asOf    string
)

var rootCmd = &cobra.Command{
	Use:   "tally",
	Short: "TALLY - portfolio valuation and sell signal engine",
	Long: `TALLY rebuilds daily holdings from a transaction table, prices them from
ranked market data sources with manual fallbacks, and evaluates EMA/RSI
sell, alert and breakout rules on every open position.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
	rootCmd.PersistentFlags().StringVar(&asOf, "as-of", "", "evaluate as of this date instead of horizon.end")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
