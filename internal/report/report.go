// Package report exports run results as CSV tables into an archive.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"path"
	"strconv"
	"time"

	"github.com/newthinker/tally/internal/app"
	"github.com/newthinker/tally/internal/core"
	"github.com/newthinker/tally/internal/storage/archive"
	"github.com/newthinker/tally/internal/valuation"
	"github.com/shopspring/decimal"
)

// Output file names inside a run directory
const (
	PerSymbolFile = "per_symbol_values.csv"
	PortfolioFile = "portfolio_value.csv"
	LastDayFile   = "last_day_values.csv"
	SignalsFile   = "signals.csv"
	SkippedFile   = "skipped.csv"
)

// DefaultPrefix is the archive directory holding one subdirectory per run
const DefaultPrefix = "runs"

var recordHeader = []string{"instrument_id", "date", "quantity", "price", "value"}

// Writer stores reports under <prefix>/<run-id>/
type Writer struct {
	store  archive.Storage
	prefix string
}

// NewWriter creates a report writer. An empty prefix means DefaultPrefix.
func NewWriter(store archive.Storage, prefix string) *Writer {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Writer{store: store, prefix: prefix}
}

// Dir returns the run directory for runID
func (w *Writer) Dir(runID string) string {
	return path.Join(w.prefix, runID)
}

// WriteValuation writes the per-symbol, portfolio, last-day and skipped
// tables of a valuation run and returns the run directory.
func (w *Writer) WriteValuation(ctx context.Context, r *app.ValuationReport) (string, error) {
	dir := w.Dir(r.RunID)

	portfolio := [][]string{{"date", "value", "instruments", "gaps"}}
	for _, pv := range r.Portfolio {
		portfolio = append(portfolio, []string{
			core.FormatDate(pv.Date),
			Money(pv.Value),
			strconv.Itoa(pv.Instruments),
			strconv.Itoa(pv.Gaps),
		})
	}

	tables := []struct {
		name string
		rows [][]string
	}{
		{PerSymbolFile, recordRows(r.Records)},
		{PortfolioFile, portfolio},
		{LastDayFile, recordRows(r.Positions)},
		{SkippedFile, skipRows(r.Skipped)},
	}
	for _, t := range tables {
		if err := w.write(ctx, path.Join(dir, t.name), t.rows); err != nil {
			return "", err
		}
	}
	return dir, nil
}

// WriteSignals writes the verdict and skipped tables of a signal run and
// returns the run directory.
func (w *Writer) WriteSignals(ctx context.Context, r *app.SignalReport) (string, error) {
	dir := w.Dir(r.RunID)

	rows := [][]string{{
		"instrument_id", "as_of", "latest_transaction", "total_shares",
		"current_price", "ema", "rsi", "sell", "alert",
		"crossover_date", "crossover_close", "crossover_ema", "pct_from_crossover_ema",
		"high_since_crossover", "pct_below_high", "required_price_for_breakout",
		"breakout_met", "reason",
	}}
	for _, v := range r.Verdicts {
		m := v.Metrics
		rows = append(rows, []string{
			v.InstrumentID,
			core.FormatDate(v.AsOf),
			date(v.LatestTransaction),
			Quantity(v.TotalShares),
			Money(m.CurrentPrice),
			Money(m.EMA),
			Money(m.RSI),
			strconv.FormatBool(v.Sell),
			strconv.FormatBool(v.Alert),
			date(m.CrossoverDate),
			Money(m.CrossoverClose),
			Money(m.CrossoverEMA),
			Money(m.PctFromCrossoverEMA),
			Money(m.HighSinceCrossover),
			Money(m.PctBelowHigh),
			Money(m.RequiredPrice),
			strconv.FormatBool(v.BreakoutMet),
			v.Reason,
		})
	}

	if err := w.write(ctx, path.Join(dir, SignalsFile), rows); err != nil {
		return "", err
	}
	if err := w.write(ctx, path.Join(dir, SkippedFile), skipRows(r.Skipped)); err != nil {
		return "", err
	}
	return dir, nil
}

func (w *Writer) write(ctx context.Context, name string, rows [][]string) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if err := w.store.Write(ctx, name, buf.Bytes()); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("writing %s: %w", name, err))
	}
	return nil
}

func recordRows(records []valuation.Record) [][]string {
	rows := [][]string{recordHeader}
	for _, r := range records {
		rows = append(rows, []string{
			r.InstrumentID,
			core.FormatDate(r.Date),
			Quantity(r.Quantity),
			Money(r.Price),
			Money(r.Value),
		})
	}
	return rows
}

func skipRows(skips []app.Skip) [][]string {
	rows := [][]string{{"instrument_id", "reason", "error"}}
	for _, s := range skips {
		var msg string
		if s.Err != nil {
			msg = s.Err.Error()
		}
		rows = append(rows, []string{s.InstrumentID, s.Reason, msg})
	}
	return rows
}

// Money renders v rounded half away from zero to two decimals. Unresolved
// values render as an empty cell.
func Money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Quantity renders v without rounding
func Quantity(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).String()
}

func date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return core.FormatDate(t)
}
