package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/newthinker/tally/internal/core"
	"github.com/newthinker/tally/internal/ledger"
	"github.com/newthinker/tally/internal/logger"
	"github.com/newthinker/tally/internal/position"
	"github.com/newthinker/tally/internal/valuation"
	"go.uber.org/zap"
)

// ValuationReport is the result of a valuation run. Records holds every
// instrument's daily rows sorted by instrument then date; Positions holds
// each instrument's last-day row.
type ValuationReport struct {
	RunID     string
	AsOf      time.Time
	Records   []valuation.Record
	Portfolio []valuation.PortfolioValue
	Positions []valuation.Record
	Skipped   []Skip
}

type valueResult struct {
	records []valuation.Record
	skip    *Skip
}

// Value reconstructs and prices every instrument over the horizon, then
// sums the portfolio once all instruments are done. Instruments that cannot
// be valued are reported in Skipped; the run fails only when there is
// nothing to value or ctx is cancelled.
func (a *App) Value(ctx context.Context, records []ledger.Record) (*ValuationReport, error) {
	began := a.now()
	report := &ValuationReport{RunID: a.newID()}
	log := logger.ForRun(a.logger, RunValue, report.RunID)

	horizonStart, end, err := a.cfg.Horizon.Window(began)
	if err != nil {
		return nil, err
	}
	report.AsOf = end

	ids := ledger.Instruments(records)
	if len(ids) == 0 {
		return nil, core.ErrNoTransactions
	}
	groups := ledger.GroupByInstrument(records)
	log.Info("valuation run starting",
		zap.Int("instruments", len(ids)),
		zap.String("horizon_end", core.FormatDate(end)),
	)

	results := make([]valueResult, len(ids))
	err = a.forEach(ctx, len(ids), func(ctx context.Context, i int) {
		results[i] = a.valueInstrument(ctx, log, ids[i], groups[ids[i]], horizonStart, end)
	})
	if err != nil {
		return nil, err
	}

	var series [][]valuation.Record
	for _, r := range results {
		if r.skip != nil {
			report.Skipped = append(report.Skipped, *r.skip)
			continue
		}
		series = append(series, r.records)
	}
	sort.Slice(series, func(i, j int) bool { return series[i][0].InstrumentID < series[j][0].InstrumentID })
	sortSkips(report.Skipped)

	for _, s := range series {
		report.Records = append(report.Records, s...)
		if snap, ok := valuation.Snapshot(s); ok {
			report.Positions = append(report.Positions, snap)
		}
	}
	report.Portfolio = valuation.Aggregate(series...)
	if n := len(report.Portfolio); n > 0 {
		a.metrics.SetPortfolioValue(report.Portfolio[n-1].Value)
	}
	a.metrics.RecordRun(RunValue, a.now().Sub(began))

	log.Info("valuation run finished",
		zap.Int("valued", len(series)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("days", len(report.Portfolio)),
	)
	return report, nil
}

func (a *App) valueInstrument(ctx context.Context, log *zap.Logger, id string, records []ledger.Record, horizonStart, end time.Time) valueResult {
	if ctx.Err() != nil {
		return valueResult{skip: a.skip(log, RunValue, id, ReasonCancelled, ctx.Err())}
	}

	entries, err := ledger.Normalize(records)
	if err != nil {
		log.Warn("dropped malformed transactions", zap.String("instrument", id), zap.Error(err))
	}
	if len(entries) == 0 {
		return valueResult{skip: a.skip(log, RunValue, id, ReasonNoTransactions, err)}
	}

	from := entries[0].Date
	if horizonStart.After(from) {
		from = horizonStart
	}
	if from.After(end) {
		return valueResult{skip: a.skip(log, RunValue, id, ReasonOutsideHorizon,
			fmt.Errorf("first transaction %s", core.FormatDate(from)))}
	}

	prices, err := a.resolver.Resolve(ctx, id, from, end)
	if err != nil {
		reason := ReasonNoPriceData
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonCancelled
		}
		return valueResult{skip: a.skip(log, RunValue, id, reason, err)}
	}

	pos := position.Reconstruct(id, entries, end)
	var rows []valuation.Record
	for _, r := range valuation.Value(pos, prices) {
		if !r.Date.Before(from) {
			rows = append(rows, r)
		}
	}

	status := "ok"
	if gaps := valuation.Gaps(rows); len(gaps) > 0 {
		status = "gap"
		log.Warn("unresolved price gaps",
			zap.String("instrument", id),
			zap.Int("days", len(gaps)),
			zap.Error(gaps[0].Err()),
		)
	}
	a.metrics.RecordInstrument(RunValue, status)
	return valueResult{records: rows}
}
