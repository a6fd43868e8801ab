package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/newthinker/tally/internal/core"
	"github.com/newthinker/tally/internal/ledger"
	"github.com/newthinker/tally/internal/logger"
	"github.com/newthinker/tally/internal/signal"
	"go.uber.org/zap"
)

// SignalReport is the result of a signal run, verdicts sorted by instrument
type SignalReport struct {
	RunID    string
	AsOf     time.Time
	Verdicts []signal.Verdict
	Skipped  []Skip
}

type signalResult struct {
	verdict *signal.Verdict
	skip    *Skip
}

// Signals evaluates the sell, alert and breakout rules for every
// instrument still held, over the configured lookback window.
func (a *App) Signals(ctx context.Context, records []ledger.Record) (*SignalReport, error) {
	began := a.now()
	report := &SignalReport{RunID: a.newID()}
	log := logger.ForRun(a.logger, RunSignals, report.RunID)

	_, end, err := a.cfg.Horizon.Window(began)
	if err != nil {
		return nil, err
	}
	report.AsOf = end
	start := core.AddDays(end, -a.cfg.Horizon.LookbackDays)

	ids := ledger.Instruments(records)
	if len(ids) == 0 {
		return nil, core.ErrNoTransactions
	}
	groups := ledger.GroupByInstrument(records)
	log.Info("signal run starting",
		zap.Int("instruments", len(ids)),
		zap.String("from", core.FormatDate(start)),
		zap.String("to", core.FormatDate(end)),
	)

	results := make([]signalResult, len(ids))
	err = a.forEach(ctx, len(ids), func(ctx context.Context, i int) {
		results[i] = a.evaluateInstrument(ctx, log, ids[i], groups[ids[i]], start, end)
	})
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		switch {
		case r.skip != nil:
			report.Skipped = append(report.Skipped, *r.skip)
		case r.verdict != nil:
			report.Verdicts = append(report.Verdicts, *r.verdict)
		}
	}
	sort.Slice(report.Verdicts, func(i, j int) bool {
		return report.Verdicts[i].InstrumentID < report.Verdicts[j].InstrumentID
	})
	sortSkips(report.Skipped)

	var sells, alerts int
	for _, v := range report.Verdicts {
		if v.Sell {
			sells++
			a.metrics.RecordSignal("sell")
		}
		if v.Alert {
			alerts++
			a.metrics.RecordSignal("alert")
		}
		if v.BreakoutMet {
			a.metrics.RecordSignal("breakout")
		}
	}
	a.metrics.RecordRun(RunSignals, a.now().Sub(began))

	log.Info("signal run finished",
		zap.Int("evaluated", len(report.Verdicts)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("sell", sells),
		zap.Int("alert", alerts),
	)
	return report, nil
}

func (a *App) evaluateInstrument(ctx context.Context, log *zap.Logger, id string, records []ledger.Record, start, end time.Time) signalResult {
	if ctx.Err() != nil {
		return signalResult{skip: a.skip(log, RunSignals, id, ReasonCancelled, ctx.Err())}
	}

	entries, err := ledger.Normalize(records)
	if err != nil {
		log.Warn("dropped malformed transactions", zap.String("instrument", id), zap.Error(err))
	}
	latest, ok := ledger.Latest(entries)
	if !ok {
		return signalResult{skip: a.skip(log, RunSignals, id, ReasonNoTransactions, err)}
	}
	if latest.Quantity <= 0 {
		return signalResult{skip: a.skip(log, RunSignals, id, ReasonPositionClosed, nil)}
	}

	prices, err := a.resolver.Resolve(ctx, id, start, end)
	if err != nil {
		reason := ReasonNoPriceData
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			reason = ReasonCancelled
		}
		return signalResult{skip: a.skip(log, RunSignals, id, reason, err)}
	}

	dates, closes := prices.Sessions()
	verdict, err := signal.Evaluate(signal.Input{
		InstrumentID:      id,
		Dates:             dates,
		Closes:            closes,
		LatestTransaction: latest.Date,
		TotalShares:       latest.Quantity,
	}, a.cfg.Signal)
	if err != nil {
		return signalResult{skip: a.skip(log, RunSignals, id, ReasonInsufficient, err)}
	}

	a.metrics.RecordInstrument(RunSignals, "ok")
	return signalResult{verdict: &verdict}
}
