// Package app runs valuation and signal passes over a transaction table,
// one pipeline per instrument on a bounded, throttled worker pool.
package app

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/tally/internal/config"
	"github.com/newthinker/tally/internal/pricing"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Run kinds, used as metric and log labels
const (
	RunValue   = "value"
	RunSignals = "signals"
)

// Skip reasons
const (
	ReasonNoTransactions = "no usable transactions"
	ReasonOutsideHorizon = "no transactions before horizon end"
	ReasonNoPriceData    = "no price data"
	ReasonPositionClosed = "position closed"
	ReasonInsufficient   = "insufficient price history"
	ReasonCancelled      = "cancelled"
)

// Resolver yields the authoritative price series of one instrument
type Resolver interface {
	Resolve(ctx context.Context, instrumentID string, start, end time.Time) (*pricing.Series, error)
}

// Recorder receives run metrics
type Recorder interface {
	RecordInstrument(run, status string)
	RecordRun(run string, duration time.Duration)
	SetPortfolioValue(v float64)
	RecordSignal(kind string)
}

// Skip is an instrument left out of a run and why
type Skip struct {
	InstrumentID string
	Reason       string
	Err          error
}

// App is the main application orchestrator
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	resolver Resolver
	metrics  Recorder

	now   func() time.Time
	newID func() string
}

// New creates a new App instance. metrics may be nil.
func New(cfg *config.Config, resolver Resolver, logger *zap.Logger, metrics Recorder) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Defaults()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &App{
		cfg:      cfg,
		logger:   logger,
		resolver: resolver,
		metrics:  metrics,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// forEach runs task for indices [0, n) with at most Pool.Workers running at
// once, starting one task per SubmitInterval. Each task must only write its
// own result slot. Returns once every started task has finished.
func (a *App) forEach(ctx context.Context, n int, task func(ctx context.Context, i int)) error {
	workers := a.cfg.Pool.Workers
	if workers < 1 {
		workers = 1
	}
	limit := rate.Inf
	if a.cfg.Pool.SubmitInterval > 0 {
		limit = rate.Every(a.cfg.Pool.SubmitInterval)
	}
	limiter := rate.NewLimiter(limit, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var submitErr error
	for i := 0; i < n; i++ {
		if err := limiter.Wait(gctx); err != nil {
			submitErr = err
			break
		}
		g.Go(func() error {
			task(gctx, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return submitErr
}

// skip logs and counts an instrument left out of a run
func (a *App) skip(log *zap.Logger, run, id, reason string, err error) *Skip {
	log.Warn("instrument skipped",
		zap.String("instrument", id),
		zap.String("reason", reason),
		zap.Error(err),
	)
	a.metrics.RecordInstrument(run, "skipped")
	return &Skip{InstrumentID: id, Reason: reason, Err: err}
}

func sortSkips(skips []Skip) {
	sort.Slice(skips, func(i, j int) bool { return skips[i].InstrumentID < skips[j].InstrumentID })
}

type nopRecorder struct{}

func (nopRecorder) RecordInstrument(run, status string) {}

func (nopRecorder) RecordRun(run string, d time.Duration) {}

func (nopRecorder) SetPortfolioValue(v float64) {}

func (nopRecorder) RecordSignal(kind string) {}
