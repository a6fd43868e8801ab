package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/tally/internal/core"
	"go.uber.org/zap"
)

// Resolver produces one authoritative daily price series per instrument
// from ranked sources, falling back to a manual override source.
type Resolver struct {
	sources   []Source
	lookback  int
	manual    Source
	retry     Retry
	manualGap GapPolicy
	logger    *zap.Logger
	recorder  FetchRecorder
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option configures a Resolver
type Option func(*Resolver)

// DefaultLookback is how many days before the range start ranked sources
// are asked for, so a weekend or holiday start still carries a price in.
const DefaultLookback = 10

// WithLookback sets the number of days fetched before the range start
func WithLookback(days int) Option {
	return func(r *Resolver) {
		if days >= 0 {
			r.lookback = days
		}
	}
}

// WithManual sets the manual override source. It is asked for its whole
// history up to the range end.
func WithManual(src Source) Option {
	return func(r *Resolver) { r.manual = src }
}

// WithRetry sets the per-call retry budget
func WithRetry(retry Retry) Option {
	return func(r *Resolver) { r.retry = retry }
}

// WithManualGap sets the policy for days after the manual series ends
func WithManualGap(p GapPolicy) Option {
	return func(r *Resolver) { r.manualGap = p }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithRecorder sets the fetch outcome recorder
func WithRecorder(rec FetchRecorder) Option {
	return func(r *Resolver) { r.recorder = rec }
}

// NewResolver creates a resolver querying sources in the given rank order
func NewResolver(sources []Source, opts ...Option) *Resolver {
	r := &Resolver{
		sources:   sources,
		lookback:  DefaultLookback,
		retry:     DefaultRetry(),
		manualGap: GapZero,
		logger:    zap.NewNop(),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.retry.Attempts < 1 {
		r.retry.Attempts = 1
	}
	return r
}

// Resolve returns the price series for instrumentID over [start, end].
//
// Same-day prices across sources are merged with the max rule and the result
// is forward-filled, starting from the latest price before start when one
// exists. When no ranked source resolves anything the manual source is used
// instead. ErrNoPriceData is returned when nothing, manual included,
// produced a single observation at or before end.
func (r *Resolver) Resolve(ctx context.Context, instrumentID string, start, end time.Time) (*Series, error) {
	start, end = core.Normalize(start), core.Normalize(end)
	if end.Before(start) {
		return nil, core.WrapError(core.ErrNoPriceData,
			fmt.Errorf("%s: empty range %s..%s", instrumentID, core.FormatDate(start), core.FormatDate(end)))
	}

	var observations [][]core.PricePoint
	var lastErr error
	from := start.AddDate(0, 0, -r.lookback)
	for _, src := range r.sources {
		pts, err := r.fetch(ctx, src, instrumentID, from, end)
		if err != nil {
			lastErr = err
			continue
		}
		observations = append(observations, pts)
	}

	combined := Combine(instrumentID, start, end, observations...)
	if p, ok := carryIn(start, observations...); ok {
		combined.seed(p)
	}
	if combined.Resolved() > 0 {
		return combined.FillForward(), nil
	}

	if r.manual != nil {
		r.logger.Info("trying manual price fallback", zap.String("instrument", instrumentID))
		pts, err := r.fetch(ctx, r.manual, instrumentID, time.Time{}, end)
		if err != nil {
			lastErr = err
		} else {
			manual := Combine(instrumentID, start, end, pts)
			if p, ok := carryIn(start, pts); ok {
				manual.seed(p)
			}
			if manual.Resolved() > 0 {
				return manual.fillManual(r.manualGap), nil
			}
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%s: no source returned prices for %s..%s",
			instrumentID, core.FormatDate(start), core.FormatDate(end))
	}
	return nil, core.WrapError(core.ErrNoPriceData, lastErr)
}

// fetch calls src under the retry budget. After the last failed attempt the
// error is reported as ErrSourceUnavailable.
func (r *Resolver) fetch(ctx context.Context, src Source, instrumentID string, start, end time.Time) ([]core.PricePoint, error) {
	var err error
	for attempt := 1; attempt <= r.retry.Attempts; attempt++ {
		var pts []core.PricePoint
		pts, err = src.History(ctx, instrumentID, start, end)
		if err == nil {
			if len(pts) == 0 {
				r.record(src.Name(), FetchEmpty)
				r.logger.Debug("source returned no data",
					zap.String("source", src.Name()),
					zap.String("instrument", instrumentID),
				)
			} else {
				r.record(src.Name(), FetchOK)
			}
			return pts, nil
		}

		if attempt == r.retry.Attempts {
			break
		}
		r.record(src.Name(), FetchRetry)
		r.logger.Debug("source fetch failed, retrying",
			zap.String("source", src.Name()),
			zap.String("instrument", instrumentID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if serr := r.sleep(ctx, r.retry.Backoff); serr != nil {
			err = serr
			break
		}
	}

	r.record(src.Name(), FetchUnavailable)
	r.logger.Warn("source unavailable",
		zap.String("source", src.Name()),
		zap.String("instrument", instrumentID),
		zap.Error(err),
	)
	return nil, core.WrapError(core.ErrSourceUnavailable, fmt.Errorf("%s for %s: %w", src.Name(), instrumentID, err))
}

func (r *Resolver) record(source, status string) {
	if r.recorder != nil {
		r.recorder.RecordFetch(source, status)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
