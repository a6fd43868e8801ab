package pricing

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/newthinker/tally/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakySource fails a fixed number of times before serving its points
type flakySource struct {
	name     string
	failures int
	points   []core.PricePoint

	mu    sync.Mutex
	calls int
}

func (f *flakySource) Name() string { return f.name }

func (f *flakySource) History(ctx context.Context, id string, start, end time.Time) ([]core.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.points, nil
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *countingRecorder) RecordFetch(source, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[source+"/"+status]++
}

func noSleep(r *Resolver) { r.sleep = func(context.Context, time.Duration) error { return nil } }

func TestResolve_ForwardFillsGaps(t *testing.T) {
	src := &StaticSource{SourceName: "primary", Points: map[string][]core.PricePoint{
		"INFY": pts("2024-01-01", 10.0, "2024-01-03", 12.0, "2024-01-05", 11.0),
	}}
	r := NewResolver([]Source{src})

	s, err := r.Resolve(context.Background(), "INFY", d("2024-01-01"), d("2024-01-05"))
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 10, 12, 12, 11}, prices(s))
}

func TestResolve_MaxAcrossSources(t *testing.T) {
	a := &StaticSource{SourceName: "a", Points: map[string][]core.PricePoint{"X": pts("2024-01-01", 10.0)}}
	b := &StaticSource{SourceName: "b", Points: map[string][]core.PricePoint{"X": pts("2024-01-01", 12.0)}}
	r := NewResolver([]Source{a, b})

	s, err := r.Resolve(context.Background(), "X", d("2024-01-01"), d("2024-01-01"))
	require.NoError(t, err)
	p, ok := s.At(d("2024-01-01"))
	require.True(t, ok)
	assert.Equal(t, 12.0, p)
}

func TestResolve_PartialSourcesComplementEachOther(t *testing.T) {
	a := &StaticSource{SourceName: "a", Points: map[string][]core.PricePoint{"X": pts("2024-01-01", 10.0)}}
	b := &StaticSource{SourceName: "b", Points: map[string][]core.PricePoint{"X": pts("2024-01-03", 9.0)}}
	r := NewResolver([]Source{a, b})

	s, err := r.Resolve(context.Background(), "X", d("2024-01-01"), d("2024-01-04"))
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 10, 9, 9}, prices(s))
}

func TestResolve_LeadingDaysStayUnresolved(t *testing.T) {
	src := &StaticSource{SourceName: "a", Points: map[string][]core.PricePoint{"X": pts("2024-01-03", 5.0)}}
	r := NewResolver([]Source{src})

	s, err := r.Resolve(context.Background(), "X", d("2024-01-01"), d("2024-01-04"))
	require.NoError(t, err)
	equalWithNaN(t, []float64{math.NaN(), math.NaN(), 5, 5}, prices(s))
}

func TestResolve_CarriesPriceIntoWeekendStart(t *testing.T) {
	src := &StaticSource{SourceName: "nse", Points: map[string][]core.PricePoint{
		"X": pts("2024-03-01", 50.0, "2024-03-04", 52.0),
	}}
	r := NewResolver([]Source{src})

	s, err := r.Resolve(context.Background(), "X", d("2024-03-02"), d("2024-03-04"))
	require.NoError(t, err)
	assert.Equal(t, d("2024-03-02"), s.Start)
	assert.Equal(t, []float64{50, 50, 52}, prices(s))
	assert.False(t, s.Observed(d("2024-03-02")), "carried price is not a session")

	dates, _ := s.Sessions()
	assert.Equal(t, []time.Time{d("2024-03-04")}, dates)
}

func TestResolve_LookbackIsBounded(t *testing.T) {
	src := &StaticSource{SourceName: "nse", Points: map[string][]core.PricePoint{
		"X": pts("2024-02-20", 50.0),
	}}
	r := NewResolver([]Source{src}, WithLookback(3))

	_, err := r.Resolve(context.Background(), "X", d("2024-03-02"), d("2024-03-04"))
	assert.True(t, errors.Is(err, core.ErrNoPriceData))
}

func TestResolve_ManualSeriesEndsBeforeRange(t *testing.T) {
	manual := &StaticSource{SourceName: "manual", Points: map[string][]core.PricePoint{
		"MF": pts("2024-01-01", 10.0, "2024-01-10", 11.0),
	}}

	r := NewResolver(nil, WithManual(manual))
	s, err := r.Resolve(context.Background(), "MF", d("2024-02-01"), d("2024-02-05"))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, prices(s))

	r = NewResolver(nil, WithManual(manual), WithManualGap(GapUnresolved))
	s, err = r.Resolve(context.Background(), "MF", d("2024-02-01"), d("2024-02-05"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Resolved())
}

func TestResolve_ManualCarriesIntoRange(t *testing.T) {
	manual := &StaticSource{SourceName: "manual", Points: map[string][]core.PricePoint{
		"MF": pts("2024-01-10", 11.0, "2024-02-03", 12.0),
	}}

	r := NewResolver(nil, WithManual(manual))
	s, err := r.Resolve(context.Background(), "MF", d("2024-02-01"), d("2024-02-05"))
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 11, 12, 0, 0}, prices(s))
}

func TestResolve_ManualFallback(t *testing.T) {
	empty := &StaticSource{SourceName: "nse"}
	manual := &StaticSource{SourceName: "manual", Points: map[string][]core.PricePoint{
		"UNLISTED": pts("2024-01-02", 100.0, "2024-01-03", 101.0),
	}}

	r := NewResolver([]Source{empty}, WithManual(manual))
	s, err := r.Resolve(context.Background(), "UNLISTED", d("2024-01-01"), d("2024-01-05"))
	require.NoError(t, err)
	equalWithNaN(t, []float64{math.NaN(), 100, 101, 0, 0}, prices(s))

	r = NewResolver([]Source{empty}, WithManual(manual), WithManualGap(GapUnresolved))
	s, err = r.Resolve(context.Background(), "UNLISTED", d("2024-01-01"), d("2024-01-05"))
	require.NoError(t, err)
	equalWithNaN(t, []float64{math.NaN(), 100, 101, math.NaN(), math.NaN()}, prices(s))
}

func TestResolve_ManualIgnoredWhenRankedSourceHasData(t *testing.T) {
	ranked := &StaticSource{SourceName: "nse", Points: map[string][]core.PricePoint{"X": pts("2024-01-01", 1.0)}}
	manual := &StaticSource{SourceName: "manual", Points: map[string][]core.PricePoint{"X": pts("2024-01-01", 50.0)}}

	r := NewResolver([]Source{ranked}, WithManual(manual))
	s, err := r.Resolve(context.Background(), "X", d("2024-01-01"), d("2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, prices(s))
}

func TestResolve_NoPriceData(t *testing.T) {
	r := NewResolver([]Source{&StaticSource{SourceName: "nse"}}, WithManual(&StaticSource{SourceName: "manual"}))
	_, err := r.Resolve(context.Background(), "GHOST", d("2024-01-01"), d("2024-01-05"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNoPriceData))
}

func TestResolve_EmptyRange(t *testing.T) {
	r := NewResolver(nil)
	_, err := r.Resolve(context.Background(), "X", d("2024-01-05"), d("2024-01-01"))
	assert.True(t, errors.Is(err, core.ErrNoPriceData))
}

func TestResolve_RetriesTransientFailures(t *testing.T) {
	src := &flakySource{name: "flaky", failures: 2, points: pts("2024-01-01", 3.0)}
	rec := &countingRecorder{}
	r := NewResolver([]Source{src}, WithRetry(Retry{Attempts: 3, Backoff: time.Second}), WithRecorder(rec), noSleep)

	s, err := r.Resolve(context.Background(), "X", d("2024-01-01"), d("2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Resolved())
	assert.Equal(t, 3, src.calls)
	assert.Equal(t, 2, rec.counts["flaky/retry"])
	assert.Equal(t, 1, rec.counts["flaky/ok"])
}

func TestResolve_RetryBudgetExhausted(t *testing.T) {
	down := &flakySource{name: "down", failures: 100}
	r := NewResolver([]Source{down}, WithRetry(Retry{Attempts: 3}), noSleep)

	_, err := r.Resolve(context.Background(), "X", d("2024-01-01"), d("2024-01-02"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNoPriceData))
	assert.True(t, errors.Is(err, core.ErrSourceUnavailable))
	assert.Equal(t, 3, down.calls, "must not retry past the budget")
}

func TestResolve_UnavailableSourceDoesNotHideOthers(t *testing.T) {
	down := &flakySource{name: "down", failures: 100}
	up := &StaticSource{SourceName: "up", Points: map[string][]core.PricePoint{"X": pts("2024-01-01", 4.0)}}
	r := NewResolver([]Source{down, up}, WithRetry(Retry{Attempts: 2}), noSleep)

	s, err := r.Resolve(context.Background(), "X", d("2024-01-01"), d("2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Resolved())
}

func TestResolve_CancelledDuringBackoff(t *testing.T) {
	down := &flakySource{name: "down", failures: 100}
	r := NewResolver([]Source{down}, WithRetry(Retry{Attempts: 5, Backoff: time.Hour}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Resolve(ctx, "X", d("2024-01-01"), d("2024-01-01"))
	require.Error(t, err)
	assert.Equal(t, 1, down.calls)
}
