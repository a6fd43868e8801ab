package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Instrument outcome labels
const (
	StatusOK      = "ok"
	StatusSkipped = "skipped"
	StatusGap     = "gap"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	instrumentsTotal *prometheus.CounterVec
	sourceFetches    *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	portfolioValue   prometheus.Gauge
	signalsTotal     *prometheus.CounterVec
	lastRun          *prometheus.GaugeVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		instrumentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_instruments_total",
				Help: "Instruments processed per run, by outcome",
			},
			[]string{"run", "status"},
		),

		sourceFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_source_fetch_total",
				Help: "Price source calls, by source and outcome",
			},
			[]string{"source", "status"},
		),

		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tally_run_duration_seconds",
				Help:    "Run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"run"},
		),

		portfolioValue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tally_portfolio_value",
				Help: "Portfolio value on the last day of the latest valuation run",
			},
		),

		signalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tally_signals_total",
				Help: "Signals raised, by kind",
			},
			[]string{"kind"},
		),

		lastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tally_last_run_timestamp_seconds",
				Help: "Unix time the last run of each kind finished",
			},
			[]string{"run"},
		),
	}

	reg.MustRegister(r.instrumentsTotal)
	reg.MustRegister(r.sourceFetches)
	reg.MustRegister(r.runDuration)
	reg.MustRegister(r.portfolioValue)
	reg.MustRegister(r.signalsTotal)
	reg.MustRegister(r.lastRun)

	return r
}

// RecordInstrument records the outcome of one instrument in a run.
func (r *Registry) RecordInstrument(run, status string) {
	r.instrumentsTotal.WithLabelValues(run, status).Inc()
}

// RecordFetch records one price source call.
func (r *Registry) RecordFetch(source, status string) {
	r.sourceFetches.WithLabelValues(source, status).Inc()
}

// RecordRun records a finished run.
func (r *Registry) RecordRun(run string, duration time.Duration) {
	r.runDuration.WithLabelValues(run).Observe(duration.Seconds())
	r.lastRun.WithLabelValues(run).SetToCurrentTime()
}

// SetPortfolioValue sets the latest total portfolio value.
func (r *Registry) SetPortfolioValue(v float64) {
	r.portfolioValue.Set(v)
}

// RecordSignal records a raised signal.
func (r *Registry) RecordSignal(kind string) {
	r.signalsTotal.WithLabelValues(kind).Inc()
}

// WriteTextfile dumps all metrics in the text exposition format for the
// node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, r); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
