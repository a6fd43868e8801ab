package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *Registry, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("expected non-nil registry")
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	// Should have go runtime metrics at minimum
	if len(mfs) == 0 {
		t.Error("expected some metrics to be registered")
	}
}

func TestRegistry_RecordInstrument(t *testing.T) {
	reg := NewRegistry()
	reg.RecordInstrument("value", StatusOK)
	reg.RecordInstrument("value", StatusOK)
	reg.RecordInstrument("value", StatusSkipped)

	mf := gather(t, reg, "tally_instruments_total")
	if mf == nil {
		t.Fatal("expected tally_instruments_total metric")
	}
	counts := map[string]float64{}
	for _, m := range mf.GetMetric() {
		counts[labelValue(m, "status")] = m.GetCounter().GetValue()
	}
	if counts[StatusOK] != 2 || counts[StatusSkipped] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}
}

func TestRegistry_RecordFetch(t *testing.T) {
	reg := NewRegistry()
	reg.RecordFetch("nse", "retry")

	mf := gather(t, reg, "tally_source_fetch_total")
	if mf == nil || len(mf.GetMetric()) != 1 {
		t.Fatal("expected one tally_source_fetch_total series")
	}
	m := mf.GetMetric()[0]
	if labelValue(m, "source") != "nse" || labelValue(m, "status") != "retry" {
		t.Errorf("unexpected labels: %v", m.GetLabel())
	}
}

func TestRegistry_RunAndPortfolio(t *testing.T) {
	reg := NewRegistry()
	reg.RecordRun("value", 3*time.Second)
	reg.SetPortfolioValue(1650)
	reg.RecordSignal("sell")

	if mf := gather(t, reg, "tally_run_duration_seconds"); mf == nil || mf.GetMetric()[0].GetHistogram().GetSampleCount() != 1 {
		t.Error("expected one run duration observation")
	}
	if mf := gather(t, reg, "tally_portfolio_value"); mf == nil || mf.GetMetric()[0].GetGauge().GetValue() != 1650 {
		t.Error("expected portfolio value 1650")
	}
	if mf := gather(t, reg, "tally_signals_total"); mf == nil || labelValue(mf.GetMetric()[0], "kind") != "sell" {
		t.Error("expected a sell signal")
	}
}

func TestRegistry_WriteTextfile(t *testing.T) {
	reg := NewRegistry()
	reg.SetPortfolioValue(42)

	path := filepath.Join(t.TempDir(), "textfile", "tally.prom")
	if err := reg.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "tally_portfolio_value 42") {
		t.Errorf("textfile missing portfolio value:\n%s", data)
	}
}
