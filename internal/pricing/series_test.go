package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/newthinker/tally/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) time.Time {
	t, err := core.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func pts(kv ...any) []core.PricePoint {
	var out []core.PricePoint
	for i := 0; i < len(kv); i += 2 {
		out = append(out, core.PricePoint{Date: d(kv[i].(string)), Price: kv[i+1].(float64)})
	}
	return out
}

func prices(s *Series) []float64 {
	out := make([]float64, s.Len())
	for i := range out {
		out[i] = s.Price(i)
	}
	return out
}

func equalWithNaN(t *testing.T, want, got []float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "index %d: want NaN, got %v", i, got[i])
			continue
		}
		assert.Equal(t, want[i], got[i], "index %d", i)
	}
}

func TestCombine_MaxRule(t *testing.T) {
	a := pts("2024-01-01", 10.0, "2024-01-02", 11.0)
	b := pts("2024-01-01", 12.0, "2024-01-03", 9.0)

	s := Combine("X", d("2024-01-01"), d("2024-01-04"), a, b)

	equalWithNaN(t, []float64{12, 11, 9, math.NaN()}, prices(s))
	assert.True(t, s.Observed(d("2024-01-01")))
	assert.False(t, s.Observed(d("2024-01-04")))
}

func TestCombine_IgnoresOutOfRangeAndInvalid(t *testing.T) {
	a := []core.PricePoint{
		{Date: d("2023-12-31"), Price: 99},
		{Date: d("2024-01-01"), Price: math.NaN()},
		{Date: d("2024-01-02"), Price: -1},
		{Date: d("2024-01-02").Add(15 * time.Hour), Price: 7},
		{Date: d("2024-01-05"), Price: 99},
	}
	s := Combine("X", d("2024-01-01"), d("2024-01-03"), a)
	equalWithNaN(t, []float64{math.NaN(), 7, math.NaN()}, prices(s))
}

func TestFillForward(t *testing.T) {
	s := Combine("X", d("2024-01-01"), d("2024-01-06"),
		pts("2024-01-02", 10.0, "2024-01-04", 12.0))

	filled := s.FillForward()
	equalWithNaN(t, []float64{math.NaN(), 10, 10, 12, 12, 12}, prices(filled))

	// original untouched
	equalWithNaN(t, []float64{math.NaN(), 10, math.NaN(), 12, math.NaN(), math.NaN()}, prices(s))
}

func TestFillForward_Idempotent(t *testing.T) {
	s := Combine("X", d("2024-01-01"), d("2024-01-10"),
		pts("2024-01-03", 5.0, "2024-01-04", 6.0, "2024-01-08", 4.5))

	once := s.FillForward()
	twice := once.FillForward()
	equalWithNaN(t, prices(once), prices(twice))
}

func TestSessions(t *testing.T) {
	s := Combine("X", d("2024-01-01"), d("2024-01-05"),
		pts("2024-01-01", 10.0, "2024-01-03", 12.0, "2024-01-05", 11.0)).FillForward()

	dates, closes := s.Sessions()
	assert.Equal(t, []time.Time{d("2024-01-01"), d("2024-01-03"), d("2024-01-05")}, dates)
	assert.Equal(t, []float64{10, 12, 11}, closes)
}

func TestSeries_At(t *testing.T) {
	s := Combine("X", d("2024-01-02"), d("2024-01-03"), pts("2024-01-03", 3.0))

	_, ok := s.At(d("2024-01-01"))
	assert.False(t, ok, "before start")
	_, ok = s.At(d("2024-01-02"))
	assert.False(t, ok, "unresolved")
	p, ok := s.At(d("2024-01-03"))
	assert.True(t, ok)
	assert.Equal(t, 3.0, p)
	_, ok = s.At(d("2024-01-04"))
	assert.False(t, ok, "after end")

	assert.Equal(t, d("2024-01-03"), s.End())
	assert.Equal(t, 1, s.Resolved())
}

func TestFillManual(t *testing.T) {
	s := Combine("X", d("2024-01-01"), d("2024-01-06"),
		pts("2024-01-02", 10.0, "2024-01-04", 8.0))

	equalWithNaN(t, []float64{math.NaN(), 10, 10, 8, 0, 0}, prices(s.fillManual(GapZero)))
	equalWithNaN(t, []float64{math.NaN(), 10, 10, 8, math.NaN(), math.NaN()}, prices(s.fillManual(GapUnresolved)))
}

func TestFillManual_SeededOnly(t *testing.T) {
	s := Combine("X", d("2024-02-01"), d("2024-02-03"))
	s.seed(11)

	equalWithNaN(t, []float64{0, 0, 0}, prices(s.fillManual(GapZero)))
	equalWithNaN(t, []float64{math.NaN(), math.NaN(), math.NaN()}, prices(s.fillManual(GapUnresolved)))

	empty := Combine("X", d("2024-02-01"), d("2024-02-03"))
	assert.Equal(t, 0, empty.fillManual(GapZero).Resolved())
}

func TestCarryIn(t *testing.T) {
	a := pts("2024-02-27", 40.0, "2024-03-01", 50.0, "2024-03-02", 99.0)
	b := pts("2024-03-01", 51.0, "2024-02-29", math.NaN())

	p, ok := carryIn(d("2024-03-02"), a, b)
	require.True(t, ok)
	assert.Equal(t, 51.0, p, "latest day before start, max across sources")

	_, ok = carryIn(d("2024-02-27"), a, b)
	assert.False(t, ok)
}

func TestSeed_KeepsObservedFirstDay(t *testing.T) {
	s := Combine("X", d("2024-03-02"), d("2024-03-03"), pts("2024-03-02", 7.0))
	s.seed(5)
	assert.Equal(t, 7.0, s.Price(0))
	assert.True(t, s.Observed(d("2024-03-02")))

	s = Combine("X", d("2024-03-02"), d("2024-03-03"))
	s.seed(5)
	assert.Equal(t, 5.0, s.Price(0))
	assert.False(t, s.Observed(d("2024-03-02")))
}

func TestParseGapPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    GapPolicy
		wantErr bool
	}{
		{"", GapZero, false},
		{"zero", GapZero, false},
		{"Unresolved", GapUnresolved, false},
		{"bogus", GapZero, true},
	}
	for _, tc := range tests {
		got, err := ParseGapPolicy(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		assert.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}
