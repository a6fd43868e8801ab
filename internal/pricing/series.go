package pricing

import (
	"math"
	"time"

	"github.com/newthinker/tally/internal/core"
)

// Series is a dense daily price series for one instrument. Every calendar
// day in [Start, End] has a slot; NaN marks an unresolved day. A slot is
// observed when at least one source reported a price for that exact day.
type Series struct {
	InstrumentID string
	Start        time.Time

	prices   []float64
	observed []bool
}

// NewSeries returns an all-unresolved series covering [start, end]
func NewSeries(instrumentID string, start, end time.Time) *Series {
	start = core.Normalize(start)
	n := core.DaysInRange(start, end)
	s := &Series{
		InstrumentID: instrumentID,
		Start:        start,
		prices:       make([]float64, n),
		observed:     make([]bool, n),
	}
	for i := range s.prices {
		s.prices[i] = math.NaN()
	}
	return s
}

// Combine merges observations from any number of sources into one series
// over [start, end]. When several observations share a day the highest
// price wins. Points outside the range, negative or non-finite are ignored.
func Combine(instrumentID string, start, end time.Time, observations ...[]core.PricePoint) *Series {
	s := NewSeries(instrumentID, start, end)
	for _, pts := range observations {
		for _, p := range pts {
			if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price < 0 {
				continue
			}
			i, ok := s.index(p.Date)
			if !ok {
				continue
			}
			if !s.observed[i] || p.Price > s.prices[i] {
				s.prices[i] = p.Price
				s.observed[i] = true
			}
		}
	}
	return s
}

// carryIn returns the latest valid price dated before start. Same-day
// observations follow the max rule.
func carryIn(start time.Time, observations ...[]core.PricePoint) (float64, bool) {
	start = core.Normalize(start)
	var best time.Time
	price, found := math.NaN(), false
	for _, pts := range observations {
		for _, p := range pts {
			if math.IsNaN(p.Price) || math.IsInf(p.Price, 0) || p.Price < 0 {
				continue
			}
			day := core.Normalize(p.Date)
			if !day.Before(start) {
				continue
			}
			switch {
			case !found || day.After(best):
				best, price, found = day, p.Price, true
			case day.Equal(best) && p.Price > price:
				price = p.Price
			}
		}
	}
	return price, found
}

// seed puts a carried-in price on the first day unless a source observed
// that day. The slot stays unobserved.
func (s *Series) seed(price float64) {
	if len(s.prices) > 0 && !s.observed[0] {
		s.prices[0] = price
	}
}

// Len returns the number of calendar days covered
func (s *Series) Len() int { return len(s.prices) }

// End returns the last covered day
func (s *Series) End() time.Time { return s.Start.AddDate(0, 0, len(s.prices)-1) }

// Date returns the day at index i
func (s *Series) Date(i int) time.Time { return s.Start.AddDate(0, 0, i) }

// Price returns the price at index i, NaN when unresolved
func (s *Series) Price(i int) float64 { return s.prices[i] }

// At returns the resolved price on date. ok is false when the date is out of
// range or unresolved.
func (s *Series) At(date time.Time) (float64, bool) {
	i, ok := s.index(date)
	if !ok || math.IsNaN(s.prices[i]) {
		return math.NaN(), false
	}
	return s.prices[i], true
}

// Observed reports whether a source reported a price on date
func (s *Series) Observed(date time.Time) bool {
	i, ok := s.index(date)
	return ok && s.observed[i]
}

// Resolved returns the number of days carrying a price
func (s *Series) Resolved() int {
	n := 0
	for _, p := range s.prices {
		if !math.IsNaN(p) {
			n++
		}
	}
	return n
}

// Sessions returns only the observed days and their prices, in order.
// Forward-filled days are excluded.
func (s *Series) Sessions() ([]time.Time, []float64) {
	var dates []time.Time
	var closes []float64
	for i, ok := range s.observed {
		if ok {
			dates = append(dates, s.Date(i))
			closes = append(closes, s.prices[i])
		}
	}
	return dates, closes
}

// FillForward returns a copy where every unresolved day takes the latest
// resolved price at or before it. Days before the first resolved price stay
// unresolved. Applying it twice yields the same series.
func (s *Series) FillForward() *Series {
	out := s.clone()
	last := math.NaN()
	for i, p := range out.prices {
		if math.IsNaN(p) {
			out.prices[i] = last
			continue
		}
		last = p
	}
	return out
}

// fillManual forward-fills within the observed coverage and applies policy
// to the days after the last observation. A series seeded from before its
// start with no observation in range gets policy on every day.
func (s *Series) fillManual(policy GapPolicy) *Series {
	lastObs := -1
	for i, ok := range s.observed {
		if ok {
			lastObs = i
		}
	}
	out := s.FillForward()
	if out.Resolved() == 0 {
		return out
	}
	for i := lastObs + 1; i < len(out.prices); i++ {
		switch policy {
		case GapZero:
			out.prices[i] = 0
		case GapUnresolved:
			out.prices[i] = math.NaN()
		}
	}
	return out
}

func (s *Series) index(date time.Time) (int, bool) {
	i := core.DaysBetween(s.Start, date)
	if i < 0 || i >= len(s.prices) {
		return 0, false
	}
	return i, true
}

func (s *Series) clone() *Series {
	out := &Series{
		InstrumentID: s.InstrumentID,
		Start:        s.Start,
		prices:       make([]float64, len(s.prices)),
		observed:     make([]bool, len(s.observed)),
	}
	copy(out.prices, s.prices)
	copy(out.observed, s.observed)
	return out
}
