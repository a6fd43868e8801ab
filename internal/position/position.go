// Package position expands sparse holding snapshots into a daily series.
package position

import (
	"time"

	"github.com/newthinker/tally/internal/core"
	"github.com/newthinker/tally/internal/ledger"
)

// Series is the quantity held on every calendar day from the first
// transaction through the horizon. It is piecewise constant and only
// changes on transaction dates.
type Series struct {
	InstrumentID string
	Start        time.Time

	quantities []float64
}

// Reconstruct builds the daily held quantity from normalized snapshots.
// Entries must be sorted and unique by date, as ledger.Normalize returns
// them. The series is empty when there are no entries or the horizon
// precedes the first one.
func Reconstruct(instrumentID string, entries []ledger.Entry, horizon time.Time) *Series {
	s := &Series{InstrumentID: instrumentID}
	if len(entries) == 0 {
		return s
	}
	s.Start = core.Normalize(entries[0].Date)
	n := core.DaysInRange(s.Start, horizon)
	s.quantities = make([]float64, n)

	next := 0
	var held float64
	for i := range s.quantities {
		day := s.Start.AddDate(0, 0, i)
		for next < len(entries) && !core.Normalize(entries[next].Date).After(day) {
			held = entries[next].Quantity
			next++
		}
		s.quantities[i] = held
	}
	return s
}

// Len returns the number of days covered
func (s *Series) Len() int { return len(s.quantities) }

// Date returns the day at index i
func (s *Series) Date(i int) time.Time { return s.Start.AddDate(0, 0, i) }

// Quantity returns the held quantity at index i
func (s *Series) Quantity(i int) float64 { return s.quantities[i] }

// End returns the last covered day
func (s *Series) End() time.Time { return s.Start.AddDate(0, 0, len(s.quantities)-1) }

// At returns the quantity held on date; 0 before the first transaction.
// Dates after the horizon carry the last quantity.
func (s *Series) At(date time.Time) float64 {
	if len(s.quantities) == 0 {
		return 0
	}
	i := core.DaysBetween(s.Start, date)
	switch {
	case i < 0:
		return 0
	case i >= len(s.quantities):
		return s.quantities[len(s.quantities)-1]
	default:
		return s.quantities[i]
	}
}
