// Package valuation joins held quantities with resolved prices into daily
// per-instrument and portfolio values.
package valuation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/newthinker/tally/internal/core"
	"github.com/newthinker/tally/internal/position"
	"github.com/newthinker/tally/internal/pricing"
)

// Record is the value of one instrument on one day. Gap is set when a
// quantity was held but no price was available; Price and Value are NaN
// in that case, never 0.
type Record struct {
	InstrumentID string
	Date         time.Time
	Quantity     float64
	Price        float64
	Value        float64
	Gap          bool
}

// Err returns ErrUnresolvedPriceGap for a gap record, nil otherwise
func (r Record) Err() error {
	if !r.Gap {
		return nil
	}
	return core.WrapError(core.ErrUnresolvedPriceGap,
		fmt.Errorf("%s on %s", r.InstrumentID, core.FormatDate(r.Date)))
}

// PortfolioValue is the sum of all instrument values on one day.
// Instruments counts the rows that contributed; Gaps counts rows that were
// held but unpriced and therefore left out of Value.
type PortfolioValue struct {
	Date        time.Time
	Value       float64
	Instruments int
	Gaps        int
}

// Incomplete reports whether some held instrument could not be priced
func (p PortfolioValue) Incomplete() bool { return p.Gaps > 0 }

// Value emits one record per position day. Prices are taken from the
// resolved series; days past its end carry its last price forward, days
// before its start have no price.
func Value(pos *position.Series, prices *pricing.Series) []Record {
	records := make([]Record, 0, pos.Len())
	for i := 0; i < pos.Len(); i++ {
		date := pos.Date(i)
		qty := pos.Quantity(i)
		price, ok := lookup(prices, date)

		rec := Record{
			InstrumentID: pos.InstrumentID,
			Date:         date,
			Quantity:     qty,
			Price:        price,
		}
		switch {
		case ok:
			rec.Value = qty * price
		case qty == 0:
			rec.Value = 0
		default:
			rec.Value = math.NaN()
			rec.Gap = true
		}
		records = append(records, rec)
	}
	return records
}

// lookup returns the price on date, forward-filling past the end of the
// series from its last slot. A NaN slot inside the series is taken as is:
// the resolver has already filled what can be filled.
func lookup(prices *pricing.Series, date time.Time) (float64, bool) {
	if prices == nil || prices.Len() == 0 {
		return math.NaN(), false
	}
	if date.After(prices.End()) {
		last := prices.Price(prices.Len() - 1)
		return last, !math.IsNaN(last)
	}
	return prices.At(date)
}

// Gaps returns the records flagged as unresolved price gaps
func Gaps(records []Record) []Record {
	var out []Record
	for _, r := range records {
		if r.Gap {
			out = append(out, r)
		}
	}
	return out
}

// Aggregate sums per-day values across all instruments. It must only be
// called once every instrument's records are complete. Instruments with no
// record on a day contribute nothing to it.
func Aggregate(series ...[]Record) []PortfolioValue {
	totals := make(map[time.Time]*PortfolioValue)
	for _, records := range series {
		for _, r := range records {
			pv, ok := totals[r.Date]
			if !ok {
				pv = &PortfolioValue{Date: r.Date}
				totals[r.Date] = pv
			}
			if r.Gap {
				pv.Gaps++
				continue
			}
			pv.Value += r.Value
			pv.Instruments++
		}
	}

	out := make([]PortfolioValue, 0, len(totals))
	for _, pv := range totals {
		out = append(out, *pv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// Snapshot returns the record at the latest date, the instrument's current
// position.
func Snapshot(records []Record) (Record, bool) {
	if len(records) == 0 {
		return Record{}, false
	}
	latest := records[0]
	for _, r := range records[1:] {
		if r.Date.After(latest.Date) {
			latest = r
		}
	}
	return latest, true
}
