// Package ledger turns raw transaction snapshots into ordered, de-duplicated
// holdings per instrument.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/tally/internal/core"
)

// Record is one transaction row as it was recorded. Quantity is the raw
// "total held as of Date" cell, not a delta. Seq preserves file order.
type Record struct {
	InstrumentID string
	Date         time.Time
	Quantity     string
	Seq          int
}

// Entry is a normalized snapshot: one per date, in ascending date order
type Entry struct {
	Date     time.Time
	Quantity float64
}

// Normalize keeps the highest-Seq record for each date and returns the
// snapshots sorted by date. Records whose kept quantity cannot be parsed are
// dropped from the result and reported as joined ErrMalformedRecord errors;
// the remaining entries are still returned.
func Normalize(records []Record) ([]Entry, error) {
	latest := make(map[time.Time]Record, len(records))
	for _, r := range records {
		day := core.Normalize(r.Date)
		if prev, ok := latest[day]; ok && prev.Seq > r.Seq {
			continue
		}
		latest[day] = r
	}

	entries := make([]Entry, 0, len(latest))
	var errs []error
	for day, r := range latest {
		qty, err := parseQuantity(r.Quantity)
		if err != nil {
			errs = append(errs, core.WrapError(core.ErrMalformedRecord,
				fmt.Errorf("%s on %s (row %d): %w", r.InstrumentID, core.FormatDate(day), r.Seq, err)))
			continue
		}
		entries = append(entries, Entry{Date: day, Quantity: qty})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})
	return entries, errors.Join(errs...)
}

// Latest returns the most recent snapshot
func Latest(entries []Entry) (Entry, bool) {
	if len(entries) == 0 {
		return Entry{}, false
	}
	return entries[len(entries)-1], true
}

// GroupByInstrument splits records by instrument, preserving their order
func GroupByInstrument(records []Record) map[string][]Record {
	groups := make(map[string][]Record)
	for _, r := range records {
		groups[r.InstrumentID] = append(groups[r.InstrumentID], r)
	}
	return groups
}

// Instruments returns the distinct instrument IDs in first-seen order
func Instruments(records []Record) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, r := range records {
		if _, ok := seen[r.InstrumentID]; ok {
			continue
		}
		seen[r.InstrumentID] = struct{}{}
		ids = append(ids, r.InstrumentID)
	}
	return ids
}

func parseQuantity(raw string) (float64, error) {
	s := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if s == "" {
		return 0, fmt.Errorf("missing quantity")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric quantity %q", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite quantity %q", raw)
	}
	return v, nil
}
