package core

import (
	"fmt"
	"strings"
	"time"
)

// DateFormat is the canonical on-disk date layout
const DateFormat = "2006-01-02"

// Day is one calendar day
const Day = 24 * time.Hour

// dateLayouts are tried in order by ParseDate. Transaction files are
// recorded day-first.
var dateLayouts = []string{
	DateFormat,
	"02-01-2006",
	"02/01/2006",
	"2/1/2006",
	"2-1-2006",
	"2006/01/02",
	time.RFC3339,
}

// PricePoint is a single price observation returned by a source
type PricePoint struct {
	Date  time.Time
	Price float64
}

// Normalize truncates a time to UTC midnight of its calendar day
func Normalize(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar day in UTC
func Today() time.Time {
	return Normalize(time.Now())
}

// AddDays returns the day n days after t
func AddDays(t time.Time, n int) time.Time {
	return Normalize(t).AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days from start to end.
// Negative when end precedes start.
func DaysBetween(start, end time.Time) int {
	return int(Normalize(end).Sub(Normalize(start)) / Day)
}

// DaysInRange returns the number of calendar days in [start, end], 0 if empty
func DaysInRange(start, end time.Time) int {
	n := DaysBetween(start, end) + 1
	if n < 0 {
		return 0
	}
	return n
}

// ParseDate parses a date in any of the accepted layouts
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Normalize(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", s)
}

// FormatDate renders a day in DateFormat
func FormatDate(t time.Time) string {
	return t.Format(DateFormat)
}
