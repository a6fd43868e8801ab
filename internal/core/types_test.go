package core

import (
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	in := time.Date(2024, 1, 5, 23, 45, 0, 0, loc)
	got := Normalize(in)
	want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Normalize = %v, want %v", got, want)
	}
}

func TestDaysInRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		end  time.Time
		want int
	}{
		{start, 1},
		{AddDays(start, 4), 5},
		{AddDays(start, 365), 366},
		{AddDays(start, -1), 0},
	}
	for _, tc := range tests {
		if got := DaysInRange(start, tc.end); got != tc.want {
			t.Errorf("DaysInRange(%s) = %d, want %d", FormatDate(tc.end), got, tc.want)
		}
	}
}

func TestDaysBetween_AcrossDST(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	if got := DaysBetween(start, end); got != 31 {
		t.Errorf("DaysBetween = %d, want 31", got)
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	inputs := []string{
		"2024-01-05",
		"05-01-2024",
		"05/01/2024",
		"5/1/2024",
		" 2024-01-05 ",
		"2024-01-05T10:00:00Z",
	}
	for _, in := range inputs {
		got, err := ParseDate(in)
		if err != nil {
			t.Errorf("ParseDate(%q) error: %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseDate(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2024-13-40"} {
		if _, err := ParseDate(in); err == nil {
			t.Errorf("ParseDate(%q) expected error", in)
		}
	}
}
