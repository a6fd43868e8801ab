package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/newthinker/tally/internal/core"
)

// Source is a daily price provider. History may return a partial or empty
// series; an error means the call itself failed.
type Source interface {
	Name() string
	History(ctx context.Context, instrumentID string, start, end time.Time) ([]core.PricePoint, error)
}

// FetchRecorder receives the outcome of every source call
type FetchRecorder interface {
	RecordFetch(source, status string)
}

// Fetch outcome labels
const (
	FetchOK          = "ok"
	FetchEmpty       = "empty"
	FetchRetry       = "retry"
	FetchUnavailable = "unavailable"
)

// GapPolicy decides what a manual override series reports for days after
// its last known price.
type GapPolicy int

const (
	// GapZero marks days past the last known price as 0 ("no further data")
	GapZero GapPolicy = iota
	// GapUnresolved leaves days past the last known price unresolved
	GapUnresolved
)

func (p GapPolicy) String() string {
	switch p {
	case GapZero:
		return "zero"
	case GapUnresolved:
		return "unresolved"
	default:
		return fmt.Sprintf("GapPolicy(%d)", int(p))
	}
}

// ParseGapPolicy maps a config value to a GapPolicy. Empty means GapZero.
func ParseGapPolicy(s string) (GapPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zero":
		return GapZero, nil
	case "unresolved", "nan":
		return GapUnresolved, nil
	default:
		return GapZero, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown gap policy %q", s))
	}
}

// Retry is a fixed retry budget with a constant delay between attempts
type Retry struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetry matches the default pool configuration
func DefaultRetry() Retry {
	return Retry{Attempts: 3, Backoff: time.Second}
}

// StaticSource serves a fixed set of points per instrument
type StaticSource struct {
	SourceName string
	Points     map[string][]core.PricePoint
}

func (s *StaticSource) Name() string { return s.SourceName }

func (s *StaticSource) History(ctx context.Context, instrumentID string, start, end time.Time) ([]core.PricePoint, error) {
	var out []core.PricePoint
	for _, p := range s.Points[instrumentID] {
		d := core.Normalize(p.Date)
		if d.Before(core.Normalize(start)) || d.After(core.Normalize(end)) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
