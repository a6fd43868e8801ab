// Package manual serves hand-maintained price tables for instruments that
// no exchange feed covers. Each instrument lives in <dir>/<id>.csv with a
// Date,Price header.
package manual

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/newthinker/tally/internal/core"
	"github.com/newthinker/tally/internal/storage/archive"
)

// Source reads override prices through an archive.Storage
type Source struct {
	store archive.Storage
	dir   string
}

// New creates a manual source rooted at dir inside store
func New(store archive.Storage, dir string) *Source {
	return &Source{store: store, dir: dir}
}

func (s *Source) Name() string {
	return "manual"
}

// History returns the override rows inside [start, end]. A zero start
// returns every row up to end. A missing file means the instrument has no
// overrides.
func (s *Source) History(ctx context.Context, instrumentID string, start, end time.Time) ([]core.PricePoint, error) {
	if instrumentID == "" || strings.ContainsAny(instrumentID, `/\`) {
		return nil, fmt.Errorf("invalid instrument id %q", instrumentID)
	}
	data, err := s.store.Read(ctx, path.Join(s.dir, instrumentID+".csv"))
	if errors.Is(err, archive.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}

	points, err := parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", instrumentID, err)
	}

	start, end = core.Normalize(start), core.Normalize(end)
	out := points[:0]
	for _, p := range points {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func parse(r io.Reader) ([]core.PricePoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	dateCol, priceCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "date":
			dateCol = i
		case "price", "close", "nav":
			priceCol = i
		}
	}
	if dateCol < 0 || priceCol < 0 {
		return nil, fmt.Errorf("header must name date and price columns, got %v", header)
	}

	var points []core.PricePoint
	for row := 1; ; row++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", row, err)
		}
		if dateCol >= len(fields) || priceCol >= len(fields) {
			continue
		}
		date, err := core.ParseDate(fields[dateCol])
		if err != nil {
			continue
		}
		price, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(fields[priceCol]), ",", ""), 64)
		if err != nil {
			continue
		}
		points = append(points, core.PricePoint{Date: date, Price: price})
	}
	return points, nil
}
