package ledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/newthinker/tally/internal/core"
	"github.com/newthinker/tally/internal/storage/archive"
)

// column aliases accepted in transaction files
var (
	instrumentColumns = []string{"symbol", "instrument_id", "instrument", "scheme"}
	dateColumns       = []string{"transaction date", "date"}
	quantityColumns   = []string{"total shares", "total_quantity_snapshot", "units", "quantity"}
)

// Load reads a transaction table from storage. Rows keep their file order
// as Seq. Rows with an unusable date or instrument are skipped and reported
// as joined ErrMalformedRecord errors; the rest of the file is still returned.
func Load(ctx context.Context, store archive.Storage, path string) ([]Record, error) {
	data, err := store.Read(ctx, path)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("reading %s: %w", path, err))
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes a transaction CSV with a header row
func Parse(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	idCol, dateCol, qtyCol := -1, -1, -1
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch {
		case slices.Contains(instrumentColumns, name):
			idCol = i
		case slices.Contains(dateColumns, name):
			dateCol = i
		case slices.Contains(quantityColumns, name):
			qtyCol = i
		}
	}
	if idCol < 0 || dateCol < 0 || qtyCol < 0 {
		return nil, core.WrapError(core.ErrMalformedRecord,
			fmt.Errorf("header must name instrument, date and quantity columns, got %v", header))
	}

	var records []Record
	var errs []error
	for row := 1; ; row++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return records, fmt.Errorf("reading row %d: %w", row, err)
		}
		id := field(fields, idCol)
		if id == "" {
			errs = append(errs, core.WrapError(core.ErrMalformedRecord, fmt.Errorf("row %d: missing instrument", row)))
			continue
		}
		date, err := core.ParseDate(field(fields, dateCol))
		if err != nil {
			errs = append(errs, core.WrapError(core.ErrMalformedRecord, fmt.Errorf("row %d: %w", row, err)))
			continue
		}
		records = append(records, Record{
			InstrumentID: id,
			Date:         date,
			Quantity:     field(fields, qtyCol),
			Seq:          row,
		})
	}
	return records, errors.Join(errs...)
}

func field(fields []string, i int) string {
	if i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}
