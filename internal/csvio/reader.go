// Package csvio reads CSV extracts into raw tabular records. It is the
// tabular-data collaborator for the core pipeline: the normalizer only ever
// sees an ordered list of (column, value) pairs per row.
package csvio

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charted-solutions/loanrisk/internal/model"
)

// Reader parses CSV input into a model.Table.
type Reader struct{}

// NewReader creates a new CSV reader.
func NewReader() *Reader {
	return &Reader{}
}

// Read parses CSV content. The first row is the header; every following row
// becomes a RawRecord. Ragged rows are padded or truncated to the header
// width with a warning rather than failing the whole file, since SIS
// exports routinely carry trailing-comma damage.
func (r *Reader) Read(ctx context.Context, src io.Reader) (model.Table, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return model.Table{}, fmt.Errorf("input is empty")
	}
	if err != nil {
		return model.Table{}, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	table := model.Table{Headers: header}
	rowNum := 1
	for {
		if err := ctx.Err(); err != nil {
			return model.Table{}, err
		}

		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.Table{}, fmt.Errorf("failed to read row %d: %w", rowNum+1, err)
		}
		rowNum++

		if len(row) != len(header) {
			slog.Warn("Row width does not match header; adjusting",
				"row", rowNum,
				"cells", len(row),
				"columns", len(header))
			row = fitRow(row, len(header))
		}

		rec := make(model.RawRecord, len(header))
		for i, col := range header {
			rec[i] = model.RawCell{Column: col, Value: row[i]}
		}
		table.Rows = append(table.Rows, rec)
	}

	return table, nil
}

// fitRow pads or truncates a row to the expected width.
func fitRow(row []string, width int) []string {
	if len(row) > width {
		return row[:width]
	}
	for len(row) < width {
		row = append(row, "")
	}
	return row
}
