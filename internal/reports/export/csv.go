// Package export renders report tables as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"
)

// Table is a record set with a fixed column list.
type Table struct {
	Columns []string
	Rows    [][]string
}

// AddRow appends a row; it must have one value per column.
func (t *Table) AddRow(values ...string) {
	t.Rows = append(t.Rows, values)
}

// WriteCSV writes the header followed by every row. Fields are quoted only
// when they contain the delimiter, a quote or a line break.
func WriteCSV(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return err
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("export: row %d has %d fields, want %d", i+1, len(row), len(t.Columns))
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ServeCSV writes t as a downloadable attachment.
func ServeCSV(w http.ResponseWriter, filename string, t Table) error {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	return WriteCSV(w, t)
}

// Decimal formats an amount without exponent notation.
func Decimal(d decimal.Decimal) string {
	return d.String()
}
