package documents

import (
	"fmt"
	"sort"

	"google.golang.org/api/sheets/v4"
)

// Layout places fields on a template sheet. Cells maps header fields to A1
// cells; line fields go to LineColumns starting at LineStartRow.
type Layout struct {
	Sheet        string
	Cells        map[string]string
	LineStartRow int
	LineColumns  map[string]string
	MaxLines     int
}

// LineField returns the field key of column name on line n (1-based).
func LineField(n int, name string) string {
	return fmt.Sprintf("lines.%d.%s", n, name)
}

// DeliveryLayout matches the delivery slip template.
var DeliveryLayout = Layout{
	Sheet: "Slip",
	Cells: map[string]string{
		"document_number": "F2",
		"document_date":   "F3",
		"customer_name":   "A5",
		"note":            "A8",
		"subtotal_8":      "F32",
		"tax_8":           "G32",
		"subtotal_10":     "F33",
		"tax_10":          "G33",
		"total_amount":    "F35",
		"tax_total":       "F36",
		"grand_total":     "F37",
	},
	LineStartRow: 11,
	LineColumns: map[string]string{
		"product_name": "A",
		"quantity":     "C",
		"unit":         "D",
		"unit_price":   "E",
		"amount":       "F",
		"tax_rate":     "G",
	},
	MaxLines: 20,
}

// InvoiceLayout matches the monthly invoice template; each line is one
// delivery.
var InvoiceLayout = Layout{
	Sheet: "Invoice",
	Cells: map[string]string{
		"document_number":     "F2",
		"document_date":       "F3",
		"due_date":            "F4",
		"customer_name":       "A5",
		"billing_period":      "A7",
		"registration_number": "F6",
		"subtotal_8":          "F42",
		"tax_8":               "G42",
		"subtotal_10":         "F43",
		"tax_10":              "G43",
		"total_amount":        "F45",
		"tax_total":           "F46",
		"grand_total":         "F47",
	},
	LineStartRow: 11,
	LineColumns: map[string]string{
		"delivery_date":   "A",
		"delivery_number": "B",
		"kind":            "D",
		"amount":          "F",
	},
	MaxLines: 30,
}

// ValueRanges converts fields into Sheets value ranges, ordered by range.
// Fields without a position are ignored; lines beyond MaxLines are dropped.
func (l Layout) ValueRanges(fields FieldMap) []*sheets.ValueRange {
	var out []*sheets.ValueRange
	add := func(cell, value string) {
		out = append(out, &sheets.ValueRange{
			Range:  fmt.Sprintf("'%s'!%s", l.Sheet, cell),
			Values: [][]interface{}{{value}},
		})
	}
	for field, cell := range l.Cells {
		if value, ok := fields[field]; ok {
			add(cell, value)
		}
	}
	for n := 1; n <= l.MaxLines; n++ {
		for name, column := range l.LineColumns {
			if value, ok := fields[LineField(n, name)]; ok {
				add(fmt.Sprintf("%s%d", column, l.LineStartRow+n-1), value)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Range < out[j].Range })
	return out
}
