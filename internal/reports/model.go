package reports

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/harvest-erp/harvest/internal/shared"
)

// Range is an inclusive span of whole months.
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Months lists the YYYY-MM periods covered by r in order.
func (r Range) Months() []string {
	var out []string
	for m := time.Date(r.From.Year(), r.From.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(r.To); m = m.AddDate(0, 1, 0) {
		out = append(out, shared.Period(m))
	}
	return out
}

func (r Range) key() string {
	return shared.Period(r.From) + "_" + shared.Period(r.To)
}

// MonthlyRow compares purchases and deliveries of one month.
type MonthlyRow struct {
	Period         string          `json:"period"`
	PurchaseAmount decimal.Decimal `json:"purchase_amount"`
	DeliveryAmount decimal.Decimal `json:"delivery_amount"`
	Profit         decimal.Decimal `json:"profit"`
	ProfitRate     decimal.Decimal `json:"profit_rate"`
}

// CategoryRow is the delivered amount of one category.
type CategoryRow struct {
	CategoryID   *int64          `json:"category_id,omitempty"`
	CategoryName string          `json:"category_name"`
	Amount       decimal.Decimal `json:"amount"`
	Percentage   decimal.Decimal `json:"percentage"`
}

// SupplierRow is the purchase volume of one supplier.
type SupplierRow struct {
	SupplierID     int64           `json:"supplier_id"`
	SupplierName   string          `json:"supplier_name"`
	PurchaseAmount decimal.Decimal `json:"purchase_amount"`
	PurchaseCount  int             `json:"purchase_count"`
}

// TrendPoint is the profit rate of one month.
type TrendPoint struct {
	Period     string          `json:"period"`
	ProfitRate decimal.Decimal `json:"profit_rate"`
}

// Totals sums the monthly rows of a range.
type Totals struct {
	PurchaseAmount decimal.Decimal `json:"purchase_amount"`
	DeliveryAmount decimal.Decimal `json:"delivery_amount"`
	Profit         decimal.Decimal `json:"profit"`
	ProfitRate     decimal.Decimal `json:"profit_rate"`
}

// Dashboard bundles every rollup of a range.
type Dashboard struct {
	Range      Range         `json:"range"`
	Totals     Totals        `json:"totals"`
	Monthly    []MonthlyRow  `json:"monthly"`
	Categories []CategoryRow `json:"categories"`
	Suppliers  []SupplierRow `json:"suppliers"`
}

// CategoryAmount is a raw category total.
type CategoryAmount struct {
	CategoryID   *int64
	CategoryName string
	Amount       decimal.Decimal
}
