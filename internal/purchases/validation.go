package purchases

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harvest-erp/harvest/internal/shared"
)

// fields is a validated Input.
type fields struct {
	ProductName  string
	CategoryID   int64
	SupplierID   int64
	Quantity     decimal.Decimal
	Unit         string
	UnitPrice    decimal.Decimal
	Price        decimal.Decimal
	PurchaseDate time.Time
	ExpiryDate   *time.Time
	Notes        string
}

func validateInput(in Input) (fields, error) {
	f := fields{
		ProductName: strings.TrimSpace(in.ProductName),
		CategoryID:  in.CategoryID,
		SupplierID:  in.SupplierID,
		Quantity:    in.Quantity,
		Unit:        strings.TrimSpace(in.Unit),
		UnitPrice:   in.UnitPrice,
		Notes:       in.Notes,
	}
	switch {
	case f.ProductName == "":
		return fields{}, shared.NewValidationError("product_name", "is required")
	case f.CategoryID <= 0:
		return fields{}, shared.NewValidationError("category_id", "is required")
	case f.SupplierID <= 0:
		return fields{}, shared.NewValidationError("supplier_id", "is required")
	case !f.Quantity.IsPositive():
		return fields{}, shared.NewValidationError("quantity", "must be greater than zero")
	case f.Unit == "":
		return fields{}, shared.NewValidationError("unit", "is required")
	case f.UnitPrice.IsNegative():
		return fields{}, shared.NewValidationError("unit_price", "must not be negative")
	}
	if err := shared.CheckScale("quantity", f.Quantity, shared.QuantityScale); err != nil {
		return fields{}, err
	}
	if err := shared.CheckScale("unit_price", f.UnitPrice, shared.MoneyScale); err != nil {
		return fields{}, err
	}
	purchased, err := shared.ParseDate(in.PurchaseDate)
	if err != nil {
		return fields{}, shared.NewValidationError("purchase_date", "must be a YYYY-MM-DD date")
	}
	f.PurchaseDate = purchased
	if strings.TrimSpace(in.ExpiryDate) != "" {
		expiry, err := shared.ParseDate(in.ExpiryDate)
		if err != nil {
			return fields{}, shared.NewValidationError("expiry_date", "must be a YYYY-MM-DD date")
		}
		if expiry.Before(purchased) {
			return fields{}, shared.NewValidationError("expiry_date", "must not be before purchase_date")
		}
		f.ExpiryDate = &expiry
	}
	f.Price = shared.LineAmount(f.Quantity, f.UnitPrice)
	return f, nil
}
