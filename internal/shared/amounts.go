package shared

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Stored scales of quantity and money columns.
const (
	QuantityScale int32 = 3
	MoneyScale    int32 = 2
)

// CheckScale rejects values with more fractional digits than the column
// storing them keeps.
func CheckScale(field string, d decimal.Decimal, places int32) error {
	if d.Exponent() < -places && !d.Equal(d.Truncate(places)) {
		return NewValidationError(field, fmt.Sprintf("must have at most %d decimal places", places))
	}
	return nil
}

// LineAmount is quantity × unit price rounded to the money scale, half away
// from zero like PostgreSQL numeric rounding.
func LineAmount(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return quantity.Mul(unitPrice).Round(MoneyScale)
}
