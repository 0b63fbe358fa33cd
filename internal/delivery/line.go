package delivery

import (
	"github.com/shopspring/decimal"

	"github.com/harvest-erp/harvest/internal/shared"
)

// Line is a delivery line: either a LinkedLine drawn from a purchase lot or a
// FreeformLine entered by hand.
type Line interface {
	Amount() decimal.Decimal
	Rate() TaxRate
	isLine()
}

// LinkedLine consumes Quantity from the purchase lot PurchaseID.
type LinkedLine struct {
	PurchaseID int64
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
	TaxRate    TaxRate
}

// FreeformLine carries its own product description and never touches stock.
// ReferencePurchaseID only records where returned goods came from.
type FreeformLine struct {
	ProductName         string
	CategoryID          *int64
	Unit                string
	Quantity            decimal.Decimal
	UnitPrice           decimal.Decimal
	TaxRate             TaxRate
	ReferencePurchaseID *int64
}

func (l LinkedLine) Amount() decimal.Decimal { return shared.LineAmount(l.Quantity, l.UnitPrice) }
func (l LinkedLine) Rate() TaxRate { return l.TaxRate }
func (LinkedLine) isLine() {}

func (l FreeformLine) Amount() decimal.Decimal { return shared.LineAmount(l.Quantity, l.UnitPrice) }
func (l FreeformLine) Rate() TaxRate { return l.TaxRate }
func (FreeformLine) isLine() {}

// Line maps a stored item back to its variant.
func (it Item) Line() Line {
	if it.PurchaseID != nil {
		return LinkedLine{PurchaseID: *it.PurchaseID, Quantity: it.Quantity, UnitPrice: it.UnitPrice, TaxRate: it.TaxRate}
	}
	return FreeformLine{
		ProductName:         it.ProductName,
		CategoryID:          it.CategoryID,
		Unit:                it.Unit,
		Quantity:            it.Quantity,
		UnitPrice:           it.UnitPrice,
		TaxRate:             it.TaxRate,
		ReferencePurchaseID: it.ReferencePurchaseID,
	}
}

// Total sums the rounded line amounts, so it always equals the sum of the
// stored item amounts.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount())
	}
	return total
}

// linkedQuantities sums linked quantities per purchase lot.
func linkedQuantities(lines []Line) map[int64]decimal.Decimal {
	out := make(map[int64]decimal.Decimal)
	for _, l := range lines {
		if linked, ok := l.(LinkedLine); ok {
			out[linked.PurchaseID] = out[linked.PurchaseID].Add(linked.Quantity)
		}
	}
	return out
}
