package delivery

import (
	"fmt"
	"strings"

	"github.com/harvest-erp/harvest/internal/shared"
)

// buildLines turns request items into typed lines for mode. Linked lines are
// required in NORMAL mode and forbidden in RETURN mode; DIRECT mode accepts
// them only when allowLinked is set, which is the case for edits of lines
// linked after creation.
func buildLines(mode Mode, reqs []ItemRequest, allowLinked bool) ([]Line, error) {
	if len(reqs) == 0 {
		return nil, shared.NewValidationError("items", "at least one item is required")
	}
	lines := make([]Line, 0, len(reqs))
	for i, req := range reqs {
		field := fmt.Sprintf("items[%d]", i)
		if !req.Quantity.IsPositive() {
			return nil, shared.NewValidationError(field+".quantity", "must be greater than zero")
		}
		if err := shared.CheckScale(field+".quantity", req.Quantity, shared.QuantityScale); err != nil {
			return nil, err
		}
		if req.UnitPrice.IsNegative() {
			return nil, shared.NewValidationError(field+".unit_price", "must not be negative")
		}
		if err := shared.CheckScale(field+".unit_price", req.UnitPrice, shared.MoneyScale); err != nil {
			return nil, err
		}
		rate := req.TaxRate
		if rate == 0 {
			rate = TaxReduced
		}
		if !rate.IsValid() {
			return nil, shared.NewValidationError(field+".tax_rate", "must be 8 or 10")
		}

		linked := req.PurchaseID != nil
		switch {
		case mode == ModeNormal && !linked:
			return nil, shared.NewValidationError(field+".purchase_id", "is required for NORMAL deliveries")
		case mode == ModeReturn && linked:
			return nil, shared.NewValidationError(field+".purchase_id", "use reference_purchase_id for RETURN deliveries")
		case mode == ModeDirect && linked && !allowLinked:
			return nil, shared.NewValidationError(field+".purchase_id", "DIRECT deliveries start with free-form lines")
		}

		if linked {
			lines = append(lines, LinkedLine{PurchaseID: *req.PurchaseID, Quantity: req.Quantity, UnitPrice: req.UnitPrice, TaxRate: rate})
			continue
		}
		name := strings.TrimSpace(req.ProductName)
		if name == "" {
			return nil, shared.NewValidationError(field+".product_name", "is required")
		}
		unit := strings.TrimSpace(req.Unit)
		if unit == "" {
			return nil, shared.NewValidationError(field+".unit", "is required")
		}
		lines = append(lines, FreeformLine{
			ProductName:         name,
			CategoryID:          req.CategoryID,
			Unit:                unit,
			Quantity:            req.Quantity,
			UnitPrice:           req.UnitPrice,
			TaxRate:             rate,
			ReferencePurchaseID: req.ReferencePurchaseID,
		})
	}
	return lines, nil
}

// typeFor returns the delivery type implied by mode.
func typeFor(mode Mode) Type {
	if mode == ModeReturn {
		return TypeReturn
	}
	return TypeNormal
}
