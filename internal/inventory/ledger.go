package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LotStore is the transactional storage the ledger mutates. LockLot must hold
// a row lock until the surrounding transaction ends.
type LotStore interface {
	LockLot(ctx context.Context, purchaseID int64) (Lot, error)
	SaveRemaining(ctx context.Context, purchaseID int64, remaining decimal.Decimal, status Status) error
}

// Consume subtracts qty from the lot's remaining quantity. It fails with an
// *InsufficientStockError, leaving the lot untouched, when qty exceeds it.
func Consume(ctx context.Context, store LotStore, purchaseID int64, qty decimal.Decimal) (Lot, error) {
	if !qty.IsPositive() {
		return Lot{}, ErrInvalidQuantity
	}
	lot, err := store.LockLot(ctx, purchaseID)
	if err != nil {
		return Lot{}, err
	}
	if qty.GreaterThan(lot.RemainingQuantity) {
		return Lot{}, &InsufficientStockError{PurchaseID: purchaseID, Requested: qty, Available: lot.RemainingQuantity}
	}
	lot.RemainingQuantity = lot.RemainingQuantity.Sub(qty)
	lot.Status = DeriveStatus(lot.RemainingQuantity, lot.Quantity)
	if err := store.SaveRemaining(ctx, purchaseID, lot.RemainingQuantity, lot.Status); err != nil {
		return Lot{}, err
	}
	return lot, nil
}

// Restore adds qty back to the lot, capped at the purchased quantity.
func Restore(ctx context.Context, store LotStore, purchaseID int64, qty decimal.Decimal) (Lot, error) {
	if !qty.IsPositive() {
		return Lot{}, ErrInvalidQuantity
	}
	lot, err := store.LockLot(ctx, purchaseID)
	if err != nil {
		return Lot{}, err
	}
	lot.RemainingQuantity = decimal.Min(lot.Quantity, lot.RemainingQuantity.Add(qty))
	lot.Status = DeriveStatus(lot.RemainingQuantity, lot.Quantity)
	if err := store.SaveRemaining(ctx, purchaseID, lot.RemainingQuantity, lot.Status); err != nil {
		return Lot{}, err
	}
	return lot, nil
}

// DeriveStatus maps a remaining quantity to its lot status. A zero-quantity
// lot counts as used.
func DeriveStatus(remaining, quantity decimal.Decimal) Status {
	switch {
	case !remaining.IsPositive() || !quantity.IsPositive():
		return StatusUsed
	case remaining.GreaterThanOrEqual(quantity):
		return StatusUnused
	default:
		return StatusPartial
	}
}

// DaysUntil counts whole calendar days from today to expiry. Negative
// values mean the lot expired.
func DaysUntil(expiry, today time.Time) int {
	return int(dateOnly(expiry).Sub(dateOnly(today)).Hours() / 24)
}

// DeriveHealth labels a lot by how close its expiry date is. Lots without
// an expiry date are always good.
func DeriveHealth(expiry *time.Time, today time.Time, th Thresholds) Health {
	if expiry == nil {
		return HealthGood
	}
	days := DaysUntil(*expiry, today)
	switch {
	case days < 0:
		return HealthExpired
	case days <= th.UrgentDays:
		return HealthUrgent
	case days <= th.WarningDays:
		return HealthWarning
	default:
		return HealthGood
	}
}

// Reconcile recomputes the remaining quantity after the purchased quantity
// of a lot is edited, keeping what was already delivered consumed. When the
// result has to be clamped into [0, newQty] the lot needs review.
func Reconcile(oldQty, oldRemaining, newQty decimal.Decimal) (decimal.Decimal, bool) {
	consumed := oldQty.Sub(oldRemaining)
	remaining := newQty.Sub(consumed)
	clamped := decimal.Max(decimal.Zero, decimal.Min(newQty, remaining))
	return clamped, !clamped.Equal(remaining)
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
