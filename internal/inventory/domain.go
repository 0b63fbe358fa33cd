package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harvest-erp/harvest/internal/shared"
)

// Status is the consumption state of a purchase lot, derived from its
// remaining quantity.
type Status string

const (
	// StatusUnused marks a lot nothing has been delivered from.
	StatusUnused Status = "UNUSED"
	// StatusPartial marks a partially delivered lot.
	StatusPartial Status = "PARTIAL"
	// StatusUsed marks an exhausted lot.
	StatusUsed Status = "USED"
)

// Health is the display label derived from a lot's expiry date.
type Health string

const (
	HealthExpired Health = "expired"
	HealthUrgent  Health = "urgent"
	HealthWarning Health = "warning"
	HealthGood    Health = "good"
)

// Healths lists every label in severity order.
var Healths = []Health{HealthExpired, HealthUrgent, HealthWarning, HealthGood}

// Thresholds configures the day limits of the urgent and warning labels.
type Thresholds struct {
	UrgentDays  int
	WarningDays int
}

// DefaultThresholds are used when no configuration is supplied.
var DefaultThresholds = Thresholds{UrgentDays: 3, WarningDays: 7}

// Lot is the ledger view of a purchase: how much was bought and how much is
// still available for delivery.
type Lot struct {
	PurchaseID        int64
	ProductName       string
	CategoryID        int64
	Unit              string
	Quantity          decimal.Decimal
	RemainingQuantity decimal.Decimal
	Status            Status
}

// Item is one row of the inventory view.
type Item struct {
	PurchaseID        int64           `json:"purchase_id"`
	ProductName       string          `json:"product_name"`
	CategoryID        int64           `json:"category_id"`
	CategoryName      string          `json:"category_name"`
	SupplierID        int64           `json:"supplier_id"`
	SupplierName      string          `json:"supplier_name"`
	Unit              string          `json:"unit"`
	Quantity          decimal.Decimal `json:"quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	Valuation         decimal.Decimal `json:"valuation"`
	PurchaseDate      time.Time       `json:"purchase_date"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
	DaysUntilExpiry   *int            `json:"days_until_expiry,omitempty"`
	Health            Health          `json:"health"`
	Status            Status          `json:"status"`
	NeedsReview       bool            `json:"needs_review"`
}

// Filter narrows the inventory view.
type Filter struct {
	Status      Status
	Health      Health
	CategoryID  int64
	SupplierID  int64
	IncludeUsed bool
	Search      string
	Limit       int
	Offset      int
}

// Summary aggregates the inventory view.
type Summary struct {
	LotCount       int             `json:"lot_count"`
	TotalValuation decimal.Decimal `json:"total_valuation"`
	ByHealth       map[Health]int  `json:"by_health"`
	ByStatus       map[Status]int  `json:"by_status"`
}

// ErrLotNotFound indicates the purchase lot does not exist.
var ErrLotNotFound = fmt.Errorf("purchase lot %w", shared.ErrNotFound)

// ErrInvalidQuantity indicates a non-positive ledger quantity.
var ErrInvalidQuantity = shared.NewValidationError("quantity", "must be greater than zero")

// InsufficientStockError reports a consume larger than the remaining quantity.
type InsufficientStockError struct {
	PurchaseID int64
	Requested  decimal.Decimal
	Available  decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("inventory: purchase %d has %s remaining, %s requested", e.PurchaseID, e.Available, e.Requested)
}

// Is makes InsufficientStockError match shared.ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == shared.ErrInsufficientStock
}

// IsInsufficientStock reports whether err was caused by a refused consume.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, shared.ErrInsufficientStock)
}
