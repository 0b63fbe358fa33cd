package purchases

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/harvest-erp/harvest/internal/inventory"
)

// Purchase is a lot of produce bought from a supplier. Deliveries draw down
// RemainingQuantity through the inventory ledger.
type Purchase struct {
	ID                int64            `json:"id"`
	ProductName       string           `json:"product_name"`
	CategoryID        int64            `json:"category_id"`
	SupplierID        int64            `json:"supplier_id"`
	Quantity          decimal.Decimal  `json:"quantity"`
	Unit              string           `json:"unit"`
	UnitPrice         decimal.Decimal  `json:"unit_price"`
	Price             decimal.Decimal  `json:"price"`
	PurchaseDate      time.Time        `json:"purchase_date"`
	ExpiryDate        *time.Time       `json:"expiry_date,omitempty"`
	RemainingQuantity decimal.Decimal  `json:"remaining_quantity"`
	Status            inventory.Status `json:"status"`
	NeedsReview       bool             `json:"needs_review"`
	Notes             string           `json:"notes"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Input carries the editable purchase fields. Dates use YYYY-MM-DD.
type Input struct {
	ProductName  string          `json:"product_name" validate:"required,max=200"`
	CategoryID   int64           `json:"category_id" validate:"required,gt=0"`
	SupplierID   int64           `json:"supplier_id" validate:"required,gt=0"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit" validate:"required,max=20"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	PurchaseDate string          `json:"purchase_date" validate:"required"`
	ExpiryDate   string          `json:"expiry_date"`
	Notes        string          `json:"notes"`
}

// ListFilter narrows purchase listings.
type ListFilter struct {
	CategoryID  int64
	SupplierID  int64
	Status      inventory.Status
	NeedsReview *bool
	From        *time.Time
	To          *time.Time
	Search      string
	SortBy      string
	Descending  bool
	Limit       int
	Offset      int
}
