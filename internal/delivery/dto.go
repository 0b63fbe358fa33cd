package delivery

import "github.com/shopspring/decimal"

// ItemRequest is one line of a create or update request. PurchaseID links
// the line to a lot; without it the line is free-form.
type ItemRequest struct {
	PurchaseID          *int64          `json:"purchase_id,omitempty" validate:"omitempty,gt=0"`
	ReferencePurchaseID *int64          `json:"reference_purchase_id,omitempty" validate:"omitempty,gt=0"`
	ProductName         string          `json:"product_name" validate:"max=200"`
	CategoryID          *int64          `json:"category_id,omitempty" validate:"omitempty,gt=0"`
	Unit                string          `json:"unit" validate:"max=20"`
	Quantity            decimal.Decimal `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	TaxRate             TaxRate         `json:"tax_rate" validate:"omitempty,oneof=8 10"`
}

// CreateRequest creates a delivery. Status may be PENDING; anything else
// starts as DELIVERED.
type CreateRequest struct {
	CustomerID   int64         `json:"customer_id" validate:"required,gt=0"`
	DeliveryDate string        `json:"delivery_date" validate:"required"`
	Mode         Mode          `json:"mode" validate:"omitempty,oneof=NORMAL DIRECT RETURN"`
	Status       Status        `json:"status" validate:"omitempty,oneof=PENDING DELIVERED"`
	Notes        string        `json:"notes"`
	Items        []ItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateRequest patches a delivery. Items, when present, replace every line.
type UpdateRequest struct {
	CustomerID   *int64         `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	DeliveryDate *string        `json:"delivery_date,omitempty"`
	Notes        *string        `json:"notes,omitempty"`
	Items        *[]ItemRequest `json:"items,omitempty" validate:"omitempty,min=1,dive"`
}

// StatusRequest moves a delivery between PENDING and DELIVERED.
type StatusRequest struct {
	Status Status `json:"status" validate:"required,oneof=PENDING DELIVERED"`
}

// LinkRequest links a free-form line to a purchase lot.
type LinkRequest struct {
	PurchaseID int64 `json:"purchase_id" validate:"required,gt=0"`
}
