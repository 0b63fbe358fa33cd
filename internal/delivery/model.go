package delivery

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a delivery.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
	// StatusError marks a delivery whose document export failed and awaits an
	// operator retry.
	StatusError    Status = "ERROR"
	StatusInvoiced Status = "INVOICED"
)

// Type distinguishes regular deliveries from return notes.
type Type string

const (
	TypeNormal Type = "NORMAL"
	TypeReturn Type = "RETURN"
)

// Mode records how the delivery's lines were entered.
type Mode string

const (
	// ModeNormal lines are all drawn from purchase lots.
	ModeNormal Mode = "NORMAL"
	// ModeDirect lines are entered by hand and may be linked to lots later.
	ModeDirect Mode = "DIRECT"
	// ModeReturn lines describe returned goods; stock is never restored.
	ModeReturn Mode = "RETURN"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	return m == ModeNormal || m == ModeDirect || m == ModeReturn
}

// TaxRate is the consumption tax percentage of a line.
type TaxRate int

const (
	TaxReduced  TaxRate = 8
	TaxStandard TaxRate = 10
)

// IsValid reports whether r is one of the two supported rates.
func (r TaxRate) IsValid() bool {
	return r == TaxReduced || r == TaxStandard
}

// Delivery is a shipment to a customer, or a return note when Type is RETURN.
// TotalAmount is always the positive sum of item amounts.
type Delivery struct {
	ID              int64           `json:"id"`
	CustomerID      int64           `json:"customer_id"`
	CustomerName    string          `json:"customer_name,omitempty"`
	DeliveryDate    time.Time       `json:"delivery_date"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          Status          `json:"status"`
	Type            Type            `json:"type"`
	Mode            Mode            `json:"mode"`
	InvoiceID       *int64          `json:"invoice_id,omitempty"`
	GoogleSheetID   *string         `json:"google_sheet_id,omitempty"`
	GoogleSheetURL  *string         `json:"google_sheet_url,omitempty"`
	LegacySlipID    *string         `json:"legacy_slip_id,omitempty"`
	LegacyInvoiceID *string         `json:"legacy_invoice_id,omitempty"`
	Notes           string          `json:"notes"`
	CreatedBy       int64           `json:"created_by"`
	Items           []Item          `json:"items"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsInvoiced reports whether an invoice, current or legacy, claims d.
func (d Delivery) IsInvoiced() bool {
	return d.InvoiceID != nil || d.Status == StatusInvoiced || (d.LegacyInvoiceID != nil && *d.LegacyInvoiceID != "")
}

// Lines returns the items as typed lines.
func (d Delivery) Lines() []Line {
	lines := make([]Line, 0, len(d.Items))
	for _, it := range d.Items {
		lines = append(lines, it.Line())
	}
	return lines
}

// Item is the stored form of a delivery line.
type Item struct {
	ID                  int64           `json:"id"`
	DeliveryID          int64           `json:"delivery_id"`
	PurchaseID          *int64          `json:"purchase_id,omitempty"`
	ReferencePurchaseID *int64          `json:"reference_purchase_id,omitempty"`
	ProductName         string          `json:"product_name"`
	CategoryID          *int64          `json:"category_id,omitempty"`
	Unit                string          `json:"unit"`
	Quantity            decimal.Decimal `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	Amount              decimal.Decimal `json:"amount"`
	TaxRate             TaxRate         `json:"tax_rate"`
}

// ListFilter narrows delivery listings.
type ListFilter struct {
	CustomerID int64
	Status     Status
	Type       Type
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}
