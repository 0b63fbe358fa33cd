package invoicing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/harvest-erp/harvest/internal/customers"
	"github.com/harvest-erp/harvest/internal/delivery"
)

// Status enumerates invoice states.
type Status string

const (
	StatusIssued Status = "ISSUED"
	StatusVoid   Status = "VOID"
)

// TaxLine is the subtotal and consumption tax of one tax rate.
type TaxLine struct {
	Rate     delivery.TaxRate `json:"rate"`
	Subtotal decimal.Decimal  `json:"subtotal"`
	Tax      decimal.Decimal  `json:"tax"`
}

// Invoice claims a customer's delivered deliveries of one month.
type Invoice struct {
	ID             int64           `json:"id"`
	Number         string          `json:"number"`
	CustomerID     int64           `json:"customer_id"`
	CustomerName   string          `json:"customer_name,omitempty"`
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	TaxLines       []TaxLine       `json:"tax_lines"`
	TaxTotal       decimal.Decimal `json:"tax_total"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
	DeliveryIDs    []int64         `json:"delivery_ids"`
	Status         Status          `json:"status"`
	IssueDate      time.Time       `json:"issue_date"`
	DueDate        time.Time       `json:"due_date"`
	GoogleSheetID  *string         `json:"google_sheet_id,omitempty"`
	GoogleSheetURL *string         `json:"google_sheet_url,omitempty"`
	CreatedBy      int64           `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	VoidedAt       *time.Time      `json:"voided_at,omitempty"`
}

// CustomerInfo carries the billing settings of a customer.
type CustomerInfo struct {
	ID           int64                  `json:"id"`
	Name         string                 `json:"name"`
	BillingCycle customers.BillingCycle `json:"billing_cycle"`
	BillingDay   int                    `json:"billing_day"`
	PaymentTerms customers.PaymentTerms `json:"payment_terms"`
}

// PendingDelivery is a DELIVERED delivery no invoice has claimed yet, with its
// item amounts summed per tax rate.
type PendingDelivery struct {
	ID           int64
	Customer     CustomerInfo
	DeliveryDate time.Time
	Type         delivery.Type
	TotalAmount  decimal.Decimal
	ByRate       map[delivery.TaxRate]decimal.Decimal
}

// CustomerSummary is the invoice preview of one customer for a month.
type CustomerSummary struct {
	CustomerInfo
	DeliveryCount int             `json:"delivery_count"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TaxLines      []TaxLine       `json:"tax_lines"`
	TaxTotal      decimal.Decimal `json:"tax_total"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	HasInvoice    bool            `json:"has_invoice"`
	InvoiceID     *int64          `json:"invoice_id,omitempty"`
	DeliveryIDs   []int64         `json:"delivery_ids"`
}

// Summary is the invoice preview of a month.
type Summary struct {
	Year      int               `json:"year"`
	Month     int               `json:"month"`
	Customers []CustomerSummary `json:"customers"`
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	Year       int
	Month      int
	CustomerID int64
	Status     Status
	Limit      int
	Offset     int
}
