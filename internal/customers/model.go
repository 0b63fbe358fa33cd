package customers

import "time"

// BillingCycle controls how often a customer is invoiced.
type BillingCycle string

const (
	BillingMonthly   BillingCycle = "monthly"
	BillingWeekly    BillingCycle = "weekly"
	BillingImmediate BillingCycle = "immediate"
)

// PaymentTerms is the due-date rule applied to invoices.
type PaymentTerms string

const (
	TermsImmediate  PaymentTerms = "immediate"
	Terms7Days      PaymentTerms = "7days"
	Terms15Days     PaymentTerms = "15days"
	Terms30Days     PaymentTerms = "30days"
	Terms60Days     PaymentTerms = "60days"
	TermsEndOfMonth PaymentTerms = "endofmonth"
)

// IsValid reports whether t is a known payment term.
func (t PaymentTerms) IsValid() bool {
	switch t {
	case TermsImmediate, Terms7Days, Terms15Days, Terms30Days, Terms60Days, TermsEndOfMonth:
		return true
	}
	return false
}

// IsValid reports whether c is a known billing cycle.
func (c BillingCycle) IsValid() bool {
	return c == BillingMonthly || c == BillingWeekly || c == BillingImmediate
}

type Customer struct {
	ID                        int64        `json:"id"`
	CompanyName               string       `json:"company_name"`
	ContactPerson             string       `json:"contact_person"`
	Phone                     string       `json:"phone"`
	Email                     string       `json:"email"`
	DeliveryAddress           string       `json:"delivery_address"`
	BillingAddress            string       `json:"billing_address"`
	BillingCycle              BillingCycle `json:"billing_cycle"`
	BillingDay                int          `json:"billing_day"`
	PaymentTerms              PaymentTerms `json:"payment_terms"`
	InvoiceRegistrationNumber string       `json:"invoice_registration_number"`
	BillingCustomerID         *int64       `json:"billing_customer_id,omitempty"`
	Notes                     string       `json:"notes"`
	CreatedAt                 time.Time    `json:"created_at"`
	UpdatedAt                 time.Time    `json:"updated_at"`
}

// BillTo returns the customer id invoices for c are addressed to.
func (c Customer) BillTo() int64 {
	if c.BillingCustomerID != nil {
		return *c.BillingCustomerID
	}
	return c.ID
}
