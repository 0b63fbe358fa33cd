package customers

type CreateCustomerRequest struct {
	CompanyName               string       `json:"company_name" validate:"required,max=200"`
	ContactPerson             string       `json:"contact_person" validate:"max=100"`
	Phone                     string       `json:"phone" validate:"max=40"`
	Email                     string       `json:"email" validate:"omitempty,email"`
	DeliveryAddress           string       `json:"delivery_address" validate:"max=500"`
	BillingAddress            string       `json:"billing_address" validate:"max=500"`
	BillingCycle              BillingCycle `json:"billing_cycle" validate:"omitempty,oneof=monthly weekly immediate"`
	BillingDay                int          `json:"billing_day" validate:"omitempty,min=1,max=31"`
	PaymentTerms              PaymentTerms `json:"payment_terms" validate:"omitempty,oneof=immediate 7days 15days 30days 60days endofmonth"`
	InvoiceRegistrationNumber string       `json:"invoice_registration_number" validate:"max=20"`
	BillingCustomerID         *int64       `json:"billing_customer_id,omitempty" validate:"omitempty,gt=0"`
	Notes                     string       `json:"notes"`
}

// UpdateCustomerRequest is a partial update. A billing_customer_id of 0
// removes the billing delegation.
type UpdateCustomerRequest struct {
	CompanyName               *string       `json:"company_name,omitempty" validate:"omitempty,max=200"`
	ContactPerson             *string       `json:"contact_person,omitempty" validate:"omitempty,max=100"`
	Phone                     *string       `json:"phone,omitempty" validate:"omitempty,max=40"`
	Email                     *string       `json:"email,omitempty" validate:"omitempty,email"`
	DeliveryAddress           *string       `json:"delivery_address,omitempty"`
	BillingAddress            *string       `json:"billing_address,omitempty"`
	BillingCycle              *BillingCycle `json:"billing_cycle,omitempty" validate:"omitempty,oneof=monthly weekly immediate"`
	BillingDay                *int          `json:"billing_day,omitempty" validate:"omitempty,min=1,max=31"`
	PaymentTerms              *PaymentTerms `json:"payment_terms,omitempty" validate:"omitempty,oneof=immediate 7days 15days 30days 60days endofmonth"`
	InvoiceRegistrationNumber *string       `json:"invoice_registration_number,omitempty" validate:"omitempty,max=20"`
	BillingCustomerID         *int64        `json:"billing_customer_id,omitempty" validate:"omitempty,gte=0"`
	Notes                     *string       `json:"notes,omitempty"`
}

type ListCustomersRequest struct {
	BillingCycle BillingCycle
	Search       string
	SortBy       string
	Descending   bool
	Limit        int
	Offset       int
}
