package suppliers

import "time"

// Supplier is a produce vendor purchases are bought from.
type Supplier struct {
	ID                 int64     `json:"id"`
	CompanyName        string    `json:"company_name"`
	ContactPerson      string    `json:"contact_person"`
	Phone              string    `json:"phone"`
	Address            string    `json:"address"`
	PaymentTerms       string    `json:"payment_terms"`
	DeliveryConditions string    `json:"delivery_conditions"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Input carries the editable supplier fields.
type Input struct {
	CompanyName        string `json:"company_name" validate:"required,max=200"`
	ContactPerson      string `json:"contact_person" validate:"max=100"`
	Phone              string `json:"phone" validate:"max=40"`
	Address            string `json:"address" validate:"max=500"`
	PaymentTerms       string `json:"payment_terms" validate:"max=200"`
	DeliveryConditions string `json:"delivery_conditions" validate:"max=500"`
}
