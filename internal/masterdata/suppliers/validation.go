package suppliers

import (
	"strings"

	"github.com/harvest-erp/harvest/internal/shared"
)

func normalize(in Input) (Input, error) {
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.ContactPerson = strings.TrimSpace(in.ContactPerson)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Address = strings.TrimSpace(in.Address)
	in.PaymentTerms = strings.TrimSpace(in.PaymentTerms)
	in.DeliveryConditions = strings.TrimSpace(in.DeliveryConditions)
	if in.CompanyName == "" {
		return Input{}, shared.NewValidationError("company_name", "is required")
	}
	return in, nil
}
