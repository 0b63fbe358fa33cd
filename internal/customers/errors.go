package customers

import (
	"fmt"

	"github.com/harvest-erp/harvest/internal/shared"
)

var (
	ErrNotFound = fmt.Errorf("customer %w", shared.ErrNotFound)
	// ErrInUse indicates deliveries, invoices or other customers still reference the customer.
	ErrInUse = fmt.Errorf("customer is referenced: %w", shared.ErrInUse)
)
