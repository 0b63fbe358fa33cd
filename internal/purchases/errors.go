package purchases

import (
	"fmt"

	"github.com/harvest-erp/harvest/internal/shared"
)

var (
	ErrNotFound = fmt.Errorf("purchase %w", shared.ErrNotFound)
	// ErrInUse indicates delivery items are linked to the purchase.
	ErrInUse = fmt.Errorf("purchase is linked to deliveries: %w", shared.ErrInUse)
	// ErrUnknownReference indicates the category or supplier does not exist.
	ErrUnknownReference = shared.NewValidationError("reference", "category or supplier does not exist")
)
