package suppliers

import (
	"fmt"

	"github.com/harvest-erp/harvest/internal/shared"
)

var (
	// ErrNotFound indicates the supplier does not exist.
	ErrNotFound = fmt.Errorf("supplier %w", shared.ErrNotFound)
	// ErrInUse indicates purchases still reference the supplier.
	ErrInUse = fmt.Errorf("supplier is referenced by purchases: %w", shared.ErrInUse)
)
