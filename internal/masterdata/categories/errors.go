package categories

import (
	"fmt"

	"github.com/harvest-erp/harvest/internal/shared"
)

var (
	// ErrNotFound indicates the category does not exist.
	ErrNotFound = fmt.Errorf("category %w", shared.ErrNotFound)
	// ErrInUse indicates purchases or delivery lines still reference the category.
	ErrInUse = fmt.Errorf("category is referenced by purchases or deliveries: %w", shared.ErrInUse)
	// ErrDuplicateName indicates another category already uses the name.
	ErrDuplicateName = shared.NewValidationError("name", "already exists")
)
