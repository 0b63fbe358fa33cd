package delivery

import (
	"fmt"

	"github.com/harvest-erp/harvest/internal/shared"
)

var (
	// ErrNotFound indicates the delivery does not exist.
	ErrNotFound = fmt.Errorf("delivery %w", shared.ErrNotFound)
	// ErrItemNotFound indicates the item does not belong to the delivery.
	ErrItemNotFound = fmt.Errorf("delivery item %w", shared.ErrNotFound)
	// ErrInvoiced indicates the delivery is claimed by an invoice.
	ErrInvoiced = fmt.Errorf("delivery belongs to an invoice: %w", shared.ErrInvoicedDelivery)
	// ErrCancelled indicates the delivery was cancelled and can only be deleted.
	ErrCancelled = fmt.Errorf("delivery is cancelled: %w", shared.ErrConflict)
	// ErrInvalidTransition indicates a status change the lifecycle forbids.
	ErrInvalidTransition = fmt.Errorf("status change not allowed: %w", shared.ErrConflict)
	// ErrNotLinkable indicates a link on a non-direct delivery or an already linked line.
	ErrNotLinkable = fmt.Errorf("only free-form lines of direct deliveries can be linked: %w", shared.ErrConflict)
	// ErrUnknownCustomer indicates the customer does not exist.
	ErrUnknownCustomer = shared.NewValidationError("customer_id", "customer does not exist")
)
