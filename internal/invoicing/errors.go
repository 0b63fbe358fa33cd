package invoicing

import (
	"fmt"

	"github.com/harvest-erp/harvest/internal/shared"
)

var (
	// ErrNotFound indicates the invoice does not exist.
	ErrNotFound = fmt.Errorf("invoice %w", shared.ErrNotFound)
	// ErrAlreadyInvoiced indicates the customer already has an active invoice for the month.
	ErrAlreadyInvoiced = fmt.Errorf("customer month %w", shared.ErrAlreadyInvoiced)
	// ErrNoPendingDeliveries indicates the month holds no delivered, unclaimed deliveries.
	ErrNoPendingDeliveries = fmt.Errorf("invoice: %w", shared.ErrNoPendingDeliveries)
	// ErrAlreadyVoid indicates the invoice was voided before.
	ErrAlreadyVoid = fmt.Errorf("invoice already void: %w", shared.ErrConflict)
	// ErrClaimRace indicates a delivery changed between aggregation and claim.
	ErrClaimRace = fmt.Errorf("deliveries changed while invoicing: %w", shared.ErrConflict)
	// ErrUnknownCustomer indicates the customer does not exist.
	ErrUnknownCustomer = shared.NewValidationError("customer_id", "customer does not exist")
)
