package shared

import (
	"errors"
	"fmt"
)

// Error kinds shared by every domain package. Domain errors wrap one of these
// so the HTTP layer can map them without knowing the domain.
var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates a malformed or out of range input.
	ErrValidation = errors.New("validation failed")
	// ErrInUse indicates the record is still referenced elsewhere.
	ErrInUse = errors.New("record in use")
	// ErrConflict indicates the record's current state does not allow the change.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientStock indicates a consume larger than the remaining quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvoicedDelivery indicates a mutation of a delivery that belongs to an invoice.
	ErrInvoicedDelivery = errors.New("delivery already invoiced")
	// ErrAlreadyInvoiced indicates an invoice already exists for the customer and month.
	ErrAlreadyInvoiced = errors.New("already invoiced")
	// ErrNoPendingDeliveries indicates nothing is left to invoice.
	ErrNoPendingDeliveries = errors.New("no pending deliveries")
	// ErrAdminFloor indicates the change would leave no administrator.
	ErrAdminFloor = errors.New("at least one administrator is required")
	// ErrExternalService indicates a failure of a third-party integration.
	ErrExternalService = errors.New("external service error")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized indicates a missing or expired token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the caller lacks the required role.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
