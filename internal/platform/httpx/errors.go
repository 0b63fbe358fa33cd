// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/harvest-erp/harvest/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807 and returns
// the status written, so callers can log server errors.
func RespondError(w http.ResponseWriter, err error) int {
	var fieldErrs *FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		ProblemWithFields(w, http.StatusBadRequest, "Validation Failed", err.Error(), fieldErrs.Fields)
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidCredentials), errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
		return http.StatusForbidden
	case errors.Is(err, shared.ErrInsufficientStock):
		Problem(w, http.StatusUnprocessableEntity, "Insufficient Stock", err.Error())
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrInUse),
		errors.Is(err, shared.ErrConflict),
		errors.Is(err, shared.ErrInvoicedDelivery),
		errors.Is(err, shared.ErrAlreadyInvoiced),
		errors.Is(err, shared.ErrNoPendingDeliveries),
		errors.Is(err, shared.ErrAdminFloor):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
		return http.StatusConflict
	case errors.Is(err, shared.ErrExternalService):
		Problem(w, http.StatusBadGateway, "External Service Error", err.Error())
		return http.StatusBadGateway
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return http.StatusInternalServerError
	}
}
