package shared

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the repositories react to.
const (
	PgForeignKeyViolation  = "23503"
	PgUniqueViolation      = "23505"
	PgSerializationFailure = "40001"
	PgDeadlockDetected     = "40P01"
)

// PgErrorCode returns the SQLSTATE carried by err, or "" when err is not a PgError.
func PgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsForeignKeyViolation reports whether err was raised by a foreign key constraint.
func IsForeignKeyViolation(err error) bool {
	return PgErrorCode(err) == PgForeignKeyViolation
}

// IsUniqueViolation reports whether err was raised by a unique constraint.
func IsUniqueViolation(err error) bool {
	return PgErrorCode(err) == PgUniqueViolation
}

// IsRetryableTxError reports whether a transaction can be retried from the start.
func IsRetryableTxError(err error) bool {
	code := PgErrorCode(err)
	return code == PgSerializationFailure || code == PgDeadlockDetected
}
