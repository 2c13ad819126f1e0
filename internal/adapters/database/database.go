package database

import (
	"database/sql"
	"errors"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"
	apperrors "github.com/zatekoja/hospital-appointments/pkg/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Postgres error codes the adapters translate into application errors
const (
	pqUniqueViolation     = pq.ErrorCode("23505")
	pqForeignKeyViolation = pq.ErrorCode("23503")
	pqCheckViolation      = pq.ErrorCode("23514")
)

func newDialect(db *sql.DB) *goqu.Database {
	return goqu.New("postgres", db)
}

// pqCode returns the Postgres error code carried by err, if any
func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

// mapWriteError translates constraint violations into application errors.
// onUnique is returned for unique violations so callers can attach a code.
func mapWriteError(err error, message string, onUnique *apperrors.AppError) error {
	switch pqCode(err) {
	case pqUniqueViolation:
		if onUnique != nil {
			onUnique.Err = err
			return onUnique
		}
		return apperrors.NewConflictError(message + ": already exists")
	case pqForeignKeyViolation:
		return apperrors.NewValidationError(message + ": referenced record does not exist")
	case pqCheckViolation:
		return apperrors.NewValidationError(message + ": value violates a constraint")
	}
	return apperrors.NewInternalError(message, err)
}

// pageBounds clamps a requested page to sane limits
func pageBounds(limit, offset int) (uint, uint) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return uint(limit), uint(offset)
}
