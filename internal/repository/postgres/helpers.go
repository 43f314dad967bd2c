package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
)

// pgUniqueViolation is the postgres error code for unique constraint violations
const pgUniqueViolation = "23505"

func sqlxNamed(query string, arg any) (string, []any, error) {
	q, args, err := sqlx.Named(query, arg)
	if err != nil {
		return "", nil, ierr.WithError(err).
			WithHint("Failed to bind query parameters").
			Mark(ierr.ErrDatabase)
	}
	return sqlx.Rebind(sqlx.DOLLAR, q), args, nil
}

func sqlxGet(ctx context.Context, ext sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, ext, dest, query, args...)
}

func sqlxSelect(ctx context.Context, ext sqlx.ExtContext, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, ext, dest, query, args...)
}

// wrapPgError converts driver errors into the application error taxonomy.
// Unique violations surface as ErrAlreadyExists so callers can retry with a
// new document number or treat a period as already generated.
func wrapPgError(err error, entity string) error {
	if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pgUniqueViolation {
		return ierr.WithError(err).
			WithHintf("A %s with these unique fields already exists", entity).
			WithReportableDetails(map[string]any{
				"constraint": pqErr.Constraint,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	return ierr.WithError(err).
		WithHintf("Database operation on %s failed", entity).
		Mark(ierr.ErrDatabase)
}

// allowed sort columns; anything else falls back to created_at
var sortColumns = map[string]bool{
	"created_at":     true,
	"updated_at":     true,
	"due_date":       true,
	"next_date":      true,
	"invoice_number": true,
	"total_amount":   true,
}

func sanitizeSort(sort string) string {
	if sortColumns[sort] {
		return sort
	}
	return "created_at"
}

func sanitizeOrder(order string) string {
	if order == "asc" {
		return "ASC"
	}
	return "DESC"
}
