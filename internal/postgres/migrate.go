package postgres

import (
	_ "embed"

	"github.com/jmoiron/sqlx"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
)

//go:embed schema.sql
var schema string

// Migrate applies the idempotent schema. Statements use IF NOT EXISTS so
// re-running against an existing database is safe.
func Migrate(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to apply database schema").
			Mark(ierr.ErrDatabase)
	}
	return nil
}
