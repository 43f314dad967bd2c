package postgres

import (
	"database/sql/driver"
	"encoding/json"

	ierr "github.com/ledgerline/ledgerline/internal/errors"
)

// jsonbValue marshals v for storage in a jsonb column.
func jsonbValue(v any) (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to encode document field").
			Mark(ierr.ErrDatabase)
	}
	return b, nil
}

// jsonbScan unmarshals a jsonb column into dst.
func jsonbScan(src any, dst any) error {
	if src == nil {
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return ierr.NewError("unexpected jsonb column type").
			WithHint("Failed to decode document field").
			Mark(ierr.ErrDatabase)
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to decode document field").
			Mark(ierr.ErrDatabase)
	}
	return nil
}
