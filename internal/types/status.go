package types

import ierr "github.com/ledgerline/ledgerline/internal/errors"

// Status is a type for the lifecycle status of a persisted resource.
// Soft-deleted documents keep their row with StatusDeleted; queries exclude
// them unless a filter asks for them explicitly.
type Status string

const (
	StatusPublished Status = "published"
	StatusDeleted   Status = "deleted"
	StatusArchived  Status = "archived"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) Validate() error {
	allowed := []Status{
		StatusPublished,
		StatusDeleted,
		StatusArchived,
	}
	for _, status := range allowed {
		if s == status {
			return nil
		}
	}
	return ierr.NewError("invalid status").
		WithHint("Invalid status").
		WithReportableDetails(map[string]any{
			"allowed": allowed,
			"status":  s,
		}).
		Mark(ierr.ErrValidation)
}
