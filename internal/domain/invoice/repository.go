package invoice

import (
	"context"
	"time"

	"github.com/ledgerline/ledgerline/internal/types"
)

// Repository defines the interface for invoice persistence operations.
// Update is a conditional write: it succeeds only when the stored version
// matches inv.Version and returns ErrVersionConflict otherwise, so every
// ledger mutation is an atomic re-validated document update.
type Repository interface {
	// Create creates a new invoice. Returns ErrAlreadyExists when the
	// invoice number, or the (parent_invoice_id, generation_date) pair of a
	// generated child, collides with an existing row.
	Create(ctx context.Context, inv *Invoice) error

	// Get retrieves an invoice by ID
	Get(ctx context.Context, id string) (*Invoice, error)

	// GetByNumber retrieves an invoice by its unique invoice number
	GetByNumber(ctx context.Context, number string) (*Invoice, error)

	// Update performs a version-guarded update and bumps the version
	Update(ctx context.Context, inv *Invoice) error

	// List retrieves invoices based on filter criteria
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)

	// Count returns the total count of invoices based on filter criteria
	Count(ctx context.Context, filter *types.InvoiceFilter) (int, error)

	// ListDueTemplates retrieves active recurrence templates with
	// next_date <= asOf and (end_date null or >= asOf)
	ListDueTemplates(ctx context.Context, asOf time.Time) ([]*Invoice, error)

	// ListOverdue retrieves non-deleted invoices with due_date < asOf and an
	// outstanding payment status (pending, partial, overdue)
	ListOverdue(ctx context.Context, asOf time.Time) ([]*Invoice, error)

	// GetChildForPeriod retrieves the child generated from the given template
	// for the given generation date, if one exists
	GetChildForPeriod(ctx context.Context, parentInvoiceID string, generationDate time.Time) (*Invoice, error)

	// HardDelete permanently removes an invoice. Administrative path only;
	// normal deletion is the soft-delete flag.
	HardDelete(ctx context.Context, id string) error
}
