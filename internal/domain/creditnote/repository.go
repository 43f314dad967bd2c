package creditnote

import (
	"context"

	"github.com/ledgerline/ledgerline/internal/types"
)

// Repository defines the interface for credit note persistence operations.
// Update is version-guarded the same way as invoice updates.
type Repository interface {
	Create(ctx context.Context, cn *CreditNote) error
	Get(ctx context.Context, id string) (*CreditNote, error)
	GetByNumber(ctx context.Context, number string) (*CreditNote, error)
	Update(ctx context.Context, cn *CreditNote) error
	List(ctx context.Context, filter *types.CreditNoteFilter) ([]*CreditNote, error)
	Count(ctx context.Context, filter *types.CreditNoteFilter) (int, error)
}
