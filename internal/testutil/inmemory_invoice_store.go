package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerline/ledgerline/internal/domain/invoice"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/types"
)

// InMemoryInvoiceStore implements invoice.Repository with the same semantics
// as the postgres repository: unique invoice numbers, one child per
// (parent, generation date), and version-guarded updates.
type InMemoryInvoiceStore struct {
	mu       sync.RWMutex
	invoices map[string]*invoice.Invoice
}

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		invoices: make(map[string]*invoice.Invoice),
	}
}

func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	c := *inv
	c.LineItems = make([]*invoice.LineItem, len(inv.LineItems))
	for i, item := range inv.LineItems {
		itemCopy := *item
		c.LineItems[i] = &itemCopy
	}
	c.Payment.Transactions = make([]*invoice.Transaction, len(inv.Payment.Transactions))
	for i, txn := range inv.Payment.Transactions {
		txnCopy := *txn
		c.Payment.Transactions[i] = &txnCopy
	}
	if inv.Metadata != nil {
		c.Metadata = make(types.Metadata, len(inv.Metadata))
		for k, v := range inv.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[inv.ID]; exists {
		return alreadyExists("invoice")
	}
	for _, existing := range s.invoices {
		if existing.InvoiceNumber == inv.InvoiceNumber {
			return alreadyExists("invoice")
		}
		if inv.Recurrence.ParentInvoiceID != nil && existing.Recurrence.ParentInvoiceID != nil &&
			*existing.Recurrence.ParentInvoiceID == *inv.Recurrence.ParentInvoiceID &&
			existing.Recurrence.GenerationDate != nil && inv.Recurrence.GenerationDate != nil &&
			existing.Recurrence.GenerationDate.Equal(*inv.Recurrence.GenerationDate) {
			return alreadyExists("invoice")
		}
	}

	s.invoices[inv.ID] = copyInvoice(inv)
	return nil
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, exists := s.invoices[id]
	if !exists {
		return nil, notFound("invoice")
	}
	return copyInvoice(inv), nil
}

func (s *InMemoryInvoiceStore) GetByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inv := range s.invoices {
		if inv.InvoiceNumber == number {
			return copyInvoice(inv), nil
		}
	}
	return nil, notFound("invoice")
}

// Update applies the version-guarded conditional write and bumps the version
// on success, mirroring the postgres repository.
func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.invoices[inv.ID]
	if !exists {
		return notFound("invoice")
	}
	if existing.Version != inv.Version {
		return ierr.NewError("invoice was modified concurrently").
			WithHint("The invoice was changed by another operation, retry").
			Mark(ierr.ErrVersionConflict)
	}

	inv.Version++
	inv.UpdatedAt = time.Now().UTC()
	s.invoices[inv.ID] = copyInvoice(inv)
	return nil
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*invoice.Invoice
	for _, inv := range s.invoices {
		if s.matches(inv, filter) {
			result = append(result, copyInvoice(inv))
		}
	}
	return result, nil
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, inv := range s.invoices {
		if s.matches(inv, filter) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryInvoiceStore) matches(inv *invoice.Invoice, filter *types.InvoiceFilter) bool {
	if filter == nil {
		return !inv.Deletion.IsDeleted
	}
	if !filter.IncludeDeleted && inv.Deletion.IsDeleted {
		return false
	}
	if filter.ClientID != "" && inv.ClientID != filter.ClientID {
		return false
	}
	if filter.InvoiceNumber != "" && inv.InvoiceNumber != filter.InvoiceNumber {
		return false
	}
	if len(filter.PaymentStatus) > 0 {
		found := false
		for _, status := range filter.PaymentStatus {
			if inv.Payment.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.WorkflowStatus) > 0 {
		found := false
		for _, status := range filter.WorkflowStatus {
			if inv.Workflow.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.DueBefore != nil && !inv.Financial.DueDate.Before(*filter.DueBefore) {
		return false
	}
	if filter.Recurring != nil && inv.Recurrence.IsRecurring != *filter.Recurring {
		return false
	}
	if filter.NextDateOnOrBefore != nil {
		if inv.Recurrence.NextDate == nil || inv.Recurrence.NextDate.After(*filter.NextDateOnOrBefore) {
			return false
		}
	}
	return true
}

func (s *InMemoryInvoiceStore) ListDueTemplates(ctx context.Context, asOf time.Time) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := types.StartOfDay(asOf)
	var result []*invoice.Invoice
	for _, inv := range s.invoices {
		if !inv.Recurrence.IsRecurring || inv.Deletion.IsDeleted || inv.Status != types.StatusPublished {
			continue
		}
		if inv.Recurrence.NextDate == nil || inv.Recurrence.NextDate.After(asOf) {
			continue
		}
		if inv.Recurrence.EndDate != nil && inv.Recurrence.EndDate.Before(day) {
			continue
		}
		result = append(result, copyInvoice(inv))
	}
	return result, nil
}

func (s *InMemoryInvoiceStore) ListOverdue(ctx context.Context, asOf time.Time) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := types.StartOfDay(asOf)
	outstanding := map[types.InvoicePaymentStatus]bool{
		types.PaymentStatusPending: true,
		types.PaymentStatusPartial: true,
		types.PaymentStatusOverdue: true,
	}

	var result []*invoice.Invoice
	for _, inv := range s.invoices {
		if inv.Recurrence.IsRecurring || inv.Deletion.IsDeleted || inv.Status != types.StatusPublished {
			continue
		}
		if !inv.Financial.DueDate.Before(day) {
			continue
		}
		if !outstanding[inv.Payment.Status] {
			continue
		}
		result = append(result, copyInvoice(inv))
	}
	return result, nil
}

func (s *InMemoryInvoiceStore) GetChildForPeriod(ctx context.Context, parentInvoiceID string, generationDate time.Time) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := types.StartOfDay(generationDate)
	for _, inv := range s.invoices {
		if inv.Recurrence.ParentInvoiceID != nil && *inv.Recurrence.ParentInvoiceID == parentInvoiceID &&
			inv.Recurrence.GenerationDate != nil && inv.Recurrence.GenerationDate.Equal(day) {
			return copyInvoice(inv), nil
		}
	}
	return nil, notFound("invoice")
}

func (s *InMemoryInvoiceStore) HardDelete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[id]; !exists {
		return notFound("invoice")
	}
	delete(s.invoices, id)
	return nil
}

func (s *InMemoryInvoiceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices = make(map[string]*invoice.Invoice)
}

func notFound(entity string) error {
	return ierr.NewErrorf("%s not found", entity).
		WithHintf("%s not found", entity).
		Mark(ierr.ErrNotFound)
}

func alreadyExists(entity string) error {
	return ierr.NewErrorf("%s already exists", entity).
		WithHintf("A %s with these unique attributes already exists", entity).
		Mark(ierr.ErrAlreadyExists)
}
