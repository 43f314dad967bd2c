package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerline/ledgerline/internal/domain/creditnote"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/types"
)

// InMemoryCreditNoteStore implements creditnote.Repository with unique note
// numbers and version-guarded updates.
type InMemoryCreditNoteStore struct {
	mu    sync.RWMutex
	notes map[string]*creditnote.CreditNote
}

func NewInMemoryCreditNoteStore() *InMemoryCreditNoteStore {
	return &InMemoryCreditNoteStore{
		notes: make(map[string]*creditnote.CreditNote),
	}
}

func copyCreditNote(cn *creditnote.CreditNote) *creditnote.CreditNote {
	c := *cn
	c.Applications = make([]*creditnote.Application, len(cn.Applications))
	for i, app := range cn.Applications {
		appCopy := *app
		c.Applications[i] = &appCopy
	}
	c.Refunds = make([]*creditnote.Refund, len(cn.Refunds))
	for i, r := range cn.Refunds {
		rCopy := *r
		c.Refunds[i] = &rCopy
	}
	if cn.Metadata != nil {
		c.Metadata = make(types.Metadata, len(cn.Metadata))
		for k, v := range cn.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

func (s *InMemoryCreditNoteStore) Create(ctx context.Context, cn *creditnote.CreditNote) error {
	if err := cn.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.notes[cn.ID]; exists {
		return alreadyExists("credit note")
	}
	for _, existing := range s.notes {
		if existing.CreditNoteNumber == cn.CreditNoteNumber {
			return alreadyExists("credit note")
		}
	}

	s.notes[cn.ID] = copyCreditNote(cn)
	return nil
}

func (s *InMemoryCreditNoteStore) Get(ctx context.Context, id string) (*creditnote.CreditNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cn, exists := s.notes[id]
	if !exists {
		return nil, notFound("credit note")
	}
	return copyCreditNote(cn), nil
}

func (s *InMemoryCreditNoteStore) GetByNumber(ctx context.Context, number string) (*creditnote.CreditNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cn := range s.notes {
		if cn.CreditNoteNumber == number {
			return copyCreditNote(cn), nil
		}
	}
	return nil, notFound("credit note")
}

func (s *InMemoryCreditNoteStore) Update(ctx context.Context, cn *creditnote.CreditNote) error {
	if err := cn.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.notes[cn.ID]
	if !exists {
		return notFound("credit note")
	}
	if existing.Version != cn.Version {
		return ierr.NewError("credit note was modified concurrently").
			WithHint("The credit note was changed by another operation, retry").
			Mark(ierr.ErrVersionConflict)
	}

	cn.Version++
	cn.UpdatedAt = time.Now().UTC()
	s.notes[cn.ID] = copyCreditNote(cn)
	return nil
}

func (s *InMemoryCreditNoteStore) List(ctx context.Context, filter *types.CreditNoteFilter) ([]*creditnote.CreditNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*creditnote.CreditNote
	for _, cn := range s.notes {
		if s.matches(cn, filter) {
			result = append(result, copyCreditNote(cn))
		}
	}
	return result, nil
}

func (s *InMemoryCreditNoteStore) Count(ctx context.Context, filter *types.CreditNoteFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, cn := range s.notes {
		if s.matches(cn, filter) {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryCreditNoteStore) matches(cn *creditnote.CreditNote, filter *types.CreditNoteFilter) bool {
	if filter == nil {
		return true
	}
	if filter.OriginalInvoiceID != "" {
		if cn.OriginalInvoiceID == nil || *cn.OriginalInvoiceID != filter.OriginalInvoiceID {
			return false
		}
	}
	if filter.CreditNoteNumber != "" && cn.CreditNoteNumber != filter.CreditNoteNumber {
		return false
	}
	if len(filter.CreditNoteStatus) > 0 {
		found := false
		for _, status := range filter.CreditNoteStatus {
			if cn.CreditNoteStatus == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *InMemoryCreditNoteStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = make(map[string]*creditnote.CreditNote)
}
