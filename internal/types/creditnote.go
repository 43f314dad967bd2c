package types

import (
	ierr "github.com/ledgerline/ledgerline/internal/errors"
)

// CreditNoteStatus represents the lifecycle state of a credit note
type CreditNoteStatus string

const (
	// CreditNoteStatusDraft indicates the note has been created but not yet issued
	CreditNoteStatusDraft CreditNoteStatus = "DRAFT"
	// CreditNoteStatusIssued indicates the note is live with its full balance remaining
	CreditNoteStatusIssued CreditNoteStatus = "ISSUED"
	// CreditNoteStatusPartial indicates part of the balance has been applied or refunded
	CreditNoteStatusPartial CreditNoteStatus = "PARTIAL"
	// CreditNoteStatusApplied indicates the balance was fully consumed by applications
	CreditNoteStatusApplied CreditNoteStatus = "APPLIED"
	// CreditNoteStatusRefunded indicates the balance was fully consumed with at least one cash refund
	CreditNoteStatusRefunded CreditNoteStatus = "REFUNDED"
	// CreditNoteStatusVoid indicates the note was cancelled before any use
	CreditNoteStatusVoid CreditNoteStatus = "VOID"
)

func (s CreditNoteStatus) String() string {
	return string(s)
}

func (s CreditNoteStatus) Validate() error {
	allowed := []CreditNoteStatus{
		CreditNoteStatusDraft,
		CreditNoteStatusIssued,
		CreditNoteStatusPartial,
		CreditNoteStatusApplied,
		CreditNoteStatusRefunded,
		CreditNoteStatusVoid,
	}
	for _, status := range allowed {
		if s == status {
			return nil
		}
	}
	return ierr.NewError("invalid credit note status").
		WithHint("Invalid credit note status").
		WithReportableDetails(map[string]any{
			"allowed": allowed,
			"status":  s,
		}).
		Mark(ierr.ErrValidation)
}

// creditNoteStatusTransitions is the closed transition table for credit note
// status. APPLIED, REFUNDED and VOID are terminal.
var creditNoteStatusTransitions = map[CreditNoteStatus][]CreditNoteStatus{
	CreditNoteStatusDraft:   {CreditNoteStatusIssued, CreditNoteStatusVoid},
	CreditNoteStatusIssued:  {CreditNoteStatusPartial, CreditNoteStatusApplied, CreditNoteStatusRefunded, CreditNoteStatusVoid},
	CreditNoteStatusPartial: {CreditNoteStatusApplied, CreditNoteStatusRefunded},
}

// CanTransitionTo reports whether the credit note status may move to target.
func (s CreditNoteStatus) CanTransitionTo(target CreditNoteStatus) bool {
	if s == target {
		return true
	}
	for _, allowed := range creditNoteStatusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s CreditNoteStatus) IsTerminal() bool {
	return len(creditNoteStatusTransitions[s]) == 0
}

// CreditNoteFilter represents filter criteria for credit note queries
type CreditNoteFilter struct {
	*QueryFilter

	OrganizationID    string             `json:"organization_id,omitempty" form:"organization_id"`
	OriginalInvoiceID string             `json:"original_invoice_id,omitempty" form:"original_invoice_id"`
	CreditNoteStatus  []CreditNoteStatus `json:"credit_note_status,omitempty" form:"credit_note_status"`
	CreditNoteNumber  string             `json:"credit_note_number,omitempty" form:"credit_note_number"`
}

func NewCreditNoteFilter() *CreditNoteFilter {
	return &CreditNoteFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

func NewNoLimitCreditNoteFilter() *CreditNoteFilter {
	return &CreditNoteFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}
