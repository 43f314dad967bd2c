package dto

import (
	"github.com/ledgerline/ledgerline/internal/domain/creditnote"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/ledgerline/ledgerline/internal/validator"
	"github.com/shopspring/decimal"
)

// CreateCreditNoteRequest represents a request to issue a credit note
type CreateCreditNoteRequest struct {
	Amount            decimal.Decimal `json:"amount" validate:"required"`
	Reason            string          `json:"reason" validate:"required"`
	Currency          string          `json:"currency" validate:"required,len=3"`
	OriginalInvoiceID *string         `json:"original_invoice_id,omitempty"`
	Metadata          types.Metadata  `json:"metadata,omitempty"`
}

func (r *CreateCreditNoteRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if !r.Amount.IsPositive() {
		return ierr.NewError("amount must be positive").
			WithHint("Credit note amount must be greater than zero").
			Mark(ierr.ErrValidation)
	}

	return nil
}

// ApplyCreditNoteRequest represents a request to apply part of a credit note
// against an invoice balance
type ApplyCreditNoteRequest struct {
	InvoiceID string          `json:"invoice_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"required"`
}

func (r *ApplyCreditNoteRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if !r.Amount.IsPositive() {
		return ierr.NewError("amount must be positive").
			WithHint("Application amount must be greater than zero").
			Mark(ierr.ErrValidation)
	}

	return nil
}

// RefundCreditNoteRequest represents a request to cash out part of a credit
// note's remaining balance
type RefundCreditNoteRequest struct {
	Amount    decimal.Decimal `json:"amount" validate:"required"`
	Reference string          `json:"reference,omitempty"`
}

func (r *RefundCreditNoteRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if !r.Amount.IsPositive() {
		return ierr.NewError("amount must be positive").
			WithHint("Refund amount must be greater than zero").
			Mark(ierr.ErrValidation)
	}

	return nil
}

// CreditNoteResponse represents a credit note in API responses
type CreditNoteResponse struct {
	*creditnote.CreditNote
}

func NewCreditNoteResponse(cn *creditnote.CreditNote) *CreditNoteResponse {
	return &CreditNoteResponse{CreditNote: cn}
}

// ListCreditNotesResponse represents a paginated list of credit notes
type ListCreditNotesResponse struct {
	Items      []*CreditNoteResponse    `json:"items"`
	Pagination types.PaginationResponse `json:"pagination"`
}
