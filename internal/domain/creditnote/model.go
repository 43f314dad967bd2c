package creditnote

import (
	"time"

	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/shopspring/decimal"
)

// CreditNote is a decrementing monetary instrument applicable against invoice
// balances or refundable as cash.
type CreditNote struct {
	ID               string                 `json:"id"`
	CreditNoteNumber string                 `json:"credit_note_number"`
	OriginalInvoiceID *string               `json:"original_invoice_id,omitempty"`
	Reason           string                 `json:"reason"`
	Currency         string                 `json:"currency"`
	Amount           decimal.Decimal        `json:"amount"`
	BalanceRemaining decimal.Decimal        `json:"balance_remaining"`
	CreditNoteStatus types.CreditNoteStatus `json:"credit_note_status"`
	Applications     []*Application         `json:"applications,omitempty"`
	Refunds          []*Refund              `json:"refunds,omitempty"`
	Metadata         types.Metadata         `json:"metadata,omitempty"`

	Version int `json:"version"`
	types.BaseModel
}

// Application records a portion of the note applied against an invoice
type Application struct {
	InvoiceID string          `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	AppliedAt time.Time       `json:"applied_at"`
}

// Refund records a cash-out of part of the note's balance
type Refund struct {
	Amount     decimal.Decimal `json:"amount"`
	Reference  string          `json:"reference,omitempty"`
	RefundedAt time.Time       `json:"refunded_at"`
}

// AppliedTotal sums all applications.
func (c *CreditNote) AppliedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, app := range c.Applications {
		total = total.Add(app.Amount)
	}
	return total
}

// RefundedTotal sums all refunds.
func (c *CreditNote) RefundedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, r := range c.Refunds {
		total = total.Add(r.Amount)
	}
	return total
}

// Validate enforces the credit note balance identity:
// balance_remaining == amount - sum(applications) - sum(refunds) >= 0.
// It must pass before any repository write.
func (c *CreditNote) Validate() error {
	if c.Amount.IsNegative() || c.Amount.IsZero() {
		return ierr.NewError("amount must be positive").
			WithHint("Credit note amount must be positive").
			Mark(ierr.ErrValidation)
	}

	if c.BalanceRemaining.IsNegative() {
		return ierr.NewError("balance_remaining must be non negative").
			WithHint("Credit note balance cannot be negative").
			Mark(ierr.ErrInvariantViolation)
	}

	expected := c.Amount.Sub(c.AppliedTotal()).Sub(c.RefundedTotal())
	if !c.BalanceRemaining.Equal(expected) {
		return ierr.NewError("balance_remaining does not equal amount - applications - refunds").
			WithHint("Credit note balance is inconsistent").
			WithReportableDetails(map[string]any{
				"balance_remaining": c.BalanceRemaining,
				"amount":            c.Amount,
				"applied_total":     c.AppliedTotal(),
				"refunded_total":    c.RefundedTotal(),
			}).
			Mark(ierr.ErrInvariantViolation)
	}

	return c.CreditNoteStatus.Validate()
}
