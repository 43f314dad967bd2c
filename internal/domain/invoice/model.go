package invoice

import (
	"time"

	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/shopspring/decimal"
)

// Invoice represents the invoice domain model. A recurring template is an
// invoice with Recurrence.IsRecurring set; scheduler-generated children carry
// Recurrence.ParentInvoiceID instead.
type Invoice struct {
	ID            string `json:"id"`
	InvoiceNumber string `json:"invoice_number"`
	ClientID      string `json:"client_id"`
	ClientName    string `json:"client_name,omitempty"`
	ClientEmail   string `json:"client_email,omitempty"`
	Currency      string `json:"currency"`

	LineItems []*LineItem      `json:"line_items,omitempty"`
	Financial FinancialSummary `json:"financial_summary"`
	Payment   PaymentDetails   `json:"payment"`
	Workflow  Workflow         `json:"workflow"`
	Recurrence Recurrence      `json:"recurrence"`
	Deletion  Deletion         `json:"deletion"`

	Metadata types.Metadata `json:"metadata,omitempty"`

	// Version guards conditional updates; every successful mutation bumps it
	Version int `json:"version"`
	types.BaseModel
}

// LineItem is a single charged line on an invoice
type LineItem struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// FinancialSummary carries the charged amounts and payment terms
type FinancialSummary struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	PaymentTerms int             `json:"payment_terms"` // days until due
	DueDate      time.Time       `json:"due_date"`
}

// PaymentDetails carries the running payment state of an invoice
type PaymentDetails struct {
	Status         types.InvoicePaymentStatus `json:"status"`
	PaidAmount     decimal.Decimal            `json:"paid_amount"`
	BalanceDue     decimal.Decimal            `json:"balance_due"`
	Transactions   []*Transaction             `json:"transactions,omitempty"`
	RemindersSent  int                        `json:"reminders_sent"`
	LastReminderAt *time.Time                 `json:"last_reminder_at,omitempty"`
}

// Transaction is an immutable entry in an invoice's payment log. Refunds are
// recorded with a negative amount.
type Transaction struct {
	ID         string                  `json:"id"`
	Type       types.TransactionType   `json:"type"`
	Method     types.PaymentMethodType `json:"method"`
	Reference  string                  `json:"reference,omitempty"`
	Amount     decimal.Decimal         `json:"amount"`
	Notes      string                  `json:"notes,omitempty"`
	RecordedBy string                  `json:"recorded_by"`
	RecordedAt time.Time               `json:"recorded_at"`
}

// Workflow carries the document workflow state
type Workflow struct {
	Status types.InvoiceWorkflowStatus `json:"status"`
}

// Recurrence holds both template fields (IsRecurring, Frequency, NextDate,
// EndDate) and child fields (ParentInvoiceID, GenerationDate).
type Recurrence struct {
	IsRecurring     bool                       `json:"is_recurring"`
	Frequency       types.RecurrenceFrequency  `json:"frequency,omitempty"`
	NextDate        *time.Time                 `json:"next_date,omitempty"`
	EndDate         *time.Time                 `json:"end_date,omitempty"`
	ParentInvoiceID *string                    `json:"parent_invoice_id,omitempty"`
	// GenerationDate is set on children: the sweep date that produced them.
	// Together with ParentInvoiceID it uniquely identifies a generated period.
	GenerationDate  *time.Time                 `json:"generation_date,omitempty"`
	LastGeneratedAt *time.Time                 `json:"last_generated_at,omitempty"`
}

// Deletion tracks soft deletion; rows are retained and excluded from queries
type Deletion struct {
	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// BalanceDue recomputes the balance from the stored amounts.
func (i *Invoice) BalanceDue() decimal.Decimal {
	return types.Round2(i.Financial.TotalAmount.Sub(i.Payment.PaidAmount))
}

// IsTemplate reports whether this invoice is a recurrence template.
func (i *Invoice) IsTemplate() bool {
	return i.Recurrence.IsRecurring
}

// Validate enforces the balance identity and amount sanity on every mutation
// boundary. It must pass before any repository write.
func (i *Invoice) Validate() error {
	if i.Financial.TotalAmount.IsNegative() {
		return ierr.NewError("total_amount must be non negative").
			WithHint("Invoice total amount cannot be negative").
			Mark(ierr.ErrValidation)
	}

	if i.Payment.PaidAmount.IsNegative() {
		return ierr.NewError("paid_amount must be non negative").
			WithHint("Invoice paid amount cannot be negative").
			Mark(ierr.ErrInvariantViolation)
	}

	if types.ExceedsWithTolerance(i.Payment.PaidAmount, i.Financial.TotalAmount) {
		return ierr.NewError("paid_amount exceeds total_amount").
			WithHint("Invoice paid amount cannot exceed the total amount").
			WithReportableDetails(map[string]any{
				"paid_amount":  i.Payment.PaidAmount,
				"total_amount": i.Financial.TotalAmount,
			}).
			Mark(ierr.ErrInvariantViolation)
	}

	// balance_due == round2(total_amount - paid_amount)
	if !i.Payment.BalanceDue.Equal(i.BalanceDue()) {
		return ierr.NewError("balance_due does not equal total_amount - paid_amount").
			WithHint("Invoice balance is inconsistent").
			WithReportableDetails(map[string]any{
				"balance_due":  i.Payment.BalanceDue,
				"total_amount": i.Financial.TotalAmount,
				"paid_amount":  i.Payment.PaidAmount,
			}).
			Mark(ierr.ErrInvariantViolation)
	}

	if i.Payment.RemindersSent < 0 {
		return ierr.NewError("reminders_sent must be non negative").
			WithHint("Reminder counter cannot be negative").
			Mark(ierr.ErrInvariantViolation)
	}

	if err := i.Payment.Status.Validate(); err != nil {
		return err
	}
	if err := i.Workflow.Status.Validate(); err != nil {
		return err
	}

	if i.Recurrence.IsRecurring {
		if err := i.Recurrence.Frequency.Validate(); err != nil {
			return err
		}
		if i.Recurrence.NextDate == nil {
			return ierr.NewError("recurring template requires next_date").
				WithHint("Recurring invoices must have a next generation date").
				Mark(ierr.ErrValidation)
		}
	}

	for _, item := range i.LineItems {
		if item.Quantity.IsNegative() || item.UnitPrice.IsNegative() {
			return ierr.NewError("line item quantity and unit_price must be non negative").
				WithHint("Line item amounts cannot be negative").
				Mark(ierr.ErrValidation)
		}
	}

	return nil
}

// HasGatewayTransaction reports whether a gateway payment with the given
// external reference is already recorded. Used to deduplicate webhook
// replays: the same external transaction id must affect the ledger once.
func (i *Invoice) HasGatewayTransaction(reference string) bool {
	if reference == "" {
		return false
	}
	for _, txn := range i.Payment.Transactions {
		if txn.Method == types.PaymentMethodGateway && txn.Reference == reference {
			return true
		}
	}
	return false
}
