package types

import (
	"time"

	ierr "github.com/ledgerline/ledgerline/internal/errors"
)

// InvoicePaymentStatus represents the payment state of an invoice
type InvoicePaymentStatus string

const (
	// PaymentStatusPending indicates no payment has been recorded yet
	PaymentStatusPending InvoicePaymentStatus = "PENDING"
	// PaymentStatusPartial indicates a payment smaller than the total has been recorded
	PaymentStatusPartial InvoicePaymentStatus = "PARTIAL"
	// PaymentStatusPaid indicates the balance due is settled within tolerance
	PaymentStatusPaid InvoicePaymentStatus = "PAID"
	// PaymentStatusOverdue indicates the invoice is past due and has entered dunning
	PaymentStatusOverdue InvoicePaymentStatus = "OVERDUE"
)

func (s InvoicePaymentStatus) String() string {
	return string(s)
}

func (s InvoicePaymentStatus) Validate() error {
	allowed := []InvoicePaymentStatus{
		PaymentStatusPending,
		PaymentStatusPartial,
		PaymentStatusPaid,
		PaymentStatusOverdue,
	}
	for _, status := range allowed {
		if s == status {
			return nil
		}
	}
	return ierr.NewError("invalid payment status").
		WithHint("Invalid payment status").
		WithReportableDetails(map[string]any{
			"allowed": allowed,
			"status":  s,
		}).
		Mark(ierr.ErrValidation)
}

// paymentStatusTransitions is the closed transition table for invoice payment
// status. Self-transitions are always allowed so idempotent sweeps can re-set
// a status without tripping validation.
var paymentStatusTransitions = map[InvoicePaymentStatus][]InvoicePaymentStatus{
	PaymentStatusPending: {PaymentStatusPartial, PaymentStatusPaid, PaymentStatusOverdue},
	PaymentStatusPartial: {PaymentStatusPaid, PaymentStatusOverdue, PaymentStatusPending},
	PaymentStatusOverdue: {PaymentStatusPartial, PaymentStatusPaid, PaymentStatusPending},
	// refunds can reopen a paid invoice
	PaymentStatusPaid: {PaymentStatusPartial, PaymentStatusPending},
}

// CanTransitionTo reports whether the payment status may move to target.
func (s InvoicePaymentStatus) CanTransitionTo(target InvoicePaymentStatus) bool {
	if s == target {
		return true
	}
	for _, allowed := range paymentStatusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// InvoiceWorkflowStatus represents the document workflow state of an invoice
type InvoiceWorkflowStatus string

const (
	WorkflowStatusDraft InvoiceWorkflowStatus = "DRAFT"
	WorkflowStatusSent  InvoiceWorkflowStatus = "SENT"
	// WorkflowStatusGenerated marks children cloned from a recurrence template
	WorkflowStatusGenerated InvoiceWorkflowStatus = "GENERATED"
	WorkflowStatusOverdue   InvoiceWorkflowStatus = "OVERDUE"
	WorkflowStatusArchived  InvoiceWorkflowStatus = "ARCHIVED"
)

func (s InvoiceWorkflowStatus) String() string {
	return string(s)
}

func (s InvoiceWorkflowStatus) Validate() error {
	allowed := []InvoiceWorkflowStatus{
		WorkflowStatusDraft,
		WorkflowStatusSent,
		WorkflowStatusGenerated,
		WorkflowStatusOverdue,
		WorkflowStatusArchived,
	}
	for _, status := range allowed {
		if s == status {
			return nil
		}
	}
	return ierr.NewError("invalid workflow status").
		WithHint("Invalid workflow status").
		WithReportableDetails(map[string]any{
			"allowed": allowed,
			"status":  s,
		}).
		Mark(ierr.ErrValidation)
}

// TransactionType classifies entries in an invoice's transaction log
type TransactionType string

const (
	TransactionTypePayment    TransactionType = "payment"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypeCreditNote TransactionType = "credit_note"
)

// PaymentMethodType identifies how a payment was made
type PaymentMethodType string

const (
	PaymentMethodManual       PaymentMethodType = "manual"
	PaymentMethodBankTransfer PaymentMethodType = "bank_transfer"
	PaymentMethodCard         PaymentMethodType = "card"
	PaymentMethodGateway      PaymentMethodType = "gateway"
	PaymentMethodCreditNote   PaymentMethodType = "credit_note"
)

func (m PaymentMethodType) Validate() error {
	allowed := []PaymentMethodType{
		PaymentMethodManual,
		PaymentMethodBankTransfer,
		PaymentMethodCard,
		PaymentMethodGateway,
		PaymentMethodCreditNote,
	}
	for _, method := range allowed {
		if m == method {
			return nil
		}
	}
	return ierr.NewError("invalid payment method").
		WithHint("Invalid payment method").
		WithReportableDetails(map[string]any{
			"allowed": allowed,
			"method":  m,
		}).
		Mark(ierr.ErrValidation)
}

// RecurrenceFrequency is the cadence of a recurring invoice template
type RecurrenceFrequency string

const (
	RecurrenceFrequencyWeekly      RecurrenceFrequency = "WEEKLY"
	RecurrenceFrequencyFortnightly RecurrenceFrequency = "FORTNIGHTLY"
	RecurrenceFrequencyMonthly     RecurrenceFrequency = "MONTHLY"
	RecurrenceFrequencyQuarterly   RecurrenceFrequency = "QUARTERLY"
	RecurrenceFrequencyAnnually    RecurrenceFrequency = "ANNUALLY"
)

func (f RecurrenceFrequency) String() string {
	return string(f)
}

func (f RecurrenceFrequency) Validate() error {
	allowed := []RecurrenceFrequency{
		RecurrenceFrequencyWeekly,
		RecurrenceFrequencyFortnightly,
		RecurrenceFrequencyMonthly,
		RecurrenceFrequencyQuarterly,
		RecurrenceFrequencyAnnually,
	}
	for _, freq := range allowed {
		if f == freq {
			return nil
		}
	}
	return ierr.NewError("invalid recurrence frequency").
		WithHint("Invalid recurrence frequency").
		WithReportableDetails(map[string]any{
			"allowed":   allowed,
			"frequency": f,
		}).
		Mark(ierr.ErrValidation)
}

// InvoiceFilter represents filter criteria for invoice queries
type InvoiceFilter struct {
	*QueryFilter

	OrganizationID string                 `json:"organization_id,omitempty" form:"organization_id"`
	ClientID       string                 `json:"client_id,omitempty" form:"client_id"`
	PaymentStatus  []InvoicePaymentStatus `json:"payment_status,omitempty" form:"payment_status"`
	WorkflowStatus []InvoiceWorkflowStatus `json:"workflow_status,omitempty" form:"workflow_status"`
	InvoiceNumber  string                 `json:"invoice_number,omitempty" form:"invoice_number"`

	// DueBefore selects invoices whose due date is strictly before the given time
	DueBefore *time.Time `json:"due_before,omitempty" form:"due_before"`

	// Recurring selects templates (true) or plain invoices (false) when set
	Recurring *bool `json:"recurring,omitempty" form:"recurring"`
	// NextDateOnOrBefore selects recurrence templates due for generation
	NextDateOnOrBefore *time.Time `json:"next_date_on_or_before,omitempty" form:"next_date_on_or_before"`

	// IncludeDeleted includes soft-deleted invoices in results
	IncludeDeleted bool `json:"include_deleted,omitempty" form:"include_deleted"`
}

func NewInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

func NewNoLimitInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}
