package notification

import (
	"context"
)

// Template identifies a rendered notification
type Template string

const (
	// Tiered dunning reminders, in escalating intensity
	TemplatePaymentReminder    Template = "payment_reminder"
	TemplatePaymentUrgent      Template = "payment_reminder_urgent"
	TemplatePaymentFinalNotice Template = "payment_final_notice"

	// TemplateInvoiceGenerated notifies a client of a newly generated invoice
	TemplateInvoiceGenerated Template = "invoice_generated"
)

// Dispatcher sends a notification to a recipient. Implementations are
// fire-and-forget from the caller's perspective: an error tells the caller
// dispatch did not happen, but dispatch failures must never propagate into
// ledger or scheduler failures.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipient string, template Template, payload map[string]any) error
}
