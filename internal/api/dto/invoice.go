package dto

import (
	"context"
	"time"

	"github.com/ledgerline/ledgerline/internal/domain/invoice"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/ledgerline/ledgerline/internal/validator"
	"github.com/shopspring/decimal"
)

// CreateInvoiceLineItemRequest is one charged line on a new invoice
type CreateInvoiceLineItemRequest struct {
	Description string          `json:"description" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"required"`
}

// CreateInvoiceRequest represents a request to create an invoice or a
// recurring template
type CreateInvoiceRequest struct {
	ClientID     string                          `json:"client_id" validate:"required"`
	Currency     string                          `json:"currency" validate:"required,len=3"`
	LineItems    []*CreateInvoiceLineItemRequest `json:"line_items" validate:"required,min=1,dive"`
	Tax          decimal.Decimal                 `json:"tax"`
	PaymentTerms int                             `json:"payment_terms" validate:"omitempty,min=0"`
	DueDate      *time.Time                      `json:"due_date,omitempty"`
	Metadata     types.Metadata                  `json:"metadata,omitempty"`

	// Recurrence template fields
	Recurring bool                      `json:"recurring"`
	Frequency types.RecurrenceFrequency `json:"frequency,omitempty"`
	StartDate *time.Time                `json:"start_date,omitempty"`
	EndDate   *time.Time                `json:"end_date,omitempty"`
}

func (r *CreateInvoiceRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	for _, item := range r.LineItems {
		if item.Quantity.IsNegative() || item.UnitPrice.IsNegative() {
			return ierr.NewError("line item amounts must be non negative").
				WithHint("Line item quantity and unit price cannot be negative").
				Mark(ierr.ErrValidation)
		}
	}

	if r.Tax.IsNegative() {
		return ierr.NewError("tax must be non negative").
			WithHint("Tax cannot be negative").
			Mark(ierr.ErrValidation)
	}

	if r.Recurring {
		if err := r.Frequency.Validate(); err != nil {
			return err
		}
		if r.StartDate == nil {
			return ierr.NewError("recurring template requires start_date").
				WithHint("Recurring invoices need a first generation date").
				Mark(ierr.ErrValidation)
		}
		if r.EndDate != nil && r.EndDate.Before(*r.StartDate) {
			return ierr.NewError("end_date must not be before start_date").
				WithHint("Recurrence end date cannot precede the start date").
				Mark(ierr.ErrValidation)
		}
	}

	return nil
}

// ToInvoice converts the request into a domain invoice with computed totals
func (r *CreateInvoiceRequest) ToInvoice(ctx context.Context) *invoice.Invoice {
	lineItems := make([]*invoice.LineItem, len(r.LineItems))
	subtotal := decimal.Zero
	for i, item := range r.LineItems {
		amount := types.Round2(item.Quantity.Mul(item.UnitPrice))
		lineItems[i] = &invoice.LineItem{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LINE_ITEM),
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      amount,
		}
		subtotal = subtotal.Add(amount)
	}
	total := types.Round2(subtotal.Add(r.Tax))

	inv := &invoice.Invoice{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		ClientID:  r.ClientID,
		Currency:  r.Currency,
		LineItems: lineItems,
		Financial: invoice.FinancialSummary{
			Subtotal:     subtotal,
			Tax:          r.Tax,
			TotalAmount:  total,
			PaymentTerms: r.PaymentTerms,
		},
		Payment: invoice.PaymentDetails{
			Status:     types.PaymentStatusPending,
			PaidAmount: decimal.Zero,
			BalanceDue: total,
		},
		Workflow: invoice.Workflow{
			Status: types.WorkflowStatusDraft,
		},
		Metadata:  r.Metadata,
		Version:   1,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}

	if r.DueDate != nil {
		inv.Financial.DueDate = r.DueDate.UTC()
	}

	if r.Recurring {
		start := types.StartOfDay(*r.StartDate)
		inv.Recurrence = invoice.Recurrence{
			IsRecurring: true,
			Frequency:   r.Frequency,
			NextDate:    &start,
			EndDate:     r.EndDate,
		}
	}

	return inv
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	*invoice.Invoice
}

func NewInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	return &InvoiceResponse{Invoice: inv}
}

// ListInvoicesResponse represents a paginated list of invoices
type ListInvoicesResponse struct {
	Items      []*InvoiceResponse       `json:"items"`
	Pagination types.PaginationResponse `json:"pagination"`
}
