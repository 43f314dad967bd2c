package dto

import (
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/ledgerline/ledgerline/internal/validator"
	"github.com/shopspring/decimal"
)

// RecordPaymentRequest represents a request to record a payment on an invoice
type RecordPaymentRequest struct {
	Amount    decimal.Decimal         `json:"amount" validate:"required"`
	Method    types.PaymentMethodType `json:"method" validate:"required"`
	Reference string                  `json:"reference,omitempty"`
	Notes     string                  `json:"notes,omitempty"`
}

func (r *RecordPaymentRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}

	if !r.Amount.IsPositive() {
		return ierr.NewError("amount must be positive").
			WithHint("Payment amount must be greater than zero").
			Mark(ierr.ErrValidation)
	}

	return r.Method.Validate()
}

// RefundPaymentRequest represents a request to refund part of an invoice's
// paid amount
type RefundPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Reason string          `json:"reason,omitempty"`
}

func (r *RefundPaymentRequest) Validate() error {
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
