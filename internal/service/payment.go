package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/domain/invoice"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/shopspring/decimal"
)

// PaymentLedgerService maintains the payment/credit ledger of a single
// invoice. All balance mutations in the system flow through this one code
// path so the balance identity is enforced in exactly one place.
type PaymentLedgerService interface {
	// RecordPayment applies a payment to an invoice and returns the updated
	// invoice. Gateway payments are deduplicated by external reference.
	RecordPayment(ctx context.Context, invoiceID string, req *dto.RecordPaymentRequest) (*dto.InvoiceResponse, error)

	// RefundPayment reverses part of an invoice's paid amount
	RefundPayment(ctx context.Context, invoiceID string, req *dto.RefundPaymentRequest) (*dto.InvoiceResponse, error)
}

type paymentLedgerService struct {
	ServiceParams
}

func NewPaymentLedgerService(params ServiceParams) PaymentLedgerService {
	return &paymentLedgerService{ServiceParams: params}
}

// ledgerRetryAttempts bounds version-conflict retries for one mutation
const ledgerRetryAttempts = 5

func (s *paymentLedgerService) RecordPayment(ctx context.Context, invoiceID string, req *dto.RecordPaymentRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var result *invoice.Invoice
	err := s.withLedgerRetry(ctx, func() error {
		inv, err := s.loadMutable(ctx, invoiceID)
		if err != nil {
			return backoff.Permanent(err)
		}

		// replayed gateway delivery: same external transaction id must
		// affect the ledger exactly once
		if req.Method == types.PaymentMethodGateway && inv.HasGatewayTransaction(req.Reference) {
			s.Logger.Infow("duplicate gateway transaction ignored",
				"invoice_id", inv.ID,
				"reference", req.Reference)
			result = inv
			return nil
		}

		newPaid := inv.Payment.PaidAmount.Add(req.Amount)
		if types.ExceedsWithTolerance(newPaid, inv.Financial.TotalAmount) {
			return backoff.Permanent(ierr.NewError("payment exceeds invoice total").
				WithHint("Payment would exceed the invoice total amount").
				WithReportableDetails(map[string]any{
					"invoice_id":   inv.ID,
					"amount":       req.Amount,
					"paid_amount":  inv.Payment.PaidAmount,
					"total_amount": inv.Financial.TotalAmount,
				}).
				Mark(ierr.ErrConflict))
		}

		balance := types.Round2(inv.Financial.TotalAmount.Sub(newPaid))
		newStatus := types.PaymentStatusPartial
		if types.IsSettled(balance) {
			newStatus = types.PaymentStatusPaid
		}
		if !inv.Payment.Status.CanTransitionTo(newStatus) {
			return backoff.Permanent(ierr.NewErrorf("cannot move payment status from %s to %s", inv.Payment.Status, newStatus).
				WithHint("Invalid payment status transition").
				Mark(ierr.ErrInvalidOperation))
		}

		now := s.Clock.Now()
		inv.Payment.PaidAmount = newPaid
		inv.Payment.BalanceDue = balance
		inv.Payment.Status = newStatus
		inv.Payment.Transactions = append(inv.Payment.Transactions, &invoice.Transaction{
			ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TRANSACTION),
			Type:       transactionType(req.Method),
			Method:     req.Method,
			Reference:  req.Reference,
			Amount:     req.Amount,
			Notes:      req.Notes,
			RecordedBy: types.GetUserID(ctx),
			RecordedAt: now,
		})
		// reset the dunning window so follow-up re-evaluates from the new
		// balance if anything is still outstanding
		inv.Payment.LastReminderAt = nil
		inv.UpdatedBy = types.GetUserID(ctx)

		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("payment recorded",
		"invoice_id", result.ID,
		"amount", req.Amount,
		"method", req.Method,
		"payment_status", result.Payment.Status,
		"balance_due", result.Payment.BalanceDue)

	return dto.NewInvoiceResponse(result), nil
}

func (s *paymentLedgerService) RefundPayment(ctx context.Context, invoiceID string, req *dto.RefundPaymentRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var result *invoice.Invoice
	err := s.withLedgerRetry(ctx, func() error {
		inv, err := s.loadMutable(ctx, invoiceID)
		if err != nil {
			return backoff.Permanent(err)
		}

		if types.ExceedsWithTolerance(req.Amount, inv.Payment.PaidAmount) {
			return backoff.Permanent(ierr.NewError("refund exceeds paid amount").
				WithHint("Refund cannot exceed the amount already paid").
				WithReportableDetails(map[string]any{
					"invoice_id":  inv.ID,
					"amount":      req.Amount,
					"paid_amount": inv.Payment.PaidAmount,
				}).
				Mark(ierr.ErrConflict))
		}

		newPaid := types.Round2(inv.Payment.PaidAmount.Sub(req.Amount))
		if newPaid.IsNegative() {
			newPaid = decimal.Zero
		}
		balance := types.Round2(inv.Financial.TotalAmount.Sub(newPaid))

		newStatus := types.PaymentStatusPartial
		if newPaid.IsZero() {
			newStatus = types.PaymentStatusPending
		} else if types.IsSettled(balance) {
			newStatus = types.PaymentStatusPaid
		}
		if !inv.Payment.Status.CanTransitionTo(newStatus) {
			return backoff.Permanent(ierr.NewErrorf("cannot move payment status from %s to %s", inv.Payment.Status, newStatus).
				WithHint("Invalid payment status transition").
				Mark(ierr.ErrInvalidOperation))
		}

		now := s.Clock.Now()
		inv.Payment.PaidAmount = newPaid
		inv.Payment.BalanceDue = balance
		inv.Payment.Status = newStatus
		inv.Payment.Transactions = append(inv.Payment.Transactions, &invoice.Transaction{
			ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TRANSACTION),
			Type:       types.TransactionTypeRefund,
			Method:     types.PaymentMethodManual,
			Amount:     req.Amount.Neg(),
			Notes:      req.Reason,
			RecordedBy: types.GetUserID(ctx),
			RecordedAt: now,
		})
		inv.UpdatedBy = types.GetUserID(ctx)

		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
		result = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("refund recorded",
		"invoice_id", result.ID,
		"amount", req.Amount,
		"payment_status", result.Payment.Status,
		"balance_due", result.Payment.BalanceDue)

	return dto.NewInvoiceResponse(result), nil
}

// loadMutable fetches an invoice and rejects mutations on deleted documents
func (s *paymentLedgerService) loadMutable(ctx context.Context, invoiceID string) (*invoice.Invoice, error) {
	inv, err := s.InvoiceRepo.Get(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Deletion.IsDeleted {
		return nil, ierr.NewError("invoice is deleted").
			WithHint("Cannot mutate a deleted invoice").
			Mark(ierr.ErrInvalidOperation)
	}
	return inv, nil
}

// withLedgerRetry serializes concurrent mutations on one invoice: each
// attempt re-reads current state and performs a version-guarded write, so a
// lost-update race surfaces as ErrVersionConflict and is retried with fresh
// state rather than overwriting another writer.
func (s *paymentLedgerService) withLedgerRetry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(10*time.Millisecond),
			backoff.WithMaxInterval(200*time.Millisecond),
		), ledgerRetryAttempts),
		ctx,
	)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if ierr.IsVersionConflict(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

func transactionType(method types.PaymentMethodType) types.TransactionType {
	if method == types.PaymentMethodCreditNote {
		return types.TransactionTypeCreditNote
	}
	return types.TransactionTypePayment
}
