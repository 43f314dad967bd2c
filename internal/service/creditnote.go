package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/domain/creditnote"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// CreditNoteService manages credit note issuance and consumption. Applying a
// note against an invoice goes through the payment ledger so the invoice side
// of the operation uses the same code path as any other payment.
type CreditNoteService interface {
	IssueCreditNote(ctx context.Context, req *dto.CreateCreditNoteRequest) (*dto.CreditNoteResponse, error)
	GetCreditNote(ctx context.Context, id string) (*dto.CreditNoteResponse, error)
	ListCreditNotes(ctx context.Context, filter *types.CreditNoteFilter) (*dto.ListCreditNotesResponse, error)
	ApplyCreditNote(ctx context.Context, id string, req *dto.ApplyCreditNoteRequest) (*dto.CreditNoteResponse, error)
	RefundCreditNote(ctx context.Context, id string, req *dto.RefundCreditNoteRequest) (*dto.CreditNoteResponse, error)
	VoidCreditNote(ctx context.Context, id string) (*dto.CreditNoteResponse, error)
}

type creditNoteService struct {
	ServiceParams
	paymentService PaymentLedgerService
}

func NewCreditNoteService(params ServiceParams) CreditNoteService {
	return &creditNoteService{
		ServiceParams:  params,
		paymentService: NewPaymentLedgerService(params),
	}
}

func (s *creditNoteService) IssueCreditNote(ctx context.Context, req *dto.CreateCreditNoteRequest) (*dto.CreditNoteResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if req.OriginalInvoiceID != nil {
		inv, err := s.InvoiceRepo.Get(ctx, *req.OriginalInvoiceID)
		if err != nil {
			return nil, err
		}
		if inv.Currency != req.Currency {
			return nil, ierr.NewError("currency mismatch with original invoice").
				WithHint("Credit note currency must match the original invoice currency").
				WithReportableDetails(map[string]any{
					"invoice_currency":     inv.Currency,
					"credit_note_currency": req.Currency,
				}).
				Mark(ierr.ErrValidation)
		}
		if types.ExceedsWithTolerance(req.Amount, inv.Financial.TotalAmount) {
			return nil, ierr.NewError("amount exceeds original invoice total").
				WithHint("Credit note amount cannot exceed the original invoice total").
				WithReportableDetails(map[string]any{
					"amount":       req.Amount,
					"total_amount": inv.Financial.TotalAmount,
				}).
				Mark(ierr.ErrConflict)
		}
	}

	cn := &creditnote.CreditNote{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CREDIT_NOTE),
		OriginalInvoiceID: req.OriginalInvoiceID,
		Reason:            req.Reason,
		Currency:          req.Currency,
		Amount:            req.Amount,
		BalanceRemaining:  req.Amount,
		CreditNoteStatus:  types.CreditNoteStatusIssued,
		Metadata:          req.Metadata,
		Version:           1,
		BaseModel:         types.GetDefaultBaseModel(ctx),
	}

	if err := s.createWithNumber(ctx, cn); err != nil {
		return nil, err
	}

	if req.OriginalInvoiceID != nil {
		s.linkToInvoice(ctx, cn, *req.OriginalInvoiceID)
	}

	s.Logger.Infow("credit note issued",
		"credit_note_id", cn.ID,
		"credit_note_number", cn.CreditNoteNumber,
		"amount", cn.Amount)

	return dto.NewCreditNoteResponse(cn), nil
}

// linkToInvoice stamps a traceability reference onto the original invoice's
// metadata. The link is informational; a failure here never fails issuance.
func (s *creditNoteService) linkToInvoice(ctx context.Context, cn *creditnote.CreditNote, invoiceID string) {
	err := s.withNoteRetry(ctx, func() error {
		inv, err := s.InvoiceRepo.Get(ctx, invoiceID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if inv.Metadata == nil {
			inv.Metadata = types.Metadata{}
		}
		inv.Metadata["credit_note_"+cn.ID] = cn.CreditNoteNumber
		inv.UpdatedBy = types.GetUserID(ctx)
		return s.InvoiceRepo.Update(ctx, inv)
	})
	if err != nil {
		s.Logger.Errorw("failed to link credit note to invoice",
			"credit_note_id", cn.ID,
			"invoice_id", invoiceID,
			"error", err)
	}
}

func (s *creditNoteService) createWithNumber(ctx context.Context, cn *creditnote.CreditNote) error {
	number := types.GenerateDocumentNumber(types.SHORT_ID_PREFIX_CREDIT_NOTE)

	var err error
	for attempt := 0; attempt < numberRetryAttempts; attempt++ {
		if attempt == 0 {
			cn.CreditNoteNumber = number
		} else {
			cn.CreditNoteNumber = types.WithNumberSuffix(number)
		}
		err = s.CreditNoteRepo.Create(ctx, cn)
		if err == nil || !ierr.IsAlreadyExists(err) {
			return err
		}
		s.Logger.Warnw("credit note number collision, retrying",
			"credit_note_number", cn.CreditNoteNumber)
	}
	return err
}

func (s *creditNoteService) GetCreditNote(ctx context.Context, id string) (*dto.CreditNoteResponse, error) {
	cn, err := s.CreditNoteRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewCreditNoteResponse(cn), nil
}

func (s *creditNoteService) ListCreditNotes(ctx context.Context, filter *types.CreditNoteFilter) (*dto.ListCreditNotesResponse, error) {
	if filter == nil {
		filter = types.NewCreditNoteFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	notes, err := s.CreditNoteRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	count, err := s.CreditNoteRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &dto.ListCreditNotesResponse{
		Items: lo.Map(notes, func(cn *creditnote.CreditNote, _ int) *dto.CreditNoteResponse {
			return dto.NewCreditNoteResponse(cn)
		}),
		Pagination: types.NewPaginationResponse(count, filter.GetLimit(), filter.GetOffset()),
	}, nil
}

// ApplyCreditNote consumes part of the note against an invoice balance. The
// note balance is decremented first; if the invoice payment fails the
// decrement is compensated so the note never loses value without a matching
// invoice credit.
func (s *creditNoteService) ApplyCreditNote(ctx context.Context, id string, req *dto.ApplyCreditNoteRequest) (*dto.CreditNoteResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var result *creditnote.CreditNote
	err := s.withNoteRetry(ctx, func() error {
		cn, err := s.CreditNoteRepo.Get(ctx, id)
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := s.checkConsumable(cn, req.Amount); err != nil {
			return backoff.Permanent(err)
		}

		now := s.Clock.Now()
		cn.BalanceRemaining = types.Round2(cn.BalanceRemaining.Sub(req.Amount))
		cn.Applications = append(cn.Applications, &creditnote.Application{
			InvoiceID: req.InvoiceID,
			Amount:    req.Amount,
			AppliedAt: now,
		})
		cn.CreditNoteStatus = types.CreditNoteStatusPartial
		if cn.BalanceRemaining.IsZero() {
			cn.CreditNoteStatus = types.CreditNoteStatusApplied
		}
		cn.UpdatedBy = types.GetUserID(ctx)

		if err := s.CreditNoteRepo.Update(ctx, cn); err != nil {
			return err
		}
		result = cn
		return nil
	})
	if err != nil {
		return nil, err
	}

	_, err = s.paymentService.RecordPayment(ctx, req.InvoiceID, &dto.RecordPaymentRequest{
		Amount:    req.Amount,
		Method:    types.PaymentMethodCreditNote,
		Reference: result.CreditNoteNumber,
		Notes:     "credit note application",
	})
	if err != nil {
		if rbErr := s.rollbackApplication(ctx, id, req); rbErr != nil {
			s.Logger.Errorw("failed to roll back credit note application",
				"credit_note_id", id,
				"invoice_id", req.InvoiceID,
				"error", rbErr)
		}
		return nil, err
	}

	s.Logger.Infow("credit note applied",
		"credit_note_id", result.ID,
		"invoice_id", req.InvoiceID,
		"amount", req.Amount,
		"balance_remaining", result.BalanceRemaining)

	return dto.NewCreditNoteResponse(result), nil
}

// rollbackApplication removes the most recent application for the given
// invoice and restores the note balance after a failed invoice payment
func (s *creditNoteService) rollbackApplication(ctx context.Context, id string, req *dto.ApplyCreditNoteRequest) error {
	return s.withNoteRetry(ctx, func() error {
		cn, err := s.CreditNoteRepo.Get(ctx, id)
		if err != nil {
			return backoff.Permanent(err)
		}

		for i := len(cn.Applications) - 1; i >= 0; i-- {
			app := cn.Applications[i]
			if app.InvoiceID == req.InvoiceID && app.Amount.Equal(req.Amount) {
				cn.Applications = append(cn.Applications[:i], cn.Applications[i+1:]...)
				break
			}
		}
		cn.BalanceRemaining = types.Round2(cn.Amount.Sub(cn.AppliedTotal()).Sub(cn.RefundedTotal()))
		cn.CreditNoteStatus = types.CreditNoteStatusPartial
		if len(cn.Applications) == 0 && len(cn.Refunds) == 0 {
			cn.CreditNoteStatus = types.CreditNoteStatusIssued
		}
		cn.UpdatedBy = types.GetUserID(ctx)
		return s.CreditNoteRepo.Update(ctx, cn)
	})
}

// RefundCreditNote cashes out part of the note's remaining balance
func (s *creditNoteService) RefundCreditNote(ctx context.Context, id string, req *dto.RefundCreditNoteRequest) (*dto.CreditNoteResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var result *creditnote.CreditNote
	err := s.withNoteRetry(ctx, func() error {
		cn, err := s.CreditNoteRepo.Get(ctx, id)
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := s.checkConsumable(cn, req.Amount); err != nil {
			return backoff.Permanent(err)
		}

		now := s.Clock.Now()
		cn.BalanceRemaining = types.Round2(cn.BalanceRemaining.Sub(req.Amount))
		cn.Refunds = append(cn.Refunds, &creditnote.Refund{
			Amount:     req.Amount,
			Reference:  req.Reference,
			RefundedAt: now,
		})
		cn.CreditNoteStatus = types.CreditNoteStatusPartial
		if cn.BalanceRemaining.IsZero() {
			cn.CreditNoteStatus = types.CreditNoteStatusRefunded
		}
		cn.UpdatedBy = types.GetUserID(ctx)

		if err := s.CreditNoteRepo.Update(ctx, cn); err != nil {
			return err
		}
		result = cn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("credit note refunded",
		"credit_note_id", result.ID,
		"amount", req.Amount,
		"balance_remaining", result.BalanceRemaining)

	return dto.NewCreditNoteResponse(result), nil
}

// VoidCreditNote cancels an unused note. A note with any application or
// refund can no longer be voided.
func (s *creditNoteService) VoidCreditNote(ctx context.Context, id string) (*dto.CreditNoteResponse, error) {
	var result *creditnote.CreditNote
	err := s.withNoteRetry(ctx, func() error {
		cn, err := s.CreditNoteRepo.Get(ctx, id)
		if err != nil {
			return backoff.Permanent(err)
		}

		if len(cn.Applications) > 0 || len(cn.Refunds) > 0 {
			return backoff.Permanent(ierr.NewError("credit note has been used").
				WithHint("A credit note with applications or refunds cannot be voided").
				Mark(ierr.ErrConflict))
		}
		if !cn.CreditNoteStatus.CanTransitionTo(types.CreditNoteStatusVoid) {
			return backoff.Permanent(ierr.NewErrorf("cannot void credit note in status %s", cn.CreditNoteStatus).
				WithHint("Credit note cannot be voided in its current status").
				Mark(ierr.ErrInvalidOperation))
		}

		cn.CreditNoteStatus = types.CreditNoteStatusVoid
		cn.BalanceRemaining = cn.Amount
		cn.UpdatedBy = types.GetUserID(ctx)

		if err := s.CreditNoteRepo.Update(ctx, cn); err != nil {
			return err
		}
		result = cn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("credit note voided", "credit_note_id", result.ID)
	return dto.NewCreditNoteResponse(result), nil
}

// checkConsumable verifies the note is live and has enough balance for the
// requested amount
func (s *creditNoteService) checkConsumable(cn *creditnote.CreditNote, amount decimal.Decimal) error {
	switch cn.CreditNoteStatus {
	case types.CreditNoteStatusIssued, types.CreditNoteStatusPartial:
	default:
		return ierr.NewErrorf("credit note is %s", cn.CreditNoteStatus).
			WithHint("Credit note is not available for use").
			Mark(ierr.ErrInvalidOperation)
	}

	if types.ExceedsWithTolerance(amount, cn.BalanceRemaining) {
		return ierr.NewError("amount exceeds remaining balance").
			WithHint("Amount cannot exceed the credit note's remaining balance").
			WithReportableDetails(map[string]any{
				"amount":            amount,
				"balance_remaining": cn.BalanceRemaining,
			}).
			Mark(ierr.ErrConflict)
	}
	return nil
}

// withNoteRetry mirrors the invoice ledger retry loop for note mutations
func (s *creditNoteService) withNoteRetry(ctx context.Context, op func() error) error {
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
