package service

import (
	"context"

	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/domain/invoice"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/samber/lo"
)

// InvoiceService handles invoice and recurring-template lifecycle
type InvoiceService interface {
	CreateInvoice(ctx context.Context, req *dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error)
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)
	DeleteInvoice(ctx context.Context, id string) error
}

type invoiceService struct {
	ServiceParams
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{ServiceParams: params}
}

// numberRetryAttempts bounds invoice number collision retries on create
const numberRetryAttempts = 3

func (s *invoiceService) CreateInvoice(ctx context.Context, req *dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	client, err := s.ClientRepo.Get(ctx, req.ClientID)
	if err != nil {
		return nil, err
	}

	inv := req.ToInvoice(ctx)
	inv.ClientName = client.Name
	inv.ClientEmail = client.Email

	// due date defaults to creation time plus the payment terms
	if inv.Financial.DueDate.IsZero() {
		inv.Financial.DueDate = s.Clock.Now().AddDate(0, 0, inv.Financial.PaymentTerms)
	}

	if err := s.createWithNumber(ctx, inv); err != nil {
		return nil, err
	}

	s.Logger.Infow("invoice created",
		"invoice_id", inv.ID,
		"invoice_number", inv.InvoiceNumber,
		"client_id", inv.ClientID,
		"total_amount", inv.Financial.TotalAmount,
		"is_recurring", inv.Recurrence.IsRecurring)

	return dto.NewInvoiceResponse(inv), nil
}

// createWithNumber assigns a document number and persists, retrying with a
// suffixed number when the generated one collides
func (s *invoiceService) createWithNumber(ctx context.Context, inv *invoice.Invoice) error {
	number := types.GenerateDocumentNumber(types.SHORT_ID_PREFIX_INVOICE)

	var err error
	for attempt := 0; attempt < numberRetryAttempts; attempt++ {
		if attempt == 0 {
			inv.InvoiceNumber = number
		} else {
			inv.InvoiceNumber = types.WithNumberSuffix(number)
		}
		err = s.InvoiceRepo.Create(ctx, inv)
		if err == nil || !ierr.IsAlreadyExists(err) {
			return err
		}
		s.Logger.Warnw("invoice number collision, retrying",
			"invoice_number", inv.InvoiceNumber)
	}
	return err
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if filter == nil {
		filter = &types.InvoiceFilter{QueryFilter: types.NewDefaultQueryFilter()}
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	count, err := s.InvoiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &dto.ListInvoicesResponse{
		Items: lo.Map(invoices, func(inv *invoice.Invoice, _ int) *dto.InvoiceResponse {
			return dto.NewInvoiceResponse(inv)
		}),
		Pagination: types.NewPaginationResponse(count, filter.GetLimit(), filter.GetOffset()),
	}, nil
}

// DeleteInvoice soft deletes. Deleted invoices keep their rows but are
// excluded from listings, sweeps and further mutation.
func (s *invoiceService) DeleteInvoice(ctx context.Context, id string) error {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	if inv.Deletion.IsDeleted {
		return nil
	}

	now := s.Clock.Now()
	inv.Deletion.IsDeleted = true
	inv.Deletion.DeletedAt = &now
	inv.Status = types.StatusDeleted
	inv.UpdatedBy = types.GetUserID(ctx)

	if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
		return err
	}

	s.Logger.Infow("invoice deleted", "invoice_id", inv.ID)
	return nil
}
