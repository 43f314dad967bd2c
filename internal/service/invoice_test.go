package service

import (
	"testing"
	"time"

	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/domain/client"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/testutil"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service InvoiceService
	client  *client.Client
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewInvoiceService(ServiceParams{
		Logger:         s.GetLogger(),
		Config:         s.GetConfig(),
		Clock:          s.GetClock(),
		InvoiceRepo:    s.GetStores().InvoiceRepo,
		CreditNoteRepo: s.GetStores().CreditNoteRepo,
		ClientRepo:     s.GetStores().ClientRepo,
		Dispatcher:     s.GetDispatcher(),
	})

	s.client = &client.Client{
		ID:    "client_1",
		Name:  "Acme Corp",
		Email: "billing@acme.test",
	}
	s.GetStores().ClientRepo.(*testutil.InMemoryClientStore).Add(s.client)
}

func (s *InvoiceServiceSuite) newCreateRequest() *dto.CreateInvoiceRequest {
	return &dto.CreateInvoiceRequest{
		ClientID: s.client.ID,
		Currency: "USD",
		LineItems: []*dto.CreateInvoiceLineItemRequest{
			{Description: "Consulting", Quantity: decimal.NewFromInt(10), UnitPrice: decimal.NewFromFloat(50)},
			{Description: "Hosting", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromFloat(25.50)},
		},
		Tax:          decimal.NewFromFloat(42.04),
		PaymentTerms: 14,
	}
}

func (s *InvoiceServiceSuite) TestCreateInvoice() {
	resp, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)

	s.NotEmpty(resp.ID)
	s.NotEmpty(resp.InvoiceNumber)
	s.Equal(s.client.Name, resp.ClientName)
	s.Equal(s.client.Email, resp.ClientEmail)
	s.True(resp.Financial.Subtotal.Equal(decimal.NewFromFloat(525.50)))
	s.True(resp.Financial.TotalAmount.Equal(decimal.NewFromFloat(567.54)))
	s.True(resp.Payment.BalanceDue.Equal(decimal.NewFromFloat(567.54)))
	s.Equal(types.PaymentStatusPending, resp.Payment.Status)
	s.Equal(1, resp.Version)

	// fourteen day terms from the mock clock
	s.True(resp.Financial.DueDate.Equal(s.GetClock().Now().AddDate(0, 0, 14)))
}

func (s *InvoiceServiceSuite) TestCreateInvoiceExplicitDueDate() {
	req := s.newCreateRequest()
	req.DueDate = lo.ToPtr(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))

	resp, err := s.service.CreateInvoice(s.GetContext(), req)
	s.NoError(err)
	s.True(resp.Financial.DueDate.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)))
}

func (s *InvoiceServiceSuite) TestCreateInvoiceUnknownClient() {
	req := s.newCreateRequest()
	req.ClientID = "client_missing"

	_, err := s.service.CreateInvoice(s.GetContext(), req)
	s.True(ierr.IsNotFound(err))
}

func (s *InvoiceServiceSuite) TestCreateRecurringTemplate() {
	req := s.newCreateRequest()
	req.Recurring = true
	req.Frequency = types.RecurrenceFrequencyMonthly
	req.StartDate = lo.ToPtr(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))

	resp, err := s.service.CreateInvoice(s.GetContext(), req)
	s.NoError(err)
	s.True(resp.Recurrence.IsRecurring)
	s.Equal(types.RecurrenceFrequencyMonthly, resp.Recurrence.Frequency)
	s.Require().NotNil(resp.Recurrence.NextDate)
	s.True(resp.Recurrence.NextDate.Equal(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)))
}

func (s *InvoiceServiceSuite) TestCreateRecurringTemplateWithoutStartDateRejected() {
	req := s.newCreateRequest()
	req.Recurring = true
	req.Frequency = types.RecurrenceFrequencyMonthly

	_, err := s.service.CreateInvoice(s.GetContext(), req)
	s.True(ierr.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestCreateInvoiceWithoutLineItemsRejected() {
	req := s.newCreateRequest()
	req.LineItems = nil

	_, err := s.service.CreateInvoice(s.GetContext(), req)
	s.True(ierr.IsValidation(err))
}

func (s *InvoiceServiceSuite) TestListInvoicesFiltersByNumber() {
	first, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)
	_, err = s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)

	list, err := s.service.ListInvoices(s.GetContext(), &types.InvoiceFilter{
		QueryFilter:   types.NewDefaultQueryFilter(),
		InvoiceNumber: first.InvoiceNumber,
	})
	s.NoError(err)
	s.Require().Len(list.Items, 1)
	s.Equal(first.ID, list.Items[0].ID)
	s.Equal(1, list.Pagination.Total)
}

func (s *InvoiceServiceSuite) TestDeleteInvoiceIsSoftAndIdempotent() {
	resp, err := s.service.CreateInvoice(s.GetContext(), s.newCreateRequest())
	s.NoError(err)

	s.NoError(s.service.DeleteInvoice(s.GetContext(), resp.ID))
	// a second delete is a no-op
	s.NoError(s.service.DeleteInvoice(s.GetContext(), resp.ID))

	fresh, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), resp.ID)
	s.NoError(err)
	s.True(fresh.Deletion.IsDeleted)
	s.NotNil(fresh.Deletion.DeletedAt)
	s.Equal(types.StatusDeleted, fresh.Status)

	list, err := s.service.ListInvoices(s.GetContext(), nil)
	s.NoError(err)
	s.Empty(list.Items)
}
