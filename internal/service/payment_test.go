package service

import (
	"testing"
	"time"

	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/domain/client"
	"github.com/ledgerline/ledgerline/internal/domain/invoice"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/testutil"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PaymentLedgerServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  PaymentLedgerService
	testData struct {
		client  *client.Client
		invoice *invoice.Invoice
	}
}

func TestPaymentLedgerService(t *testing.T) {
	suite.Run(t, new(PaymentLedgerServiceSuite))
}

func (s *PaymentLedgerServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewPaymentLedgerService(s.serviceParams())
	s.setupTestData()
}

func (s *PaymentLedgerServiceSuite) serviceParams() ServiceParams {
	return ServiceParams{
		Logger:         s.GetLogger(),
		Config:         s.GetConfig(),
		Clock:          s.GetClock(),
		InvoiceRepo:    s.GetStores().InvoiceRepo,
		CreditNoteRepo: s.GetStores().CreditNoteRepo,
		ClientRepo:     s.GetStores().ClientRepo,
		Dispatcher:     s.GetDispatcher(),
	}
}

func (s *PaymentLedgerServiceSuite) setupTestData() {
	s.testData.client = &client.Client{
		ID:    "client_1",
		Name:  "Acme Corp",
		Email: "billing@acme.test",
	}
	s.GetStores().ClientRepo.(*testutil.InMemoryClientStore).Add(s.testData.client)

	s.testData.invoice = s.newInvoice("inv_test_1", "INV-1001", decimal.NewFromFloat(250))
	s.NoError(s.GetStores().InvoiceRepo.Create(s.GetContext(), s.testData.invoice))
}

func (s *PaymentLedgerServiceSuite) newInvoice(id, number string, total decimal.Decimal) *invoice.Invoice {
	now := s.GetClock().Now()
	return &invoice.Invoice{
		ID:            id,
		InvoiceNumber: number,
		ClientID:      s.testData.client.ID,
		ClientName:    s.testData.client.Name,
		ClientEmail:   s.testData.client.Email,
		Currency:      "USD",
		LineItems: []*invoice.LineItem{
			{
				ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LINE_ITEM),
				Description: "Consulting",
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   total,
				Amount:      total,
			},
		},
		Financial: invoice.FinancialSummary{
			Subtotal:     total,
			TotalAmount:  total,
			PaymentTerms: 14,
			DueDate:      now.AddDate(0, 0, 14),
		},
		Payment: invoice.PaymentDetails{
			Status:     types.PaymentStatusPending,
			PaidAmount: decimal.Zero,
			BalanceDue: total,
		},
		Workflow: invoice.Workflow{Status: types.WorkflowStatusSent},
		Version:  1,
		BaseModel: types.BaseModel{
			OrganizationID: types.DefaultOrganizationID,
			Status:         types.StatusPublished,
			CreatedAt:      now,
			UpdatedAt:      now,
			CreatedBy:      types.DefaultUserID,
			UpdatedBy:      types.DefaultUserID,
		},
	}
}

func (s *PaymentLedgerServiceSuite) TestRecordPartialThenFinalPayment() {
	resp, err := s.service.RecordPayment(s.GetContext(), s.testData.invoice.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromFloat(100),
		Method: types.PaymentMethodBankTransfer,
	})
	s.NoError(err)
	s.Equal(types.PaymentStatusPartial, resp.Payment.Status)
	s.True(resp.Payment.PaidAmount.Equal(decimal.NewFromFloat(100)))
	s.True(resp.Payment.BalanceDue.Equal(decimal.NewFromFloat(150)))
	s.Len(resp.Payment.Transactions, 1)

	resp, err = s.service.RecordPayment(s.GetContext(), s.testData.invoice.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromFloat(150),
		Method: types.PaymentMethodCard,
	})
	s.NoError(err)
	s.Equal(types.PaymentStatusPaid, resp.Payment.Status)
	s.True(resp.Payment.BalanceDue.IsZero())
	s.Len(resp.Payment.Transactions, 2)
}

func (s *PaymentLedgerServiceSuite) TestPaymentSettlesWithinTolerance() {
	resp, err := s.service.RecordPayment(s.GetContext(), s.testData.invoice.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromFloat(249.99),
		Method: types.PaymentMethodManual,
	})
	s.NoError(err)
	s.Equal(types.PaymentStatusPaid, resp.Payment.Status)
	s.True(resp.Payment.BalanceDue.Equal(decimal.NewFromFloat(0.01)))
}

func (s *PaymentLedgerServiceSuite) TestOverPaymentRejected() {
	_, err := s.service.RecordPayment(s.GetContext(), s.testData.invoice.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromFloat(300),
		Method: types.PaymentMethodManual,
	})
	s.Error(err)
	s.True(ierr.IsConflict(err))

	// ledger must be untouched
	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.testData.invoice.ID)
	s.NoError(err)
	s.True(inv.Payment.PaidAmount.IsZero())
	s.Equal(types.PaymentStatusPending, inv.Payment.Status)
	s.Empty(inv.Payment.Transactions)
}

func (s *PaymentLedgerServiceSuite) TestCumulativeOverPaymentRejected() {
	_, err := s.service.RecordPayment(s.GetContext(), s.testData.invoice.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromFloat(200),
		Method: types.PaymentMethodManual,
	})
	s.NoError(err)

	_, err = s.service.RecordPayment(s.GetContext(), s.testData.invoice.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromFloat(100),
		Method: types.PaymentMethodManual,
	})
	s.Error(err)
	s.True(ierr.IsConflict(err))
}

func (s *PaymentLedgerServiceSuite) TestNonPositiveAmountRejected() {
	_, err := s.service.RecordPayment(s.GetContext(), s.testData.invoice.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromFloat(-10),
		Method: types.PaymentMethodManual,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PaymentLedgerServiceSuite) TestPaymentClearsReminderWindow() {
	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.testData.invoice.ID)
	s.NoError(err)
	lastReminder := s.GetClock().Now().Add(-2 * time.Hour)
	inv.Payment.RemindersSent = 1
	inv.Payment.LastReminderAt = &lastReminder
	s.NoError(s.GetStores().InvoiceRepo.Update(s.GetContext(), inv))

	resp, err := s.service.RecordPayment(s.GetContext(), s.testData.invoice.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromFloat(50),
		Method: types.PaymentMethodManual,
	})
	s.NoError(err)
	s.Nil(resp.Payment.LastReminderAt)
	// the counter is monotonic and survives payments
	s.Equal(1, resp.Payment.RemindersSent)
}

func (s *PaymentLedgerServiceSuite) TestGatewayPaymentDeduplicatedByReference() {
	req := &dto.RecordPaymentRequest{
		Amount:    decimal.NewFromFloat(250),
		Method:    types.PaymentMethodGateway,
		Reference: "txn_ext_42",
	}

	resp, err := s.service.RecordPayment(s.GetContext(), s.testData.invoice.ID, req)
	s.NoError(err)
	s.Equal(types.PaymentStatusPaid, resp.Payment.Status)
	s.Len(resp.Payment.Transactions, 1)

	// replay with the same external reference is a no-op
	resp, err = s.service.RecordPayment(s.GetContext(), s.testData.invoice.ID, req)
	s.NoError(err)
	s.Len(resp.Payment.Transactions, 1)
	s.True(resp.Payment.PaidAmount.Equal(decimal.NewFromFloat(250)))
}

func (s *PaymentLedgerServiceSuite) TestRefundRestoresBalance() {
	_, err := s.service.RecordPayment(s.GetContext(), s.testData.invoice.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromFloat(250),
		Method: types.PaymentMethodManual,
	})
	s.NoError(err)

	resp, err := s.service.RefundPayment(s.GetContext(), s.testData.invoice.ID, &dto.RefundPaymentRequest{
		Amount: decimal.NewFromFloat(100),
		Reason: "service not delivered",
	})
	s.NoError(err)
	s.Equal(types.PaymentStatusPartial, resp.Payment.Status)
	s.True(resp.Payment.PaidAmount.Equal(decimal.NewFromFloat(150)))
	s.True(resp.Payment.BalanceDue.Equal(decimal.NewFromFloat(100)))

	refund := resp.Payment.Transactions[len(resp.Payment.Transactions)-1]
	s.Equal(types.TransactionTypeRefund, refund.Type)
	s.True(refund.Amount.Equal(decimal.NewFromFloat(-100)))
}

func (s *PaymentLedgerServiceSuite) TestFullRefundReturnsToPending() {
	_, err := s.service.RecordPayment(s.GetContext(), s.testData.invoice.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromFloat(250),
		Method: types.PaymentMethodManual,
	})
	s.NoError(err)

	resp, err := s.service.RefundPayment(s.GetContext(), s.testData.invoice.ID, &dto.RefundPaymentRequest{
		Amount: decimal.NewFromFloat(250),
	})
	s.NoError(err)
	s.Equal(types.PaymentStatusPending, resp.Payment.Status)
	s.True(resp.Payment.PaidAmount.IsZero())
	s.True(resp.Payment.BalanceDue.Equal(decimal.NewFromFloat(250)))
}

func (s *PaymentLedgerServiceSuite) TestRefundExceedingPaidRejected() {
	_, err := s.service.RecordPayment(s.GetContext(), s.testData.invoice.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromFloat(100),
		Method: types.PaymentMethodManual,
	})
	s.NoError(err)

	_, err = s.service.RefundPayment(s.GetContext(), s.testData.invoice.ID, &dto.RefundPaymentRequest{
		Amount: decimal.NewFromFloat(150),
	})
	s.Error(err)
	s.True(ierr.IsConflict(err))
}

func (s *PaymentLedgerServiceSuite) TestMutationOnDeletedInvoiceRejected() {
	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.testData.invoice.ID)
	s.NoError(err)
	now := s.GetClock().Now()
	inv.Deletion.IsDeleted = true
	inv.Deletion.DeletedAt = lo.ToPtr(now)
	s.NoError(s.GetStores().InvoiceRepo.Update(s.GetContext(), inv))

	_, err = s.service.RecordPayment(s.GetContext(), s.testData.invoice.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromFloat(10),
		Method: types.PaymentMethodManual,
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}
