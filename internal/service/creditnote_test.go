package service

import (
	"testing"

	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/domain/client"
	"github.com/ledgerline/ledgerline/internal/domain/invoice"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/testutil"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type CreditNoteServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  CreditNoteService
	testData struct {
		client  *client.Client
		invoice *invoice.Invoice
	}
}

func TestCreditNoteService(t *testing.T) {
	suite.Run(t, new(CreditNoteServiceSuite))
}

func (s *CreditNoteServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewCreditNoteService(ServiceParams{
		Logger:         s.GetLogger(),
		Config:         s.GetConfig(),
		Clock:          s.GetClock(),
		InvoiceRepo:    s.GetStores().InvoiceRepo,
		CreditNoteRepo: s.GetStores().CreditNoteRepo,
		ClientRepo:     s.GetStores().ClientRepo,
		Dispatcher:     s.GetDispatcher(),
	})
	s.setupTestData()
}

func (s *CreditNoteServiceSuite) setupTestData() {
	s.testData.client = &client.Client{
		ID:    "client_1",
		Name:  "Acme Corp",
		Email: "billing@acme.test",
	}
	s.GetStores().ClientRepo.(*testutil.InMemoryClientStore).Add(s.testData.client)

	now := s.GetClock().Now()
	total := decimal.NewFromFloat(200)
	s.testData.invoice = &invoice.Invoice{
		ID:            "inv_target",
		InvoiceNumber: "INV-2001",
		ClientID:      s.testData.client.ID,
		Currency:      "USD",
		Financial: invoice.FinancialSummary{
			Subtotal:    total,
			TotalAmount: total,
			DueDate:     now.AddDate(0, 0, 14),
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
	s.NoError(s.GetStores().InvoiceRepo.Create(s.GetContext(), s.testData.invoice))
}

func (s *CreditNoteServiceSuite) issueNote(amount float64) *dto.CreditNoteResponse {
	resp, err := s.service.IssueCreditNote(s.GetContext(), &dto.CreateCreditNoteRequest{
		Amount:   decimal.NewFromFloat(amount),
		Reason:   "goodwill credit",
		Currency: "USD",
	})
	s.Require().NoError(err)
	return resp
}

func (s *CreditNoteServiceSuite) TestIssueCreditNote() {
	resp := s.issueNote(120)

	s.Equal(types.CreditNoteStatusIssued, resp.CreditNoteStatus)
	s.True(resp.BalanceRemaining.Equal(resp.Amount))
	s.NotEmpty(resp.CreditNoteNumber)
	s.Empty(resp.Applications)
	s.Empty(resp.Refunds)
}

func (s *CreditNoteServiceSuite) newInvoice(id, number string, total float64) *invoice.Invoice {
	now := s.GetClock().Now()
	amount := decimal.NewFromFloat(total)
	inv := &invoice.Invoice{
		ID:            id,
		InvoiceNumber: number,
		ClientID:      s.testData.client.ID,
		Currency:      "USD",
		Financial: invoice.FinancialSummary{
			Subtotal:    amount,
			TotalAmount: amount,
			DueDate:     now.AddDate(0, 0, 14),
		},
		Payment: invoice.PaymentDetails{
			Status:     types.PaymentStatusPending,
			PaidAmount: decimal.Zero,
			BalanceDue: amount,
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
	s.Require().NoError(s.GetStores().InvoiceRepo.Create(s.GetContext(), inv))
	return inv
}

func (s *CreditNoteServiceSuite) TestApplyAcrossTwoInvoicesExhaustsNote() {
	second := s.newInvoice("inv_second", "INV-2002", 80)
	note := s.issueNote(50)

	resp, err := s.service.ApplyCreditNote(s.GetContext(), note.ID, &dto.ApplyCreditNoteRequest{
		InvoiceID: s.testData.invoice.ID,
		Amount:    decimal.NewFromFloat(30),
	})
	s.NoError(err)
	s.Equal(types.CreditNoteStatusPartial, resp.CreditNoteStatus)
	s.True(resp.BalanceRemaining.Equal(decimal.NewFromFloat(20)))

	resp, err = s.service.ApplyCreditNote(s.GetContext(), note.ID, &dto.ApplyCreditNoteRequest{
		InvoiceID: second.ID,
		Amount:    decimal.NewFromFloat(20),
	})
	s.NoError(err)
	s.Equal(types.CreditNoteStatusApplied, resp.CreditNoteStatus)
	s.True(resp.BalanceRemaining.IsZero())
	s.Len(resp.Applications, 2)

	first, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.testData.invoice.ID)
	s.NoError(err)
	s.True(first.Payment.PaidAmount.Equal(decimal.NewFromFloat(30)))

	fresh, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), second.ID)
	s.NoError(err)
	s.True(fresh.Payment.PaidAmount.Equal(decimal.NewFromFloat(20)))
	s.True(fresh.Payment.BalanceDue.Equal(decimal.NewFromFloat(60)))
}

func (s *CreditNoteServiceSuite) TestIssueAgainstInvoiceLinksMetadata() {
	invoiceID := s.testData.invoice.ID
	resp, err := s.service.IssueCreditNote(s.GetContext(), &dto.CreateCreditNoteRequest{
		Amount:            decimal.NewFromFloat(50),
		Reason:            "overcharge",
		Currency:          "USD",
		OriginalInvoiceID: &invoiceID,
	})
	s.NoError(err)

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), invoiceID)
	s.NoError(err)
	s.Equal(resp.CreditNoteNumber, inv.Metadata["credit_note_"+resp.ID])
}

func (s *CreditNoteServiceSuite) TestIssueAgainstInvoiceCapsAmount() {
	invoiceID := s.testData.invoice.ID
	_, err := s.service.IssueCreditNote(s.GetContext(), &dto.CreateCreditNoteRequest{
		Amount:            decimal.NewFromFloat(500),
		Reason:            "overcharge",
		Currency:          "USD",
		OriginalInvoiceID: &invoiceID,
	})
	s.Error(err)
	s.True(ierr.IsConflict(err))
}

func (s *CreditNoteServiceSuite) TestIssueCurrencyMismatchRejected() {
	invoiceID := s.testData.invoice.ID
	_, err := s.service.IssueCreditNote(s.GetContext(), &dto.CreateCreditNoteRequest{
		Amount:            decimal.NewFromFloat(50),
		Reason:            "overcharge",
		Currency:          "EUR",
		OriginalInvoiceID: &invoiceID,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *CreditNoteServiceSuite) TestApplySettlesInvoiceAndDecrementsNote() {
	note := s.issueNote(200)

	resp, err := s.service.ApplyCreditNote(s.GetContext(), note.ID, &dto.ApplyCreditNoteRequest{
		InvoiceID: s.testData.invoice.ID,
		Amount:    decimal.NewFromFloat(200),
	})
	s.NoError(err)
	s.Equal(types.CreditNoteStatusApplied, resp.CreditNoteStatus)
	s.True(resp.BalanceRemaining.IsZero())
	s.Len(resp.Applications, 1)

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.testData.invoice.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusPaid, inv.Payment.Status)
	s.True(inv.Payment.BalanceDue.IsZero())
	s.Require().Len(inv.Payment.Transactions, 1)
	s.Equal(types.TransactionTypeCreditNote, inv.Payment.Transactions[0].Type)
	s.Equal(resp.CreditNoteNumber, inv.Payment.Transactions[0].Reference)
}

func (s *CreditNoteServiceSuite) TestPartialApplyLeavesPartialStatus() {
	note := s.issueNote(150)

	resp, err := s.service.ApplyCreditNote(s.GetContext(), note.ID, &dto.ApplyCreditNoteRequest{
		InvoiceID: s.testData.invoice.ID,
		Amount:    decimal.NewFromFloat(60),
	})
	s.NoError(err)
	s.Equal(types.CreditNoteStatusPartial, resp.CreditNoteStatus)
	s.True(resp.BalanceRemaining.Equal(decimal.NewFromFloat(90)))

	inv, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.testData.invoice.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusPartial, inv.Payment.Status)
	s.True(inv.Payment.BalanceDue.Equal(decimal.NewFromFloat(140)))
}

func (s *CreditNoteServiceSuite) TestApplyExceedingNoteBalanceRejected() {
	note := s.issueNote(50)

	_, err := s.service.ApplyCreditNote(s.GetContext(), note.ID, &dto.ApplyCreditNoteRequest{
		InvoiceID: s.testData.invoice.ID,
		Amount:    decimal.NewFromFloat(80),
	})
	s.Error(err)
	s.True(ierr.IsConflict(err))
}

func (s *CreditNoteServiceSuite) TestApplyExceedingInvoiceBalanceRolledBack() {
	note := s.issueNote(500)

	// over the invoice total; the invoice side rejects and the note
	// decrement must be compensated
	_, err := s.service.ApplyCreditNote(s.GetContext(), note.ID, &dto.ApplyCreditNoteRequest{
		InvoiceID: s.testData.invoice.ID,
		Amount:    decimal.NewFromFloat(300),
	})
	s.Error(err)
	s.True(ierr.IsConflict(err))

	fresh, err := s.GetStores().CreditNoteRepo.Get(s.GetContext(), note.ID)
	s.NoError(err)
	s.True(fresh.BalanceRemaining.Equal(decimal.NewFromFloat(500)))
	s.Empty(fresh.Applications)
	s.Equal(types.CreditNoteStatusIssued, fresh.CreditNoteStatus)
}

func (s *CreditNoteServiceSuite) TestRefundCreditNote() {
	note := s.issueNote(100)

	resp, err := s.service.RefundCreditNote(s.GetContext(), note.ID, &dto.RefundCreditNoteRequest{
		Amount:    decimal.NewFromFloat(40),
		Reference: "payout_1",
	})
	s.NoError(err)
	s.Equal(types.CreditNoteStatusPartial, resp.CreditNoteStatus)
	s.True(resp.BalanceRemaining.Equal(decimal.NewFromFloat(60)))

	resp, err = s.service.RefundCreditNote(s.GetContext(), note.ID, &dto.RefundCreditNoteRequest{
		Amount: decimal.NewFromFloat(60),
	})
	s.NoError(err)
	s.Equal(types.CreditNoteStatusRefunded, resp.CreditNoteStatus)
	s.True(resp.BalanceRemaining.IsZero())
	s.Len(resp.Refunds, 2)
}

func (s *CreditNoteServiceSuite) TestRefundExceedingBalanceRejected() {
	note := s.issueNote(100)

	_, err := s.service.RefundCreditNote(s.GetContext(), note.ID, &dto.RefundCreditNoteRequest{
		Amount: decimal.NewFromFloat(120),
	})
	s.Error(err)
	s.True(ierr.IsConflict(err))
}

func (s *CreditNoteServiceSuite) TestTerminalNoteCannotBeUsed() {
	note := s.issueNote(100)

	_, err := s.service.RefundCreditNote(s.GetContext(), note.ID, &dto.RefundCreditNoteRequest{
		Amount: decimal.NewFromFloat(100),
	})
	s.NoError(err)

	_, err = s.service.ApplyCreditNote(s.GetContext(), note.ID, &dto.ApplyCreditNoteRequest{
		InvoiceID: s.testData.invoice.ID,
		Amount:    decimal.NewFromFloat(10),
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *CreditNoteServiceSuite) TestVoidUnusedNote() {
	note := s.issueNote(100)

	resp, err := s.service.VoidCreditNote(s.GetContext(), note.ID)
	s.NoError(err)
	s.Equal(types.CreditNoteStatusVoid, resp.CreditNoteStatus)

	_, err = s.service.ApplyCreditNote(s.GetContext(), note.ID, &dto.ApplyCreditNoteRequest{
		InvoiceID: s.testData.invoice.ID,
		Amount:    decimal.NewFromFloat(10),
	})
	s.Error(err)
}

func (s *CreditNoteServiceSuite) TestVoidUsedNoteRejected() {
	note := s.issueNote(100)

	_, err := s.service.ApplyCreditNote(s.GetContext(), note.ID, &dto.ApplyCreditNoteRequest{
		InvoiceID: s.testData.invoice.ID,
		Amount:    decimal.NewFromFloat(30),
	})
	s.NoError(err)

	_, err = s.service.VoidCreditNote(s.GetContext(), note.ID)
	s.Error(err)
	s.True(ierr.IsConflict(err))
}
