package service

import (
	"testing"
	"time"

	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/domain/client"
	"github.com/ledgerline/ledgerline/internal/domain/invoice"
	"github.com/ledgerline/ledgerline/internal/domain/notification"
	"github.com/ledgerline/ledgerline/internal/testutil"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type DunningServiceSuite struct {
	testutil.BaseServiceTestSuite
	service DunningService
	client  *client.Client
}

func TestDunningService(t *testing.T) {
	suite.Run(t, new(DunningServiceSuite))
}

func (s *DunningServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewDunningService(s.params())

	s.client = &client.Client{
		ID:    "client_1",
		Name:  "Acme Corp",
		Email: "billing@acme.test",
	}
	s.GetStores().ClientRepo.(*testutil.InMemoryClientStore).Add(s.client)
}

func (s *DunningServiceSuite) params() ServiceParams {
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

// newOverdueInvoice creates an unpaid invoice due the given number of days
// before the mock clock's current day
func (s *DunningServiceSuite) newOverdueInvoice(id string, daysOverdue int, email string) *invoice.Invoice {
	now := s.GetClock().Now()
	total := decimal.NewFromFloat(500)
	inv := &invoice.Invoice{
		ID:            id,
		InvoiceNumber: "INV-DUN-" + id,
		ClientID:      s.client.ID,
		ClientName:    s.client.Name,
		ClientEmail:   email,
		Currency:      "USD",
		Financial: invoice.FinancialSummary{
			Subtotal:    total,
			TotalAmount: total,
			DueDate:     types.StartOfDay(now).AddDate(0, 0, -daysOverdue),
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
	s.Require().NoError(s.GetStores().InvoiceRepo.Create(s.GetContext(), inv))
	return inv
}

func (s *DunningServiceSuite) TestNoReminderBeforeThreeDays() {
	s.newOverdueInvoice("inv_1", 2, s.client.Email)

	result := s.service.RunSweep(s.GetContext())
	s.Equal(1, result.Processed)
	s.Equal(1, result.Skipped)
	s.Empty(s.GetDispatcher().Sent())
}

func (s *DunningServiceSuite) TestTierOneReminder() {
	inv := s.newOverdueInvoice("inv_1", 4, s.client.Email)

	result := s.service.RunSweep(s.GetContext())
	s.Equal(1, result.Succeeded)

	sent := s.GetDispatcher().Sent()
	s.Require().Len(sent, 1)
	s.Equal(notification.TemplatePaymentReminder, sent[0].Template)

	fresh, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(1, fresh.Payment.RemindersSent)
	s.NotNil(fresh.Payment.LastReminderAt)
	s.Equal(types.PaymentStatusOverdue, fresh.Payment.Status)
	s.Equal(types.WorkflowStatusOverdue, fresh.Workflow.Status)
}

func (s *DunningServiceSuite) TestTierOneCapIsOneReminder() {
	s.newOverdueInvoice("inv_1", 3, s.client.Email)

	s.service.RunSweep(s.GetContext())
	s.GetClock().Advance(48 * time.Hour)
	result := s.service.RunSweep(s.GetContext())

	// still in tier one (5 days overdue) and already at its cap
	s.Equal(1, result.Skipped)
	s.Len(s.GetDispatcher().Sent(), 1)
}

func (s *DunningServiceSuite) TestEscalationThroughTiers() {
	inv := s.newOverdueInvoice("inv_1", 4, s.client.Email)

	s.service.RunSweep(s.GetContext())

	// move into tier two
	s.GetClock().Advance(4 * 24 * time.Hour)
	result := s.service.RunSweep(s.GetContext())
	s.Equal(1, result.Succeeded)

	// move into tier three
	s.GetClock().Advance(7 * 24 * time.Hour)
	result = s.service.RunSweep(s.GetContext())
	s.Equal(1, result.Succeeded)

	sent := s.GetDispatcher().Sent()
	s.Require().Len(sent, 3)
	s.Equal(notification.TemplatePaymentReminder, sent[0].Template)
	s.Equal(notification.TemplatePaymentUrgent, sent[1].Template)
	s.Equal(notification.TemplatePaymentFinalNotice, sent[2].Template)

	fresh, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(3, fresh.Payment.RemindersSent)
}

func (s *DunningServiceSuite) TestTwentyFourHourGuard() {
	s.newOverdueInvoice("inv_1", 8, s.client.Email)

	s.service.RunSweep(s.GetContext())

	// a second run twelve hours later is inside the cooldown even though
	// the tier cap would allow another reminder
	s.GetClock().Advance(12 * time.Hour)
	result := s.service.RunSweep(s.GetContext())
	s.Equal(1, result.Skipped)
	s.Len(s.GetDispatcher().Sent(), 1)

	s.GetClock().Advance(13 * time.Hour)
	result = s.service.RunSweep(s.GetContext())
	s.Equal(1, result.Succeeded)
	s.Len(s.GetDispatcher().Sent(), 2)
}

func (s *DunningServiceSuite) TestFinalNoticeCapStopsReminders() {
	inv := s.newOverdueInvoice("inv_1", 20, s.client.Email)

	for i := 0; i < 5; i++ {
		s.service.RunSweep(s.GetContext())
		s.GetClock().Advance(25 * time.Hour)
	}

	s.Len(s.GetDispatcher().Sent(), 3)
	fresh, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(3, fresh.Payment.RemindersSent)
}

func (s *DunningServiceSuite) TestPaidInvoiceNotSwept() {
	inv := s.newOverdueInvoice("inv_1", 10, s.client.Email)

	payments := NewPaymentLedgerService(s.params())
	_, err := payments.RecordPayment(s.GetContext(), inv.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromFloat(500),
		Method: types.PaymentMethodManual,
	})
	s.NoError(err)

	result := s.service.RunSweep(s.GetContext())
	s.Equal(0, result.Processed)
	s.Empty(s.GetDispatcher().Sent())
}

func (s *DunningServiceSuite) TestDispatchFailureLeavesCounterUntouched() {
	inv := s.newOverdueInvoice("inv_1", 4, "fail@acme.test")
	ok := s.newOverdueInvoice("inv_2", 4, s.client.Email)
	s.GetDispatcher().FailFor("fail@acme.test")

	result := s.service.RunSweep(s.GetContext())
	s.Equal(2, result.Processed)
	s.Equal(1, result.Succeeded)
	s.Equal(1, result.Failed)
	s.Require().Len(result.Errors, 1)
	s.Equal(inv.ID, result.Errors[0].InvoiceID)

	// the failed invoice keeps its counter so the next sweep retries
	fresh, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(0, fresh.Payment.RemindersSent)
	s.Nil(fresh.Payment.LastReminderAt)

	freshOK, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), ok.ID)
	s.NoError(err)
	s.Equal(1, freshOK.Payment.RemindersSent)
}

func (s *DunningServiceSuite) TestStaleSnapshotSendsOneReminder() {
	inv := s.newOverdueInvoice("inv_1", 8, s.client.Email)
	svc := s.service.(*dunningService)
	asOf := s.GetClock().Now()

	// two sweeps listing the same invoice before either has reminded it,
	// as when the cron endpoint races the in-process scheduler
	stale1, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.Require().NoError(err)
	stale2, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	sent1, err := svc.processInvoice(s.GetContext(), stale1, asOf)
	s.NoError(err)
	s.True(sent1)

	sent2, err := svc.processInvoice(s.GetContext(), stale2, asOf)
	s.NoError(err)
	s.False(sent2)

	s.Len(s.GetDispatcher().Sent(), 1)
	fresh, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(1, fresh.Payment.RemindersSent)
}

func (s *DunningServiceSuite) TestConflictRetryDoesNotDoubleCount() {
	inv := s.newOverdueInvoice("inv_1", 8, s.client.Email)
	svc := s.service.(*dunningService)
	asOf := s.GetClock().Now()

	stale, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.Require().NoError(err)

	// another sweep records the reminder first, bumping the row version
	winner, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.Require().NoError(err)
	s.Require().NoError(svc.markReminded(s.GetContext(), winner, asOf))

	// the loser's retry must notice the recorded reminder and back off
	// instead of re-applying the counter bump on the fresh row
	s.NoError(svc.markReminded(s.GetContext(), stale, asOf))

	fresh, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), inv.ID)
	s.NoError(err)
	s.Equal(1, fresh.Payment.RemindersSent)
	s.Require().NotNil(fresh.Payment.LastReminderAt)
	s.True(fresh.Payment.LastReminderAt.Equal(asOf))
}

func (s *DunningServiceSuite) TestPartialPaymentStillDunned() {
	inv := s.newOverdueInvoice("inv_1", 4, s.client.Email)

	payments := NewPaymentLedgerService(s.params())
	_, err := payments.RecordPayment(s.GetContext(), inv.ID, &dto.RecordPaymentRequest{
		Amount: decimal.NewFromFloat(100),
		Method: types.PaymentMethodManual,
	})
	s.NoError(err)

	result := s.service.RunSweep(s.GetContext())
	s.Equal(1, result.Succeeded)

	sent := s.GetDispatcher().Sent()
	s.Require().Len(sent, 1)
	balance, ok := sent[0].Payload["balance_due"].(decimal.Decimal)
	s.True(ok)
	s.True(balance.Equal(decimal.NewFromFloat(400)))
}
