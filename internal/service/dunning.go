package service

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerline/ledgerline/internal/domain/invoice"
	"github.com/ledgerline/ledgerline/internal/domain/notification"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/sourcegraph/conc/pool"
)

// DunningService runs the daily overdue sweep. Reminders escalate through
// three tiers by days overdue, each tier capped by a cumulative reminder
// count, with a 24 hour guard between consecutive sends per invoice.
type DunningService interface {
	RunSweep(ctx context.Context) *types.SweepRunResult
}

type dunningService struct {
	ServiceParams
}

func NewDunningService(params ServiceParams) DunningService {
	return &dunningService{ServiceParams: params}
}

const (
	sweepTaskDunning = "payment_reminders"

	// reminderCooldown is the minimum gap between reminders on one invoice
	reminderCooldown = 24 * time.Hour
)

// dunningTier maps a days-overdue window to a reminder template. MaxSent is
// the cumulative cap: the tier fires only while reminders_sent is below it.
type dunningTier struct {
	MinDays  int
	MaxDays  int // inclusive; 0 means unbounded
	MaxSent  int
	Template notification.Template
}

var dunningTiers = []dunningTier{
	{MinDays: 3, MaxDays: 6, MaxSent: 1, Template: notification.TemplatePaymentReminder},
	{MinDays: 7, MaxDays: 13, MaxSent: 2, Template: notification.TemplatePaymentUrgent},
	{MinDays: 14, MaxSent: 3, Template: notification.TemplatePaymentFinalNotice},
}

// tierFor returns the tier matching the given days overdue, or nil when the
// invoice is not yet in any reminder window.
func tierFor(daysOverdue int) *dunningTier {
	for i := range dunningTiers {
		t := &dunningTiers[i]
		if daysOverdue < t.MinDays {
			continue
		}
		if t.MaxDays == 0 || daysOverdue <= t.MaxDays {
			return t
		}
	}
	return nil
}

func (s *dunningService) RunSweep(ctx context.Context) *types.SweepRunResult {
	asOf := s.Clock.Now()
	result := &types.SweepRunResult{
		Task:      sweepTaskDunning,
		StartedAt: asOf,
	}

	overdue, err := s.InvoiceRepo.ListOverdue(ctx, asOf)
	if err != nil {
		s.Logger.Errorw("failed to list overdue invoices", "error", err)
		result.Failed++
		result.Errors = append(result.Errors, types.SweepRunError{Error: err.Error()})
		result.FinishedAt = s.Clock.Now()
		return result
	}

	s.Logger.Infow("dunning sweep started",
		"as_of", asOf,
		"overdue_invoices", len(overdue))

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(s.Config.Billing.SweepWorkers)
	for _, inv := range overdue {
		inv := inv
		p.Go(func() {
			itemCtx, cancel := context.WithTimeout(ctx, s.Config.Billing.ItemTimeout)
			defer cancel()

			sent, err := s.processInvoice(itemCtx, inv, asOf)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			switch {
			case err != nil:
				result.Failed++
				result.Errors = append(result.Errors, types.SweepRunError{
					InvoiceID: inv.ID,
					Error:     err.Error(),
				})
			case sent:
				result.Succeeded++
			default:
				result.Skipped++
			}
		})
	}
	p.Wait()

	result.FinishedAt = s.Clock.Now()
	s.Logger.Infow("dunning sweep finished",
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped)
	return result
}

// processInvoice evaluates one overdue invoice against the tier table and
// sends at most one reminder. Returns false when the invoice is outside every
// window, already at its tier cap, or inside the cooldown.
func (s *dunningService) processInvoice(ctx context.Context, inv *invoice.Invoice, asOf time.Time) (bool, error) {
	// the listing snapshot may be stale by the time this item runs: a
	// concurrent sweep could already have reminded or settled the invoice
	fresh, err := s.InvoiceRepo.Get(ctx, inv.ID)
	if err != nil {
		return false, err
	}
	inv = fresh

	tier := s.eligibleTier(inv, asOf)
	if tier == nil {
		return false, nil
	}
	daysOverdue := types.DaysOverdue(inv.Financial.DueDate, asOf)

	// dispatch before mutating: a failed send must leave the counter
	// untouched so the next sweep retries
	err = s.Dispatcher.Dispatch(ctx, inv.ClientEmail, tier.Template, map[string]any{
		"invoice_id":     inv.ID,
		"invoice_number": inv.InvoiceNumber,
		"client_name":    inv.ClientName,
		"balance_due":    inv.Payment.BalanceDue,
		"currency":       inv.Currency,
		"due_date":       inv.Financial.DueDate,
		"days_overdue":   daysOverdue,
	})
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to dispatch payment reminder").
			Mark(ierr.ErrHTTPClient)
	}

	if err := s.markReminded(ctx, inv, asOf); err != nil {
		return false, err
	}

	s.Logger.Infow("payment reminder sent",
		"invoice_id", inv.ID,
		"template", tier.Template,
		"days_overdue", daysOverdue,
		"reminders_sent", inv.Payment.RemindersSent)
	return true, nil
}

// eligibleTier returns the tier a reminder should fire under, or nil when the
// invoice is settled, outside every window, at its tier cap, or inside the
// 24 hour cooldown.
func (s *dunningService) eligibleTier(inv *invoice.Invoice, asOf time.Time) *dunningTier {
	if inv.Payment.Status == types.PaymentStatusPaid {
		return nil
	}
	tier := tierFor(types.DaysOverdue(inv.Financial.DueDate, asOf))
	if tier == nil {
		return nil
	}
	if inv.Payment.RemindersSent >= tier.MaxSent {
		return nil
	}
	if inv.Payment.LastReminderAt != nil && asOf.Sub(*inv.Payment.LastReminderAt) < reminderCooldown {
		return nil
	}
	return tier
}

// markReminded bumps the reminder counter and flips the invoice to OVERDUE,
// retrying the version-guarded write against concurrent ledger mutations.
// After every conflict the eligibility check reruns on the fresh row: when a
// concurrent sweep already recorded a reminder inside the cooldown, or a
// payment settled the invoice, the counter must not move again.
func (s *dunningService) markReminded(ctx context.Context, inv *invoice.Invoice, asOf time.Time) error {
	for attempt := 0; attempt < ledgerRetryAttempts; attempt++ {
		inv.Payment.RemindersSent++
		inv.Payment.LastReminderAt = &asOf
		if inv.Payment.Status.CanTransitionTo(types.PaymentStatusOverdue) {
			inv.Payment.Status = types.PaymentStatusOverdue
		}
		inv.Workflow.Status = types.WorkflowStatusOverdue
		inv.UpdatedBy = types.GetUserID(ctx)

		err := s.InvoiceRepo.Update(ctx, inv)
		if err == nil {
			return nil
		}
		if !ierr.IsVersionConflict(err) {
			return err
		}

		fresh, getErr := s.InvoiceRepo.Get(ctx, inv.ID)
		if getErr != nil {
			return getErr
		}
		if s.eligibleTier(fresh, asOf) == nil {
			return nil
		}
		inv = fresh
	}
	return ierr.NewError("could not record reminder").
		WithHint("Invoice was being modified concurrently").
		Mark(ierr.ErrVersionConflict)
}
