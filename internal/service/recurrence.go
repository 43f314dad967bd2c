package service

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerline/ledgerline/internal/domain/invoice"
	"github.com/ledgerline/ledgerline/internal/domain/notification"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/idempotency"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
)

// RecurrenceService runs the daily sweep that clones due recurring templates
// into concrete invoices. A period is identified by (parent_invoice_id,
// generation_date); a replayed sweep finds the existing child and repairs the
// template's next_date instead of generating a duplicate.
type RecurrenceService interface {
	RunSweep(ctx context.Context) *types.SweepRunResult
}

type recurrenceService struct {
	ServiceParams
}

func NewRecurrenceService(params ServiceParams) RecurrenceService {
	return &recurrenceService{ServiceParams: params}
}

const sweepTaskRecurrence = "recurring_invoices"

func (s *recurrenceService) RunSweep(ctx context.Context) *types.SweepRunResult {
	asOf := s.Clock.Now()
	result := &types.SweepRunResult{
		Task:      sweepTaskRecurrence,
		StartedAt: asOf,
	}

	templates, err := s.InvoiceRepo.ListDueTemplates(ctx, asOf)
	if err != nil {
		s.Logger.Errorw("failed to list due templates", "error", err)
		result.Failed++
		result.Errors = append(result.Errors, types.SweepRunError{Error: err.Error()})
		result.FinishedAt = s.Clock.Now()
		return result
	}

	s.Logger.Infow("recurrence sweep started",
		"as_of", asOf,
		"due_templates", len(templates))

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(s.Config.Billing.SweepWorkers)
	for _, tmpl := range templates {
		tmpl := tmpl
		p.Go(func() {
			itemCtx, cancel := context.WithTimeout(ctx, s.Config.Billing.ItemTimeout)
			defer cancel()

			generated, err := s.processTemplate(itemCtx, tmpl, asOf)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			switch {
			case err != nil:
				result.Failed++
				result.Errors = append(result.Errors, types.SweepRunError{
					InvoiceID: tmpl.ID,
					Error:     err.Error(),
				})
			case generated:
				result.Succeeded++
			default:
				result.Skipped++
			}
		})
	}
	p.Wait()

	result.FinishedAt = s.Clock.Now()
	s.Logger.Infow("recurrence sweep finished",
		"processed", result.Processed,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"skipped", result.Skipped)
	return result
}

// processTemplate generates the child for the template's current period and
// advances next_date. Returns false when the period already had a child and
// only the template pointer needed repair.
func (s *recurrenceService) processTemplate(ctx context.Context, tmpl *invoice.Invoice, asOf time.Time) (bool, error) {
	if tmpl.Recurrence.NextDate == nil {
		return false, ierr.NewError("template has no next_date").
			WithHint("Recurring template is missing its next generation date").
			Mark(ierr.ErrInvariantViolation)
	}
	generationDate := types.StartOfDay(*tmpl.Recurrence.NextDate)

	existing, err := s.InvoiceRepo.GetChildForPeriod(ctx, tmpl.ID, generationDate)
	if err != nil && !ierr.IsNotFound(err) {
		return false, err
	}

	generated := false
	if existing == nil {
		child := s.buildChild(ctx, tmpl, generationDate)
		generated, err = s.createChild(ctx, child, tmpl.ID, generationDate)
		if err != nil {
			return false, err
		}
		if generated {
			s.Logger.Infow("recurring invoice generated",
				"template_id", tmpl.ID,
				"invoice_id", child.ID,
				"invoice_number", child.InvoiceNumber,
				"generation_date", generationDate)
			s.notifyGenerated(ctx, child)
		}
	}

	if err := s.advanceTemplate(ctx, tmpl, generationDate); err != nil {
		return generated, err
	}
	return generated, nil
}

// createChild persists the period's child invoice. A unique violation on
// create is ambiguous: the period index fires when a concurrent sweep won the
// period, the number index when the generated document number collides. Only
// the former may advance the template, so the period is re-queried to tell
// them apart, and collisions retry with a suffixed number. Returns false when
// the period already had a child and only the template pointer needs repair.
func (s *recurrenceService) createChild(ctx context.Context, child *invoice.Invoice, parentID string, generationDate time.Time) (bool, error) {
	number := child.InvoiceNumber
	for attempt := 0; attempt < numberRetryAttempts; attempt++ {
		if attempt > 0 {
			child.InvoiceNumber = types.WithNumberSuffix(number)
		}
		err := s.InvoiceRepo.Create(ctx, child)
		if err == nil {
			return true, nil
		}
		if !ierr.IsAlreadyExists(err) {
			return false, err
		}

		dup, getErr := s.InvoiceRepo.GetChildForPeriod(ctx, parentID, generationDate)
		if getErr != nil && !ierr.IsNotFound(getErr) {
			return false, getErr
		}
		if dup != nil {
			s.Logger.Warnw("period already generated, repairing template",
				"template_id", parentID,
				"generation_date", generationDate)
			return false, nil
		}
		s.Logger.Warnw("invoice number collision, retrying",
			"template_id", parentID,
			"invoice_number", child.InvoiceNumber)
	}
	return false, ierr.NewError("could not generate recurring invoice").
		WithHint("Invoice number kept colliding").
		WithReportableDetails(map[string]any{
			"parent_invoice_id": parentID,
			"generation_date":   generationDate,
		}).
		Mark(ierr.ErrAlreadyExists)
}

// buildChild clones the template into a concrete invoice for one period
func (s *recurrenceService) buildChild(ctx context.Context, tmpl *invoice.Invoice, generationDate time.Time) *invoice.Invoice {
	lineItems := make([]*invoice.LineItem, len(tmpl.LineItems))
	for i, item := range tmpl.LineItems {
		lineItems[i] = &invoice.LineItem{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LINE_ITEM),
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount,
		}
	}

	// deterministic key so redelivered periods are traceable across systems
	metadata := make(types.Metadata, len(tmpl.Metadata)+1)
	for k, v := range tmpl.Metadata {
		metadata[k] = v
	}
	metadata["idempotency_key"] = idempotency.NewGenerator().GenerateKey(
		idempotency.ScopeRecurringInvoice, map[string]interface{}{
			"parent_invoice_id": tmpl.ID,
			"generation_date":   generationDate.Format(time.DateOnly),
		})

	// the template's denormalized client copy goes stale when the client
	// record changes between periods; refresh it at generation time
	clientName, clientEmail := tmpl.ClientName, tmpl.ClientEmail
	if cl, err := s.ClientRepo.Get(ctx, tmpl.ClientID); err != nil {
		s.Logger.Warnw("could not refresh client for recurring invoice, using template copy",
			"template_id", tmpl.ID,
			"client_id", tmpl.ClientID,
			"error", err)
	} else {
		clientName, clientEmail = cl.Name, cl.Email
	}

	parentID := tmpl.ID
	now := s.Clock.Now()
	child := &invoice.Invoice{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		InvoiceNumber: types.GenerateDocumentNumber(types.SHORT_ID_PREFIX_INVOICE),
		ClientID:      tmpl.ClientID,
		ClientName:    clientName,
		ClientEmail:   clientEmail,
		Currency:      tmpl.Currency,
		LineItems:     lineItems,
		Financial: invoice.FinancialSummary{
			Subtotal:     tmpl.Financial.Subtotal,
			Tax:          tmpl.Financial.Tax,
			TotalAmount:  tmpl.Financial.TotalAmount,
			PaymentTerms: tmpl.Financial.PaymentTerms,
			DueDate:      generationDate.AddDate(0, 0, tmpl.Financial.PaymentTerms),
		},
		Payment: invoice.PaymentDetails{
			Status:     types.PaymentStatusPending,
			PaidAmount: decimal.Zero,
			BalanceDue: tmpl.Financial.TotalAmount,
		},
		Workflow: invoice.Workflow{
			Status: types.WorkflowStatusGenerated,
		},
		Recurrence: invoice.Recurrence{
			ParentInvoiceID: &parentID,
			GenerationDate:  &generationDate,
		},
		Metadata:  metadata,
		Version:   1,
		BaseModel: tmpl.BaseModel,
	}
	child.CreatedAt = now
	child.UpdatedAt = now
	child.CreatedBy = types.GetUserID(ctx)
	child.UpdatedBy = types.GetUserID(ctx)
	child.Status = types.StatusPublished
	return child
}

// advanceTemplate moves next_date to the period after generationDate and
// stamps last_generated_at, retrying on concurrent template writes
func (s *recurrenceService) advanceTemplate(ctx context.Context, tmpl *invoice.Invoice, generationDate time.Time) error {
	next, err := types.NextRunDate(generationDate, tmpl.Recurrence.Frequency)
	if err != nil {
		return err
	}
	now := s.Clock.Now()

	for attempt := 0; attempt < ledgerRetryAttempts; attempt++ {
		tmpl.Recurrence.NextDate = &next
		tmpl.Recurrence.LastGeneratedAt = &now
		tmpl.UpdatedBy = types.GetUserID(ctx)

		err := s.InvoiceRepo.Update(ctx, tmpl)
		if err == nil {
			return nil
		}
		if !ierr.IsVersionConflict(err) {
			return err
		}

		fresh, getErr := s.InvoiceRepo.Get(ctx, tmpl.ID)
		if getErr != nil {
			return getErr
		}
		// another writer may already have advanced the pointer
		if fresh.Recurrence.NextDate != nil && fresh.Recurrence.NextDate.After(generationDate) {
			return nil
		}
		tmpl = fresh
	}
	return ierr.NewError("could not advance template next_date").
		WithHint("Template was being modified concurrently").
		Mark(ierr.ErrVersionConflict)
}

func (s *recurrenceService) notifyGenerated(ctx context.Context, inv *invoice.Invoice) {
	if inv.ClientEmail == "" {
		return
	}
	err := s.Dispatcher.Dispatch(ctx, inv.ClientEmail, notification.TemplateInvoiceGenerated, map[string]any{
		"invoice_id":     inv.ID,
		"invoice_number": inv.InvoiceNumber,
		"client_name":    inv.ClientName,
		"total_amount":   inv.Financial.TotalAmount,
		"currency":       inv.Currency,
		"due_date":       inv.Financial.DueDate,
	})
	if err != nil {
		// notification failures never fail the sweep item
		s.Logger.Errorw("failed to dispatch invoice generated notification",
			"invoice_id", inv.ID,
			"error", err)
	}
}
