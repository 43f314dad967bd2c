package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/ledgerline/ledgerline/internal/domain/invoice"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/logger"
	"github.com/ledgerline/ledgerline/internal/postgres"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/shopspring/decimal"
)

type invoiceRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewInvoiceRepository creates a postgres-backed invoice repository
func NewInvoiceRepository(client postgres.IClient, log *logger.Logger) invoice.Repository {
	return &invoiceRepository{client: client, logger: log}
}

type lineItemsColumn []*invoice.LineItem

func (c lineItemsColumn) Value() (driver.Value, error) { return jsonbValue([]*invoice.LineItem(c)) }
func (c *lineItemsColumn) Scan(src any) error          { return jsonbScan(src, (*[]*invoice.LineItem)(c)) }

type transactionsColumn []*invoice.Transaction

func (c transactionsColumn) Value() (driver.Value, error) {
	return jsonbValue([]*invoice.Transaction(c))
}
func (c *transactionsColumn) Scan(src any) error { return jsonbScan(src, (*[]*invoice.Transaction)(c)) }

type metadataColumn types.Metadata

func (c metadataColumn) Value() (driver.Value, error) { return jsonbValue(types.Metadata(c)) }
func (c *metadataColumn) Scan(src any) error          { return jsonbScan(src, (*types.Metadata)(c)) }

// invoiceRow is the flat database representation of an invoice document
type invoiceRow struct {
	ID            string `db:"id"`
	InvoiceNumber string `db:"invoice_number"`
	ClientID      string `db:"client_id"`
	ClientName    string `db:"client_name"`
	ClientEmail   string `db:"client_email"`
	Currency      string `db:"currency"`

	LineItems lineItemsColumn `db:"line_items"`

	Subtotal     decimal.Decimal `db:"subtotal"`
	Tax          decimal.Decimal `db:"tax"`
	TotalAmount  decimal.Decimal `db:"total_amount"`
	PaymentTerms int             `db:"payment_terms"`
	DueDate      time.Time       `db:"due_date"`

	PaymentStatus  string             `db:"payment_status"`
	PaidAmount     decimal.Decimal    `db:"paid_amount"`
	BalanceDue     decimal.Decimal    `db:"balance_due"`
	Transactions   transactionsColumn `db:"transactions"`
	RemindersSent  int                `db:"reminders_sent"`
	LastReminderAt *time.Time         `db:"last_reminder_at"`

	WorkflowStatus string `db:"workflow_status"`

	IsRecurring     bool       `db:"is_recurring"`
	Frequency       *string    `db:"frequency"`
	NextDate        *time.Time `db:"next_date"`
	EndDate         *time.Time `db:"end_date"`
	ParentInvoiceID *string    `db:"parent_invoice_id"`
	GenerationDate  *time.Time `db:"generation_date"`
	LastGeneratedAt *time.Time `db:"last_generated_at"`

	IsDeleted bool       `db:"is_deleted"`
	DeletedAt *time.Time `db:"deleted_at"`

	Metadata metadataColumn `db:"metadata"`
	Version  int            `db:"version"`

	OrganizationID string    `db:"organization_id"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	CreatedBy      string    `db:"created_by"`
	UpdatedBy      string    `db:"updated_by"`
}

func toInvoiceRow(inv *invoice.Invoice) *invoiceRow {
	var freq *string
	if inv.Recurrence.Frequency != "" {
		f := string(inv.Recurrence.Frequency)
		freq = &f
	}
	return &invoiceRow{
		ID:              inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		ClientID:        inv.ClientID,
		ClientName:      inv.ClientName,
		ClientEmail:     inv.ClientEmail,
		Currency:        inv.Currency,
		LineItems:       lineItemsColumn(inv.LineItems),
		Subtotal:        inv.Financial.Subtotal,
		Tax:             inv.Financial.Tax,
		TotalAmount:     inv.Financial.TotalAmount,
		PaymentTerms:    inv.Financial.PaymentTerms,
		DueDate:         inv.Financial.DueDate,
		PaymentStatus:   string(inv.Payment.Status),
		PaidAmount:      inv.Payment.PaidAmount,
		BalanceDue:      inv.Payment.BalanceDue,
		Transactions:    transactionsColumn(inv.Payment.Transactions),
		RemindersSent:   inv.Payment.RemindersSent,
		LastReminderAt:  inv.Payment.LastReminderAt,
		WorkflowStatus:  string(inv.Workflow.Status),
		IsRecurring:     inv.Recurrence.IsRecurring,
		Frequency:       freq,
		NextDate:        inv.Recurrence.NextDate,
		EndDate:         inv.Recurrence.EndDate,
		ParentInvoiceID: inv.Recurrence.ParentInvoiceID,
		GenerationDate:  inv.Recurrence.GenerationDate,
		LastGeneratedAt: inv.Recurrence.LastGeneratedAt,
		IsDeleted:       inv.Deletion.IsDeleted,
		DeletedAt:       inv.Deletion.DeletedAt,
		Metadata:        metadataColumn(inv.Metadata),
		Version:         inv.Version,
		OrganizationID:  inv.OrganizationID,
		Status:          string(inv.BaseModel.Status),
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
		CreatedBy:       inv.CreatedBy,
		UpdatedBy:       inv.UpdatedBy,
	}
}

func fromInvoiceRow(r *invoiceRow) *invoice.Invoice {
	var freq types.RecurrenceFrequency
	if r.Frequency != nil {
		freq = types.RecurrenceFrequency(*r.Frequency)
	}
	return &invoice.Invoice{
		ID:            r.ID,
		InvoiceNumber: r.InvoiceNumber,
		ClientID:      r.ClientID,
		ClientName:    r.ClientName,
		ClientEmail:   r.ClientEmail,
		Currency:      r.Currency,
		LineItems:     r.LineItems,
		Financial: invoice.FinancialSummary{
			Subtotal:     r.Subtotal,
			Tax:          r.Tax,
			TotalAmount:  r.TotalAmount,
			PaymentTerms: r.PaymentTerms,
			DueDate:      r.DueDate,
		},
		Payment: invoice.PaymentDetails{
			Status:         types.InvoicePaymentStatus(r.PaymentStatus),
			PaidAmount:     r.PaidAmount,
			BalanceDue:     r.BalanceDue,
			Transactions:   r.Transactions,
			RemindersSent:  r.RemindersSent,
			LastReminderAt: r.LastReminderAt,
		},
		Workflow: invoice.Workflow{
			Status: types.InvoiceWorkflowStatus(r.WorkflowStatus),
		},
		Recurrence: invoice.Recurrence{
			IsRecurring:     r.IsRecurring,
			Frequency:       freq,
			NextDate:        r.NextDate,
			EndDate:         r.EndDate,
			ParentInvoiceID: r.ParentInvoiceID,
			GenerationDate:  r.GenerationDate,
			LastGeneratedAt: r.LastGeneratedAt,
		},
		Deletion: invoice.Deletion{
			IsDeleted: r.IsDeleted,
			DeletedAt: r.DeletedAt,
		},
		Metadata: types.Metadata(r.Metadata),
		Version:  r.Version,
		BaseModel: types.BaseModel{
			OrganizationID: r.OrganizationID,
			Status:         types.Status(r.Status),
			CreatedAt:      r.CreatedAt,
			UpdatedAt:      r.UpdatedAt,
			CreatedBy:      r.CreatedBy,
			UpdatedBy:      r.UpdatedBy,
		},
	}
}

const invoiceColumns = `id, invoice_number, client_id, client_name, client_email, currency,
line_items, subtotal, tax, total_amount, payment_terms, due_date,
payment_status, paid_amount, balance_due, transactions, reminders_sent, last_reminder_at,
workflow_status, is_recurring, frequency, next_date, end_date, parent_invoice_id,
generation_date, last_generated_at, is_deleted, deleted_at, metadata, version,
organization_id, status, created_at, updated_at, created_by, updated_by`

const invoiceInsert = `INSERT INTO invoices (` + invoiceColumns + `) VALUES (
:id, :invoice_number, :client_id, :client_name, :client_email, :currency,
:line_items, :subtotal, :tax, :total_amount, :payment_terms, :due_date,
:payment_status, :paid_amount, :balance_due, :transactions, :reminders_sent, :last_reminder_at,
:workflow_status, :is_recurring, :frequency, :next_date, :end_date, :parent_invoice_id,
:generation_date, :last_generated_at, :is_deleted, :deleted_at, :metadata, :version,
:organization_id, :status, :created_at, :updated_at, :created_by, :updated_by)`

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}

	row := toInvoiceRow(inv)
	query, args, err := sqlxNamed(invoiceInsert, row)
	if err != nil {
		return err
	}

	if _, err := r.client.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
		return wrapPgError(err, "invoice")
	}
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return r.getOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
}

func (r *invoiceRepository) GetByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	return r.getOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = $1`, number)
}

func (r *invoiceRepository) getOne(ctx context.Context, query string, arg any) (*invoice.Invoice, error) {
	var row invoiceRow
	if err := sqlxGet(ctx, r.client.Querier(ctx), &row, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("invoice not found").
				WithHint("Invoice not found").
				Mark(ierr.ErrNotFound)
		}
		return nil, wrapPgError(err, "invoice")
	}
	return fromInvoiceRow(&row), nil
}

const invoiceUpdate = `UPDATE invoices SET
invoice_number = :invoice_number, client_name = :client_name, client_email = :client_email,
line_items = :line_items, subtotal = :subtotal, tax = :tax, total_amount = :total_amount,
payment_terms = :payment_terms, due_date = :due_date,
payment_status = :payment_status, paid_amount = :paid_amount, balance_due = :balance_due,
transactions = :transactions, reminders_sent = :reminders_sent, last_reminder_at = :last_reminder_at,
workflow_status = :workflow_status, is_recurring = :is_recurring, frequency = :frequency,
next_date = :next_date, end_date = :end_date, last_generated_at = :last_generated_at,
is_deleted = :is_deleted, deleted_at = :deleted_at, metadata = :metadata,
version = version + 1, status = :status, updated_at = :updated_at, updated_by = :updated_by
WHERE id = :id AND version = :version`

// Update performs the version-guarded conditional write. A zero-row result
// means another writer committed first; callers re-read and retry.
func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	if err := inv.Validate(); err != nil {
		return err
	}

	inv.UpdatedAt = time.Now().UTC()
	row := toInvoiceRow(inv)
	query, args, err := sqlxNamed(invoiceUpdate, row)
	if err != nil {
		return err
	}

	res, err := r.client.Querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return wrapPgError(err, "invoice")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return wrapPgError(err, "invoice")
	}
	if affected == 0 {
		return ierr.NewError("invoice was modified concurrently").
			WithHint("The invoice was changed by another operation, retry").
			WithReportableDetails(map[string]any{
				"invoice_id": inv.ID,
				"version":    inv.Version,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	inv.Version++
	return nil
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	query, args := buildInvoiceQuery(`SELECT `+invoiceColumns+` FROM invoices`, filter, true)

	var rows []invoiceRow
	if err := sqlxSelect(ctx, r.client.Querier(ctx), &rows, query, args...); err != nil {
		return nil, wrapPgError(err, "invoice")
	}

	result := make([]*invoice.Invoice, len(rows))
	for i := range rows {
		result[i] = fromInvoiceRow(&rows[i])
	}
	return result, nil
}

func (r *invoiceRepository) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	query, args := buildInvoiceQuery(`SELECT COUNT(*) FROM invoices`, filter, false)

	var count int
	if err := sqlxGet(ctx, r.client.Querier(ctx), &count, query, args...); err != nil {
		return 0, wrapPgError(err, "invoice")
	}
	return count, nil
}

func buildInvoiceQuery(base string, filter *types.InvoiceFilter, paginate bool) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter == nil {
		filter = types.NewInvoiceFilter()
	}

	if !filter.IncludeDeleted {
		conds = append(conds, "is_deleted = false")
	}
	add("status = $%d", string(filter.GetStatus()))

	if filter.OrganizationID != "" {
		add("organization_id = $%d", filter.OrganizationID)
	}
	if filter.ClientID != "" {
		add("client_id = $%d", filter.ClientID)
	}
	if filter.InvoiceNumber != "" {
		add("invoice_number = $%d", filter.InvoiceNumber)
	}
	if len(filter.PaymentStatus) > 0 {
		add("payment_status = ANY($%d)", pq.Array(statusStrings(filter.PaymentStatus)))
	}
	if len(filter.WorkflowStatus) > 0 {
		add("workflow_status = ANY($%d)", pq.Array(workflowStrings(filter.WorkflowStatus)))
	}
	if filter.DueBefore != nil {
		add("due_date < $%d", *filter.DueBefore)
	}
	if filter.Recurring != nil {
		add("is_recurring = $%d", *filter.Recurring)
	}
	if filter.NextDateOnOrBefore != nil {
		add("next_date <= $%d", *filter.NextDateOnOrBefore)
	}

	query := base
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	if paginate {
		query += fmt.Sprintf(" ORDER BY %s %s", sanitizeSort(filter.GetSort()), sanitizeOrder(filter.GetOrder()))
		if !filter.IsUnlimited() {
			query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.GetLimit(), filter.GetOffset())
		}
	}

	return query, args
}

func statusStrings(statuses []types.InvoicePaymentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func workflowStrings(statuses []types.InvoiceWorkflowStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func (r *invoiceRepository) ListDueTemplates(ctx context.Context, asOf time.Time) ([]*invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
WHERE is_recurring = true
  AND is_deleted = false
  AND status = $1
  AND next_date <= $2
  AND (end_date IS NULL OR end_date >= $3)
ORDER BY next_date ASC`

	day := types.StartOfDay(asOf)
	var rows []invoiceRow
	if err := sqlxSelect(ctx, r.client.Querier(ctx), &rows, query, string(types.StatusPublished), asOf, day); err != nil {
		return nil, wrapPgError(err, "invoice")
	}

	result := make([]*invoice.Invoice, len(rows))
	for i := range rows {
		result[i] = fromInvoiceRow(&rows[i])
	}
	return result, nil
}

func (r *invoiceRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]*invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
WHERE is_deleted = false
  AND is_recurring = false
  AND status = $1
  AND due_date < $2
  AND payment_status = ANY($3)
ORDER BY due_date ASC`

	outstanding := pq.Array([]string{
		string(types.PaymentStatusPending),
		string(types.PaymentStatusPartial),
		string(types.PaymentStatusOverdue),
	})

	var rows []invoiceRow
	if err := sqlxSelect(ctx, r.client.Querier(ctx), &rows, query, string(types.StatusPublished), types.StartOfDay(asOf), outstanding); err != nil {
		return nil, wrapPgError(err, "invoice")
	}

	result := make([]*invoice.Invoice, len(rows))
	for i := range rows {
		result[i] = fromInvoiceRow(&rows[i])
	}
	return result, nil
}

func (r *invoiceRepository) GetChildForPeriod(ctx context.Context, parentInvoiceID string, generationDate time.Time) (*invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
WHERE parent_invoice_id = $1 AND generation_date = $2`
	var row invoiceRow
	if err := sqlxGet(ctx, r.client.Querier(ctx), &row, query, parentInvoiceID, types.StartOfDay(generationDate)); err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("no child invoice for period").
				WithHint("No generated invoice exists for this period").
				Mark(ierr.ErrNotFound)
		}
		return nil, wrapPgError(err, "invoice")
	}
	return fromInvoiceRow(&row), nil
}

func (r *invoiceRepository) HardDelete(ctx context.Context, id string) error {
	res, err := r.client.Querier(ctx).ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return wrapPgError(err, "invoice")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapPgError(err, "invoice")
	}
	if affected == 0 {
		return ierr.NewError("invoice not found").
			WithHint("Invoice not found").
			Mark(ierr.ErrNotFound)
	}
	return nil
}
