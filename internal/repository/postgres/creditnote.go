package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/ledgerline/ledgerline/internal/domain/creditnote"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/logger"
	"github.com/ledgerline/ledgerline/internal/postgres"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/shopspring/decimal"
)

type creditNoteRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewCreditNoteRepository creates a postgres-backed credit note repository
func NewCreditNoteRepository(client postgres.IClient, log *logger.Logger) creditnote.Repository {
	return &creditNoteRepository{client: client, logger: log}
}

type applicationsColumn []*creditnote.Application

func (c applicationsColumn) Value() (driver.Value, error) {
	return jsonbValue([]*creditnote.Application(c))
}
func (c *applicationsColumn) Scan(src any) error {
	return jsonbScan(src, (*[]*creditnote.Application)(c))
}

type refundsColumn []*creditnote.Refund

func (c refundsColumn) Value() (driver.Value, error) { return jsonbValue([]*creditnote.Refund(c)) }
func (c *refundsColumn) Scan(src any) error          { return jsonbScan(src, (*[]*creditnote.Refund)(c)) }

type creditNoteRow struct {
	ID                string             `db:"id"`
	CreditNoteNumber  string             `db:"credit_note_number"`
	OriginalInvoiceID *string            `db:"original_invoice_id"`
	Reason            string             `db:"reason"`
	Currency          string             `db:"currency"`
	Amount            decimal.Decimal    `db:"amount"`
	BalanceRemaining  decimal.Decimal    `db:"balance_remaining"`
	CreditNoteStatus  string             `db:"credit_note_status"`
	Applications      applicationsColumn `db:"applications"`
	Refunds           refundsColumn      `db:"refunds"`
	Metadata          metadataColumn     `db:"metadata"`
	Version           int                `db:"version"`

	OrganizationID string    `db:"organization_id"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	CreatedBy      string    `db:"created_by"`
	UpdatedBy      string    `db:"updated_by"`
}

func toCreditNoteRow(cn *creditnote.CreditNote) *creditNoteRow {
	return &creditNoteRow{
		ID:                cn.ID,
		CreditNoteNumber:  cn.CreditNoteNumber,
		OriginalInvoiceID: cn.OriginalInvoiceID,
		Reason:            cn.Reason,
		Currency:          cn.Currency,
		Amount:            cn.Amount,
		BalanceRemaining:  cn.BalanceRemaining,
		CreditNoteStatus:  string(cn.CreditNoteStatus),
		Applications:      applicationsColumn(cn.Applications),
		Refunds:           refundsColumn(cn.Refunds),
		Metadata:          metadataColumn(cn.Metadata),
		Version:           cn.Version,
		OrganizationID:    cn.OrganizationID,
		Status:            string(cn.BaseModel.Status),
		CreatedAt:         cn.CreatedAt,
		UpdatedAt:         cn.UpdatedAt,
		CreatedBy:         cn.CreatedBy,
		UpdatedBy:         cn.UpdatedBy,
	}
}

func fromCreditNoteRow(r *creditNoteRow) *creditnote.CreditNote {
	return &creditnote.CreditNote{
		ID:                r.ID,
		CreditNoteNumber:  r.CreditNoteNumber,
		OriginalInvoiceID: r.OriginalInvoiceID,
		Reason:            r.Reason,
		Currency:          r.Currency,
		Amount:            r.Amount,
		BalanceRemaining:  r.BalanceRemaining,
		CreditNoteStatus:  types.CreditNoteStatus(r.CreditNoteStatus),
		Applications:      r.Applications,
		Refunds:           r.Refunds,
		Metadata:          types.Metadata(r.Metadata),
		Version:           r.Version,
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

const creditNoteColumns = `id, credit_note_number, original_invoice_id, reason, currency,
amount, balance_remaining, credit_note_status, applications, refunds, metadata, version,
organization_id, status, created_at, updated_at, created_by, updated_by`

const creditNoteInsert = `INSERT INTO credit_notes (` + creditNoteColumns + `) VALUES (
:id, :credit_note_number, :original_invoice_id, :reason, :currency,
:amount, :balance_remaining, :credit_note_status, :applications, :refunds, :metadata, :version,
:organization_id, :status, :created_at, :updated_at, :created_by, :updated_by)`

func (r *creditNoteRepository) Create(ctx context.Context, cn *creditnote.CreditNote) error {
	if err := cn.Validate(); err != nil {
		return err
	}

	query, args, err := sqlxNamed(creditNoteInsert, toCreditNoteRow(cn))
	if err != nil {
		return err
	}

	if _, err := r.client.Querier(ctx).ExecContext(ctx, query, args...); err != nil {
		return wrapPgError(err, "credit note")
	}
	return nil
}

func (r *creditNoteRepository) Get(ctx context.Context, id string) (*creditnote.CreditNote, error) {
	return r.getOne(ctx, `SELECT `+creditNoteColumns+` FROM credit_notes WHERE id = $1`, id)
}

func (r *creditNoteRepository) GetByNumber(ctx context.Context, number string) (*creditnote.CreditNote, error) {
	return r.getOne(ctx, `SELECT `+creditNoteColumns+` FROM credit_notes WHERE credit_note_number = $1`, number)
}

func (r *creditNoteRepository) getOne(ctx context.Context, query string, arg any) (*creditnote.CreditNote, error) {
	var row creditNoteRow
	if err := sqlxGet(ctx, r.client.Querier(ctx), &row, query, arg); err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("credit note not found").
				WithHint("Credit note not found").
				Mark(ierr.ErrNotFound)
		}
		return nil, wrapPgError(err, "credit note")
	}
	return fromCreditNoteRow(&row), nil
}

const creditNoteUpdate = `UPDATE credit_notes SET
balance_remaining = :balance_remaining, credit_note_status = :credit_note_status,
applications = :applications, refunds = :refunds, metadata = :metadata,
version = version + 1, status = :status, updated_at = :updated_at, updated_by = :updated_by
WHERE id = :id AND version = :version`

func (r *creditNoteRepository) Update(ctx context.Context, cn *creditnote.CreditNote) error {
	if err := cn.Validate(); err != nil {
		return err
	}

	cn.UpdatedAt = time.Now().UTC()
	query, args, err := sqlxNamed(creditNoteUpdate, toCreditNoteRow(cn))
	if err != nil {
		return err
	}

	res, err := r.client.Querier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return wrapPgError(err, "credit note")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return wrapPgError(err, "credit note")
	}
	if affected == 0 {
		return ierr.NewError("credit note was modified concurrently").
			WithHint("The credit note was changed by another operation, retry").
			WithReportableDetails(map[string]any{
				"credit_note_id": cn.ID,
				"version":        cn.Version,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	cn.Version++
	return nil
}

func (r *creditNoteRepository) List(ctx context.Context, filter *types.CreditNoteFilter) ([]*creditnote.CreditNote, error) {
	query, args := buildCreditNoteQuery(`SELECT `+creditNoteColumns+` FROM credit_notes`, filter, true)

	var rows []creditNoteRow
	if err := sqlxSelect(ctx, r.client.Querier(ctx), &rows, query, args...); err != nil {
		return nil, wrapPgError(err, "credit note")
	}

	result := make([]*creditnote.CreditNote, len(rows))
	for i := range rows {
		result[i] = fromCreditNoteRow(&rows[i])
	}
	return result, nil
}

func (r *creditNoteRepository) Count(ctx context.Context, filter *types.CreditNoteFilter) (int, error) {
	query, args := buildCreditNoteQuery(`SELECT COUNT(*) FROM credit_notes`, filter, false)

	var count int
	if err := sqlxGet(ctx, r.client.Querier(ctx), &count, query, args...); err != nil {
		return 0, wrapPgError(err, "credit note")
	}
	return count, nil
}

func buildCreditNoteQuery(base string, filter *types.CreditNoteFilter, paginate bool) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter == nil {
		filter = types.NewCreditNoteFilter()
	}

	add("status = $%d", string(filter.GetStatus()))

	if filter.OrganizationID != "" {
		add("organization_id = $%d", filter.OrganizationID)
	}
	if filter.OriginalInvoiceID != "" {
		add("original_invoice_id = $%d", filter.OriginalInvoiceID)
	}
	if filter.CreditNoteNumber != "" {
		add("credit_note_number = $%d", filter.CreditNoteNumber)
	}
	if len(filter.CreditNoteStatus) > 0 {
		statuses := make([]string, len(filter.CreditNoteStatus))
		for i, s := range filter.CreditNoteStatus {
			statuses[i] = string(s)
		}
		add("credit_note_status = ANY($%d)", pq.Array(statuses))
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
