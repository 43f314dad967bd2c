package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/ledgerline/ledgerline/internal/domain/client"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/logger"
	"github.com/ledgerline/ledgerline/internal/postgres"
	"github.com/ledgerline/ledgerline/internal/types"
)

type clientRepository struct {
	client postgres.IClient
	logger *logger.Logger
}

// NewClientRepository creates a read-only postgres client directory
func NewClientRepository(pg postgres.IClient, log *logger.Logger) client.Repository {
	return &clientRepository{client: pg, logger: log}
}

type clientRow struct {
	ID             string    `db:"id"`
	Name           string    `db:"name"`
	Email          string    `db:"email"`
	OrganizationID string    `db:"organization_id"`
	Status         string    `db:"status"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
	CreatedBy      string    `db:"created_by"`
	UpdatedBy      string    `db:"updated_by"`
}

func (r *clientRepository) Get(ctx context.Context, id string) (*client.Client, error) {
	query := `SELECT id, name, email, organization_id, status, created_at, updated_at, created_by, updated_by
FROM clients WHERE id = $1`

	var row clientRow
	if err := sqlxGet(ctx, r.client.Querier(ctx), &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("client not found").
				WithHint("Client not found").
				Mark(ierr.ErrNotFound)
		}
		return nil, wrapPgError(err, "client")
	}

	return &client.Client{
		ID:    row.ID,
		Name:  row.Name,
		Email: row.Email,
		BaseModel: types.BaseModel{
			OrganizationID: row.OrganizationID,
			Status:         types.Status(row.Status),
			CreatedAt:      row.CreatedAt,
			UpdatedAt:      row.UpdatedAt,
			CreatedBy:      row.CreatedBy,
			UpdatedBy:      row.UpdatedBy,
		},
	}, nil
}
