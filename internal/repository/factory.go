package repository

import (
	"github.com/ledgerline/ledgerline/internal/domain/client"
	"github.com/ledgerline/ledgerline/internal/domain/creditnote"
	"github.com/ledgerline/ledgerline/internal/domain/invoice"
	"github.com/ledgerline/ledgerline/internal/logger"
	"github.com/ledgerline/ledgerline/internal/postgres"
	postgresRepo "github.com/ledgerline/ledgerline/internal/repository/postgres"
)

func NewInvoiceRepository(db postgres.IClient, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}

func NewCreditNoteRepository(db postgres.IClient, logger *logger.Logger) creditnote.Repository {
	return postgresRepo.NewCreditNoteRepository(db, logger)
}

func NewClientRepository(db postgres.IClient, logger *logger.Logger) client.Repository {
	return postgresRepo.NewClientRepository(db, logger)
}
