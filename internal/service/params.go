package service

import (
	"github.com/ledgerline/ledgerline/internal/clock"
	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/domain/client"
	"github.com/ledgerline/ledgerline/internal/domain/creditnote"
	"github.com/ledgerline/ledgerline/internal/domain/invoice"
	"github.com/ledgerline/ledgerline/internal/domain/notification"
	"github.com/ledgerline/ledgerline/internal/logger"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	Clock  clock.Clock

	// Repositories
	InvoiceRepo    invoice.Repository
	CreditNoteRepo creditnote.Repository
	ClientRepo     client.Repository

	// Collaborators
	Dispatcher notification.Dispatcher
}

// NewServiceParams creates a new ServiceParams instance for dependency injection
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	clk clock.Clock,
	invoiceRepo invoice.Repository,
	creditNoteRepo creditnote.Repository,
	clientRepo client.Repository,
	dispatcher notification.Dispatcher,
) ServiceParams {
	return ServiceParams{
		Logger:         logger,
		Config:         config,
		Clock:          clk,
		InvoiceRepo:    invoiceRepo,
		CreditNoteRepo: creditNoteRepo,
		ClientRepo:     clientRepo,
		Dispatcher:     dispatcher,
	}
}
