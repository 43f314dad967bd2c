package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgerline/ledgerline/internal/api"
	"github.com/ledgerline/ledgerline/internal/api/cron"
	v1 "github.com/ledgerline/ledgerline/internal/api/v1"
	"github.com/ledgerline/ledgerline/internal/api/webhook"
	"github.com/ledgerline/ledgerline/internal/clock"
	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/logger"
	"github.com/ledgerline/ledgerline/internal/notification"
	"github.com/ledgerline/ledgerline/internal/postgres"
	"github.com/ledgerline/ledgerline/internal/repository"
	"github.com/ledgerline/ledgerline/internal/scheduler"
	"github.com/ledgerline/ledgerline/internal/service"
	"github.com/ledgerline/ledgerline/internal/validator"
	"go.uber.org/fx"
)

// @title Ledgerline API
// @version 1.0
// @description Billing lifecycle service: invoices, payments, credit notes, recurring generation and dunning
// @BasePath /v1
// @schemes http https

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	app := fx.New(
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Clock
			clock.New,

			// Postgres
			postgres.NewDB,
			postgres.NewClient,

			// Notification dispatcher
			notification.NewDispatcher,

			// Repositories
			repository.NewInvoiceRepository,
			repository.NewCreditNoteRepository,
			repository.NewClientRepository,

			// Services
			service.NewServiceParams,
			service.NewInvoiceService,
			service.NewPaymentLedgerService,
			service.NewCreditNoteService,
			service.NewRecurrenceService,
			service.NewDunningService,

			// API
			provideHandlers,
			provideRouter,
			scheduler.New,
		),
		fx.Invoke(startServer),
	)
	app.Run()
}

func provideHandlers(
	cfg *config.Configuration,
	logger *logger.Logger,
	invoiceService service.InvoiceService,
	paymentService service.PaymentLedgerService,
	creditNoteService service.CreditNoteService,
	recurrenceService service.RecurrenceService,
	dunningService service.DunningService,
) api.Handlers {
	return api.Handlers{
		Health:     v1.NewHealthHandler(logger),
		Invoice:    v1.NewInvoiceHandler(invoiceService, paymentService, logger),
		CreditNote: v1.NewCreditNoteHandler(creditNoteService, logger),
		Sweep:      cron.NewSweepHandler(logger, recurrenceService, dunningService),
		Webhook:    webhook.NewHandler(cfg, logger, paymentService, invoiceService),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration) *gin.Engine {
	return api.NewRouter(handlers, cfg)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	sched *scheduler.Scheduler,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return sched.Start()
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return sched.Stop(ctx)
		},
	})
}
