package api

import (
	"github.com/gin-gonic/gin"
	"github.com/ledgerline/ledgerline/internal/api/cron"
	v1 "github.com/ledgerline/ledgerline/internal/api/v1"
	"github.com/ledgerline/ledgerline/internal/api/webhook"
	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/rest/middleware"
	"github.com/ledgerline/ledgerline/internal/types"
)

type Handlers struct {
	Health     *v1.HealthHandler
	Invoice    *v1.InvoiceHandler
	CreditNote *v1.CreditNoteHandler
	Sweep      *cron.SweepHandler
	Webhook    *webhook.Handler
}

func NewRouter(handlers Handlers, cfg *config.Configuration) *gin.Engine {
	if cfg.Deployment.Mode == types.ModeProd {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.ContextMiddleware,
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Health)

	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	cronGroup := router.Group("/cron")
	registerCronRoutes(cronGroup, handlers)

	router.POST("/webhooks/payment-gateway", handlers.Webhook.HandlePaymentGateway)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	invoices := router.Group("/invoices")
	{
		invoices.POST("", handlers.Invoice.CreateInvoice)
		invoices.GET("", handlers.Invoice.ListInvoices)
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.DELETE("/:id", handlers.Invoice.DeleteInvoice)
		invoices.POST("/:id/payments", handlers.Invoice.RecordPayment)
		invoices.POST("/:id/refunds", handlers.Invoice.RefundPayment)
	}

	creditNotes := router.Group("/credit-notes")
	{
		creditNotes.POST("", handlers.CreditNote.IssueCreditNote)
		creditNotes.GET("", handlers.CreditNote.ListCreditNotes)
		creditNotes.GET("/:id", handlers.CreditNote.GetCreditNote)
		creditNotes.POST("/:id/apply", handlers.CreditNote.ApplyCreditNote)
		creditNotes.POST("/:id/refund", handlers.CreditNote.RefundCreditNote)
		creditNotes.POST("/:id/void", handlers.CreditNote.VoidCreditNote)
	}
}

func registerCronRoutes(router *gin.RouterGroup, handlers Handlers) {
	billing := router.Group("/billing")
	{
		billing.POST("/daily", handlers.Sweep.RunDaily)
		billing.POST("/recurrence", handlers.Sweep.RunRecurrence)
		billing.POST("/dunning", handlers.Sweep.RunDunning)
	}
}
