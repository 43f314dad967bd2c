package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/config"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/logger"
	"github.com/ledgerline/ledgerline/internal/service"
	"github.com/ledgerline/ledgerline/internal/types"
)

// SignatureHeader carries the hex-encoded HMAC-SHA256 of the raw request body
const SignatureHeader = "X-Webhook-Signature"

// Handler receives payment gateway events. Once a signature verifies, the
// response is always 200 with {"received": true}: processing failures are
// logged and resolved out of band, never surfaced to the gateway, which
// would otherwise retry forever on a permanently failing event.
type Handler struct {
	cfg            *config.Configuration
	logger         *logger.Logger
	paymentService service.PaymentLedgerService
	invoiceService service.InvoiceService
}

func NewHandler(cfg *config.Configuration, logger *logger.Logger, paymentService service.PaymentLedgerService, invoiceService service.InvoiceService) *Handler {
	return &Handler{
		cfg:            cfg,
		logger:         logger,
		paymentService: paymentService,
		invoiceService: invoiceService,
	}
}

// HandlePaymentGateway godoc
// @Summary Receive a payment gateway webhook
// @Description Verify the event signature and record gateway payments
// @Tags Webhooks
// @Accept json
// @Produce json
// @Success 200 {object} dto.WebhookAck
// @Failure 401 {object} middleware.ErrorResponse
// @Router /webhooks/payment-gateway [post]
func (h *Handler) HandlePaymentGateway(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(ierr.WithError(err).WithHint("could not read request body").Mark(ierr.ErrValidation))
		return
	}

	if !h.verifySignature(body, c.GetHeader(SignatureHeader)) {
		h.logger.Warnw("webhook signature verification failed",
			"remote_addr", c.Request.RemoteAddr)
		c.Error(ierr.NewError("invalid webhook signature").
			WithHint("Webhook signature verification failed").
			Mark(ierr.ErrUnauthorized))
		return
	}

	var event dto.PaymentGatewayEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Errorw("failed to parse webhook payload", "error", err)
		c.JSON(http.StatusOK, dto.WebhookAck{Received: true})
		return
	}

	h.process(c, &event)
	c.JSON(http.StatusOK, dto.WebhookAck{Received: true})
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.cfg.Webhook.SigningSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

func (h *Handler) process(c *gin.Context, event *dto.PaymentGatewayEvent) {
	if event.Type != dto.EventTypePaymentSucceeded {
		h.logger.Debugw("ignoring webhook event", "type", event.Type)
		return
	}

	ctx := types.NewSystemContext(c.Request.Context())

	invoiceID := event.Data.InvoiceID
	if invoiceID == "" && event.Data.InvoiceNumber != "" {
		filter := &types.InvoiceFilter{
			QueryFilter:   types.NewDefaultQueryFilter(),
			InvoiceNumber: event.Data.InvoiceNumber,
		}
		list, err := h.invoiceService.ListInvoices(ctx, filter)
		if err != nil || len(list.Items) == 0 {
			h.logger.Errorw("could not resolve invoice for webhook event",
				"invoice_number", event.Data.InvoiceNumber,
				"transaction_id", event.Data.TransactionID,
				"error", err)
			return
		}
		invoiceID = list.Items[0].ID
	}
	if invoiceID == "" {
		h.logger.Errorw("webhook event carries no invoice reference",
			"transaction_id", event.Data.TransactionID)
		return
	}

	_, err := h.paymentService.RecordPayment(ctx, invoiceID, &dto.RecordPaymentRequest{
		Amount:    event.Data.Amount,
		Method:    types.PaymentMethodGateway,
		Reference: event.Data.TransactionID,
		Notes:     "payment gateway webhook",
	})
	if err != nil {
		h.logger.Errorw("failed to record gateway payment",
			"invoice_id", invoiceID,
			"transaction_id", event.Data.TransactionID,
			"error", err)
		return
	}

	h.logger.Infow("gateway payment recorded",
		"invoice_id", invoiceID,
		"transaction_id", event.Data.TransactionID,
		"amount", event.Data.Amount)
}
