package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ledgerline/ledgerline/internal/api/dto"
	"github.com/ledgerline/ledgerline/internal/domain/invoice"
	"github.com/ledgerline/ledgerline/internal/rest/middleware"
	"github.com/ledgerline/ledgerline/internal/service"
	"github.com/ledgerline/ledgerline/internal/testutil"
	"github.com/ledgerline/ledgerline/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

const testSigningSecret = "whsec_test_secret"

type WebhookHandlerSuite struct {
	testutil.BaseServiceTestSuite
	router  *gin.Engine
	invoice *invoice.Invoice
}

func TestWebhookHandler(t *testing.T) {
	suite.Run(t, new(WebhookHandlerSuite))
}

func (s *WebhookHandlerSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	cfg := s.GetConfig()
	cfg.Webhook.SigningSecret = testSigningSecret

	params := service.ServiceParams{
		Logger:         s.GetLogger(),
		Config:         cfg,
		Clock:          s.GetClock(),
		InvoiceRepo:    s.GetStores().InvoiceRepo,
		CreditNoteRepo: s.GetStores().CreditNoteRepo,
		ClientRepo:     s.GetStores().ClientRepo,
		Dispatcher:     s.GetDispatcher(),
	}
	handler := NewHandler(cfg, s.GetLogger(),
		service.NewPaymentLedgerService(params),
		service.NewInvoiceService(params))

	gin.SetMode(gin.TestMode)
	s.router = gin.New()
	s.router.Use(middleware.ErrorHandler())
	s.router.POST("/webhooks/payment-gateway", handler.HandlePaymentGateway)

	now := s.GetClock().Now()
	total := decimal.NewFromFloat(300)
	s.invoice = &invoice.Invoice{
		ID:            "inv_webhook_1",
		InvoiceNumber: "INV-2025-0042",
		ClientID:      "client_1",
		ClientEmail:   "billing@acme.test",
		Currency:      "USD",
		Financial: invoice.FinancialSummary{
			Subtotal:    total,
			TotalAmount: total,
			DueDate:     now.AddDate(0, 0, 14),
		},
		Payment: invoice.PaymentDetails{
			Status:     types.PaymentStatusPending,
			PaidAmount: decimal.Zero,
			BalanceDue: total,
		},
		Workflow: invoice.Workflow{Status: types.WorkflowStatusSent},
		Version:  1,
		BaseModel: types.BaseModel{
			OrganizationID: types.DefaultOrganizationID,
			Status:         types.StatusPublished,
			CreatedAt:      now,
			UpdatedAt:      now,
			CreatedBy:      types.DefaultUserID,
			UpdatedBy:      types.DefaultUserID,
		},
	}
	s.Require().NoError(s.GetStores().InvoiceRepo.Create(s.GetContext(), s.invoice))
}

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSigningSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *WebhookHandlerSuite) post(body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment-gateway", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *WebhookHandlerSuite) eventBody(eventType, invoiceID, invoiceNumber, txnID string, amount decimal.Decimal) []byte {
	body, err := json.Marshal(dto.PaymentGatewayEvent{
		Type: eventType,
		Data: dto.PaymentGatewayEventData{
			TransactionID: txnID,
			InvoiceID:     invoiceID,
			InvoiceNumber: invoiceNumber,
			Amount:        amount,
			Currency:      "USD",
		},
	})
	s.Require().NoError(err)
	return body
}

func (s *WebhookHandlerSuite) assertAck(w *httptest.ResponseRecorder) {
	s.Equal(http.StatusOK, w.Code)
	var ack dto.WebhookAck
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &ack))
	s.True(ack.Received)
}

func (s *WebhookHandlerSuite) TestMissingSignatureRejected() {
	body := s.eventBody(dto.EventTypePaymentSucceeded, s.invoice.ID, "", "txn_1", decimal.NewFromFloat(300))
	w := s.post(body, "")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *WebhookHandlerSuite) TestInvalidSignatureRejected() {
	body := s.eventBody(dto.EventTypePaymentSucceeded, s.invoice.ID, "", "txn_1", decimal.NewFromFloat(300))
	w := s.post(body, "deadbeef")
	s.Equal(http.StatusUnauthorized, w.Code)

	fresh, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.invoice.ID)
	s.NoError(err)
	s.Empty(fresh.Payment.Transactions)
}

func (s *WebhookHandlerSuite) TestTamperedBodyRejected() {
	body := s.eventBody(dto.EventTypePaymentSucceeded, s.invoice.ID, "", "txn_1", decimal.NewFromFloat(300))
	signature := sign(body)
	tampered := bytes.Replace(body, []byte("300"), []byte("999"), 1)
	w := s.post(tampered, signature)
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *WebhookHandlerSuite) TestPaymentSucceededRecordsPayment() {
	body := s.eventBody(dto.EventTypePaymentSucceeded, s.invoice.ID, "", "txn_abc", decimal.NewFromFloat(300))
	w := s.post(body, sign(body))
	s.assertAck(w)

	fresh, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.invoice.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusPaid, fresh.Payment.Status)
	s.True(fresh.Payment.BalanceDue.IsZero())
	s.Require().Len(fresh.Payment.Transactions, 1)
	s.Equal(types.PaymentMethodGateway, fresh.Payment.Transactions[0].Method)
	s.Equal("txn_abc", fresh.Payment.Transactions[0].Reference)
}

func (s *WebhookHandlerSuite) TestReplayedEventIsDeduplicated() {
	body := s.eventBody(dto.EventTypePaymentSucceeded, s.invoice.ID, "", "txn_abc", decimal.NewFromFloat(100))
	signature := sign(body)

	s.assertAck(s.post(body, signature))
	s.assertAck(s.post(body, signature))

	fresh, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.invoice.ID)
	s.NoError(err)
	s.Len(fresh.Payment.Transactions, 1)
	s.True(fresh.Payment.PaidAmount.Equal(decimal.NewFromFloat(100)))
}

func (s *WebhookHandlerSuite) TestInvoiceResolvedByNumber() {
	body := s.eventBody(dto.EventTypePaymentSucceeded, "", s.invoice.InvoiceNumber, "txn_num", decimal.NewFromFloat(300))
	w := s.post(body, sign(body))
	s.assertAck(w)

	fresh, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.invoice.ID)
	s.NoError(err)
	s.Equal(types.PaymentStatusPaid, fresh.Payment.Status)
}

func (s *WebhookHandlerSuite) TestUnknownEventTypeAckedWithoutMutation() {
	body := s.eventBody("payment.failed", s.invoice.ID, "", "txn_1", decimal.NewFromFloat(300))
	w := s.post(body, sign(body))
	s.assertAck(w)

	fresh, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.invoice.ID)
	s.NoError(err)
	s.Empty(fresh.Payment.Transactions)
}

func (s *WebhookHandlerSuite) TestMalformedPayloadStillAcked() {
	body := []byte(`{"type": "payment.succeeded", "data":`)
	w := s.post(body, sign(body))
	s.assertAck(w)
}

func (s *WebhookHandlerSuite) TestProcessingFailureStillAcked() {
	// over-payment is rejected by the ledger, but the gateway still gets 200
	body := s.eventBody(dto.EventTypePaymentSucceeded, s.invoice.ID, "", "txn_over", decimal.NewFromFloat(9999))
	w := s.post(body, sign(body))
	s.assertAck(w)

	fresh, err := s.GetStores().InvoiceRepo.Get(s.GetContext(), s.invoice.ID)
	s.NoError(err)
	s.Empty(fresh.Payment.Transactions)
}
