package dto

import (
	"github.com/shopspring/decimal"
)

// PaymentGatewayEvent is the abstracted payment gateway webhook payload. Only
// the event contract matters here; gateway internals are out of scope.
type PaymentGatewayEvent struct {
	Type string                  `json:"type"`
	Data PaymentGatewayEventData `json:"data"`
}

// EventTypePaymentSucceeded is the only event type the receiver acts on
const EventTypePaymentSucceeded = "payment.succeeded"

// PaymentGatewayEventData carries the payment metadata extracted from a
// gateway event
type PaymentGatewayEventData struct {
	// TransactionID is the gateway's external transaction reference, used to
	// deduplicate redelivered events
	TransactionID string          `json:"transaction_id"`
	InvoiceID     string          `json:"invoice_id,omitempty"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
}

// WebhookAck is the receiver's unconditional acknowledgement
type WebhookAck struct {
	Received bool `json:"received"`
}
