package models

import "time"

// GatewayAmount is the amount object used by the gateway on the wire.
// Value is a decimal string, e.g. "3000.00".
type GatewayAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// GatewayObject is the payment object embedded in a gateway notification
type GatewayObject struct {
	ID       string            `json:"id"` // external reference
	Status   string            `json:"status"`
	Amount   GatewayAmount     `json:"amount"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// GatewayNotification is the raw webhook body delivered by the payment gateway.
// The format is fixed by the gateway and must be preserved for compatibility.
type GatewayNotification struct {
	Type      string        `json:"type"` // always "notification"
	Event     string        `json:"event"`
	Object    GatewayObject `json:"object"`
	CreatedAt time.Time     `json:"created_at"`
}

// Gateway notification event names
const (
	GatewayEventPaymentSucceeded         = "payment.succeeded"
	GatewayEventPaymentCanceled          = "payment.canceled"
	GatewayEventPaymentWaitingForCapture = "payment.waiting_for_capture"
)

// WebhookEvent is the internal form of a gateway notification after mapping.
// ExternalReference is the idempotency key: applying the same terminal event
// twice produces no additional state change.
type WebhookEvent struct {
	ExternalReference string
	Status            PaymentStatus
	Amount            float64
	Currency          string
	OccurredAt        time.Time
}
