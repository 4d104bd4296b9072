package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the lifecycle state of a payment
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	// PaymentStatusRefunded is reached only from succeeded via an explicit refund
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// IsTerminal reports whether the status ends the webhook-driven lifecycle.
// A terminal payment may only be replayed with the same status (no-op) or
// refunded if it succeeded.
func (s PaymentStatus) IsTerminal() bool {
	return s != PaymentStatusPending
}

// PaymentMethod identifies the gateway used for a payment
type PaymentMethod string

const (
	PaymentMethodYooKassa PaymentMethod = "yookassa"
	PaymentMethodSberPay  PaymentMethod = "sberpay"
	PaymentMethodTinkoff  PaymentMethod = "tinkoff"
)

// Valid reports whether the method is one we integrate with
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodYooKassa, PaymentMethodSberPay, PaymentMethodTinkoff:
		return true
	}
	return false
}

// Payment is a payment record bound to exactly one reservation, owned by the
// payment store. ExternalReference is the gateway's payment id and doubles as
// the webhook idempotency key.
type Payment struct {
	ID                uuid.UUID     `json:"id" db:"id"`
	ReservationID     uuid.UUID     `json:"reservation_id" db:"reservation_id"`
	ExternalReference string        `json:"external_reference" db:"external_reference"`
	PaymentURL        string        `json:"payment_url,omitempty" db:"payment_url"`
	Amount            float64       `json:"amount" db:"amount"`
	Currency          string        `json:"currency" db:"currency"`
	Method            PaymentMethod `json:"method" db:"method"`
	Status            PaymentStatus `json:"status" db:"status"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// Active reports whether this payment still counts against the one-active-payment
// invariant. Failed and cancelled payments may be superseded; they are retained
// for audit only.
func (p *Payment) Active() bool {
	return p.Status != PaymentStatusFailed && p.Status != PaymentStatusCancelled
}

// Transition applies a webhook-driven status change.
// Same-status replays are accepted as no-ops; moving a terminal payment to a
// different terminal state is a gateway inconsistency and is rejected.
func (p *Payment) Transition(target PaymentStatus) error {
	if p.Status == target {
		return nil
	}
	if p.Status.IsTerminal() {
		return &ConflictingTerminalStateError{PaymentID: p.ID, Current: p.Status, Requested: target}
	}
	if !target.IsTerminal() || target == PaymentStatusRefunded {
		return &InvalidTransitionError{Entity: "payment", From: string(p.Status), To: string(target)}
	}
	p.Status = target
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkRefunded moves a succeeded payment to refunded
func (p *Payment) MarkRefunded() error {
	if p.Status != PaymentStatusSucceeded {
		return &InvalidTransitionError{Entity: "payment", From: string(p.Status), To: string(PaymentStatusRefunded)}
	}
	p.Status = PaymentStatusRefunded
	p.UpdatedAt = time.Now().UTC()
	return nil
}
