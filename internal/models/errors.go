package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidRange indicates an availability window where start >= end
	ErrInvalidRange = errors.New("window start must be before window end")

	// ErrRangeTooLarge indicates an availability window beyond the configured maximum
	ErrRangeTooLarge = errors.New("requested window exceeds the maximum availability range")

	// ErrDuplicatePayment indicates an active payment already exists for the reservation
	ErrDuplicatePayment = errors.New("an active payment already exists for this reservation")

	// ErrReservationNotFound indicates the reservation does not exist
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrPaymentNotFound indicates the payment does not exist
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrHallNotFound indicates the hall does not exist
	ErrHallNotFound = errors.New("hall not found")
)

// SlotConflictError is returned when a reservation claim loses the race for a slot.
// Callers are expected to re-query availability and retry with a different window.
type SlotConflictError struct {
	HallID    string    `json:"hall_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot [%s, %s) for hall %s is already reserved",
		e.StartTime.Format(time.RFC3339), e.EndTime.Format(time.RFC3339), e.HallID)
}

// InvalidTransitionError is returned when a state machine rejects a transition
type InvalidTransitionError struct {
	Entity string `json:"entity"` // "reservation" or "payment"
	From   string `json:"from"`
	To     string `json:"to"`
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Entity, e.From, e.To)
}

// InvalidReservationStateError is returned when an operation requires the
// reservation to be in a specific state and it is not
type InvalidReservationStateError struct {
	ReservationID uuid.UUID         `json:"reservation_id"`
	Status        ReservationStatus `json:"status"`
	Required      ReservationStatus `json:"required"`
}

func (e *InvalidReservationStateError) Error() string {
	return fmt.Sprintf("reservation %s is %s, expected %s", e.ReservationID, e.Status, e.Required)
}

// ConflictingTerminalStateError signals gateway inconsistency: a terminal payment
// was asked to move to a different terminal state. It is surfaced for operator
// attention and never silently overwritten.
type ConflictingTerminalStateError struct {
	PaymentID uuid.UUID     `json:"payment_id"`
	Current   PaymentStatus `json:"current"`
	Requested PaymentStatus `json:"requested"`
}

func (e *ConflictingTerminalStateError) Error() string {
	return fmt.Sprintf("payment %s is already %s, refusing to move to %s",
		e.PaymentID, e.Current, e.Requested)
}

// UnknownReferenceError is returned when a webhook carries an external reference
// that does not map to any known payment. The gateway may retry, or the event
// may belong to another merchant account; it is logged, not fatal.
type UnknownReferenceError struct {
	Reference string `json:"external_reference"`
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("no payment found for external reference %q", e.Reference)
}
