package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReservationStatus represents the lifecycle state of a hall reservation
type ReservationStatus string

const (
	ReservationStatusCreated        ReservationStatus = "created"
	ReservationStatusPendingPayment ReservationStatus = "pending_payment"
	ReservationStatusConfirmed      ReservationStatus = "confirmed"
	ReservationStatusCancelled      ReservationStatus = "cancelled"
	ReservationStatusExpired        ReservationStatus = "expired"
)

// reservationTransitions is the allowed transition table.
// created -> pending_payment happens at persistence time; pending_payment is the
// only state a payment outcome can move.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationStatusCreated:        {ReservationStatusPendingPayment, ReservationStatusCancelled},
	ReservationStatusPendingPayment: {ReservationStatusConfirmed, ReservationStatusCancelled, ReservationStatusExpired},
}

// CanTransitionTo reports whether the transition from s to target is allowed
func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible
func (s ReservationStatus) IsTerminal() bool {
	return len(reservationTransitions[s]) == 0
}

// OccupiesSlot reports whether a reservation in this status blocks its time window.
// Cancelled and expired reservations release the slot.
func (s ReservationStatus) OccupiesSlot() bool {
	return s == ReservationStatusPendingPayment || s == ReservationStatusConfirmed
}

// Customer holds the contact details captured with a reservation
type Customer struct {
	Name  string `json:"name" db:"customer_name" binding:"required"`
	Email string `json:"email" db:"customer_email" binding:"required,email"`
	Phone string `json:"phone" db:"customer_phone" binding:"required"`
}

// Reservation is a hall booking record, owned by the booking store.
// The interval is half-open [start_time, end_time).
type Reservation struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	HallID      string            `json:"hall_id" db:"hall_id"`
	Customer    Customer          `json:"customer"`
	StartTime   time.Time         `json:"start_time" db:"start_time"`
	EndTime     time.Time         `json:"end_time" db:"end_time"`
	Status      ReservationStatus `json:"status" db:"status"`
	TotalAmount float64           `json:"total_amount" db:"total_amount"`
	Currency    string            `json:"currency" db:"currency"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

// Transition moves the reservation to target, enforcing the transition table
func (r *Reservation) Transition(target ReservationStatus) error {
	if !r.Status.CanTransitionTo(target) {
		return &InvalidTransitionError{Entity: "reservation", From: string(r.Status), To: string(target)}
	}
	r.Status = target
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Overlaps reports whether the reservation interval intersects [start, end).
// Both intervals are half-open, so touching boundaries do not overlap.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && start.Before(r.EndTime)
}

// Validate checks the reservation window invariants
func (r *Reservation) Validate() error {
	if r.HallID == "" {
		return fmt.Errorf("hall_id is required")
	}
	if !r.StartTime.Before(r.EndTime) {
		return ErrInvalidRange
	}
	if r.Customer.Name == "" || r.Customer.Email == "" {
		return fmt.Errorf("customer name and email are required")
	}
	return nil
}
