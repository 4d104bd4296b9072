package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/photostudio/booking-backend/internal/models"
	"github.com/photostudio/booking-backend/pkg/keylock"
	"github.com/sirupsen/logrus"
)

// ReconciliationResult reports what reconciliation found and repaired
type ReconciliationResult struct {
	Reservation   *models.Reservation `json:"reservation"`
	Payment       *models.Payment     `json:"payment,omitempty"`
	DriftDetected bool                `json:"drift_detected"`
}

// ReconciliationService re-synchronizes a reservation with the authoritative
// payment state on demand, compensating for delayed or lost gateway
// notifications. It shares the per-reservation lock with webhook ingestion, so
// a repair never interleaves with a live cascade, and applying both is
// idempotent.
type ReconciliationService struct {
	bookings BookingStore
	payments PaymentStore
	gateways *GatewaySelector
	locks    *keylock.KeyLock
	logger   *logrus.Logger
}

// NewReconciliationService creates a new ReconciliationService. The keylock
// instance must be the one the coordinator uses.
func NewReconciliationService(
	bookings BookingStore,
	payments PaymentStore,
	gateways *GatewaySelector,
	locks *keylock.KeyLock,
	logger *logrus.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		bookings: bookings,
		payments: payments,
		gateways: gateways,
		locks:    locks,
		logger:   logger,
	}
}

// Reconcile fetches authoritative reservation and payment state, detects drift
// (a terminal payment outcome not yet cascaded to the reservation, or a payment
// the gateway settled without notifying us) and repairs it. Safe to call at any
// time; a call with nothing to repair is a read-only no-op.
func (s *ReconciliationService) Reconcile(reservationID uuid.UUID) (*ReconciliationResult, error) {
	unlock := s.locks.Lock("reservation:" + reservationID.String())
	defer unlock()

	reservation, err := s.bookings.GetByID(reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if reservation == nil {
		return nil, models.ErrReservationNotFound
	}

	// the newest payment decides the outcome, even when it is failed or
	// cancelled and therefore no longer counts as active
	history, err := s.payments.ListByReservation(reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	payment := latestPayment(history)

	result := &ReconciliationResult{Reservation: reservation, Payment: payment}
	if payment == nil || reservation.Status != models.ReservationStatusPendingPayment {
		return result, nil
	}

	outcome := payment.Status

	// a locally pending payment may have settled at the gateway
	if outcome == models.PaymentStatusPending {
		gateway, err := s.gateways.ForMethod(payment.Method)
		if err != nil {
			return nil, err
		}
		gatewayStatus, err := gateway.FetchStatus(payment.ExternalReference)
		if err != nil {
			return nil, fmt.Errorf("gateway status fetch failed: %w", err)
		}
		if !gatewayStatus.IsTerminal() {
			return result, nil
		}

		s.logger.WithFields(logrus.Fields{
			"reservation_id":     reservationID,
			"payment_id":         payment.ID,
			"external_reference": payment.ExternalReference,
			"gateway_status":     gatewayStatus,
		}).Warn("Gateway settled a payment we never heard about, repairing")

		if err := payment.Transition(gatewayStatus); err != nil {
			return nil, err
		}
		if err := s.payments.UpdateStatus(payment.ID, models.PaymentStatusPending, gatewayStatus); err != nil {
			return nil, err
		}
		outcome = gatewayStatus
	} else {
		s.logger.WithFields(logrus.Fields{
			"reservation_id": reservationID,
			"payment_id":     payment.ID,
			"payment_status": outcome,
		}).Warn("Payment outcome was never cascaded, repairing")
	}

	if err := cascadeReservation(s.bookings, s.logger, reservationID, outcome); err != nil {
		return nil, err
	}
	result.DriftDetected = true

	// return the repaired view
	if result.Reservation, err = s.bookings.GetByID(reservationID); err != nil {
		return nil, fmt.Errorf("failed to re-read reservation: %w", err)
	}
	if result.Payment, err = s.payments.GetByID(payment.ID); err != nil {
		return nil, fmt.Errorf("failed to re-read payment: %w", err)
	}
	return result, nil
}

func latestPayment(payments []models.Payment) *models.Payment {
	var latest *models.Payment
	for i := range payments {
		if latest == nil || payments[i].CreatedAt.After(latest.CreatedAt) {
			latest = &payments[i]
		}
	}
	return latest
}
