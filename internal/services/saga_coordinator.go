package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/photostudio/booking-backend/internal/models"
	"github.com/photostudio/booking-backend/pkg/keylock"
	"github.com/sirupsen/logrus"
)

// SagaCoordinatorConfig holds the operational parameters of the booking saga
type SagaCoordinatorConfig struct {
	PaymentTimeout        time.Duration // how long a pending_payment reservation holds its slot
	MaxAvailabilityWindow time.Duration // upper bound on availability queries
	DefaultCurrency       string
}

// DefaultCoordinatorConfig returns default configuration
func DefaultCoordinatorConfig() SagaCoordinatorConfig {
	return SagaCoordinatorConfig{
		PaymentTimeout:        15 * time.Minute,
		MaxAvailabilityWindow: 31 * 24 * time.Hour,
		DefaultCurrency:       "RUB",
	}
}

// SagaCoordinator drives the reservation -> payment -> confirmation saga across
// the booking store and the payment store. It is the only component that
// cascades a payment outcome into the bound reservation, and it serializes all
// cross-record writes per reservation.
type SagaCoordinator struct {
	bookings BookingStore
	payments PaymentStore
	halls    HallStore
	gateways *GatewaySelector
	locks    *keylock.KeyLock
	config   SagaCoordinatorConfig
	logger   *logrus.Logger
}

// NewSagaCoordinator creates a new SagaCoordinator. The keylock instance must
// be shared with every other component that cascades for the same reservations
// (reconciliation, expiry).
func NewSagaCoordinator(
	bookings BookingStore,
	payments PaymentStore,
	halls HallStore,
	gateways *GatewaySelector,
	locks *keylock.KeyLock,
	config SagaCoordinatorConfig,
	logger *logrus.Logger,
) *SagaCoordinator {
	return &SagaCoordinator{
		bookings: bookings,
		payments: payments,
		halls:    halls,
		gateways: gateways,
		locks:    locks,
		config:   config,
		logger:   logger,
	}
}

func reservationLockKey(id uuid.UUID) string {
	return "reservation:" + id.String()
}

// ============================================================================
// AVAILABILITY
// ============================================================================

// CheckAvailability returns the availability slots for a hall over
// [start, end). A granularity <= 0 returns the maximal free/occupied runs.
func (s *SagaCoordinator) CheckAvailability(hallID string, start, end time.Time, granularity time.Duration) ([]models.TimeSlot, error) {
	if !start.Before(end) {
		return nil, models.ErrInvalidRange
	}
	if end.Sub(start) > s.config.MaxAvailabilityWindow {
		return nil, models.ErrRangeTooLarge
	}

	hall, err := s.halls.GetByID(hallID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hall: %w", err)
	}
	if hall == nil {
		return nil, models.ErrHallNotFound
	}

	reservations, err := s.bookings.ListActiveForHall(hallID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}

	return ComputeSlots(reservations, start, end, granularity)
}

// ============================================================================
// CREATE RESERVATION (Phase 1)
// ============================================================================

// CreateReservation claims a slot for a customer. The booking store performs
// the overlap check and the insert atomically; losing a concurrent race
// surfaces as SlotConflictError, which callers are expected to retry after
// re-querying availability.
func (s *SagaCoordinator) CreateReservation(hallID string, start, end time.Time, customer models.Customer) (*models.Reservation, error) {
	start, end = start.UTC(), end.UTC()

	hall, err := s.halls.GetByID(hallID)
	if err != nil {
		return nil, fmt.Errorf("failed to get hall: %w", err)
	}
	if hall == nil {
		return nil, models.ErrHallNotFound
	}
	if err := hall.ValidateWindow(start, end); err != nil {
		return nil, err
	}

	reservation := &models.Reservation{
		ID:          uuid.New(),
		HallID:      hallID,
		Customer:    customer,
		StartTime:   start,
		EndTime:     end,
		Status:      models.ReservationStatusCreated,
		TotalAmount: hall.Price(start, end),
		Currency:    s.config.DefaultCurrency,
	}
	if err := reservation.Validate(); err != nil {
		return nil, err
	}

	// created -> pending_payment happens together with the atomic insert
	if err := reservation.Transition(models.ReservationStatusPendingPayment); err != nil {
		return nil, err
	}
	if err := s.bookings.Insert(reservation); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"reservation_id": reservation.ID,
		"hall_id":        hallID,
		"start_time":     start,
		"end_time":       end,
		"total_amount":   reservation.TotalAmount,
	}).Info("Reservation created, awaiting payment")

	return reservation, nil
}

// ============================================================================
// CREATE PAYMENT (Phase 2)
// ============================================================================

// CreatePayment binds a new payment to a pending reservation and registers it
// with the gateway. A zero amount defaults to the reservation total.
func (s *SagaCoordinator) CreatePayment(reservationID uuid.UUID, amount float64, method models.PaymentMethod) (*models.Payment, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("unknown payment method %q", method)
	}
	gateway, err := s.gateways.ForMethod(method)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(reservationLockKey(reservationID))
	defer unlock()

	reservation, err := s.bookings.GetByID(reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if reservation == nil {
		return nil, models.ErrReservationNotFound
	}
	if reservation.Status != models.ReservationStatusPendingPayment {
		return nil, &models.InvalidReservationStateError{
			ReservationID: reservationID,
			Status:        reservation.Status,
			Required:      models.ReservationStatusPendingPayment,
		}
	}

	active, err := s.payments.GetActiveByReservation(reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to check for active payment: %w", err)
	}
	if active != nil {
		return nil, models.ErrDuplicatePayment
	}

	if amount == 0 {
		amount = reservation.TotalAmount
	}

	description := fmt.Sprintf("Photo studio booking %s, hall %s", reservationID, reservation.HallID)
	result, err := gateway.CreatePayment(amount, reservation.Currency, reservationID, description)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:                uuid.New(),
		ReservationID:     reservationID,
		ExternalReference: result.ExternalReference,
		PaymentURL:        result.PaymentURL,
		Amount:            amount,
		Currency:          reservation.Currency,
		Method:            method,
		Status:            models.PaymentStatusPending,
	}
	if err := s.payments.Create(payment); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id":         payment.ID,
		"reservation_id":     reservationID,
		"external_reference": payment.ExternalReference,
		"amount":             amount,
	}).Info("Payment created, awaiting gateway notification")

	return payment, nil
}

// ============================================================================
// WEBHOOK INGESTION (Phase 3)
// ============================================================================

// IngestWebhook applies a gateway notification: transitions the payment and
// cascades the outcome into the bound reservation. Duplicate deliveries of the
// same terminal event are no-ops; deliveries that contradict an already-applied
// terminal state surface ConflictingTerminalStateError and change nothing.
func (s *SagaCoordinator) IngestWebhook(event *models.WebhookEvent) error {
	if event.Status == models.PaymentStatusPending {
		// a non-terminal notification (waiting_for_capture etc.), nothing to apply
		s.logger.WithField("external_reference", event.ExternalReference).
			Debug("Ignoring non-terminal gateway notification")
		return nil
	}

	payment, err := s.payments.FindByExternalReference(event.ExternalReference)
	if err != nil {
		return fmt.Errorf("failed to resolve external reference: %w", err)
	}
	if payment == nil {
		return &models.UnknownReferenceError{Reference: event.ExternalReference}
	}

	// serialize with other cascades for the same reservation, then re-read
	// the payment inside the lock before deciding
	unlock := s.locks.Lock(reservationLockKey(payment.ReservationID))
	defer unlock()

	payment, err = s.payments.GetByID(payment.ID)
	if err != nil {
		return fmt.Errorf("failed to re-read payment: %w", err)
	}
	if payment == nil {
		return models.ErrPaymentNotFound
	}

	if payment.Status == event.Status {
		s.logger.WithFields(logrus.Fields{
			"payment_id":         payment.ID,
			"external_reference": event.ExternalReference,
			"status":             payment.Status,
		}).Info("Duplicate gateway notification, re-running cascade")
		// a redelivery may be the first delivery whose cascade actually
		// lands, so the reservation still has to be settled here
		err := cascadeReservation(s.bookings, s.logger, payment.ReservationID, payment.Status)
		var invalid *models.InvalidTransitionError
		if errors.As(err, &invalid) {
			// the reservation settled some other way (e.g. expired);
			// nothing left to repair
			return nil
		}
		return err
	}

	previous := payment.Status
	if err := payment.Transition(event.Status); err != nil {
		return err
	}
	if err := s.payments.UpdateStatus(payment.ID, previous, event.Status); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id":         payment.ID,
		"external_reference": event.ExternalReference,
		"from":               previous,
		"to":                 event.Status,
	}).Info("Payment transitioned by gateway notification")

	return cascadeReservation(s.bookings, s.logger, payment.ReservationID, event.Status)
}

// ============================================================================
// STATUS & CANCELLATION
// ============================================================================

// StatusView is the merged read model of a reservation and its active payment
type StatusView struct {
	Reservation *models.Reservation `json:"reservation"`
	Payment     *models.Payment     `json:"payment,omitempty"`
}

// GetStatus returns the merged view of a reservation and its active payment
func (s *SagaCoordinator) GetStatus(reservationID uuid.UUID) (*StatusView, error) {
	reservation, err := s.bookings.GetByID(reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if reservation == nil {
		return nil, models.ErrReservationNotFound
	}

	payment, err := s.payments.GetActiveByReservation(reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active payment: %w", err)
	}

	return &StatusView{Reservation: reservation, Payment: payment}, nil
}

// CancelReservation performs an explicit customer cancellation. Allowed only
// before the reservation reaches a terminal state; any pending payment is
// cancelled locally and, best effort, at the gateway.
func (s *SagaCoordinator) CancelReservation(reservationID uuid.UUID) error {
	unlock := s.locks.Lock(reservationLockKey(reservationID))
	defer unlock()

	reservation, err := s.bookings.GetByID(reservationID)
	if err != nil {
		return fmt.Errorf("failed to get reservation: %w", err)
	}
	if reservation == nil {
		return models.ErrReservationNotFound
	}
	if !reservation.Status.CanTransitionTo(models.ReservationStatusCancelled) {
		return &models.InvalidTransitionError{
			Entity: "reservation",
			From:   string(reservation.Status),
			To:     string(models.ReservationStatusCancelled),
		}
	}

	payment, err := s.payments.GetActiveByReservation(reservationID)
	if err != nil {
		return fmt.Errorf("failed to get active payment: %w", err)
	}
	if payment != nil && payment.Status == models.PaymentStatusPending {
		gateway, err := s.gateways.ForMethod(payment.Method)
		if err != nil {
			return err
		}
		if err := s.payments.UpdateStatus(payment.ID, models.PaymentStatusPending, models.PaymentStatusCancelled); err != nil {
			return err
		}
		if err := gateway.CancelPayment(payment.ExternalReference); err != nil {
			s.logger.WithError(err).WithField("payment_id", payment.ID).
				Warn("Failed to cancel payment at the gateway")
		}
	}

	if err := s.bookings.UpdateStatus(reservationID,
		[]models.ReservationStatus{models.ReservationStatusCreated, models.ReservationStatusPendingPayment},
		models.ReservationStatusCancelled); err != nil {
		return err
	}

	s.logger.WithField("reservation_id", reservationID).Info("Reservation cancelled by customer, slot released")
	return nil
}

// RefundPayment refunds a succeeded payment. The reservation is left as is;
// operators decide separately whether to re-open the slot.
func (s *SagaCoordinator) RefundPayment(paymentID uuid.UUID, amount float64) (*models.Payment, error) {
	payment, err := s.payments.GetByID(paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	if payment == nil {
		return nil, models.ErrPaymentNotFound
	}

	unlock := s.locks.Lock(reservationLockKey(payment.ReservationID))
	defer unlock()

	payment, err = s.payments.GetByID(paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to re-read payment: %w", err)
	}
	if err := payment.MarkRefunded(); err != nil {
		return nil, err
	}

	gateway, err := s.gateways.ForMethod(payment.Method)
	if err != nil {
		return nil, err
	}
	if amount == 0 {
		amount = payment.Amount
	}
	if err := gateway.Refund(payment.ExternalReference, amount, payment.Currency); err != nil {
		return nil, err
	}
	if err := s.payments.UpdateStatus(paymentID, models.PaymentStatusSucceeded, models.PaymentStatusRefunded); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"amount":     amount,
	}).Info("Payment refunded")

	return payment, nil
}

// ============================================================================
// EXPIRY
// ============================================================================

// ExpireOverdue expires pending_payment reservations whose payment window has
// elapsed and releases their slots. Before expiring, the gateway is consulted
// for any still-pending payment so a lost success notification confirms the
// booking instead of dropping it. Returns the number of reservations expired.
func (s *SagaCoordinator) ExpireOverdue(now time.Time) (int, error) {
	cutoff := now.Add(-s.config.PaymentTimeout)
	overdue, err := s.bookings.ListOverdue(cutoff, 100)
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue reservations: %w", err)
	}

	expired := 0
	for i := range overdue {
		if err := s.expireReservation(overdue[i].ID); err != nil {
			s.logger.WithError(err).WithField("reservation_id", overdue[i].ID).
				Error("Failed to expire reservation")
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *SagaCoordinator) expireReservation(reservationID uuid.UUID) error {
	unlock := s.locks.Lock(reservationLockKey(reservationID))
	defer unlock()

	reservation, err := s.bookings.GetByID(reservationID)
	if err != nil {
		return err
	}
	if reservation == nil || reservation.Status != models.ReservationStatusPendingPayment {
		// settled while we waited for the lock
		return nil
	}

	payment, err := s.payments.GetActiveByReservation(reservationID)
	if err != nil {
		return err
	}

	if payment != nil {
		if payment.Status == models.PaymentStatusSucceeded {
			// webhook cascade was lost; repair instead of expiring
			return cascadeReservation(s.bookings, s.logger, reservationID, payment.Status)
		}

		gateway, err := s.gateways.ForMethod(payment.Method)
		if err != nil {
			return err
		}

		// a pending payment may have settled at the gateway without us hearing
		status, err := gateway.FetchStatus(payment.ExternalReference)
		if err != nil {
			s.logger.WithError(err).WithField("payment_id", payment.ID).
				Warn("Gateway status check failed during expiry, proceeding to expire")
		} else if status.IsTerminal() {
			if err := s.payments.UpdateStatus(payment.ID, models.PaymentStatusPending, status); err != nil {
				return err
			}
			return cascadeReservation(s.bookings, s.logger, reservationID, status)
		}

		// still pending: close the payment so a late success surfaces as a
		// conflict instead of silently confirming a released slot
		if err := s.payments.UpdateStatus(payment.ID, models.PaymentStatusPending, models.PaymentStatusCancelled); err != nil {
			return err
		}
		if err := gateway.CancelPayment(payment.ExternalReference); err != nil {
			s.logger.WithError(err).WithField("payment_id", payment.ID).
				Warn("Failed to cancel payment at the gateway")
		}
	}

	if err := s.bookings.UpdateStatus(reservationID,
		[]models.ReservationStatus{models.ReservationStatusPendingPayment},
		models.ReservationStatusExpired); err != nil {
		return err
	}

	s.logger.WithField("reservation_id", reservationID).Info("Reservation expired, slot released")
	return nil
}

// ============================================================================
// CASCADE
// ============================================================================

// cascadeReservation propagates a terminal payment outcome into the bound
// reservation: success confirms it, failure or cancellation releases the slot.
// Shared by webhook ingestion, reconciliation and expiry; idempotent because
// the guarded update treats an already-applied transition as a no-op.
func cascadeReservation(bookings BookingStore, logger *logrus.Logger, reservationID uuid.UUID, outcome models.PaymentStatus) error {
	var target models.ReservationStatus
	switch outcome {
	case models.PaymentStatusSucceeded, models.PaymentStatusRefunded:
		target = models.ReservationStatusConfirmed
	case models.PaymentStatusFailed, models.PaymentStatusCancelled:
		target = models.ReservationStatusCancelled
	default:
		return nil
	}

	err := bookings.UpdateStatus(reservationID,
		[]models.ReservationStatus{models.ReservationStatusPendingPayment}, target)
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"reservation_id": reservationID,
		"outcome":        outcome,
		"status":         target,
	}).Info("Payment outcome cascaded to reservation")
	return nil
}
