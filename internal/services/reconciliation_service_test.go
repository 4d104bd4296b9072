package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/photostudio/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_NoDrift(t *testing.T) {
	f := newCoordinatorFixture()
	r := createTestReservation(t, f, "2025-12-20T10:00:00Z", "2025-12-20T12:00:00Z")
	createTestPayment(t, f, r.ID)

	result, err := f.reconciler.Reconcile(r.ID)
	require.NoError(t, err)
	assert.False(t, result.DriftDetected)
	assert.Equal(t, models.ReservationStatusPendingPayment, result.Reservation.Status)
	assert.Equal(t, models.PaymentStatusPending, result.Payment.Status)
}

func TestReconcile_NoPayment(t *testing.T) {
	f := newCoordinatorFixture()
	r := createTestReservation(t, f, "2025-12-20T10:00:00Z", "2025-12-20T12:00:00Z")

	result, err := f.reconciler.Reconcile(r.ID)
	require.NoError(t, err)
	assert.False(t, result.DriftDetected)
	assert.Nil(t, result.Payment)
}

func TestReconcile_RepairsLostCascade(t *testing.T) {
	f := newCoordinatorFixture()
	r := createTestReservation(t, f, "2025-12-20T10:00:00Z", "2025-12-20T12:00:00Z")
	p := createTestPayment(t, f, r.ID)

	// payment settled locally but the reservation never heard
	f.payments.setStatus(p.ID, models.PaymentStatusSucceeded)

	result, err := f.reconciler.Reconcile(r.ID)
	require.NoError(t, err)
	assert.True(t, result.DriftDetected)
	assert.Equal(t, models.ReservationStatusConfirmed, result.Reservation.Status)
	assert.Equal(t, models.PaymentStatusSucceeded, result.Payment.Status)

	stored, _ := f.bookings.GetByID(r.ID)
	assert.Equal(t, models.ReservationStatusConfirmed, stored.Status)
}

func TestReconcile_RepairsLostCancellationCascade(t *testing.T) {
	for _, outcome := range []models.PaymentStatus{models.PaymentStatusFailed, models.PaymentStatusCancelled} {
		t.Run(string(outcome), func(t *testing.T) {
			f := newCoordinatorFixture()
			r := createTestReservation(t, f, "2025-12-20T10:00:00Z", "2025-12-20T12:00:00Z")
			p := createTestPayment(t, f, r.ID)

			// the payment closed locally but the reservation write was lost;
			// a closed payment no longer counts as active, so the repair has
			// to look at the full payment history
			f.payments.setStatus(p.ID, outcome)

			result, err := f.reconciler.Reconcile(r.ID)
			require.NoError(t, err)
			assert.True(t, result.DriftDetected)
			assert.Equal(t, models.ReservationStatusCancelled, result.Reservation.Status)
			assert.Equal(t, outcome, result.Payment.Status)

			_, err = f.coordinator.CreateReservation("hall-001",
				mustTime("2025-12-20T10:00:00Z"), mustTime("2025-12-20T12:00:00Z"), testCustomer)
			assert.NoError(t, err, "slot is claimable after the repair released it")
		})
	}
}

func TestReconcile_UsesNewestPaymentAfterRetry(t *testing.T) {
	f := newCoordinatorFixture()
	r := createTestReservation(t, f, "2025-12-20T10:00:00Z", "2025-12-20T12:00:00Z")
	p1 := createTestPayment(t, f, r.ID)

	f.payments.setStatus(p1.ID, models.PaymentStatusFailed)
	p2, err := f.coordinator.CreatePayment(r.ID, 0, models.PaymentMethodYooKassa)
	require.NoError(t, err)

	// the failed first attempt must not shadow the pending retry
	result, err := f.reconciler.Reconcile(r.ID)
	require.NoError(t, err)
	assert.False(t, result.DriftDetected)
	assert.Equal(t, p2.ID, result.Payment.ID)
	assert.Equal(t, models.PaymentStatusPending, result.Payment.Status)
}

func TestReconcile_PollsGatewayForPendingPayment(t *testing.T) {
	f := newCoordinatorFixture()
	r := createTestReservation(t, f, "2025-12-20T10:00:00Z", "2025-12-20T12:00:00Z")
	p := createTestPayment(t, f, r.ID)

	// gateway settled, webhook never arrived
	f.gateway.settle(p.ExternalReference, models.PaymentStatusSucceeded)

	result, err := f.reconciler.Reconcile(r.ID)
	require.NoError(t, err)
	assert.True(t, result.DriftDetected)
	assert.Equal(t, models.ReservationStatusConfirmed, result.Reservation.Status)
	assert.Equal(t, models.PaymentStatusSucceeded, result.Payment.Status)
}

func TestReconcile_GatewayStillPending(t *testing.T) {
	f := newCoordinatorFixture()
	r := createTestReservation(t, f, "2025-12-20T10:00:00Z", "2025-12-20T12:00:00Z")
	createTestPayment(t, f, r.ID)

	result, err := f.reconciler.Reconcile(r.ID)
	require.NoError(t, err)
	assert.False(t, result.DriftDetected)

	stored, _ := f.bookings.GetByID(r.ID)
	assert.Equal(t, models.ReservationStatusPendingPayment, stored.Status)
}

func TestReconcile_CancelledOutcomeReleasesSlot(t *testing.T) {
	f := newCoordinatorFixture()
	r := createTestReservation(t, f, "2025-12-20T10:00:00Z", "2025-12-20T12:00:00Z")
	p := createTestPayment(t, f, r.ID)

	f.gateway.settle(p.ExternalReference, models.PaymentStatusCancelled)

	result, err := f.reconciler.Reconcile(r.ID)
	require.NoError(t, err)
	assert.True(t, result.DriftDetected)
	assert.Equal(t, models.ReservationStatusCancelled, result.Reservation.Status)

	_, err = f.coordinator.CreateReservation("hall-001",
		mustTime("2025-12-20T10:00:00Z"), mustTime("2025-12-20T12:00:00Z"), testCustomer)
	assert.NoError(t, err, "slot is claimable after the repair released it")
}

func TestReconcile_IdempotentAfterWebhook(t *testing.T) {
	f := newCoordinatorFixture()
	r := createTestReservation(t, f, "2025-12-20T10:00:00Z", "2025-12-20T12:00:00Z")
	p := createTestPayment(t, f, r.ID)
	require.NoError(t, f.coordinator.IngestWebhook(webhookEvent(p.ExternalReference, models.PaymentStatusSucceeded)))

	result, err := f.reconciler.Reconcile(r.ID)
	require.NoError(t, err)
	assert.False(t, result.DriftDetected, "already-cascaded state needs no repair")
	assert.Equal(t, models.ReservationStatusConfirmed, result.Reservation.Status)
}

func TestReconcile_NotFound(t *testing.T) {
	f := newCoordinatorFixture()

	_, err := f.reconciler.Reconcile(uuid.New())
	assert.ErrorIs(t, err, models.ErrReservationNotFound)
}
