package services

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/photostudio/booking-backend/internal/models"
	"github.com/photostudio/booking-backend/pkg/keylock"
	"github.com/sirupsen/logrus"
)

// fakeBookingStore is an in-memory BookingStore with the same atomic
// overlap-checked insert contract as the real repository
type fakeBookingStore struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]*models.Reservation
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{reservations: make(map[uuid.UUID]*models.Reservation)}
}

func (s *fakeBookingStore) ListActiveForHall(hallID string, from, to time.Time) ([]models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Reservation
	for _, r := range s.reservations {
		if r.HallID == hallID && r.Status.OccupiesSlot() && r.Overlaps(from, to) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeBookingStore) Insert(r *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.reservations {
		if existing.HallID == r.HallID && existing.Status.OccupiesSlot() && existing.Overlaps(r.StartTime, r.EndTime) {
			return &models.SlotConflictError{HallID: r.HallID, StartTime: r.StartTime, EndTime: r.EndTime}
		}
	}

	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	stored := *r
	s.reservations[r.ID] = &stored
	return nil
}

func (s *fakeBookingStore) GetByID(id uuid.UUID) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[id]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (s *fakeBookingStore) UpdateStatus(id uuid.UUID, allowedFrom []models.ReservationStatus, to models.ReservationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[id]
	if !ok {
		return models.ErrReservationNotFound
	}
	if r.Status == to {
		return nil
	}
	for _, from := range allowedFrom {
		if r.Status == from {
			r.Status = to
			r.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return &models.InvalidTransitionError{Entity: "reservation", From: string(r.Status), To: string(to)}
}

func (s *fakeBookingStore) ListOverdue(cutoff time.Time, limit int) ([]models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Reservation
	for _, r := range s.reservations {
		if r.Status == models.ReservationStatusPendingPayment && r.CreatedAt.Before(cutoff) {
			out = append(out, *r)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// backdate rewrites a reservation's creation time so expiry tests can age it
func (s *fakeBookingStore) backdate(id uuid.UUID, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reservations[id]; ok {
		r.CreatedAt = createdAt
	}
}

// fakePaymentStore is an in-memory PaymentStore
type fakePaymentStore struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*models.Payment
}

func newFakePaymentStore() *fakePaymentStore {
	return &fakePaymentStore{payments: make(map[uuid.UUID]*models.Payment)}
}

func (s *fakePaymentStore) Create(p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	stored := *p
	s.payments[p.ID] = &stored
	return nil
}

func (s *fakePaymentStore) GetByID(id uuid.UUID) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (s *fakePaymentStore) GetActiveByReservation(reservationID uuid.UUID) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *models.Payment
	for _, p := range s.payments {
		if p.ReservationID != reservationID || !p.Active() {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (s *fakePaymentStore) FindByExternalReference(ref string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.payments {
		if p.ExternalReference == ref {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakePaymentStore) UpdateStatus(id uuid.UUID, from, to models.PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[id]
	if !ok {
		return models.ErrPaymentNotFound
	}
	if p.Status == to {
		return nil
	}
	if p.Status != from {
		return &models.ConflictingTerminalStateError{PaymentID: id, Current: p.Status, Requested: to}
	}
	p.Status = to
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *fakePaymentStore) ListByReservation(reservationID uuid.UUID) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Payment
	for _, p := range s.payments {
		if p.ReservationID == reservationID {
			out = append(out, *p)
		}
	}
	return out, nil
}

// setStatus rewrites a payment's status directly, simulating a payment-service
// write the coordinator never saw
func (s *fakePaymentStore) setStatus(id uuid.UUID, status models.PaymentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.payments[id]; ok {
		p.Status = status
	}
}

// fakeGateway is an in-memory PaymentGateway
type fakeGateway struct {
	mu        sync.Mutex
	statuses  map[string]models.PaymentStatus
	nextRef   int
	cancelled []string
	refunded  []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: make(map[string]models.PaymentStatus)}
}

func (g *fakeGateway) CreatePayment(amount float64, currency string, reservationID uuid.UUID, description string) (*GatewayPaymentResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nextRef++
	ref := fmt.Sprintf("gw-ref-%d", g.nextRef)
	g.statuses[ref] = models.PaymentStatusPending
	return &GatewayPaymentResult{
		ExternalReference: ref,
		PaymentURL:        "https://gateway.test/pay/" + ref,
		Status:            models.PaymentStatusPending,
	}, nil
}

func (g *fakeGateway) FetchStatus(ref string) (models.PaymentStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if status, ok := g.statuses[ref]; ok {
		return status, nil
	}
	return models.PaymentStatusPending, nil
}

func (g *fakeGateway) CancelPayment(ref string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, ref)
	return nil
}

func (g *fakeGateway) Refund(ref string, amount float64, currency string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunded = append(g.refunded, ref)
	return nil
}

func (g *fakeGateway) settle(ref string, status models.PaymentStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[ref] = status
}

// fakeHallStore is an in-memory HallStore seeded with one hall
type fakeHallStore struct {
	halls map[string]*models.Hall
}

func newFakeHallStore() *fakeHallStore {
	return &fakeHallStore{halls: map[string]*models.Hall{
		"hall-001": {
			ID:                "hall-001",
			Name:              "Large Hall",
			HourlyRate:        1500,
			MinBookingMinutes: 60,
			WorkStart:         "00:00",
			WorkEnd:           "23:59",
		},
	}}
}

func (s *fakeHallStore) GetByID(id string) (*models.Hall, error) {
	hall, ok := s.halls[id]
	if !ok {
		return nil, nil
	}
	copied := *hall
	return &copied, nil
}

func (s *fakeHallStore) List() ([]models.Hall, error) {
	var out []models.Hall
	for _, h := range s.halls {
		out = append(out, *h)
	}
	return out, nil
}

type coordinatorFixture struct {
	coordinator *SagaCoordinator
	reconciler  *ReconciliationService
	bookings    *fakeBookingStore
	payments    *fakePaymentStore
	gateway     *fakeGateway
}

func newCoordinatorFixture() *coordinatorFixture {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	bookings := newFakeBookingStore()
	payments := newFakePaymentStore()
	gateway := newFakeGateway()
	locks := keylock.New()

	gateways := NewGatewaySelector()
	gateways.Register(models.PaymentMethodYooKassa, gateway)
	gateways.Register(models.PaymentMethodSberPay, gateway)
	gateways.Register(models.PaymentMethodTinkoff, gateway)

	coordinator := NewSagaCoordinator(bookings, payments, newFakeHallStore(), gateways, locks, DefaultCoordinatorConfig(), logger)
	reconciler := NewReconciliationService(bookings, payments, gateways, locks, logger)

	return &coordinatorFixture{
		coordinator: coordinator,
		reconciler:  reconciler,
		bookings:    bookings,
		payments:    payments,
		gateway:     gateway,
	}
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UTC()
}
