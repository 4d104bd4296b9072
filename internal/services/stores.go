package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/photostudio/booking-backend/internal/models"
)

// BookingStore is the capability interface of the booking service. The
// coordinator never reaches past it; the insert must perform its overlap check
// atomically and return SlotConflictError to the losing claim.
type BookingStore interface {
	ListActiveForHall(hallID string, from, to time.Time) ([]models.Reservation, error)
	Insert(r *models.Reservation) error
	GetByID(id uuid.UUID) (*models.Reservation, error)
	UpdateStatus(id uuid.UUID, allowedFrom []models.ReservationStatus, to models.ReservationStatus) error
	ListOverdue(cutoff time.Time, limit int) ([]models.Reservation, error)
}

// PaymentStore is the capability interface of the payment service
type PaymentStore interface {
	Create(p *models.Payment) error
	GetByID(id uuid.UUID) (*models.Payment, error)
	GetActiveByReservation(reservationID uuid.UUID) (*models.Payment, error)
	FindByExternalReference(ref string) (*models.Payment, error)
	UpdateStatus(id uuid.UUID, from, to models.PaymentStatus) error
	ListByReservation(reservationID uuid.UUID) ([]models.Payment, error)
}

// HallStore reads the hall catalog
type HallStore interface {
	GetByID(id string) (*models.Hall, error)
	List() ([]models.Hall, error)
}

// GatewayPaymentResult is what the gateway returns for a newly created payment
type GatewayPaymentResult struct {
	ExternalReference string
	PaymentURL        string
	Status            models.PaymentStatus
}

// PaymentGateway is the capability interface of the external payment gateway
type PaymentGateway interface {
	CreatePayment(amount float64, currency string, reservationID uuid.UUID, description string) (*GatewayPaymentResult, error)
	FetchStatus(externalReference string) (models.PaymentStatus, error)
	CancelPayment(externalReference string) error
	Refund(externalReference string, amount float64, currency string) error
}
