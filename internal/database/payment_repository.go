package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/photostudio/booking-backend/internal/models"
)

// PaymentRepository is the payment-store collaborator. It owns the payments
// table. Superseded (failed/cancelled) payments are retained for audit.
//
// Expected schema:
//
//	CREATE TABLE payments (
//	    id                 UUID PRIMARY KEY,
//	    reservation_id     UUID NOT NULL REFERENCES reservations(id),
//	    external_reference TEXT NOT NULL UNIQUE,
//	    payment_url        TEXT NOT NULL DEFAULT '',
//	    amount             NUMERIC(12,2) NOT NULL,
//	    currency           TEXT NOT NULL,
//	    method             TEXT NOT NULL,
//	    status             TEXT NOT NULL,
//	    created_at         TIMESTAMPTZ NOT NULL,
//	    updated_at         TIMESTAMPTZ NOT NULL
//	);
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `
	id, reservation_id, external_reference, payment_url,
	amount, currency, method, status, created_at, updated_at`

func scanPayment(row interface {
	Scan(dest ...interface{}) error
}) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(
		&p.ID, &p.ReservationID, &p.ExternalReference, &p.PaymentURL,
		&p.Amount, &p.Currency, &p.Method, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create persists a new payment
func (r *PaymentRepository) Create(p *models.Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.ReservationID, p.ExternalReference, p.PaymentURL,
		p.Amount, p.Currency, p.Method, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

// GetByID retrieves a payment by ID; returns (nil, nil) when not found
func (r *PaymentRepository) GetByID(id uuid.UUID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	p, err := scanPayment(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// GetActiveByReservation returns the reservation's active payment, i.e. the one
// that is not failed or cancelled. At most one exists at a time; returns
// (nil, nil) if there is none.
func (r *PaymentRepository) GetActiveByReservation(reservationID uuid.UUID) (*models.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE reservation_id = $1 AND status NOT IN ('failed', 'cancelled')
		ORDER BY created_at DESC
		LIMIT 1`

	p, err := scanPayment(r.db.QueryRow(query, reservationID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active payment: %w", err)
	}
	return p, nil
}

// FindByExternalReference resolves a gateway reference to its payment;
// returns (nil, nil) when no payment carries the reference
func (r *PaymentRepository) FindByExternalReference(ref string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE external_reference = $1`
	p, err := scanPayment(r.db.QueryRow(query, ref))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find payment by reference: %w", err)
	}
	return p, nil
}

// UpdateStatus persists a payment status decided by the state machine.
// The guard on the previous status keeps a lost-update from overwriting a
// terminal state: writers must have read the row under the reservation lock.
func (r *PaymentRepository) UpdateStatus(id uuid.UUID, from, to models.PaymentStatus) error {
	result, err := r.db.Exec(`
		UPDATE payments
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4`,
		id, to, time.Now().UTC(), from,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		current, err := r.GetByID(id)
		if err != nil {
			return err
		}
		if current == nil {
			return models.ErrPaymentNotFound
		}
		if current.Status == to {
			return nil
		}
		return &models.ConflictingTerminalStateError{PaymentID: id, Current: current.Status, Requested: to}
	}
	return nil
}

// ListByReservation returns all payments for a reservation, newest first.
// Includes superseded payments for audit views.
func (r *PaymentRepository) ListByReservation(reservationID uuid.UUID) ([]models.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE reservation_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(query, reservationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}
