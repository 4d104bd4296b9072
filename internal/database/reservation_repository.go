package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/photostudio/booking-backend/internal/models"
)

// ReservationRepository is the booking-store collaborator. It owns the
// reservations table.
//
// Expected schema:
//
//	CREATE TABLE reservations (
//	    id             UUID PRIMARY KEY,
//	    hall_id        TEXT NOT NULL REFERENCES halls(id),
//	    customer_name  TEXT NOT NULL,
//	    customer_email TEXT NOT NULL,
//	    customer_phone TEXT NOT NULL,
//	    start_time     TIMESTAMPTZ NOT NULL,
//	    end_time       TIMESTAMPTZ NOT NULL,
//	    status         TEXT NOT NULL,
//	    total_amount   NUMERIC(12,2) NOT NULL,
//	    currency       TEXT NOT NULL,
//	    created_at     TIMESTAMPTZ NOT NULL,
//	    updated_at     TIMESTAMPTZ NOT NULL,
//	    -- backstop for the overlap invariant (requires btree_gist):
//	    EXCLUDE USING gist (hall_id WITH =, tstzrange(start_time, end_time) WITH &&)
//	        WHERE (status IN ('pending_payment', 'confirmed'))
//	);
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository creates a new ReservationRepository
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

const reservationColumns = `
	id, hall_id, customer_name, customer_email, customer_phone,
	start_time, end_time, status, total_amount, currency, created_at, updated_at`

// exclusionConstraintName matches the schema's overlap backstop
const exclusionConstraintName = "reservations_hall_id_tstzrange_excl"

func scanReservation(row interface {
	Scan(dest ...interface{}) error
}) (*models.Reservation, error) {
	var r models.Reservation
	err := row.Scan(
		&r.ID, &r.HallID, &r.Customer.Name, &r.Customer.Email, &r.Customer.Phone,
		&r.StartTime, &r.EndTime, &r.Status, &r.TotalAmount, &r.Currency,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.StartTime = r.StartTime.UTC()
	r.EndTime = r.EndTime.UTC()
	return &r, nil
}

// ListActiveForHall returns reservations for a hall whose status occupies a slot
// and whose interval intersects [from, to)
func (r *ReservationRepository) ListActiveForHall(hallID string, from, to time.Time) ([]models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE hall_id = $1
		  AND status IN ('pending_payment', 'confirmed')
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time`

	rows, err := r.db.Query(query, hallID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, *res)
	}
	return reservations, rows.Err()
}

// Insert persists a reservation with an atomic overlap check. The transaction
// takes a per-hall advisory lock so two concurrent claims on the same hall
// serialize; the overlap query then decides the race. The gist exclusion
// constraint remains as the backstop for writers outside this path.
func (r *ReservationRepository) Insert(res *models.Reservation) error {
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	now := time.Now().UTC()
	res.CreatedAt = now
	res.UpdatedAt = now

	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`SELECT pg_advisory_xact_lock(hashtext($1))`, res.HallID); err != nil {
		return fmt.Errorf("failed to take hall lock: %w", err)
	}

	var overlapping int
	err = tx.QueryRow(`
		SELECT COUNT(1)
		FROM reservations
		WHERE hall_id = $1
		  AND status IN ('pending_payment', 'confirmed')
		  AND start_time < $3
		  AND end_time > $2`,
		res.HallID, res.StartTime, res.EndTime,
	).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("failed to check for overlaps: %w", err)
	}
	if overlapping > 0 {
		return &models.SlotConflictError{HallID: res.HallID, StartTime: res.StartTime, EndTime: res.EndTime}
	}

	_, err = tx.Exec(`
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		res.ID, res.HallID, res.Customer.Name, res.Customer.Email, res.Customer.Phone,
		res.StartTime, res.EndTime, res.Status, res.TotalAmount, res.Currency,
		res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Constraint == exclusionConstraintName {
			return &models.SlotConflictError{HallID: res.HallID, StartTime: res.StartTime, EndTime: res.EndTime}
		}
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	return tx.Commit()
}

// GetByID retrieves a reservation by ID; returns (nil, nil) when not found
func (r *ReservationRepository) GetByID(id uuid.UUID) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	res, err := scanReservation(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return res, nil
}

// UpdateStatus moves a reservation to the target status, guarded by the set of
// states the transition is allowed from. Zero rows affected means the record
// moved concurrently; the caller receives an InvalidTransitionError carrying
// the current status.
func (r *ReservationRepository) UpdateStatus(id uuid.UUID, allowedFrom []models.ReservationStatus, to models.ReservationStatus) error {
	from := make([]string, len(allowedFrom))
	for i, s := range allowedFrom {
		from[i] = string(s)
	}

	result, err := r.db.Exec(`
		UPDATE reservations
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = ANY($4)`,
		id, to, time.Now().UTC(), pq.Array(from),
	)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
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
			return models.ErrReservationNotFound
		}
		if current.Status == to {
			// already there, concurrent writer applied the same transition
			return nil
		}
		return &models.InvalidTransitionError{Entity: "reservation", From: string(current.Status), To: string(to)}
	}
	return nil
}

// ListOverdue returns pending_payment reservations created before the cutoff,
// oldest first. Used by the expiry sweep.
func (r *ReservationRepository) ListOverdue(cutoff time.Time, limit int) ([]models.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE status = 'pending_payment' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`

	rows, err := r.db.Query(query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue reservations: %w", err)
	}
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, *res)
	}
	return reservations, rows.Err()
}
