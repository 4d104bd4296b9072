package database

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/photostudio/booking-backend/internal/models"
)

// HallRepository reads the hall catalog
type HallRepository struct {
	db *sqlx.DB
}

// NewHallRepository creates a new HallRepository
func NewHallRepository(db *sqlx.DB) *HallRepository {
	return &HallRepository{db: db}
}

// GetByID retrieves a hall by ID; returns (nil, nil) when not found
func (r *HallRepository) GetByID(id string) (*models.Hall, error) {
	var hall models.Hall
	err := r.db.Get(&hall, `
		SELECT id, name, description, hourly_rate, min_booking_minutes, work_start, work_end
		FROM halls
		WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hall: %w", err)
	}
	return &hall, nil
}

// List returns all halls ordered by ID
func (r *HallRepository) List() ([]models.Hall, error) {
	var halls []models.Hall
	err := r.db.Select(&halls, `
		SELECT id, name, description, hourly_rate, min_booking_minutes, work_start, work_end
		FROM halls
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list halls: %w", err)
	}
	return halls, nil
}
