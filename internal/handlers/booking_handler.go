package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/photostudio/booking-backend/internal/config"
	"github.com/photostudio/booking-backend/internal/models"
	"github.com/photostudio/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// BookingHandler handles hall, availability and reservation endpoints
type BookingHandler struct {
	coordinator *services.SagaCoordinator
	reconciler  *services.ReconciliationService
	halls       services.HallStore
	bookingCfg  config.BookingConfig
	logger      *logrus.Logger
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(
	coordinator *services.SagaCoordinator,
	reconciler *services.ReconciliationService,
	halls services.HallStore,
	bookingCfg config.BookingConfig,
	logger *logrus.Logger,
) *BookingHandler {
	return &BookingHandler{
		coordinator: coordinator,
		reconciler:  reconciler,
		halls:       halls,
		bookingCfg:  bookingCfg,
		logger:      logger,
	}
}

// ============================================================================
// HALL CATALOG - GET /api/v1/halls
// ============================================================================

// ListHalls returns the hall catalog
func (h *BookingHandler) ListHalls(c *gin.Context) {
	halls, err := h.halls.List()
	if err != nil {
		h.logger.WithError(err).Error("Failed to list halls")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list halls"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"halls": halls})
}

// GetHall returns one hall by ID
func (h *BookingHandler) GetHall(c *gin.Context) {
	hall, err := h.halls.GetByID(c.Param("hall_id"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to get hall")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get hall"})
		return
	}
	if hall == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "hall not found"})
		return
	}
	c.JSON(http.StatusOK, hall)
}

// ============================================================================
// AVAILABILITY - GET /api/v1/bookings/availability
// ============================================================================

// GetAvailability returns availability slots for a hall.
// Query: hall_id, start_date, end_date (RFC 3339), granularity_minutes
// (optional; 0 = maximal free/occupied runs, absent = configured default).
func (h *BookingHandler) GetAvailability(c *gin.Context) {
	hallID := c.Query("hall_id")
	if hallID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hall_id is required"})
		return
	}

	start, err := parseTimestamp(c.Query("start_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date: " + err.Error()})
		return
	}
	end, err := parseTimestamp(c.Query("end_date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date: " + err.Error()})
		return
	}

	granularity := h.bookingCfg.SlotGranularity
	if raw, ok := c.GetQuery("granularity_minutes"); ok {
		var minutes int
		if _, err := fmt.Sscanf(raw, "%d", &minutes); err != nil || minutes < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid granularity_minutes"})
			return
		}
		granularity = time.Duration(minutes) * time.Minute
	}

	slots, err := h.coordinator.CheckAvailability(hallID, start, end, granularity)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidRange):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, models.ErrRangeTooLarge):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, models.ErrHallNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			h.logger.WithError(err).Error("Failed to check availability")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check availability"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

// ============================================================================
// CREATE RESERVATION - POST /api/v1/bookings
// ============================================================================

// CreateBookingRequest is the reservation claim payload
type CreateBookingRequest struct {
	HallID    string          `json:"hall_id" binding:"required"`
	StartTime time.Time       `json:"start_time" binding:"required"`
	EndTime   time.Time       `json:"end_time" binding:"required"`
	Customer  models.Customer `json:"customer" binding:"required"`
}

// CreateBooking claims a slot. A lost race returns 409 with the conflicting
// window; callers re-query availability and retry.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	reservation, err := h.coordinator.CreateReservation(req.HallID, req.StartTime, req.EndTime, req.Customer)
	if err != nil {
		var conflict *models.SlotConflictError
		switch {
		case errors.As(err, &conflict):
			c.JSON(http.StatusConflict, gin.H{"error": "slot_conflict", "conflict": conflict, "message": conflict.Error()})
		case errors.Is(err, models.ErrHallNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, models.ErrInvalidRange):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.WithError(err).Error("Failed to create reservation")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, reservation)
}

// ============================================================================
// STATUS - GET /api/v1/bookings/:booking_id
// ============================================================================

// GetBookingStatus returns the merged reservation + active payment view
func (h *BookingHandler) GetBookingStatus(c *gin.Context) {
	id, ok := h.parseBookingID(c)
	if !ok {
		return
	}

	view, err := h.coordinator.GetStatus(id)
	if err != nil {
		if errors.Is(err, models.ErrReservationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.WithError(err).Error("Failed to get booking status")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get booking status"})
		return
	}

	c.JSON(http.StatusOK, view)
}

// ============================================================================
// CANCEL - DELETE /api/v1/bookings/:booking_id
// ============================================================================

// CancelBooking performs an explicit customer cancellation and releases the slot
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	id, ok := h.parseBookingID(c)
	if !ok {
		return
	}

	if err := h.coordinator.CancelReservation(id); err != nil {
		var invalid *models.InvalidTransitionError
		switch {
		case errors.Is(err, models.ErrReservationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.As(err, &invalid):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.WithError(err).Error("Failed to cancel reservation")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel reservation"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reservation cancelled", "reservation_id": id})
}

// ============================================================================
// RECONCILE - POST /api/v1/bookings/:booking_id/reconcile
// ============================================================================

// ReconcileBooking pulls authoritative state and repairs any drift left by a
// delayed or lost gateway notification
func (h *BookingHandler) ReconcileBooking(c *gin.Context) {
	id, ok := h.parseBookingID(c)
	if !ok {
		return
	}

	result, err := h.reconciler.Reconcile(id)
	if err != nil {
		var conflict *models.ConflictingTerminalStateError
		switch {
		case errors.Is(err, models.ErrReservationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.As(err, &conflict):
			h.logger.WithError(err).Error("Reconciliation hit conflicting terminal states")
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			h.logger.WithError(err).Error("Reconciliation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
		}
		return
	}

	if result.DriftDetected {
		h.logger.WithField("reservation_id", id).Warn("Reconciliation repaired drifted state")
	}
	c.JSON(http.StatusOK, result)
}

func (h *BookingHandler) parseBookingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("booking_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking_id"})
		return uuid.Nil, false
	}
	return id, true
}

// parseTimestamp parses an RFC 3339 timestamp and normalizes it to UTC.
// All instants inside the core are UTC; conversion happens only here at
// the boundary.
func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("timestamp is required")
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
