package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/photostudio/booking-backend/internal/models"
	"github.com/photostudio/booking-backend/internal/services"
	"github.com/sirupsen/logrus"
)

// PaymentHandler handles payment creation, lookup, refunds and the gateway
// webhook ingress
type PaymentHandler struct {
	coordinator *services.SagaCoordinator
	gateway     *services.YooKassaService
	payments    services.PaymentStore
	logger      *logrus.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(
	coordinator *services.SagaCoordinator,
	gateway *services.YooKassaService,
	payments services.PaymentStore,
	logger *logrus.Logger,
) *PaymentHandler {
	return &PaymentHandler{
		coordinator: coordinator,
		gateway:     gateway,
		payments:    payments,
		logger:      logger,
	}
}

// ============================================================================
// CREATE PAYMENT - POST /api/v1/payments
// ============================================================================

// CreatePaymentRequest is the payment creation payload. Amount is optional;
// when omitted the reservation total is charged.
type CreatePaymentRequest struct {
	ReservationID string               `json:"reservation_id" binding:"required"`
	Amount        float64              `json:"amount"`
	Method        models.PaymentMethod `json:"method" binding:"required"`
}

// CreatePayment binds a new payment to a pending reservation and returns the
// gateway redirect URL
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	reservationID, err := uuid.Parse(req.ReservationID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reservation_id"})
		return
	}

	payment, err := h.coordinator.CreatePayment(reservationID, req.Amount, req.Method)
	if err != nil {
		var invalidState *models.InvalidReservationStateError
		switch {
		case errors.Is(err, models.ErrReservationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, models.ErrDuplicatePayment):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.As(err, &invalidState):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.WithError(err).Error("Failed to create payment")
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, payment)
}

// ============================================================================
// GET PAYMENT - GET /api/v1/payments/:payment_id
// ============================================================================

// GetPayment returns one payment record
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	id, ok := h.parsePaymentID(c)
	if !ok {
		return
	}

	payment, err := h.payments.GetByID(id)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get payment")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get payment"})
		return
	}
	if payment == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return
	}

	c.JSON(http.StatusOK, payment)
}

// ============================================================================
// REFUND - POST /api/v1/payments/:payment_id/refund
// ============================================================================

// RefundRequest is the refund payload; a zero amount refunds in full
type RefundRequest struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}

// RefundPayment refunds a succeeded payment
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	id, ok := h.parsePaymentID(c)
	if !ok {
		return
	}

	// body is optional; an empty or absent body means a full refund
	var req RefundRequest
	_ = c.ShouldBindJSON(&req)

	payment, err := h.coordinator.RefundPayment(id, req.Amount)
	if err != nil {
		var invalid *models.InvalidTransitionError
		switch {
		case errors.Is(err, models.ErrPaymentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.As(err, &invalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "refunds are only possible for succeeded payments"})
		default:
			h.logger.WithError(err).Error("Failed to refund payment")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to refund payment"})
		}
		return
	}

	c.JSON(http.StatusOK, payment)
}

// ============================================================================
// WEBHOOK - POST /api/v1/payments/webhook/yookassa
// ============================================================================

// Webhook ingests a payment gateway notification. The gateway's own retry and
// dead-letter policy governs redelivery, so every delivery is acknowledged
// with 200: conflicts and unknown references are logged for operators, never
// bounced back as transport failures.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.logger.WithError(err).Error("Failed to read webhook body")
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	event, err := h.gateway.ParseNotification(body)
	if err != nil {
		h.logger.WithError(err).Warn("Malformed gateway notification")
		c.JSON(http.StatusOK, gin.H{"error": "invalid notification payload", "acknowledged": true})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"external_reference": event.ExternalReference,
		"status":             event.Status,
		"amount":             event.Amount,
	}).Info("Gateway notification received")

	if err := h.coordinator.IngestWebhook(event); err != nil {
		var unknown *models.UnknownReferenceError
		var conflict *models.ConflictingTerminalStateError
		switch {
		case errors.As(err, &unknown):
			h.logger.WithField("external_reference", unknown.Reference).
				Warn("Notification for unknown reference, may be foreign or stale")
			c.JSON(http.StatusOK, gin.H{"message": "webhook acknowledged", "note": "unknown reference"})
		case errors.As(err, &conflict):
			h.logger.WithFields(logrus.Fields{
				"payment_id": conflict.PaymentID,
				"current":    conflict.Current,
				"requested":  conflict.Requested,
			}).Error("Gateway notification contradicts recorded terminal state")
			c.JSON(http.StatusOK, gin.H{"message": "webhook acknowledged", "error": "conflicting terminal state"})
		default:
			h.logger.WithError(err).Error("Failed to ingest gateway notification")
			c.JSON(http.StatusOK, gin.H{"message": "webhook acknowledged", "error": "ingestion failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "webhook processed"})
}

func (h *PaymentHandler) parsePaymentID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("payment_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payment_id"})
		return uuid.Nil, false
	}
	return id, true
}
