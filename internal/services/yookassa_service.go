package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/photostudio/booking-backend/internal/config"
	"github.com/photostudio/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// yooKassaAPIURL is the production API endpoint (the test shop uses the same host)
const yooKassaAPIURL = "https://api.yookassa.ru/v3"

// YooKassaService talks to the YooKassa payment gateway. In "mock" environment
// it fabricates references locally so the whole booking flow runs without
// network access, mirroring the gateway contract.
type YooKassaService struct {
	config  *config.PaymentConfig
	logger  *logrus.Logger
	client  *http.Client
	baseURL string
}

// NewYooKassaService creates a new YooKassaService
func NewYooKassaService(cfg *config.PaymentConfig, logger *logrus.Logger) *YooKassaService {
	return &YooKassaService{
		config:  cfg,
		logger:  logger,
		baseURL: yooKassaAPIURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type yooKassaAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type yooKassaCreateRequest struct {
	Amount       yooKassaAmount `json:"amount"`
	Capture      bool           `json:"capture"`
	Confirmation struct {
		Type      string `json:"type"`
		ReturnURL string `json:"return_url"`
	} `json:"confirmation"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata"`
}

type yooKassaPaymentResponse struct {
	ID           string         `json:"id"`
	Status       string         `json:"status"`
	Amount       yooKassaAmount `json:"amount"`
	Confirmation struct {
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

// CreatePayment registers a payment with the gateway and returns the external
// reference plus the redirect URL the customer pays at
func (s *YooKassaService) CreatePayment(amount float64, currency string, reservationID uuid.UUID, description string) (*GatewayPaymentResult, error) {
	if s.config.Environment == "mock" {
		ref := "yookassa-" + uuid.NewString()
		s.logger.WithFields(logrus.Fields{
			"external_reference": ref,
			"reservation_id":     reservationID,
			"amount":             amount,
		}).Info("Mock gateway payment created")
		return &GatewayPaymentResult{
			ExternalReference: ref,
			PaymentURL:        "https://yoomoney.ru/checkout/payments/v2/contract?orderId=" + ref,
			Status:            models.PaymentStatusPending,
		}, nil
	}

	reqBody := yooKassaCreateRequest{
		Amount:      yooKassaAmount{Value: formatAmount(amount), Currency: currency},
		Capture:     true,
		Description: description,
		Metadata:    map[string]string{"reservation_id": reservationID.String()},
	}
	reqBody.Confirmation.Type = "redirect"
	reqBody.Confirmation.ReturnURL = s.config.ReturnURL

	var resp yooKassaPaymentResponse
	if err := s.call(http.MethodPost, "/payments", reqBody, &resp, uuid.NewString()); err != nil {
		return nil, fmt.Errorf("gateway payment creation failed: %w", err)
	}

	return &GatewayPaymentResult{
		ExternalReference: resp.ID,
		PaymentURL:        resp.Confirmation.ConfirmationURL,
		Status:            mapGatewayStatus(resp.Status),
	}, nil
}

// FetchStatus asks the gateway for the authoritative status of a payment
func (s *YooKassaService) FetchStatus(externalReference string) (models.PaymentStatus, error) {
	if s.config.Environment == "mock" {
		// the mock gateway never settles on its own; reconciliation tests
		// inject their own gateway
		return models.PaymentStatusPending, nil
	}

	var resp yooKassaPaymentResponse
	if err := s.call(http.MethodGet, "/payments/"+externalReference, nil, &resp, ""); err != nil {
		return "", fmt.Errorf("gateway status fetch failed: %w", err)
	}
	return mapGatewayStatus(resp.Status), nil
}

// CancelPayment cancels a pending payment at the gateway
func (s *YooKassaService) CancelPayment(externalReference string) error {
	if s.config.Environment == "mock" {
		return nil
	}
	var resp yooKassaPaymentResponse
	if err := s.call(http.MethodPost, "/payments/"+externalReference+"/cancel", struct{}{}, &resp, uuid.NewString()); err != nil {
		return fmt.Errorf("gateway cancellation failed: %w", err)
	}
	return nil
}

// Refund refunds a succeeded payment in full or in part
func (s *YooKassaService) Refund(externalReference string, amount float64, currency string) error {
	if s.config.Environment == "mock" {
		s.logger.WithField("external_reference", externalReference).Info("Mock gateway refund")
		return nil
	}
	body := struct {
		PaymentID string         `json:"payment_id"`
		Amount    yooKassaAmount `json:"amount"`
	}{
		PaymentID: externalReference,
		Amount:    yooKassaAmount{Value: formatAmount(amount), Currency: currency},
	}
	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := s.call(http.MethodPost, "/refunds", body, &resp, uuid.NewString()); err != nil {
		return fmt.Errorf("gateway refund failed: %w", err)
	}
	return nil
}

// ParseNotification validates and maps a raw webhook body to the internal
// event form. Events that carry no terminal outcome (waiting_for_capture and
// the like) map to a pending-status event the coordinator acknowledges as a
// no-op.
func (s *YooKassaService) ParseNotification(body []byte) (*models.WebhookEvent, error) {
	var n models.GatewayNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("malformed notification body: %w", err)
	}
	if n.Type != "notification" {
		return nil, fmt.Errorf("unexpected notification type %q", n.Type)
	}
	if n.Object.ID == "" {
		return nil, fmt.Errorf("notification carries no payment id")
	}

	amount, err := strconv.ParseFloat(n.Object.Amount.Value, 64)
	if err != nil && n.Object.Amount.Value != "" {
		return nil, fmt.Errorf("malformed amount %q: %w", n.Object.Amount.Value, err)
	}

	event := &models.WebhookEvent{
		ExternalReference: n.Object.ID,
		Amount:            amount,
		Currency:          n.Object.Amount.Currency,
		OccurredAt:        n.CreatedAt.UTC(),
	}

	switch n.Event {
	case models.GatewayEventPaymentSucceeded:
		event.Status = models.PaymentStatusSucceeded
	case models.GatewayEventPaymentCanceled:
		if n.Object.Status == "failed" {
			event.Status = models.PaymentStatusFailed
		} else {
			event.Status = models.PaymentStatusCancelled
		}
	default:
		event.Status = models.PaymentStatusPending
	}
	return event, nil
}

// call performs an authenticated gateway request. Idempotence keys are
// required by the gateway on all mutating calls.
func (s *YooKassaService) call(method, path string, body, out interface{}, idempotenceKey string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.SetBasicAuth(s.config.ShopID, s.config.SecretKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotenceKey != "" {
		req.Header.Set("Idempotence-Key", idempotenceKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"path":   path,
			"body":   string(respBody),
		}).Error("Gateway returned an error")
		return fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode gateway response: %w", err)
		}
	}
	return nil
}

// mapGatewayStatus maps the gateway status vocabulary to ours
func mapGatewayStatus(status string) models.PaymentStatus {
	switch status {
	case "succeeded":
		return models.PaymentStatusSucceeded
	case "canceled":
		return models.PaymentStatusCancelled
	case "failed":
		return models.PaymentStatusFailed
	default:
		// "pending", "waiting_for_capture"
		return models.PaymentStatusPending
	}
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', 2, 64)
}
