package services

import (
	"github.com/google/uuid"
	"github.com/photostudio/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// SberPayService is the SberPay gateway client. Only the test contract is
// wired: references and redirect URLs are fabricated locally, and a payment
// settles through webhooks or reconciliation like any other.
type SberPayService struct {
	logger *logrus.Logger
}

// NewSberPayService creates a new SberPayService
func NewSberPayService(logger *logrus.Logger) *SberPayService {
	return &SberPayService{logger: logger}
}

func (s *SberPayService) CreatePayment(amount float64, currency string, reservationID uuid.UUID, description string) (*GatewayPaymentResult, error) {
	orderID := uuid.NewString()
	ref := "sberpay-" + orderID
	s.logger.WithFields(logrus.Fields{
		"external_reference": ref,
		"reservation_id":     reservationID,
		"amount":             amount,
	}).Info("SberPay payment created")
	return &GatewayPaymentResult{
		ExternalReference: ref,
		PaymentURL:        "https://securepayments.sberbank.ru/payment?orderId=" + orderID,
		Status:            models.PaymentStatusPending,
	}, nil
}

func (s *SberPayService) FetchStatus(externalReference string) (models.PaymentStatus, error) {
	return models.PaymentStatusPending, nil
}

func (s *SberPayService) CancelPayment(externalReference string) error {
	s.logger.WithField("external_reference", externalReference).Info("SberPay payment cancelled")
	return nil
}

func (s *SberPayService) Refund(externalReference string, amount float64, currency string) error {
	s.logger.WithFields(logrus.Fields{
		"external_reference": externalReference,
		"amount":             amount,
	}).Info("SberPay payment refunded")
	return nil
}

// TinkoffService is the Tinkoff Kassa gateway client, test contract only
type TinkoffService struct {
	logger *logrus.Logger
}

// NewTinkoffService creates a new TinkoffService
func NewTinkoffService(logger *logrus.Logger) *TinkoffService {
	return &TinkoffService{logger: logger}
}

func (s *TinkoffService) CreatePayment(amount float64, currency string, reservationID uuid.UUID, description string) (*GatewayPaymentResult, error) {
	orderID := uuid.NewString()
	ref := "tinkoff-" + orderID
	s.logger.WithFields(logrus.Fields{
		"external_reference": ref,
		"reservation_id":     reservationID,
		"amount":             amount,
	}).Info("Tinkoff payment created")
	return &GatewayPaymentResult{
		ExternalReference: ref,
		PaymentURL:        "https://securepay.tinkoff.ru/payments?orderId=" + orderID,
		Status:            models.PaymentStatusPending,
	}, nil
}

func (s *TinkoffService) FetchStatus(externalReference string) (models.PaymentStatus, error) {
	return models.PaymentStatusPending, nil
}

func (s *TinkoffService) CancelPayment(externalReference string) error {
	s.logger.WithField("external_reference", externalReference).Info("Tinkoff payment cancelled")
	return nil
}

func (s *TinkoffService) Refund(externalReference string, amount float64, currency string) error {
	s.logger.WithFields(logrus.Fields{
		"external_reference": externalReference,
		"amount":             amount,
	}).Info("Tinkoff payment refunded")
	return nil
}
