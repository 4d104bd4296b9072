package services

import (
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/photostudio/booking-backend/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewaySelector_ForMethod(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	sber := NewSberPayService(logger)
	tinkoff := NewTinkoffService(logger)

	selector := NewGatewaySelector()
	selector.Register(models.PaymentMethodSberPay, sber)
	selector.Register(models.PaymentMethodTinkoff, tinkoff)

	got, err := selector.ForMethod(models.PaymentMethodSberPay)
	require.NoError(t, err)
	assert.Same(t, sber, got)

	got, err = selector.ForMethod(models.PaymentMethodTinkoff)
	require.NoError(t, err)
	assert.Same(t, tinkoff, got)

	_, err = selector.ForMethod(models.PaymentMethodYooKassa)
	assert.Error(t, err)
}

func TestBankGateways_CreatePayment(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	tests := []struct {
		name      string
		gateway   PaymentGateway
		refPrefix string
		urlHost   string
	}{
		{"sberpay", NewSberPayService(logger), "sberpay-", "securepayments.sberbank.ru"},
		{"tinkoff", NewTinkoffService(logger), "tinkoff-", "securepay.tinkoff.ru"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.gateway.CreatePayment(3000, "RUB", uuid.New(), "test booking")
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(result.ExternalReference, tt.refPrefix))
			assert.Contains(t, result.PaymentURL, tt.urlHost)
			assert.Equal(t, models.PaymentStatusPending, result.Status)

			status, err := tt.gateway.FetchStatus(result.ExternalReference)
			require.NoError(t, err)
			assert.Equal(t, models.PaymentStatusPending, status)

			assert.NoError(t, tt.gateway.CancelPayment(result.ExternalReference))
			assert.NoError(t, tt.gateway.Refund(result.ExternalReference, 3000, "RUB"))
		})
	}
}
