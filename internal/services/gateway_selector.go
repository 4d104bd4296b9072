package services

import (
	"fmt"

	"github.com/photostudio/booking-backend/internal/models"
)

// GatewaySelector routes gateway calls to the client integrating the payment
// method a payment was created with. Registration happens once at startup;
// lookups are read-only after that.
type GatewaySelector struct {
	gateways map[models.PaymentMethod]PaymentGateway
}

// NewGatewaySelector creates an empty GatewaySelector
func NewGatewaySelector() *GatewaySelector {
	return &GatewaySelector{gateways: make(map[models.PaymentMethod]PaymentGateway)}
}

// Register binds a gateway client to a payment method
func (s *GatewaySelector) Register(method models.PaymentMethod, gateway PaymentGateway) {
	s.gateways[method] = gateway
}

// ForMethod returns the gateway client registered for a payment method
func (s *GatewaySelector) ForMethod(method models.PaymentMethod) (PaymentGateway, error) {
	gateway, ok := s.gateways[method]
	if !ok {
		return nil, fmt.Errorf("no gateway registered for payment method %q", method)
	}
	return gateway, nil
}
