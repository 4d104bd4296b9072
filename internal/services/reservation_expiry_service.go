package services

import (
	"time"

	"github.com/sirupsen/logrus"
)

// ReservationExpiryService runs the background sweep that expires
// pending_payment reservations whose payment window has elapsed
type ReservationExpiryService struct {
	coordinator *SagaCoordinator
	logger      *logrus.Logger
	stopCh      chan struct{}
	interval    time.Duration
}

// NewReservationExpiryService creates a new expiry sweep
func NewReservationExpiryService(coordinator *SagaCoordinator, interval time.Duration, logger *logrus.Logger) *ReservationExpiryService {
	return &ReservationExpiryService{
		coordinator: coordinator,
		logger:      logger,
		stopCh:      make(chan struct{}),
		interval:    interval,
	}
}

// Start begins the background sweep
func (s *ReservationExpiryService) Start() {
	s.logger.WithField("interval", s.interval).Info("Starting reservation expiry sweep")
	go s.run()
}

// Stop stops the background sweep
func (s *ReservationExpiryService) Stop() {
	close(s.stopCh)
}

func (s *ReservationExpiryService) run() {
	// run immediately on start
	s.RunOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-s.stopCh:
			s.logger.Info("Reservation expiry sweep stopped")
			return
		}
	}
}

// RunOnce runs a single sweep cycle
func (s *ReservationExpiryService) RunOnce() {
	expired, err := s.coordinator.ExpireOverdue(time.Now().UTC())
	if err != nil {
		s.logger.WithError(err).Error("Expiry sweep failed")
		return
	}
	if expired > 0 {
		s.logger.WithField("count", expired).Info("Expired overdue reservations")
	}
}
