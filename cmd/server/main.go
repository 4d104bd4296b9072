package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/photostudio/booking-backend/internal/config"
	"github.com/photostudio/booking-backend/internal/database"
	"github.com/photostudio/booking-backend/internal/handlers"
	"github.com/photostudio/booking-backend/internal/models"
	"github.com/photostudio/booking-backend/internal/services"
	"github.com/photostudio/booking-backend/pkg/keylock"
	"github.com/sirupsen/logrus"
)

var version = "1.0.0"

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Photo Studio Booking Backend")
	logger.Infof("Version: %s", version)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Initialize repositories
	reservationRepo := database.NewReservationRepository(db.DB)
	paymentRepo := database.NewPaymentRepository(db.DB)
	hallRepo := database.NewHallRepository(db.DB)

	// Initialize services. The keylock is shared by every component that
	// cascades payment outcomes for the same reservations.
	locks := keylock.New()
	yookassa := services.NewYooKassaService(&cfg.Payment, logger)
	gateways := services.NewGatewaySelector()
	gateways.Register(models.PaymentMethodYooKassa, yookassa)
	gateways.Register(models.PaymentMethodSberPay, services.NewSberPayService(logger))
	gateways.Register(models.PaymentMethodTinkoff, services.NewTinkoffService(logger))
	coordinator := services.NewSagaCoordinator(
		reservationRepo,
		paymentRepo,
		hallRepo,
		gateways,
		locks,
		services.SagaCoordinatorConfig{
			PaymentTimeout:        cfg.Booking.PaymentTimeout,
			MaxAvailabilityWindow: cfg.Booking.MaxAvailabilityWindow,
			DefaultCurrency:       cfg.Booking.DefaultCurrency,
		},
		logger,
	)
	reconciler := services.NewReconciliationService(reservationRepo, paymentRepo, gateways, locks, logger)

	// Start the expiry sweep
	expirySvc := services.NewReservationExpiryService(coordinator, cfg.Booking.ExpirySweepInterval, logger)
	expirySvc.Start()

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(coordinator, reconciler, hallRepo, cfg.Booking, logger)
	paymentHandler := handlers.NewPaymentHandler(coordinator, yookassa, paymentRepo, logger)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORS.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		halls := v1.Group("/halls")
		{
			halls.GET("", bookingHandler.ListHalls)
			halls.GET("/:hall_id", bookingHandler.GetHall)
		}

		bookings := v1.Group("/bookings")
		{
			bookings.GET("/availability", bookingHandler.GetAvailability)
			bookings.POST("", bookingHandler.CreateBooking)
			bookings.GET("/:booking_id", bookingHandler.GetBookingStatus)
			bookings.DELETE("/:booking_id", bookingHandler.CancelBooking)
			bookings.POST("/:booking_id/reconcile", bookingHandler.ReconcileBooking)
		}

		payments := v1.Group("/payments")
		{
			payments.POST("", paymentHandler.CreatePayment)
			payments.GET("/:payment_id", paymentHandler.GetPayment)
			payments.POST("/:payment_id/refund", paymentHandler.RefundPayment)
			payments.POST("/webhook/yookassa", paymentHandler.Webhook)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	expirySvc.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"method":  c.Request.Method,
			"path":    path,
			"ip":      c.ClientIP(),
			"latency": time.Since(start).String(),
		})

		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db *database.PostgresDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
