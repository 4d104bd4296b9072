package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Booking  BookingConfig
	Payment  PaymentConfig
	CORS     CORSConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// BookingConfig holds the operational parameters of the booking saga
type BookingConfig struct {
	// SlotGranularity is the default availability slot size (0 = maximal runs)
	SlotGranularity time.Duration
	// PaymentTimeout is how long a pending_payment reservation holds its slot
	PaymentTimeout time.Duration
	// ExpirySweepInterval is how often the background sweep runs
	ExpirySweepInterval time.Duration
	// MaxAvailabilityWindow bounds availability queries
	MaxAvailabilityWindow time.Duration
	// DefaultCurrency is the currency reservations are priced in
	DefaultCurrency string
}

// PaymentConfig holds payment gateway configuration
type PaymentConfig struct {
	Environment string // "mock", "test" or "production"
	ShopID      string // gateway shop id (SECRET in combination with key)
	SecretKey   string // gateway secret key (never expose to client)
	ReturnURL   string // URL the gateway redirects to after payment
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// Load loads configuration from environment variables, reading .env first if present
func Load() (*Config, error) {
	// .env is optional; real deployments set env vars directly
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                os.Getenv("DATABASE_URL"),
			MaxConnections:     getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 30)) * time.Minute,
		},
		Booking: BookingConfig{
			SlotGranularity:       time.Duration(getEnvAsInt("SLOT_GRANULARITY_MINUTES", 120)) * time.Minute,
			PaymentTimeout:        time.Duration(getEnvAsInt("PAYMENT_TIMEOUT_MINUTES", 15)) * time.Minute,
			ExpirySweepInterval:   time.Duration(getEnvAsInt("EXPIRY_SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
			MaxAvailabilityWindow: time.Duration(getEnvAsInt("MAX_AVAILABILITY_WINDOW_DAYS", 31)) * 24 * time.Hour,
			DefaultCurrency:       getEnv("DEFAULT_CURRENCY", "RUB"),
		},
		Payment: PaymentConfig{
			Environment: strings.ToLower(getEnv("PAYMENT_ENV", "mock")),
			ShopID:      os.Getenv("YOOKASSA_SHOP_ID"),
			SecretKey:   os.Getenv("YOOKASSA_SECRET_KEY"),
			ReturnURL:   getEnv("PAYMENT_RETURN_URL", "https://example.com/return"),
		},
		CORS: CORSConfig{
			AllowedOrigins: strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ","),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.Payment.Environment {
	case "mock", "test", "production":
	default:
		return fmt.Errorf("PAYMENT_ENV must be mock, test or production, got %q", c.Payment.Environment)
	}
	if c.Payment.Environment != "mock" && (c.Payment.ShopID == "" || c.Payment.SecretKey == "") {
		return fmt.Errorf("YOOKASSA_SHOP_ID and YOOKASSA_SECRET_KEY are required outside mock mode")
	}
	if c.Booking.PaymentTimeout <= 0 {
		return fmt.Errorf("PAYMENT_TIMEOUT_MINUTES must be positive")
	}
	return nil
}

// getEnv returns the environment variable or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt returns the environment variable as an int or a default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
