package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"fulfillment/internal/domain"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	Porter     PorterConfig
	Razorpay   RazorpayConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	RabbitMQ   RabbitMQConfig
	NewRelic   NewRelicConfig
	Fulfill    FulfillmentConfig
	Pickup     domain.PickupLocation
	LogLevel   string
	CORSOrigin string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// PorterConfig holds delivery gateway configuration.
type PorterConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RazorpayConfig holds payment gateway configuration.
type RazorpayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration. Redis carries payment sessions,
// idempotent responses and their locks, so every call is a single short
// command and tight timeouts are safe.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RabbitMQConfig holds message broker configuration. An empty URL
// disables event publishing.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// FulfillmentConfig holds sequencer and reconciler tuning.
type FulfillmentConfig struct {
	SessionTTL        time.Duration
	ReconcileInterval time.Duration
	ReconcileBatch    int
	TrackPollInterval time.Duration
}

// Load reads an optional .env file, then configuration from environment
// variables, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	gatewayTimeout := getDurationEnv("GATEWAY_TIMEOUT", 15*time.Second)

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", getEnv("PORT", "4040")),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Porter: PorterConfig{
			BaseURL: getEnv("PORTER_BASE_URL", "https://pfe-apigw-uat.porter.in"),
			APIKey:  getEnv("PORTER_API_KEY", ""),
			Timeout: gatewayTimeout,
		},
		Razorpay: RazorpayConfig{
			BaseURL:   getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
			KeyID:     getEnv("RAZORPAY_KEY_ID", getEnv("RAZORPAY_TEST_KEY_ID", "")),
			KeySecret: getEnv("RAZORPAY_KEY_SECRET", getEnv("RAZORPAY_TEST_KEY_SECRET", "")),
			Timeout:   gatewayTimeout,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "fulfillment"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 20),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", time.Second),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", "fulfillment_topic"),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "fulfillment-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Fulfill: FulfillmentConfig{
			SessionTTL:        getDurationEnv("PAYMENT_SESSION_TTL", 30*time.Minute),
			ReconcileInterval: getDurationEnv("RECONCILE_INTERVAL", time.Minute),
			ReconcileBatch:    getIntEnv("RECONCILE_BATCH", 20),
			TrackPollInterval: getDurationEnv("TRACK_POLL_INTERVAL", 10*time.Second),
		},
		Pickup:     loadPickup(),
		LogLevel:   strings.ToLower(getEnv("LOG_LEVEL", "info")),
		CORSOrigin: getEnv("CORS_ALLOWED_ORIGIN", "http://localhost:5173"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the gateway credentials and basic settings are
// present. Missing credentials are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT is required"))
	}
	if c.Porter.BaseURL == "" {
		errs = append(errs, errors.New("PORTER_BASE_URL is required"))
	}
	if c.Porter.APIKey == "" {
		errs = append(errs, errors.New("PORTER_API_KEY is required"))
	}
	if c.Razorpay.KeyID == "" {
		errs = append(errs, errors.New("RAZORPAY_KEY_ID is required"))
	}
	if c.Razorpay.KeySecret == "" {
		errs = append(errs, errors.New("RAZORPAY_KEY_SECRET is required"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}

	return errors.Join(errs...)
}

// loadPickup returns the restaurant location, overridable per field.
func loadPickup() domain.PickupLocation {
	return domain.PickupLocation{
		Address: domain.Address{
			ApartmentAddress: getEnv("PICKUP_APARTMENT_ADDRESS", "27"),
			StreetAddress1:   getEnv("PICKUP_STREET_ADDRESS1", "Sona Towers"),
			StreetAddress2:   getEnv("PICKUP_STREET_ADDRESS2", "Krishna Nagar Industrial Area"),
			Landmark:         getEnv("PICKUP_LANDMARK", "Hosur Road"),
			City:             getEnv("PICKUP_CITY", "Bengaluru"),
			State:            getEnv("PICKUP_STATE", "Karnataka"),
			Pincode:          getEnv("PICKUP_PINCODE", "560029"),
			Country:          getEnv("PICKUP_COUNTRY", "India"),
			Lat:              getFloatEnv("PICKUP_LAT", 12.939391726766775),
			Lng:              getFloatEnv("PICKUP_LNG", 77.62629462844717),
			Contact: domain.Contact{
				Name:        getEnv("PICKUP_CONTACT_NAME", "Porter Test User"),
				PhoneNumber: getEnv("PICKUP_CONTACT_PHONE", "+911234567890"),
			},
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
