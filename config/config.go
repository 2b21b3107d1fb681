package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TransportWebSocket = "websocket"
	TransportPubNub    = "pubnub"

	StoreBadger = "badger"
	StoreRedis  = "redis"
)

type Config struct {
	// Kiosk identity
	KioskID     string
	Environment string
	LogJSON     bool

	// Upstream services
	APIBaseURL     string
	ControllerURL  string
	RequestTimeout time.Duration
	TableTimeout   time.Duration

	// Controller channel
	ChannelTransport   string
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Local store
	StoreBackend string
	RedisURL     string
	BadgerDir    string

	// Receipt printing
	PrintMode    string
	PrinterName  string
	SpoolDir     string
	PrintTimeout time.Duration
	ShopName     string
	ShopBranch   string
	ShopAddress  string

	// Payment session timings
	ActivateDelay     time.Duration
	PaymentDeadline   time.Duration
	PrintInstruction  time.Duration
	ReturnSettle      time.Duration
	ReturnCountdown   time.Duration
	RefreshDelay      time.Duration
	OrderAgainTimeout time.Duration

	// Idle monitor
	IdleSoft time.Duration
	IdleHard time.Duration

	// Monitoring
	MetricsInterval time.Duration
}

// LoadConfig reads .env (when present) and then the process environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	return &Config{
		// Kiosk
		KioskID:     getEnv("KIOSK_ID", "default"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogJSON:     getEnvAsBool("LOG_JSON", false),

		// Upstream
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8000"),
		ControllerURL:  getEnv("CONTROLLER_URL", "http://localhost:8000"),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", "10s"),
		TableTimeout:   getEnvAsDuration("TABLE_TIMEOUT", "2s"),

		// Channel
		ChannelTransport:   strings.ToLower(getEnv("CHANNEL_TRANSPORT", TransportWebSocket)),
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Store
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreBadger)),
		RedisURL:     getEnv("REDIS_URL", "localhost:6379"),
		BadgerDir:    getEnv("BADGER_DIR", "kiosk_data/state"),

		// Printing
		PrintMode:    strings.ToLower(getEnv("PRINT_MODE", "system")),
		PrinterName:  getEnv("PRINTER_NAME", ""),
		SpoolDir:     getEnv("SPOOL_DIR", "kiosk_data/receipts"),
		PrintTimeout: getEnvAsDuration("PRINT_TIMEOUT", "30s"),
		ShopName:     getEnv("SHOP_NAME", "Kiosk"),
		ShopBranch:   getEnv("SHOP_BRANCH", ""),
		ShopAddress:  getEnv("SHOP_ADDRESS", ""),

		// Timings
		ActivateDelay:     getEnvAsDuration("ACTIVATE_DELAY", "800ms"),
		PaymentDeadline:   getEnvAsDuration("PAYMENT_DEADLINE", "120s"),
		PrintInstruction:  getEnvAsDuration("PRINT_INSTRUCTION", "5s"),
		ReturnSettle:      getEnvAsDuration("RETURN_SETTLE", "1200ms"),
		ReturnCountdown:   getEnvAsDuration("RETURN_COUNTDOWN", "15s"),
		RefreshDelay:      getEnvAsDuration("REFRESH_DELAY", "3s"),
		OrderAgainTimeout: getEnvAsDuration("ORDER_AGAIN_TIMEOUT", "0s"),

		// Idle
		IdleSoft: getEnvAsDuration("IDLE_SOFT", "5m"),
		IdleHard: getEnvAsDuration("IDLE_HARD", "15s"),

		// Monitoring
		MetricsInterval: getEnvAsDuration("METRICS_INTERVAL", "15s"),
	}
}

// Validate rejects settings the daemon cannot start with.
func (c *Config) Validate() error {
	switch c.ChannelTransport {
	case TransportWebSocket:
		if c.ControllerURL == "" {
			return fmt.Errorf("config: CONTROLLER_URL is required for the websocket transport")
		}
	case TransportPubNub:
		if c.PubNubSubscribeKey == "" || c.PubNubPublishKey == "" {
			return fmt.Errorf("config: PUBNUB_PUBLISH_KEY and PUBNUB_SUBSCRIBE_KEY are required for the pubnub transport")
		}
	default:
		return fmt.Errorf("config: unknown CHANNEL_TRANSPORT %q", c.ChannelTransport)
	}

	switch c.StoreBackend {
	case StoreBadger, StoreRedis:
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.APIBaseURL == "" {
		return fmt.Errorf("config: API_BASE_URL is required")
	}
	if c.IdleSoft <= 0 || c.IdleHard <= 0 {
		return fmt.Errorf("config: idle durations must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
