package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dverney/marketsim/internal/domain"
)

// Config holds all runtime configuration for the market simulator.
type Config struct {
	Port            int
	LogLevel        string
	DatabaseURL     string // empty runs fully in-memory
	PriceSeed       int64  // 0 derives from the current time
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Defaults applied to newly created exchanges; each may be
	// overridden per exchange at creation or via the config endpoint.
	ExchangeDefaults domain.ExchangeConfig
}

// Load reads configuration from environment variables, applies defaults,
// and validates values. It returns an error for any invalid value.
func Load() (*Config, error) {
	port, err := getInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	logLevel := getStr("LOG_LEVEL", "info")
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	priceSeed, err := getInt64("PRICE_SEED", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid PRICE_SEED: %w", err)
	}

	readTimeout, err := getDuration("READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid READ_TIMEOUT: %w", err)
	}

	writeTimeout, err := getDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid WRITE_TIMEOUT: %w", err)
	}

	idleTimeout, err := getDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid IDLE_TIMEOUT: %w", err)
	}

	shutdownTimeout, err := getDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}

	tickInterval, err := getDuration("DEFAULT_TICK_INTERVAL", time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TICK_INTERVAL: %w", err)
	}

	volatility, err := getFloat("DEFAULT_VOLATILITY", 0.02)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_VOLATILITY: %w", err)
	}

	commissionBps, err := getInt64("DEFAULT_COMMISSION_BPS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_COMMISSION_BPS: %w", err)
	}

	baseVolume, err := getInt64("DEFAULT_BASE_VOLUME", 10000)
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_BASE_VOLUME: %w", err)
	}

	defaults := domain.ExchangeConfig{
		TickInterval:        tickInterval,
		Volatility:          volatility,
		MarketEngineEnabled: true,
		AllowMargin:         false,
		CommissionBps:       commissionBps,
		CreditLimit:         0,
		BaseVolume:          baseVolume,
	}
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid exchange defaults: %w", err)
	}

	return &Config{
		Port:             port,
		LogLevel:         logLevel,
		DatabaseURL:      getStr("DATABASE_URL", ""),
		PriceSeed:        priceSeed,
		ReadTimeout:      readTimeout,
		WriteTimeout:     writeTimeout,
		IdleTimeout:      idleTimeout,
		ShutdownTimeout:  shutdownTimeout,
		ExchangeDefaults: defaults,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getInt64(key string, defaultVal int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func getFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(v)
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
