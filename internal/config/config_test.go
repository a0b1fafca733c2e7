package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT", "LOG_LEVEL", "DATABASE_URL", "PRICE_SEED",
		"READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT",
		"DEFAULT_TICK_INTERVAL", "DEFAULT_VOLATILITY",
		"DEFAULT_COMMISSION_BPS", "DEFAULT_BASE_VOLUME",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL must default to empty")
	}
	if cfg.PriceSeed != 0 {
		t.Errorf("PriceSeed = %d, want 0", cfg.PriceSeed)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}

	d := cfg.ExchangeDefaults
	if d.TickInterval != time.Second {
		t.Errorf("default TickInterval = %v, want 1s", d.TickInterval)
	}
	if d.Volatility != 0.02 {
		t.Errorf("default Volatility = %v, want 0.02", d.Volatility)
	}
	if !d.MarketEngineEnabled {
		t.Errorf("market engine must be enabled by default")
	}
	if d.AllowMargin {
		t.Errorf("margin must be disabled by default")
	}
	if d.CommissionBps != 10 {
		t.Errorf("default CommissionBps = %d, want 10", d.CommissionBps)
	}
	if d.BaseVolume != 10000 {
		t.Errorf("default BaseVolume = %d, want 10000", d.BaseVolume)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PRICE_SEED", "42")
	t.Setenv("DEFAULT_TICK_INTERVAL", "250ms")
	t.Setenv("DEFAULT_VOLATILITY", "0.1")
	t.Setenv("DEFAULT_COMMISSION_BPS", "25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9090 || cfg.LogLevel != "debug" || cfg.PriceSeed != 42 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.ExchangeDefaults.TickInterval != 250*time.Millisecond {
		t.Errorf("TickInterval = %v, want 250ms", cfg.ExchangeDefaults.TickInterval)
	}
	if cfg.ExchangeDefaults.Volatility != 0.1 || cfg.ExchangeDefaults.CommissionBps != 25 {
		t.Errorf("exchange defaults not applied: %+v", cfg.ExchangeDefaults)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "PORT", "not-a-number"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad seed", "PRICE_SEED", "abc"},
		{"bad duration", "DEFAULT_TICK_INTERVAL", "soon"},
		{"bad volatility", "DEFAULT_VOLATILITY", "lots"},
		{"tick interval out of bounds", "DEFAULT_TICK_INTERVAL", "5ms"},
		{"volatility out of bounds", "DEFAULT_VOLATILITY", "7.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected an error for %s=%q", tt.key, tt.value)
			}
		})
	}
}
