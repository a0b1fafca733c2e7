package domain

import (
	"fmt"
	"time"
)

// Configuration bounds enforced on every exchange.
const (
	MinTickInterval = 100 * time.Millisecond
	MaxTickInterval = 60 * time.Second
	MinVolatility   = 0.001
	MaxVolatility   = 1.0
)

// ExchangeConfig holds the per-exchange knobs the market engine reads
// at the start of every tick. It may change between ticks; each tick
// operates on a single consistent snapshot.
type ExchangeConfig struct {
	TickInterval        time.Duration
	Volatility          float64
	MarketEngineEnabled bool
	AllowMargin         bool
	CommissionBps       int64
	CreditLimit         int64 // cents of margin credit when AllowMargin is set
	BaseVolume          int64 // baseline simulated volume per tick
}

// Validate checks the configuration against the documented bounds.
func (c ExchangeConfig) Validate() error {
	if c.TickInterval < MinTickInterval || c.TickInterval > MaxTickInterval {
		return &ValidationError{Message: fmt.Sprintf(
			"tick_interval_ms must be between %d and %d",
			MinTickInterval.Milliseconds(), MaxTickInterval.Milliseconds())}
	}
	if c.Volatility < MinVolatility || c.Volatility > MaxVolatility {
		return &ValidationError{Message: fmt.Sprintf(
			"volatility must be between %g and %g", MinVolatility, MaxVolatility)}
	}
	if c.CommissionBps < 0 {
		return &ValidationError{Message: "commission_bps must not be negative"}
	}
	if c.CreditLimit < 0 {
		return &ValidationError{Message: "credit_limit must not be negative"}
	}
	if c.BaseVolume < 0 {
		return &ValidationError{Message: "base_volume must not be negative"}
	}
	return nil
}

// Exchange represents a simulated trading venue. Each exchange owns its
// symbol set, configuration, pending orders, and portfolios; nothing is
// shared across exchanges.
type Exchange struct {
	ExchangeID string
	Name       string
	Symbols    []string
	Config     ExchangeConfig
	CreatedAt  time.Time
}

// ListsSymbol reports whether the exchange trades the given symbol.
func (e *Exchange) ListsSymbol(symbol string) bool {
	for _, s := range e.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// SymbolState holds the latest simulated price and volume for one
// symbol on one exchange. It is written only by that exchange's tick
// scheduler.
type SymbolState struct {
	ExchangeID string
	Symbol     string
	LastPrice  int64 // cents, always > 0
	LastVolume int64
	UpdatedAt  time.Time
}
