package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes; the engine uses
// the ledger errors to decide order rejection.
var (
	ErrExchangeAlreadyExists = errors.New("exchange_already_exists")
	ErrExchangeNotFound      = errors.New("exchange_not_found")
	ErrPortfolioNotFound     = errors.New("portfolio_not_found")
	ErrOrderNotFound         = errors.New("order_not_found")
	ErrOrderNotCancellable   = errors.New("order_not_cancellable")
	ErrSymbolNotListed       = errors.New("symbol_not_listed")
	ErrInsufficientFunds     = errors.New("insufficient_funds")
	ErrInsufficientPosition  = errors.New("insufficient_position")
	ErrConfigUnavailable     = errors.New("config_unavailable")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
