package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/dverney/marketsim/internal/domain"
	"github.com/dverney/marketsim/internal/store"
)

var (
	nameRegex   = regexp.MustCompile(`^[a-zA-Z0-9 _-]{1,64}$`)
	symbolRegex = regexp.MustCompile(`^[A-Z]{1,10}$`)
)

// SymbolInput seeds one listed symbol with its starting price.
type SymbolInput struct {
	Symbol       string
	InitialPrice float64
}

// CreateExchangeRequest represents the input for exchange creation.
// Config fields are optional overrides over the service defaults.
type CreateExchangeRequest struct {
	Name           string
	Symbols        []SymbolInput
	TickIntervalMs *int64
	Volatility     *float64
	EngineEnabled  *bool
	AllowMargin    *bool
	CommissionBps  *int64
	CreditLimit    *float64
	BaseVolume     *int64
}

// UpdateConfigRequest represents a partial configuration update.
// Nil fields keep their current value.
type UpdateConfigRequest struct {
	TickIntervalMs *int64
	Volatility     *float64
	EngineEnabled  *bool
	AllowMargin    *bool
	CommissionBps  *int64
	CreditLimit    *float64
	BaseVolume     *int64
}

// EngineStarter is notified when a new exchange needs a tick scheduler.
type EngineStarter interface {
	StartExchange(exchangeID string)
}

// MarketData is the service's view of symbol price state: seeding
// initial prices and listing snapshots. Satisfied by both the plain
// in-memory store and its persisted variant.
type MarketData interface {
	SetSymbolState(st domain.SymbolState)
	ListByExchange(exchangeID string) []domain.SymbolState
}

// ExchangeService handles exchange creation, lookup, and configuration
// updates.
type ExchangeService struct {
	store      *store.ExchangeStore
	marketData MarketData
	starter    EngineStarter
	defaults   domain.ExchangeConfig
	archive    Archive
	logger     *slog.Logger
}

// NewExchangeService creates a new ExchangeService. archive may be nil
// when no durable storage is configured.
func NewExchangeService(
	exchanges *store.ExchangeStore,
	marketData MarketData,
	starter EngineStarter,
	defaults domain.ExchangeConfig,
	archive Archive,
	logger *slog.Logger,
) *ExchangeService {
	return &ExchangeService{
		store:      exchanges,
		marketData: marketData,
		starter:    starter,
		defaults:   defaults,
		archive:    archive,
		logger:     logger,
	}
}

// Create validates the request, stores the exchange, seeds its symbol
// prices, and starts its tick scheduler.
func (s *ExchangeService) Create(req CreateExchangeRequest) (*domain.Exchange, error) {
	if !nameRegex.MatchString(req.Name) {
		return nil, &domain.ValidationError{
			Message: "name must match ^[a-zA-Z0-9 _-]{1,64}$",
		}
	}
	if len(req.Symbols) == 0 {
		return nil, &domain.ValidationError{
			Message: "symbols must be a non-empty array",
		}
	}

	seen := make(map[string]bool, len(req.Symbols))
	symbols := make([]string, 0, len(req.Symbols))
	prices := make(map[string]int64, len(req.Symbols))
	for _, in := range req.Symbols {
		if !symbolRegex.MatchString(in.Symbol) {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("symbol must match ^[A-Z]{1,10}$, got %q", in.Symbol),
			}
		}
		if seen[in.Symbol] {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("duplicate symbol: %s", in.Symbol),
			}
		}
		seen[in.Symbol] = true

		cents, err := domain.DollarsToCents(in.InitialPrice)
		if err != nil || cents <= 0 {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("initial_price for %s must be a positive amount with at most 2 decimal places", in.Symbol),
			}
		}
		symbols = append(symbols, in.Symbol)
		prices[in.Symbol] = cents
	}

	cfg, err := s.mergeConfig(s.defaults, UpdateConfigRequest{
		TickIntervalMs: req.TickIntervalMs,
		Volatility:     req.Volatility,
		EngineEnabled:  req.EngineEnabled,
		AllowMargin:    req.AllowMargin,
		CommissionBps:  req.CommissionBps,
		CreditLimit:    req.CreditLimit,
		BaseVolume:     req.BaseVolume,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	exchange := &domain.Exchange{
		ExchangeID: uuid.New().String(),
		Name:       req.Name,
		Symbols:    symbols,
		Config:     cfg,
		CreatedAt:  now,
	}
	if err := s.store.Create(exchange); err != nil {
		return nil, err
	}

	// Seed the market-data store before the first tick can fire.
	for symbol, price := range prices {
		s.marketData.SetSymbolState(domain.SymbolState{
			ExchangeID: exchange.ExchangeID,
			Symbol:     symbol,
			LastPrice:  price,
			UpdatedAt:  now,
		})
	}

	s.archiveExchange(exchange)
	if s.starter != nil {
		s.starter.StartExchange(exchange.ExchangeID)
	}
	return exchange, nil
}

// Get retrieves an exchange by ID.
func (s *ExchangeService) Get(exchangeID string) (*domain.Exchange, error) {
	return s.store.Get(exchangeID)
}

// UpdateConfig applies a partial configuration update. The new
// configuration is validated as a whole and takes effect at the
// exchange's next tick.
func (s *ExchangeService) UpdateConfig(exchangeID string, req UpdateConfigRequest) (*domain.Exchange, error) {
	current, err := s.store.Get(exchangeID)
	if err != nil {
		return nil, err
	}

	cfg, err := s.mergeConfig(current.Config, req)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateConfig(exchangeID, cfg); err != nil {
		return nil, err
	}

	updated, err := s.store.Get(exchangeID)
	if err != nil {
		return nil, err
	}
	s.archiveExchange(updated)
	return updated, nil
}

// ListPrices returns the latest symbol states for an exchange.
func (s *ExchangeService) ListPrices(exchangeID string) ([]domain.SymbolState, error) {
	if !s.store.Exists(exchangeID) {
		return nil, domain.ErrExchangeNotFound
	}
	return s.marketData.ListByExchange(exchangeID), nil
}

// mergeConfig overlays the non-nil request fields onto base and
// validates the result.
func (s *ExchangeService) mergeConfig(base domain.ExchangeConfig, req UpdateConfigRequest) (domain.ExchangeConfig, error) {
	cfg := base
	if req.TickIntervalMs != nil {
		cfg.TickInterval = time.Duration(*req.TickIntervalMs) * time.Millisecond
	}
	if req.Volatility != nil {
		cfg.Volatility = *req.Volatility
	}
	if req.EngineEnabled != nil {
		cfg.MarketEngineEnabled = *req.EngineEnabled
	}
	if req.AllowMargin != nil {
		cfg.AllowMargin = *req.AllowMargin
	}
	if req.CommissionBps != nil {
		cfg.CommissionBps = *req.CommissionBps
	}
	if req.CreditLimit != nil {
		cents, err := domain.DollarsToCents(*req.CreditLimit)
		if err != nil {
			return cfg, &domain.ValidationError{
				Message: "credit_limit must have at most 2 decimal places",
			}
		}
		cfg.CreditLimit = cents
	}
	if req.BaseVolume != nil {
		cfg.BaseVolume = *req.BaseVolume
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (s *ExchangeService) archiveExchange(e *domain.Exchange) {
	if s.archive == nil {
		return
	}
	if err := s.archive.SaveExchange(context.Background(), e); err != nil {
		s.logger.Warn("archive exchange failed",
			slog.String("exchange_id", e.ExchangeID),
			slog.String("error", err.Error()),
		)
	}
}
