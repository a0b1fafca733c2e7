package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dverney/marketsim/internal/domain"
	"github.com/dverney/marketsim/internal/store"
)

// CreatePortfolioRequest represents the input for portfolio creation.
type CreatePortfolioRequest struct {
	ExchangeID       string
	InitialCash      float64
	InitialPositions []PositionInput
}

// PositionInput represents a single position in a creation request.
type PositionInput struct {
	Symbol   string
	Quantity int64
	AvgCost  float64
}

// PortfolioService handles portfolio creation and lookup.
type PortfolioService struct {
	store     *store.PortfolioStore
	exchanges *store.ExchangeStore
	archive   Archive
	logger    *slog.Logger
}

// NewPortfolioService creates a new PortfolioService. archive may be
// nil when no durable storage is configured.
func NewPortfolioService(
	portfolios *store.PortfolioStore,
	exchanges *store.ExchangeStore,
	archive Archive,
	logger *slog.Logger,
) *PortfolioService {
	return &PortfolioService{
		store:     portfolios,
		exchanges: exchanges,
		archive:   archive,
		logger:    logger,
	}
}

// Create validates the request and creates a portfolio on the given
// exchange.
func (s *PortfolioService) Create(req CreatePortfolioRequest) (*domain.Portfolio, error) {
	exchange, err := s.exchanges.Get(req.ExchangeID)
	if err != nil {
		return nil, err
	}

	if req.InitialCash < 0 {
		return nil, &domain.ValidationError{
			Message: "initial_cash must be >= 0",
		}
	}
	cashCents, err := domain.DollarsToCents(req.InitialCash)
	if err != nil {
		return nil, &domain.ValidationError{
			Message: "initial_cash must have at most 2 decimal places",
		}
	}

	seen := make(map[string]bool)
	positions := make(map[string]*domain.Position)
	for _, in := range req.InitialPositions {
		if !exchange.ListsSymbol(in.Symbol) {
			return nil, domain.ErrSymbolNotListed
		}
		if in.Quantity <= 0 {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("position quantity must be > 0 for symbol %s", in.Symbol),
			}
		}
		if seen[in.Symbol] {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("duplicate symbol in initial_positions: %s", in.Symbol),
			}
		}
		seen[in.Symbol] = true

		costCents, err := domain.DollarsToCents(in.AvgCost)
		if err != nil || costCents < 0 {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("avg_cost for %s must be a non-negative amount with at most 2 decimal places", in.Symbol),
			}
		}
		positions[in.Symbol] = &domain.Position{
			Quantity: in.Quantity,
			AvgCost:  costCents,
		}
	}

	portfolio := &domain.Portfolio{
		PortfolioID: uuid.New().String(),
		ExchangeID:  req.ExchangeID,
		Cash:        cashCents,
		Positions:   positions,
		CreatedAt:   time.Now().UTC(),
	}
	s.store.Create(portfolio)

	if s.archive != nil {
		if err := s.archive.SavePortfolio(context.Background(), portfolio); err != nil {
			s.logger.Warn("archive portfolio failed",
				slog.String("portfolio_id", portfolio.PortfolioID),
				slog.String("error", err.Error()),
			)
		}
	}
	return portfolio, nil
}

// Get retrieves a portfolio by ID.
func (s *PortfolioService) Get(portfolioID string) (*domain.Portfolio, error) {
	return s.store.Get(portfolioID)
}
