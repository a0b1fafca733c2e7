package store

import (
	"sync"

	"github.com/dverney/marketsim/internal/domain"
)

// PortfolioStore is a thread-safe in-memory store for portfolios,
// keyed by portfolio_id. It satisfies engine.PortfolioSource.
type PortfolioStore struct {
	mu         sync.RWMutex
	portfolios map[string]*domain.Portfolio
}

// NewPortfolioStore creates an empty PortfolioStore.
func NewPortfolioStore() *PortfolioStore {
	return &PortfolioStore{
		portfolios: make(map[string]*domain.Portfolio),
	}
}

// Create adds a portfolio to the store.
func (s *PortfolioStore) Create(p *domain.Portfolio) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.portfolios[p.PortfolioID] = p
}

// Get retrieves a portfolio by ID. It returns
// domain.ErrPortfolioNotFound if the portfolio does not exist.
func (s *PortfolioStore) Get(id string) (*domain.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.portfolios[id]
	if !ok {
		return nil, domain.ErrPortfolioNotFound
	}
	return p, nil
}

// Exists returns true if a portfolio with the given ID exists.
func (s *PortfolioStore) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.portfolios[id]
	return ok
}
