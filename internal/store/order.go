package store

import (
	"sync"

	"github.com/dverney/marketsim/internal/domain"
)

// OrderStore is a thread-safe in-memory store for orders, with a
// primary index by order_id and a secondary index by portfolio_id.
type OrderStore struct {
	mu              sync.RWMutex
	orders          map[string]*domain.Order
	portfolioOrders map[string][]*domain.Order // portfolio_id → orders (append-only)
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:          make(map[string]*domain.Order),
		portfolioOrders: make(map[string][]*domain.Order),
	}
}

// Create adds an order to the store and appends it to the portfolio's
// secondary index.
func (s *OrderStore) Create(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[o.OrderID] = o
	s.portfolioOrders[o.PortfolioID] = append(s.portfolioOrders[o.PortfolioID], o)
}

// Get retrieves an order by ID. It returns
// domain.ErrOrderNotFound if the order does not exist.
func (s *OrderStore) Get(id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// ListByPortfolio returns orders for a portfolio in reverse
// chronological order (newest first). If status is non-nil, only
// orders matching that status are included.
func (s *OrderStore) ListByPortfolio(portfolioID string, status *domain.OrderStatus) []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.portfolioOrders[portfolioID]
	out := make([]*domain.Order, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if status != nil {
			all[i].Mu.Lock()
			match := all[i].Status == *status
			all[i].Mu.Unlock()
			if !match {
				continue
			}
		}
		out = append(out, all[i])
	}
	return out
}

// LoadPendingOrders returns the open orders for one symbol on one
// exchange. The tick scheduler works off the trigger book; startup
// restore uses this to rebuild each book after the orders have been
// reloaded from durable storage.
func (s *OrderStore) LoadPendingOrders(exchangeID, symbol string) []*domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Order
	for _, o := range s.orders {
		if o.ExchangeID != exchangeID || o.Symbol != symbol {
			continue
		}
		o.Mu.Lock()
		open := o.Open()
		o.Mu.Unlock()
		if open {
			out = append(out, o)
		}
	}
	return out
}
