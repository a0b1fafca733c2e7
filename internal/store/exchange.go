package store

import (
	"sync"

	"github.com/dverney/marketsim/internal/domain"
)

// ExchangeStore is a thread-safe in-memory store for exchanges, keyed
// by exchange_id. Configuration reads return copies so a tick always
// operates on one consistent snapshot even while an update lands.
type ExchangeStore struct {
	mu        sync.RWMutex
	exchanges map[string]*domain.Exchange
}

// NewExchangeStore creates an empty ExchangeStore.
func NewExchangeStore() *ExchangeStore {
	return &ExchangeStore{
		exchanges: make(map[string]*domain.Exchange),
	}
}

// Create adds an exchange to the store. It returns
// domain.ErrExchangeAlreadyExists if one with the same ID exists.
func (s *ExchangeStore) Create(e *domain.Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.exchanges[e.ExchangeID]; exists {
		return domain.ErrExchangeAlreadyExists
	}
	s.exchanges[e.ExchangeID] = e
	return nil
}

// Get retrieves a copy of an exchange by ID. It returns
// domain.ErrExchangeNotFound if the exchange does not exist.
func (s *ExchangeStore) Get(id string) (*domain.Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.exchanges[id]
	if !ok {
		return nil, domain.ErrExchangeNotFound
	}
	cp := *e
	cp.Symbols = append([]string(nil), e.Symbols...)
	return &cp, nil
}

// Exists returns true if an exchange with the given ID exists.
func (s *ExchangeStore) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.exchanges[id]
	return ok
}

// IDs returns the IDs of all stored exchanges.
func (s *ExchangeStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.exchanges))
	for id := range s.exchanges {
		ids = append(ids, id)
	}
	return ids
}

// GetConfiguration returns one consistent snapshot of the exchange's
// configuration and symbol list. It satisfies engine.ConfigSource.
func (s *ExchangeStore) GetConfiguration(exchangeID string) (domain.ExchangeConfig, []string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.exchanges[exchangeID]
	if !ok {
		return domain.ExchangeConfig{}, nil, domain.ErrExchangeNotFound
	}
	return e.Config, append([]string(nil), e.Symbols...), nil
}

// UpdateConfig replaces the exchange's configuration. The change takes
// effect at that exchange's next tick, never mid-tick.
func (s *ExchangeStore) UpdateConfig(exchangeID string, cfg domain.ExchangeConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.exchanges[exchangeID]
	if !ok {
		return domain.ErrExchangeNotFound
	}
	e.Config = cfg
	return nil
}
