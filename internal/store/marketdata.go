package store

import (
	"sync"

	"github.com/dverney/marketsim/internal/domain"
)

// MarketDataStore holds the latest SymbolState per (exchange_id,
// symbol). The tick scheduler is the only writer after seeding; the
// API layer reads it for price snapshots. It satisfies
// engine.MarketData.
type MarketDataStore struct {
	mu     sync.RWMutex
	states map[string]map[string]domain.SymbolState // exchange_id → symbol → state
}

// NewMarketDataStore creates an empty MarketDataStore.
func NewMarketDataStore() *MarketDataStore {
	return &MarketDataStore{
		states: make(map[string]map[string]domain.SymbolState),
	}
}

// SetSymbolState stores the latest state for one symbol.
func (s *MarketDataStore) SetSymbolState(st domain.SymbolState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySymbol, ok := s.states[st.ExchangeID]
	if !ok {
		bySymbol = make(map[string]domain.SymbolState)
		s.states[st.ExchangeID] = bySymbol
	}
	bySymbol[st.Symbol] = st
}

// LastPrice returns the latest price for a symbol, if any.
func (s *MarketDataStore) LastPrice(exchangeID, symbol string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[exchangeID][symbol]
	if !ok {
		return 0, false
	}
	return st.LastPrice, true
}

// GetSymbolState returns the latest state for a symbol, if any.
func (s *MarketDataStore) GetSymbolState(exchangeID, symbol string) (domain.SymbolState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[exchangeID][symbol]
	return st, ok
}

// ListByExchange returns the latest state for every symbol on an
// exchange. The slice is a copy; callers may not observe later ticks
// through it.
func (s *MarketDataStore) ListByExchange(exchangeID string) []domain.SymbolState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySymbol := s.states[exchangeID]
	out := make([]domain.SymbolState, 0, len(bySymbol))
	for _, st := range bySymbol {
		out = append(out, st)
	}
	return out
}
