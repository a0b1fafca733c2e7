package store

import (
	"context"
	"sync"

	"github.com/dverney/marketsim/internal/engine"
)

// FillStore is a thread-safe in-memory fill journal, keyed by symbol.
// Fills are append-only and chronological. For the in-memory runtime
// the ledger's in-process mutation is the source of truth, so
// CommitFill only records the journal entry; the Postgres store is the
// transactional implementation.
type FillStore struct {
	mu      sync.RWMutex
	fills   map[string][]engine.Fill // symbol → fills (chronological)
	byOrder map[string][]engine.Fill
}

// NewFillStore creates an empty FillStore.
func NewFillStore() *FillStore {
	return &FillStore{
		fills:   make(map[string][]engine.Fill),
		byOrder: make(map[string][]engine.Fill),
	}
}

// CommitFill records the fill. It satisfies engine.FillStore and never
// fails.
func (s *FillStore) CommitFill(_ context.Context, f engine.Fill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fills[f.Symbol] = append(s.fills[f.Symbol], f)
	s.byOrder[f.OrderID] = append(s.byOrder[f.OrderID], f)
	return nil
}

// ListBySymbol returns all fills for a symbol in chronological order.
func (s *FillStore) ListBySymbol(symbol string) []engine.Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]engine.Fill, len(s.fills[symbol]))
	copy(out, s.fills[symbol])
	return out
}

// ListByOrder returns all fills recorded for an order.
func (s *FillStore) ListByOrder(orderID string) []engine.Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]engine.Fill, len(s.byOrder[orderID]))
	copy(out, s.byOrder[orderID])
	return out
}
