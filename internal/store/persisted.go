package store

import (
	"context"
	"log/slog"

	"github.com/dverney/marketsim/internal/domain"
)

// SymbolStateSaver persists the latest price state for one symbol.
type SymbolStateSaver interface {
	SaveSymbolState(ctx context.Context, st domain.SymbolState) error
}

// PersistedMarketData layers write-through persistence over a
// MarketDataStore. Reads are served from memory; every write is also
// handed to the saver so a restart can pick up prices where the last
// run left them. A failed save is logged and dropped: the in-memory
// state stays authoritative for the current run, and the next tick
// writes a fresh value anyway.
type PersistedMarketData struct {
	*MarketDataStore
	saver  SymbolStateSaver
	logger *slog.Logger
}

// NewPersistedMarketData wraps mem with write-through to saver.
func NewPersistedMarketData(mem *MarketDataStore, saver SymbolStateSaver, logger *slog.Logger) *PersistedMarketData {
	return &PersistedMarketData{MarketDataStore: mem, saver: saver, logger: logger}
}

// SetSymbolState stores the state in memory, then persists it.
func (p *PersistedMarketData) SetSymbolState(st domain.SymbolState) {
	p.MarketDataStore.SetSymbolState(st)
	if err := p.saver.SaveSymbolState(context.Background(), st); err != nil {
		p.logger.Warn("failed to persist symbol state",
			slog.String("exchange_id", st.ExchangeID),
			slog.String("symbol", st.Symbol),
			slog.String("error", err.Error()),
		)
	}
}
