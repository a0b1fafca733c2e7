package domain

import (
	"sync"
	"time"
)

// Position represents a portfolio's stake in a single symbol.
// AvgCost is the volume-weighted average acquisition price in cents.
type Position struct {
	Quantity int64
	AvgCost  int64
}

// Portfolio represents a pool of cash and positions on one exchange.
// Cash and positions are mutated only by the ledger when a fill is
// applied, atomically with the originating order's status change.
type Portfolio struct {
	PortfolioID string
	ExchangeID  string
	Cash        int64 // cents; may go negative up to the credit limit when margin is allowed
	Positions   map[string]*Position
	CreatedAt   time.Time
	Mu          sync.Mutex // per-portfolio lock; all fills for a portfolio serialize on it
}

// BuyingPower returns the cash usable to fund a buy: plain cash, or
// cash plus the credit limit when margin is allowed.
func (p *Portfolio) BuyingPower(allowMargin bool, creditLimit int64) int64 {
	if allowMargin {
		return p.Cash + creditLimit
	}
	return p.Cash
}

// PositionQuantity returns the held quantity for the given symbol, or 0
// if the portfolio has no position in that symbol.
func (p *Portfolio) PositionQuantity(symbol string) int64 {
	pos, ok := p.Positions[symbol]
	if !ok {
		return 0
	}
	return pos.Quantity
}
