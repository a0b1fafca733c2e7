package engine

import (
	"github.com/google/uuid"

	"github.com/dverney/marketsim/internal/domain"
)

// FillInstruction directs the ledger to execute one order in full at a
// determined price. InstructionID is the idempotence key: the same
// instruction is never applied twice.
type FillInstruction struct {
	InstructionID string
	OrderID       string
	PortfolioID   string
	Symbol        string
	Side          domain.OrderSide
	FillPrice     int64 // cents
	Quantity      int64
}

// MatchResult is the outcome of evaluating one price against a set of
// pending orders.
type MatchResult struct {
	// Fills lists the orders that trigger at this price and the price
	// at which each fills.
	Fills []FillInstruction
	// Armed lists stop_limit orders whose stop condition was met at
	// this price but whose limit condition was not; they become
	// resting limit orders.
	Armed []*domain.Order
}

// Matcher decides which pending orders trigger against a new price and
// at what price each fills. It performs no I/O and mutates nothing;
// applying the result is the ledger's job.
//
// Trigger rules, evaluated per order independent of other orders:
//
//	market            always                      fills at tick price
//	limit  (buy)      price <= limit              fills at min(price, limit)
//	limit  (sell)     price >= limit              fills at max(price, limit)
//	stop   (buy)      price >= stop               fills at tick price
//	stop   (sell)     price <= stop               fills at tick price
//	stop_limit        stop rule arms it, then the limit rule governs
//
// Every triggering order fills in full; partial fills are a future
// extension point.
type Matcher struct{}

// NewMatcher creates a Matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Match evaluates the given tick price against the orders. Orders in a
// terminal state are skipped. Each order is evaluated under its own
// lock; a cancel landing mid-tick is either seen here or caught by the
// ledger before anything settles.
func (m *Matcher) Match(price int64, orders []*domain.Order) MatchResult {
	var res MatchResult
	for _, o := range orders {
		o.Mu.Lock()
		if !o.Open() {
			o.Mu.Unlock()
			continue
		}

		switch o.Type {
		case domain.OrderTypeMarket:
			res.Fills = append(res.Fills, instruction(o, price))

		case domain.OrderTypeLimit:
			if fillPrice, ok := limitFill(o.Side, o.LimitPrice, price); ok {
				res.Fills = append(res.Fills, instruction(o, fillPrice))
			}

		case domain.OrderTypeStop:
			if stopHit(o.Side, o.StopPrice, price) {
				res.Fills = append(res.Fills, instruction(o, price))
			}

		case domain.OrderTypeStopLimit:
			armed := o.StopTriggered
			if !armed && stopHit(o.Side, o.StopPrice, price) {
				armed = true
				res.Armed = append(res.Armed, o)
			}
			if armed {
				if fillPrice, ok := limitFill(o.Side, o.LimitPrice, price); ok {
					res.Fills = append(res.Fills, instruction(o, fillPrice))
				}
			}
		}
		o.Mu.Unlock()
	}
	return res
}

// limitFill applies the limit trigger rule and returns the fill price
// when the order triggers.
func limitFill(side domain.OrderSide, limit, price int64) (int64, bool) {
	if side == domain.OrderSideBuy {
		if price > limit {
			return 0, false
		}
		return min64(price, limit), true
	}
	if price < limit {
		return 0, false
	}
	return max64(price, limit), true
}

// stopHit reports whether the stop trigger rule holds.
func stopHit(side domain.OrderSide, stop, price int64) bool {
	if side == domain.OrderSideBuy {
		return price >= stop
	}
	return price <= stop
}

func instruction(o *domain.Order, fillPrice int64) FillInstruction {
	return FillInstruction{
		InstructionID: uuid.New().String(),
		OrderID:       o.OrderID,
		PortfolioID:   o.PortfolioID,
		Symbol:        o.Symbol,
		Side:          o.Side,
		FillPrice:     fillPrice,
		Quantity:      o.Quantity - o.FilledQuantity,
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
