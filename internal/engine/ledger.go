package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/dverney/marketsim/internal/domain"
)

// Fill describes the fully computed outcome of applying one
// instruction: the order's new status plus the exact portfolio delta.
// It is handed to the FillStore as one all-or-nothing unit.
type Fill struct {
	InstructionID string
	OrderID       string
	PortfolioID   string
	Symbol        string
	Side          domain.OrderSide
	FillPrice     int64
	Quantity      int64
	Commission    int64
	CashDelta     int64 // applied to portfolio cash; negative for buys
	NewStatus     domain.OrderStatus
	RejectReason  string
	ExecutedAt    time.Time
}

// PortfolioSource resolves portfolios by ID.
type PortfolioSource interface {
	Get(portfolioID string) (*domain.Portfolio, error)
}

// FillStore persists a fill with transactional, all-or-nothing
// semantics: the order status change and the portfolio delta commit
// together or not at all. Implementations must be idempotent per
// instruction: committing a fill for an order that already left the
// open state is a no-op.
type FillStore interface {
	CommitFill(ctx context.Context, f Fill) error
}

// Ledger applies fill instructions to portfolios. It is the sole
// writer of portfolio state: cash and positions change only here, and
// only together with the originating order's status change.
type Ledger struct {
	portfolios PortfolioSource
	fills      FillStore
}

// NewLedger creates a Ledger over the given portfolio source and fill store.
func NewLedger(portfolios PortfolioSource, fills FillStore) *Ledger {
	return &Ledger{portfolios: portfolios, fills: fills}
}

// Apply executes one fill instruction against the owning portfolio and
// order. On success the order becomes filled and the portfolio's cash
// and position are updated; on a business-rule violation the order
// becomes rejected with no portfolio change and the returned error is
// domain.ErrInsufficientFunds or domain.ErrInsufficientPosition. A
// persistence failure leaves both the order and the portfolio
// untouched so a later tick can retry.
//
// Apply never executes the same instruction twice: an order that has
// already left the open state is skipped with a nil Fill.
func (l *Ledger) Apply(ctx context.Context, cfg domain.ExchangeConfig, order *domain.Order, instr FillInstruction) (*Fill, error) {
	p, err := l.portfolios.Get(instr.PortfolioID)
	if err != nil {
		return nil, fmt.Errorf("load portfolio %s: %w", instr.PortfolioID, err)
	}

	// The order lock is held from the open check through the status
	// write, so a concurrent cancel either lands before it (Apply sees
	// a closed order and skips) or waits and finds the order filled.
	order.Mu.Lock()
	defer order.Mu.Unlock()
	if !order.Open() {
		return nil, nil
	}

	// All fills for one portfolio serialize on its lock, so two symbols
	// settling into the same portfolio within a tick cannot race.
	p.Mu.Lock()
	defer p.Mu.Unlock()

	now := time.Now()
	gross := instr.FillPrice * instr.Quantity
	commission := commissionFor(gross, cfg.CommissionBps)

	fill := Fill{
		InstructionID: instr.InstructionID,
		OrderID:       instr.OrderID,
		PortfolioID:   instr.PortfolioID,
		Symbol:        instr.Symbol,
		Side:          instr.Side,
		FillPrice:     instr.FillPrice,
		Quantity:      instr.Quantity,
		Commission:    commission,
		ExecutedAt:    now,
	}

	var businessErr error
	if instr.Side == domain.OrderSideBuy {
		required := gross + commission
		if required > p.BuyingPower(cfg.AllowMargin, cfg.CreditLimit) {
			businessErr = domain.ErrInsufficientFunds
		} else {
			fill.CashDelta = -required
		}
	} else {
		if p.PositionQuantity(instr.Symbol) < instr.Quantity {
			businessErr = domain.ErrInsufficientPosition
		} else {
			fill.CashDelta = gross - commission
		}
	}

	if businessErr != nil {
		fill.NewStatus = domain.OrderStatusRejected
		fill.RejectReason = businessErr.Error()
		fill.CashDelta = 0
		fill.Commission = 0
	} else {
		fill.NewStatus = domain.OrderStatusFilled
	}

	// Persist first: if the store cannot commit, no in-memory state may
	// change, and the still-open order is retried on a later tick.
	if err := l.fills.CommitFill(ctx, fill); err != nil {
		return nil, fmt.Errorf("commit fill for order %s: %w", instr.OrderID, err)
	}

	order.Status = fill.NewStatus
	order.RejectReason = fill.RejectReason
	order.UpdatedAt = now

	if businessErr != nil {
		return &fill, businessErr
	}

	order.FilledQuantity = order.Quantity
	p.Cash += fill.CashDelta
	applyPosition(p, instr)
	return &fill, nil
}

// applyPosition updates the portfolio's position for a successful fill.
// Buys grow the position and re-weight its average cost; sells shrink
// it, leaving the average cost unchanged.
func applyPosition(p *domain.Portfolio, instr FillInstruction) {
	pos := p.Positions[instr.Symbol]
	if instr.Side == domain.OrderSideBuy {
		if pos == nil {
			pos = &domain.Position{}
			p.Positions[instr.Symbol] = pos
		}
		newQty := pos.Quantity + instr.Quantity
		pos.AvgCost = (pos.AvgCost*pos.Quantity + instr.FillPrice*instr.Quantity) / newQty
		pos.Quantity = newQty
		return
	}

	pos.Quantity -= instr.Quantity
	if pos.Quantity == 0 {
		delete(p.Positions, instr.Symbol)
	}
}

// commissionFor computes the commission on a gross amount, rounded up
// so the venue never undercharges by a fraction of a cent.
func commissionFor(gross, bps int64) int64 {
	if bps <= 0 {
		return 0
	}
	return (gross*bps + 9999) / 10000
}
