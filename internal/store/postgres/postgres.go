// Package postgres persists exchange state to Postgres over pgx. It
// provides the transactional fill commit the market engine relies on:
// the order status change and the portfolio delta land in one
// transaction or not at all.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dverney/marketsim/internal/domain"
	"github.com/dverney/marketsim/internal/engine"
)

//go:embed schema.sql
var schema string

// Store wraps a pgx connection pool. It satisfies engine.FillStore and
// service.Archive.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at url.
func New(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// InitSchema creates the tables if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// CommitFill applies one staged fill in a single transaction. The
// order row is updated only while still open, which makes the commit
// idempotent: re-running an already-applied instruction matches zero
// rows and changes nothing.
func (s *Store) CommitFill(ctx context.Context, f engine.Fill) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	filledQty := int64(0)
	if f.NewStatus == domain.OrderStatusFilled {
		filledQty = f.Quantity
	}

	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1, filled_quantity = filled_quantity + $2,
		    reject_reason = $3, updated_at = $4
		WHERE order_id = $5 AND status IN ('pending', 'partially_filled')`,
		string(f.NewStatus), filledQty, f.RejectReason, f.ExecutedAt, f.OrderID,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already applied by an earlier attempt.
		return tx.Commit(ctx)
	}

	if f.NewStatus == domain.OrderStatusFilled {
		if err := s.applyPortfolioDelta(ctx, tx, f); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO fills (instruction_id, order_id, portfolio_id, symbol, side,
		                   fill_price, quantity, commission, cash_delta,
		                   new_status, reject_reason, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (instruction_id) DO NOTHING`,
		f.InstructionID, f.OrderID, f.PortfolioID, f.Symbol, string(f.Side),
		f.FillPrice, f.Quantity, f.Commission, f.CashDelta,
		string(f.NewStatus), f.RejectReason, f.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fill: %w", err)
	}

	return tx.Commit(ctx)
}

// applyPortfolioDelta adjusts cash and the position inside the fill
// transaction. Buys re-weight the average cost in SQL; sells shrink
// the position and drop the row at zero.
func (s *Store) applyPortfolioDelta(ctx context.Context, tx pgx.Tx, f engine.Fill) error {
	_, err := tx.Exec(ctx,
		`UPDATE portfolios SET cash = cash + $1 WHERE portfolio_id = $2`,
		f.CashDelta, f.PortfolioID,
	)
	if err != nil {
		return fmt.Errorf("update portfolio cash: %w", err)
	}

	if f.Side == domain.OrderSideBuy {
		_, err = tx.Exec(ctx, `
			INSERT INTO positions (portfolio_id, symbol, quantity, avg_cost)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (portfolio_id, symbol) DO UPDATE
			SET avg_cost = (positions.avg_cost * positions.quantity
			                + EXCLUDED.avg_cost * EXCLUDED.quantity)
			               / (positions.quantity + EXCLUDED.quantity),
			    quantity = positions.quantity + EXCLUDED.quantity`,
			f.PortfolioID, f.Symbol, f.Quantity, f.FillPrice,
		)
		if err != nil {
			return fmt.Errorf("upsert position: %w", err)
		}
		return nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE positions SET quantity = quantity - $1
		WHERE portfolio_id = $2 AND symbol = $3`,
		f.Quantity, f.PortfolioID, f.Symbol,
	)
	if err != nil {
		return fmt.Errorf("update position: %w", err)
	}
	_, err = tx.Exec(ctx, `
		DELETE FROM positions
		WHERE portfolio_id = $1 AND symbol = $2 AND quantity <= 0`,
		f.PortfolioID, f.Symbol,
	)
	if err != nil {
		return fmt.Errorf("prune position: %w", err)
	}
	return nil
}

// SaveExchange inserts or replaces an exchange row.
func (s *Store) SaveExchange(ctx context.Context, e *domain.Exchange) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO exchanges (exchange_id, name, symbols, tick_interval_ms,
		                       volatility, engine_enabled, allow_margin,
		                       commission_bps, credit_limit, base_volume, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (exchange_id) DO UPDATE
		SET tick_interval_ms = EXCLUDED.tick_interval_ms,
		    volatility = EXCLUDED.volatility,
		    engine_enabled = EXCLUDED.engine_enabled,
		    allow_margin = EXCLUDED.allow_margin,
		    commission_bps = EXCLUDED.commission_bps,
		    credit_limit = EXCLUDED.credit_limit,
		    base_volume = EXCLUDED.base_volume`,
		e.ExchangeID, e.Name, e.Symbols, e.Config.TickInterval.Milliseconds(),
		e.Config.Volatility, e.Config.MarketEngineEnabled, e.Config.AllowMargin,
		e.Config.CommissionBps, e.Config.CreditLimit, e.Config.BaseVolume, e.CreatedAt,
	)
	return err
}

// SavePortfolio inserts a portfolio row with its initial positions.
func (s *Store) SavePortfolio(ctx context.Context, p *domain.Portfolio) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO portfolios (portfolio_id, exchange_id, cash, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (portfolio_id) DO NOTHING`,
		p.PortfolioID, p.ExchangeID, p.Cash, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert portfolio: %w", err)
	}

	for symbol, pos := range p.Positions {
		_, err = tx.Exec(ctx, `
			INSERT INTO positions (portfolio_id, symbol, quantity, avg_cost)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (portfolio_id, symbol) DO NOTHING`,
			p.PortfolioID, symbol, pos.Quantity, pos.AvgCost,
		)
		if err != nil {
			return fmt.Errorf("insert position %s: %w", symbol, err)
		}
	}

	return tx.Commit(ctx)
}

// SaveSymbolState inserts or replaces the latest price state for one
// symbol. The table keeps only the latest value per (exchange, symbol);
// history lives in the fills journal.
func (s *Store) SaveSymbolState(ctx context.Context, st domain.SymbolState) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO symbol_states (exchange_id, symbol, last_price, last_volume, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (exchange_id, symbol) DO UPDATE
		SET last_price = EXCLUDED.last_price,
		    last_volume = EXCLUDED.last_volume,
		    updated_at = EXCLUDED.updated_at`,
		st.ExchangeID, st.Symbol, st.LastPrice, st.LastVolume, st.UpdatedAt,
	)
	return err
}

// LoadExchanges returns every stored exchange for startup restore.
func (s *Store) LoadExchanges(ctx context.Context) ([]*domain.Exchange, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT exchange_id, name, symbols, tick_interval_ms, volatility,
		       engine_enabled, allow_margin, commission_bps, credit_limit,
		       base_volume, created_at
		FROM exchanges`)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	var out []*domain.Exchange
	for rows.Next() {
		var (
			e          domain.Exchange
			intervalMs int64
		)
		if err := rows.Scan(&e.ExchangeID, &e.Name, &e.Symbols, &intervalMs,
			&e.Config.Volatility, &e.Config.MarketEngineEnabled,
			&e.Config.AllowMargin, &e.Config.CommissionBps,
			&e.Config.CreditLimit, &e.Config.BaseVolume, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		e.Config.TickInterval = time.Duration(intervalMs) * time.Millisecond
		out = append(out, &e)
	}
	return out, rows.Err()
}

// LoadSymbolStates returns the latest stored price state for every
// symbol on every exchange.
func (s *Store) LoadSymbolStates(ctx context.Context) ([]domain.SymbolState, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT exchange_id, symbol, last_price, last_volume, updated_at
		FROM symbol_states`)
	if err != nil {
		return nil, fmt.Errorf("query symbol states: %w", err)
	}
	defer rows.Close()

	var out []domain.SymbolState
	for rows.Next() {
		var st domain.SymbolState
		if err := rows.Scan(&st.ExchangeID, &st.Symbol, &st.LastPrice,
			&st.LastVolume, &st.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan symbol state: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// LoadPortfolios returns every stored portfolio with its positions.
func (s *Store) LoadPortfolios(ctx context.Context) ([]*domain.Portfolio, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT portfolio_id, exchange_id, cash, created_at FROM portfolios`)
	if err != nil {
		return nil, fmt.Errorf("query portfolios: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*domain.Portfolio)
	var out []*domain.Portfolio
	for rows.Next() {
		var p domain.Portfolio
		if err := rows.Scan(&p.PortfolioID, &p.ExchangeID, &p.Cash, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan portfolio: %w", err)
		}
		p.Positions = make(map[string]*domain.Position)
		byID[p.PortfolioID] = &p
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	posRows, err := s.pool.Query(ctx, `
		SELECT portfolio_id, symbol, quantity, avg_cost FROM positions`)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer posRows.Close()

	for posRows.Next() {
		var (
			portfolioID, symbol string
			pos                 domain.Position
		)
		if err := posRows.Scan(&portfolioID, &symbol, &pos.Quantity, &pos.AvgCost); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		if p, ok := byID[portfolioID]; ok {
			p.Positions[symbol] = &pos
		}
	}
	return out, posRows.Err()
}

// LoadOpenOrders returns every order still in an open state, for
// rebuilding the trigger books after a restart.
func (s *Store) LoadOpenOrders(ctx context.Context) ([]*domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT order_id, exchange_id, portfolio_id, symbol, side, order_type,
		       quantity, limit_price, stop_price, stop_triggered,
		       filled_quantity, status, reject_reason, created_at, updated_at
		FROM orders
		WHERE status IN ('pending', 'partially_filled')`)
	if err != nil {
		return nil, fmt.Errorf("query open orders: %w", err)
	}
	defer rows.Close()

	var out []*domain.Order
	for rows.Next() {
		var (
			o                domain.Order
			side, typ, state string
		)
		if err := rows.Scan(&o.OrderID, &o.ExchangeID, &o.PortfolioID, &o.Symbol,
			&side, &typ, &o.Quantity, &o.LimitPrice, &o.StopPrice,
			&o.StopTriggered, &o.FilledQuantity, &state,
			&o.RejectReason, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Side = domain.OrderSide(side)
		o.Type = domain.OrderType(typ)
		o.Status = domain.OrderStatus(state)
		out = append(out, &o)
	}
	return out, rows.Err()
}

// SaveOrder inserts an order row.
func (s *Store) SaveOrder(ctx context.Context, o *domain.Order) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO orders (order_id, exchange_id, portfolio_id, symbol, side,
		                    order_type, quantity, limit_price, stop_price,
		                    stop_triggered, filled_quantity, status,
		                    reject_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (order_id) DO UPDATE
		SET status = EXCLUDED.status,
		    stop_triggered = EXCLUDED.stop_triggered,
		    reject_reason = EXCLUDED.reject_reason,
		    updated_at = EXCLUDED.updated_at`,
		o.OrderID, o.ExchangeID, o.PortfolioID, o.Symbol, string(o.Side),
		string(o.Type), o.Quantity, o.LimitPrice, o.StopPrice,
		o.StopTriggered, o.FilledQuantity, string(o.Status),
		o.RejectReason, o.CreatedAt, o.UpdatedAt,
	)
	return err
}
