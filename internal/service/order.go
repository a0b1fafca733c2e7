package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dverney/marketsim/internal/domain"
	"github.com/dverney/marketsim/internal/engine"
	"github.com/dverney/marketsim/internal/store"
)

// validOrderTypes lists the accepted order types.
var validOrderTypes = map[domain.OrderType]bool{
	domain.OrderTypeMarket:    true,
	domain.OrderTypeLimit:     true,
	domain.OrderTypeStop:      true,
	domain.OrderTypeStopLimit: true,
}

// SubmitOrderRequest represents the input for order submission.
// Price carries the limit price; StopPrice the stop trigger. Which are
// required depends on the order type.
type SubmitOrderRequest struct {
	ExchangeID  string
	PortfolioID string
	Symbol      string
	Side        domain.OrderSide
	Type        domain.OrderType
	Quantity    int64
	Price       *float64
	StopPrice   *float64
}

// OrderService handles order submission, retrieval, and cancellation.
// Submitted orders rest as pending until a tick matches them; this
// service never fills anything itself.
type OrderService struct {
	orderStore     *store.OrderStore
	portfolioStore *store.PortfolioStore
	exchangeStore  *store.ExchangeStore
	books          *engine.BookManager
	archive        Archive
	logger         *slog.Logger
}

// NewOrderService creates a new OrderService. archive may be nil when
// no durable storage is configured.
func NewOrderService(
	orders *store.OrderStore,
	portfolios *store.PortfolioStore,
	exchanges *store.ExchangeStore,
	books *engine.BookManager,
	archive Archive,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		orderStore:     orders,
		portfolioStore: portfolios,
		exchangeStore:  exchanges,
		books:          books,
		archive:        archive,
		logger:         logger,
	}
}

// Submit validates the request, creates a pending order, and indexes
// it into the exchange's trigger book for the next tick.
func (s *OrderService) Submit(req SubmitOrderRequest) (*domain.Order, error) {
	if !validOrderTypes[req.Type] {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Unknown order type: %s. Must be one of: market, limit, stop, stop_limit", req.Type),
		}
	}
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Unknown side: %s. Must be one of: buy, sell", req.Side),
		}
	}
	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{
			Message: "quantity must be > 0",
		}
	}

	exchange, err := s.exchangeStore.Get(req.ExchangeID)
	if err != nil {
		return nil, err
	}
	if !exchange.ListsSymbol(req.Symbol) {
		return nil, domain.ErrSymbolNotListed
	}

	portfolio, err := s.portfolioStore.Get(req.PortfolioID)
	if err != nil {
		return nil, err
	}
	if portfolio.ExchangeID != req.ExchangeID {
		return nil, &domain.ValidationError{
			Message: "portfolio does not belong to the given exchange",
		}
	}

	limitPrice, stopPrice, err := orderPrices(req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &domain.Order{
		OrderID:     uuid.New().String(),
		ExchangeID:  req.ExchangeID,
		PortfolioID: req.PortfolioID,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		Quantity:    req.Quantity,
		LimitPrice:  limitPrice,
		StopPrice:   stopPrice,
		Status:      domain.OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.orderStore.Create(order)
	s.books.GetOrCreate(order.ExchangeID, order.Symbol).Add(order)
	s.archiveOrder(order)
	return order, nil
}

// Get retrieves an order by ID.
func (s *OrderService) Get(orderID string) (*domain.Order, error) {
	return s.orderStore.Get(orderID)
}

// Cancel cancels a pending order. The cancelled status is written
// under the order's lock, the same lock the ledger holds while
// settling, so the order reaches exactly one terminal state: either
// this cancel lands first and the tick skips the closed order, or an
// in-flight fill commits first and the cancel is rejected.
//
// Returns domain.ErrOrderNotCancellable if the order is already in a
// terminal state.
func (s *OrderService) Cancel(orderID string) (*domain.Order, error) {
	order, err := s.orderStore.Get(orderID)
	if err != nil {
		return nil, err
	}

	order.Mu.Lock()
	if !order.Open() {
		order.Mu.Unlock()
		return nil, domain.ErrOrderNotCancellable
	}
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = time.Now().UTC()
	order.Mu.Unlock()

	// Drop the stale book entry; a tick that already snapshotted its
	// candidates finds the order closed when it tries to settle it.
	s.books.GetOrCreate(order.ExchangeID, order.Symbol).Remove(order.OrderID)

	s.archiveOrder(order)
	return order, nil
}

// orderPrices validates the price fields against the order type and
// converts them to cents.
func orderPrices(req SubmitOrderRequest) (limitPrice, stopPrice int64, err error) {
	needsLimit := req.Type == domain.OrderTypeLimit || req.Type == domain.OrderTypeStopLimit
	needsStop := req.Type == domain.OrderTypeStop || req.Type == domain.OrderTypeStopLimit

	if needsLimit {
		if req.Price == nil {
			return 0, 0, &domain.ValidationError{
				Message: fmt.Sprintf("price is required for %s orders", req.Type),
			}
		}
		limitPrice, err = domain.DollarsToCents(*req.Price)
		if err != nil || limitPrice <= 0 {
			return 0, 0, &domain.ValidationError{
				Message: "price must be a positive amount with at most 2 decimal places",
			}
		}
	} else if req.Price != nil {
		return 0, 0, &domain.ValidationError{
			Message: fmt.Sprintf("price must not be set for %s orders", req.Type),
		}
	}

	if needsStop {
		if req.StopPrice == nil {
			return 0, 0, &domain.ValidationError{
				Message: fmt.Sprintf("stop_price is required for %s orders", req.Type),
			}
		}
		stopPrice, err = domain.DollarsToCents(*req.StopPrice)
		if err != nil || stopPrice <= 0 {
			return 0, 0, &domain.ValidationError{
				Message: "stop_price must be a positive amount with at most 2 decimal places",
			}
		}
	} else if req.StopPrice != nil {
		return 0, 0, &domain.ValidationError{
			Message: fmt.Sprintf("stop_price must not be set for %s orders", req.Type),
		}
	}

	return limitPrice, stopPrice, nil
}

func (s *OrderService) archiveOrder(o *domain.Order) {
	if s.archive == nil {
		return
	}
	if err := s.archive.SaveOrder(context.Background(), o); err != nil {
		s.logger.Warn("archive order failed",
			slog.String("order_id", o.OrderID),
			slog.String("error", err.Error()),
		)
	}
}
