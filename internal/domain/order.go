package domain

import (
	"sync"
	"time"
)

// OrderType distinguishes the four supported order types.
type OrderType string

const (
	OrderTypeMarket    OrderType = "market"
	OrderTypeLimit     OrderType = "limit"
	OrderTypeStop      OrderType = "stop"
	OrderTypeStopLimit OrderType = "stop_limit"
)

// OrderSide indicates whether an order buys or sells the symbol.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
)

// Order represents an instruction to trade a symbol on one exchange,
// funded by one portfolio. Orders are created by the submission API and
// move to a terminal status either through the market engine during a
// tick or through cancellation. Terminal statuses (filled, cancelled,
// rejected) are immutable.
//
// Every status transition and every read of mutable fields from
// outside the owning exchange's tick goroutine must hold Mu. The tick
// and the cancel path race for the same order; the lock decides which
// terminal state wins, and the loser observes a closed order.
type Order struct {
	OrderID     string
	ExchangeID  string
	PortfolioID string
	Symbol      string
	Side        OrderSide
	Type        OrderType
	Quantity    int64
	LimitPrice  int64 // cents; required for limit and stop_limit
	StopPrice   int64 // cents; required for stop and stop_limit

	// StopTriggered is set once a stop_limit order's stop condition has
	// been met; from that point on the order behaves as a plain limit.
	StopTriggered bool

	FilledQuantity int64
	Status         OrderStatus
	RejectReason   string
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Mu sync.Mutex // serializes status transitions and snapshots
}

// Open reports whether the order is still eligible for matching.
func (o *Order) Open() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusPartiallyFilled
}

// Terminal reports whether the order has reached an immutable state.
func (o *Order) Terminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}
