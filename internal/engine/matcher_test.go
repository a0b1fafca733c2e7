package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dverney/marketsim/internal/domain"
)

// newOrder creates an open order for matcher tests.
func newOrder(side domain.OrderSide, typ domain.OrderType, qty, limitPrice, stopPrice int64) *domain.Order {
	now := time.Now()
	return &domain.Order{
		OrderID:     uuid.New().String(),
		ExchangeID:  "ex-1",
		PortfolioID: "pf-1",
		Symbol:      "AAPL",
		Side:        side,
		Type:        typ,
		Quantity:    qty,
		LimitPrice:  limitPrice,
		StopPrice:   stopPrice,
		Status:      domain.OrderStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestMatch_MarketAlwaysFillsAtTickPrice(t *testing.T) {
	m := NewMatcher()
	o := newOrder(domain.OrderSideBuy, domain.OrderTypeMarket, 10, 0, 0)

	res := m.Match(14800, []*domain.Order{o})
	if len(res.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(res.Fills))
	}
	if res.Fills[0].FillPrice != 14800 {
		t.Errorf("expected fill at 14800, got %d", res.Fills[0].FillPrice)
	}
	if res.Fills[0].Quantity != 10 {
		t.Errorf("expected quantity 10, got %d", res.Fills[0].Quantity)
	}
}

func TestMatch_LimitOrders(t *testing.T) {
	tests := []struct {
		name      string
		side      domain.OrderSide
		limit     int64
		price     int64
		wantFill  bool
		wantPrice int64
	}{
		{"buy limit triggers below limit", domain.OrderSideBuy, 15000, 14800, true, 14800},
		{"buy limit triggers at limit", domain.OrderSideBuy, 15000, 15000, true, 15000},
		{"buy limit does not trigger above limit", domain.OrderSideBuy, 15000, 15200, false, 0},
		{"sell limit triggers above limit", domain.OrderSideSell, 15000, 15200, true, 15200},
		{"sell limit triggers at limit", domain.OrderSideSell, 15000, 15000, true, 15000},
		{"sell limit does not trigger below limit", domain.OrderSideSell, 15000, 14800, false, 0},
	}

	m := NewMatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrder(tt.side, domain.OrderTypeLimit, 5, tt.limit, 0)
			res := m.Match(tt.price, []*domain.Order{o})

			if !tt.wantFill {
				if len(res.Fills) != 0 {
					t.Fatalf("expected no fill, got %d", len(res.Fills))
				}
				return
			}
			if len(res.Fills) != 1 {
				t.Fatalf("expected 1 fill, got %d", len(res.Fills))
			}
			if res.Fills[0].FillPrice != tt.wantPrice {
				t.Errorf("expected fill price %d, got %d", tt.wantPrice, res.Fills[0].FillPrice)
			}
		})
	}
}

func TestMatch_StopOrders(t *testing.T) {
	tests := []struct {
		name     string
		side     domain.OrderSide
		stop     int64
		price    int64
		wantFill bool
	}{
		{"buy stop does not trigger below stop", domain.OrderSideBuy, 10000, 9900, false},
		{"buy stop triggers at stop", domain.OrderSideBuy, 10000, 10000, true},
		{"buy stop triggers above stop", domain.OrderSideBuy, 10000, 10100, true},
		{"sell stop triggers below stop", domain.OrderSideSell, 10000, 9900, true},
		{"sell stop does not trigger above stop", domain.OrderSideSell, 10000, 10100, false},
	}

	m := NewMatcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrder(tt.side, domain.OrderTypeStop, 5, 0, tt.stop)
			res := m.Match(tt.price, []*domain.Order{o})

			if tt.wantFill {
				if len(res.Fills) != 1 {
					t.Fatalf("expected 1 fill, got %d", len(res.Fills))
				}
				// Stop orders fill at the tick price.
				if res.Fills[0].FillPrice != tt.price {
					t.Errorf("expected fill price %d, got %d", tt.price, res.Fills[0].FillPrice)
				}
			} else if len(res.Fills) != 0 {
				t.Fatalf("expected no fill, got %d", len(res.Fills))
			}
		})
	}
}

func TestMatch_StopLimit_ArmsWithoutFilling(t *testing.T) {
	m := NewMatcher()
	// Buy stop-limit: stop 100.00, limit 99.00. A price of 101.00 arms
	// the stop but is above the limit, so no fill yet.
	o := newOrder(domain.OrderSideBuy, domain.OrderTypeStopLimit, 5, 9900, 10000)

	res := m.Match(10100, []*domain.Order{o})
	if len(res.Fills) != 0 {
		t.Fatalf("expected no fill, got %d", len(res.Fills))
	}
	if len(res.Armed) != 1 || res.Armed[0].OrderID != o.OrderID {
		t.Fatal("expected the order to be armed")
	}
}

func TestMatch_StopLimit_ArmsAndFillsSameTick(t *testing.T) {
	m := NewMatcher()
	// Buy stop-limit: stop 100.00, limit 102.00. A price of 101.00
	// satisfies both the stop and the limit conditions at once.
	o := newOrder(domain.OrderSideBuy, domain.OrderTypeStopLimit, 5, 10200, 10000)

	res := m.Match(10100, []*domain.Order{o})
	if len(res.Armed) != 1 {
		t.Fatalf("expected the order to be armed, got %d armed", len(res.Armed))
	}
	if len(res.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(res.Fills))
	}
	if res.Fills[0].FillPrice != 10100 {
		t.Errorf("expected fill price 10100, got %d", res.Fills[0].FillPrice)
	}
}

func TestMatch_StopLimit_AlreadyArmedBehavesAsLimit(t *testing.T) {
	m := NewMatcher()
	o := newOrder(domain.OrderSideSell, domain.OrderTypeStopLimit, 5, 9800, 9900)
	o.StopTriggered = true

	// Armed sell stop-limit with limit 98.00: price 99.50 >= limit → fills.
	res := m.Match(9950, []*domain.Order{o})
	if len(res.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(res.Fills))
	}
	if len(res.Armed) != 0 {
		t.Fatalf("expected no re-arming, got %d", len(res.Armed))
	}
	if res.Fills[0].FillPrice != 9950 {
		t.Errorf("expected fill price 9950, got %d", res.Fills[0].FillPrice)
	}
}

func TestMatch_SkipsTerminalOrders(t *testing.T) {
	m := NewMatcher()
	o := newOrder(domain.OrderSideBuy, domain.OrderTypeMarket, 5, 0, 0)
	o.Status = domain.OrderStatusFilled
	o.FilledQuantity = 5

	res := m.Match(15000, []*domain.Order{o})
	if len(res.Fills) != 0 {
		t.Fatalf("expected no fill for terminal order, got %d", len(res.Fills))
	}
}

func TestMatch_OrdersEvaluatedIndependently(t *testing.T) {
	m := NewMatcher()
	a := newOrder(domain.OrderSideBuy, domain.OrderTypeLimit, 5, 15100, 0)
	b := newOrder(domain.OrderSideBuy, domain.OrderTypeLimit, 5, 14900, 0)
	c := newOrder(domain.OrderSideSell, domain.OrderTypeLimit, 5, 14950, 0)

	res := m.Match(15000, []*domain.Order{a, b, c})
	// a triggers (15000 <= 15100), b does not (15000 > 14900),
	// c triggers (15000 >= 14950).
	if len(res.Fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(res.Fills))
	}
}
