package engine

import (
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/dverney/marketsim/internal/domain"
)

// bookEntry represents a single pending order indexed by its trigger
// price: the limit price for limit orders, the stop price for stop and
// unarmed stop_limit orders.
type bookEntry struct {
	Price     int64
	CreatedAt time.Time
	OrderID   string
	Order     *domain.Order
}

// Tree orderings. Each side/type combination is kept sorted so that
// all orders triggering at a given tick price form a prefix of the
// tree, making a matching query a single range scan from Min().
//
// Buy limits trigger when price <= limit: highest limit first.
// Sell limits trigger when price >= limit: lowest limit first.
// Buy stops trigger when price >= stop: lowest stop first.
// Sell stops trigger when price <= stop: highest stop first.
func descending(a, b bookEntry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return tieBreak(a, b)
}

func ascending(a, b bookEntry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return tieBreak(a, b)
}

func tieBreak(a, b bookEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.OrderID < b.OrderID
}

// container identifies which index inside a TriggerBook holds an order.
type container int

const (
	inBuyLimits container = iota
	inSellLimits
	inBuyStops
	inSellStops
	inMarkets
)

// TriggerBook is the per-(exchange, symbol) view of pending orders,
// indexed by trigger price so the scheduler can ask "which orders
// trigger at this price" in O(log n + k). Orders are evaluated
// independently of each other; no inter-order priority is modeled.
type TriggerBook struct {
	exchangeID string
	symbol     string

	mu         sync.RWMutex
	buyLimits  *btree.BTreeG[bookEntry]
	sellLimits *btree.BTreeG[bookEntry]
	buyStops   *btree.BTreeG[bookEntry]
	sellStops  *btree.BTreeG[bookEntry]
	markets    []bookEntry // FIFO
	index      map[string]container
	entries    map[string]bookEntry
}

// NewTriggerBook creates an empty book for the given exchange and symbol.
func NewTriggerBook(exchangeID, symbol string) *TriggerBook {
	const degree = 32
	return &TriggerBook{
		exchangeID: exchangeID,
		symbol:     symbol,
		buyLimits:  btree.NewG[bookEntry](degree, descending),
		sellLimits: btree.NewG[bookEntry](degree, ascending),
		buyStops:   btree.NewG[bookEntry](degree, ascending),
		sellStops:  btree.NewG[bookEntry](degree, descending),
		index:      make(map[string]container),
		entries:    make(map[string]bookEntry),
	}
}

// Add indexes a pending order by its trigger price. Orders in a
// terminal state are ignored.
func (b *TriggerBook) Add(order *domain.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	order.Mu.Lock()
	open := order.Open()
	order.Mu.Unlock()
	if !open {
		return
	}
	b.add(order)
}

func (b *TriggerBook) add(order *domain.Order) {
	entry := bookEntry{
		CreatedAt: order.CreatedAt,
		OrderID:   order.OrderID,
		Order:     order,
	}

	var c container
	switch {
	case order.Type == domain.OrderTypeMarket:
		c = inMarkets
		b.markets = append(b.markets, entry)
	case order.Type == domain.OrderTypeLimit,
		order.Type == domain.OrderTypeStopLimit && order.StopTriggered:
		entry.Price = order.LimitPrice
		if order.Side == domain.OrderSideBuy {
			c = inBuyLimits
			b.buyLimits.ReplaceOrInsert(entry)
		} else {
			c = inSellLimits
			b.sellLimits.ReplaceOrInsert(entry)
		}
	default: // stop, or stop_limit with the stop not yet triggered
		entry.Price = order.StopPrice
		if order.Side == domain.OrderSideBuy {
			c = inBuyStops
			b.buyStops.ReplaceOrInsert(entry)
		} else {
			c = inSellStops
			b.sellStops.ReplaceOrInsert(entry)
		}
	}

	b.index[order.OrderID] = c
	b.entries[order.OrderID] = entry
}

// Remove deletes an order from the book by ID. It is a no-op for
// unknown orders.
func (b *TriggerBook) Remove(orderID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove(orderID)
}

func (b *TriggerBook) remove(orderID string) {
	c, ok := b.index[orderID]
	if !ok {
		return
	}
	entry := b.entries[orderID]
	delete(b.index, orderID)
	delete(b.entries, orderID)

	switch c {
	case inBuyLimits:
		b.buyLimits.Delete(entry)
	case inSellLimits:
		b.sellLimits.Delete(entry)
	case inBuyStops:
		b.buyStops.Delete(entry)
	case inSellStops:
		b.sellStops.Delete(entry)
	case inMarkets:
		for i := range b.markets {
			if b.markets[i].OrderID == orderID {
				b.markets = append(b.markets[:i], b.markets[i+1:]...)
				break
			}
		}
	}
}

// Arm converts a stop_limit order whose stop condition has been met
// into a resting limit order: it moves the entry from the stop index
// to the limit index and marks the order as triggered.
func (b *TriggerBook) Arm(orderID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[orderID]
	if !ok || entry.Order.Type != domain.OrderTypeStopLimit || entry.Order.StopTriggered {
		return
	}
	b.remove(orderID)
	entry.Order.Mu.Lock()
	entry.Order.StopTriggered = true
	entry.Order.Mu.Unlock()
	b.add(entry.Order)
}

// Candidates returns the pending orders whose trigger condition holds
// at the given price: all market orders, limit orders on the right side
// of the price, and stop orders whose stop has been crossed. The result
// includes unarmed stop_limit orders whose stop condition holds; the
// matcher decides whether they also fill at this price.
func (b *TriggerBook) Candidates(price int64) []*domain.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*domain.Order
	for _, e := range b.markets {
		out = append(out, e.Order)
	}
	// Buy limits: limit >= price.
	b.buyLimits.Ascend(func(e bookEntry) bool {
		if e.Price < price {
			return false
		}
		out = append(out, e.Order)
		return true
	})
	// Sell limits: limit <= price.
	b.sellLimits.Ascend(func(e bookEntry) bool {
		if e.Price > price {
			return false
		}
		out = append(out, e.Order)
		return true
	})
	// Buy stops: stop <= price.
	b.buyStops.Ascend(func(e bookEntry) bool {
		if e.Price > price {
			return false
		}
		out = append(out, e.Order)
		return true
	})
	// Sell stops: stop >= price.
	b.sellStops.Ascend(func(e bookEntry) bool {
		if e.Price < price {
			return false
		}
		out = append(out, e.Order)
		return true
	})
	return out
}

// Len returns the number of orders resting on the book.
func (b *TriggerBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.index)
}

// BookManager is a thread-safe map of (exchange_id, symbol) → TriggerBook.
type BookManager struct {
	mu    sync.RWMutex
	books map[string]*TriggerBook
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*TriggerBook),
	}
}

// GetOrCreate returns the book for the given exchange and symbol,
// creating one if it doesn't already exist.
func (bm *BookManager) GetOrCreate(exchangeID, symbol string) *TriggerBook {
	key := exchangeID + "/" + symbol
	bm.mu.RLock()
	book, ok := bm.books[key]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[key]; ok {
		return book
	}
	book = NewTriggerBook(exchangeID, symbol)
	bm.books[key] = book
	return book
}
