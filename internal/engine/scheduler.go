package engine

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/dverney/marketsim/internal/domain"
)

// ConfigSource supplies the configuration snapshot a tick runs under.
type ConfigSource interface {
	// GetConfiguration returns one consistent snapshot of the exchange's
	// configuration and active symbols.
	GetConfiguration(exchangeID string) (domain.ExchangeConfig, []string, error)
}

// MarketData is the engine's view of symbol price state: the latest
// price is read to seed a scheduler and written after every tick.
type MarketData interface {
	LastPrice(exchangeID, symbol string) (int64, bool)
	SetSymbolState(st domain.SymbolState)
}

// Publisher fans price and fill events out to subscribers. Delivery is
// fire-and-forget; the engine never depends on it succeeding.
type Publisher interface {
	PublishPriceUpdate(ev domain.PriceUpdateEvent)
	PublishOrderFill(ev domain.OrderFillEvent)
}

// Scheduler drives the market engine for a single exchange: on each
// firing it re-reads the exchange configuration, advances every
// symbol's price, matches pending orders against the new prices, and
// applies the resulting fills through the ledger.
//
// One goroutine owns a Scheduler, so ticks for an exchange are
// strictly sequential: a firing never starts before the previous one
// has finished committing. Exchanges never share a Scheduler or any
// mutable state, so a failure in one cannot corrupt another.
type Scheduler struct {
	exchangeID string
	configs    ConfigSource
	books      *BookManager
	model      *PriceModel
	matcher    *Matcher
	ledger     *Ledger
	marketData MarketData
	publisher  Publisher
	rng        *rand.Rand
	logger     *slog.Logger

	interval   time.Duration
	lastPrices map[string]int64 // symbol → price; owned by this scheduler only
}

// NewScheduler creates a scheduler for one exchange.
func NewScheduler(
	exchangeID string,
	configs ConfigSource,
	books *BookManager,
	model *PriceModel,
	ledger *Ledger,
	marketData MarketData,
	publisher Publisher,
	rng *rand.Rand,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		exchangeID: exchangeID,
		configs:    configs,
		books:      books,
		model:      model,
		matcher:    NewMatcher(),
		ledger:     ledger,
		marketData: marketData,
		publisher:  publisher,
		rng:        rng,
		logger:     logger,
		interval:   time.Second,
		lastPrices: make(map[string]int64),
	}
}

// Run ticks the exchange until ctx is cancelled. The timer is re-armed
// after each tick with the interval from that tick's configuration
// snapshot, so interval changes take effect at the next firing.
func (s *Scheduler) Run(ctx context.Context) {
	if cfg, _, err := s.configs.GetConfiguration(s.exchangeID); err == nil {
		s.interval = cfg.TickInterval
	}

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.tick(ctx)
			timer.Reset(s.interval)
		}
	}
}

// tick executes one scheduled firing. Failures are contained at the
// smallest scope: a symbol or order error is logged and skipped, never
// aborting the rest of the tick.
func (s *Scheduler) tick(ctx context.Context) {
	cfg, symbols, err := s.configs.GetConfiguration(s.exchangeID)
	if err != nil {
		// Retried on the next cycle with the previous interval.
		s.logger.Warn("config unavailable, skipping tick",
			slog.String("exchange_id", s.exchangeID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.interval = cfg.TickInterval

	if !cfg.MarketEngineEnabled {
		return
	}

	for _, symbol := range symbols {
		s.tickSymbol(ctx, cfg, symbol)
	}
}

// tickSymbol advances one symbol's price and settles the orders that
// trigger against it.
func (s *Scheduler) tickSymbol(ctx context.Context, cfg domain.ExchangeConfig, symbol string) {
	prev, ok := s.lastPrices[symbol]
	if !ok {
		prev, ok = s.marketData.LastPrice(s.exchangeID, symbol)
		if !ok {
			s.logger.Warn("no price state for symbol, skipping",
				slog.String("exchange_id", s.exchangeID),
				slog.String("symbol", symbol),
			)
			return
		}
	}

	pt := s.model.Next(prev, cfg.Volatility, cfg.BaseVolume, s.rng)
	now := time.Now()
	s.lastPrices[symbol] = pt.Price
	s.marketData.SetSymbolState(domain.SymbolState{
		ExchangeID: s.exchangeID,
		Symbol:     symbol,
		LastPrice:  pt.Price,
		LastVolume: pt.Volume,
		UpdatedAt:  now,
	})

	book := s.books.GetOrCreate(s.exchangeID, symbol)
	candidates := book.Candidates(pt.Price)
	byID := make(map[string]*domain.Order, len(candidates))
	for _, o := range candidates {
		byID[o.OrderID] = o
	}

	res := s.matcher.Match(pt.Price, candidates)
	for _, o := range res.Armed {
		book.Arm(o.OrderID)
	}
	for _, instr := range res.Fills {
		s.applyFill(ctx, cfg, book, byID[instr.OrderID], instr)
	}

	s.publisher.PublishPriceUpdate(domain.PriceUpdateEvent{
		ExchangeID:    s.exchangeID,
		Symbol:        symbol,
		Price:         domain.CentsToDollars(pt.Price),
		Change:        domain.CentsToDollars(pt.Change),
		ChangePercent: pt.ChangePercent,
		Volume:        pt.Volume,
		Timestamp:     domain.EventTimestamp(now),
	})
}

// applyFill runs one instruction through the ledger and reconciles the
// book with the outcome. A commit failure leaves the order on the book
// so a later tick retries it; the ledger's idempotence makes the retry
// safe.
func (s *Scheduler) applyFill(ctx context.Context, cfg domain.ExchangeConfig, book *TriggerBook, order *domain.Order, instr FillInstruction) {
	if order == nil {
		return
	}

	fill, err := s.ledger.Apply(ctx, cfg, order, instr)
	switch {
	case err == nil && fill == nil:
		// Already terminal; drop any stale book entry.
		book.Remove(order.OrderID)
		return
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInsufficientPosition):
		book.Remove(order.OrderID)
		s.logger.Info("order rejected",
			slog.String("exchange_id", s.exchangeID),
			slog.String("order_id", order.OrderID),
			slog.String("reason", fill.RejectReason),
		)
	case err != nil:
		s.logger.Error("fill not committed, will retry",
			slog.String("exchange_id", s.exchangeID),
			slog.String("order_id", order.OrderID),
			slog.String("error", err.Error()),
		)
		return
	default:
		book.Remove(order.OrderID)
	}

	s.publisher.PublishOrderFill(domain.OrderFillEvent{
		OrderID:        order.OrderID,
		ExchangeID:     order.ExchangeID,
		PortfolioID:    order.PortfolioID,
		Symbol:         order.Symbol,
		Side:           string(order.Side),
		OrderType:      string(order.Type),
		Quantity:       order.Quantity,
		FilledQuantity: order.FilledQuantity,
		FillPrice:      domain.CentsToDollars(fill.FillPrice),
		Commission:     domain.CentsToDollars(fill.Commission),
		Status:         string(order.Status),
		RejectReason:   order.RejectReason,
		Timestamp:      domain.EventTimestamp(fill.ExecutedAt),
	})
}

// Engine owns one scheduler goroutine per exchange. Schedulers share
// the read-only collaborators (config source, ledger, publisher) but
// never any mutable per-exchange state.
type Engine struct {
	configs    ConfigSource
	books      *BookManager
	model      *PriceModel
	ledger     *Ledger
	marketData MarketData
	publisher  Publisher
	logger     *slog.Logger
	seed       int64

	mu      sync.Mutex
	ctx     context.Context
	running map[string]bool
}

// NewEngine creates the market engine. seed derives each exchange's rng;
// pass 0 to derive from the current time.
func NewEngine(
	configs ConfigSource,
	books *BookManager,
	model *PriceModel,
	ledger *Ledger,
	marketData MarketData,
	publisher Publisher,
	seed int64,
	logger *slog.Logger,
) *Engine {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Engine{
		configs:    configs,
		books:      books,
		model:      model,
		ledger:     ledger,
		marketData: marketData,
		publisher:  publisher,
		logger:     logger,
		seed:       seed,
		running:    make(map[string]bool),
	}
}

// Start launches a scheduler for each of the given exchanges. All
// schedulers stop when ctx is cancelled.
func (e *Engine) Start(ctx context.Context, exchangeIDs []string) {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()

	for _, id := range exchangeIDs {
		e.StartExchange(id)
	}
}

// StartExchange launches a scheduler for one exchange. It is a no-op
// if the exchange is already running or Start has not been called.
func (e *Engine) StartExchange(exchangeID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctx == nil || e.running[exchangeID] {
		return
	}
	e.running[exchangeID] = true

	s := NewScheduler(
		exchangeID,
		e.configs,
		e.books,
		e.model,
		e.ledger,
		e.marketData,
		e.publisher,
		rand.New(rand.NewSource(e.exchangeSeed(exchangeID))),
		e.logger,
	)
	go s.Run(e.ctx)
}

// exchangeSeed derives a stable per-exchange rng seed so independent
// exchanges do not share a random sequence.
func (e *Engine) exchangeSeed(exchangeID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(exchangeID))
	return e.seed ^ int64(h.Sum64())
}
