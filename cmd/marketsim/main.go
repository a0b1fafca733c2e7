package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dverney/marketsim/internal/config"
	"github.com/dverney/marketsim/internal/engine"
	"github.com/dverney/marketsim/internal/handler"
	"github.com/dverney/marketsim/internal/service"
	"github.com/dverney/marketsim/internal/store"
	"github.com/dverney/marketsim/internal/store/postgres"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Optional .env for local development; ignored when absent.
	_ = godotenv.Load()

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Instantiate stores.
	exchangeStore := store.NewExchangeStore()
	orderStore := store.NewOrderStore()
	portfolioStore := store.NewPortfolioStore()
	marketData := store.NewMarketDataStore()
	fillJournal := store.NewFillStore()

	books := engine.NewBookManager()

	// Optional Postgres persistence: transactional fill commits, entity
	// archival, and state restore on startup. Without DATABASE_URL
	// everything runs in memory.
	var fills engine.FillStore = fillJournal
	var archive service.Archive
	var engineMarketData engine.MarketData = marketData
	var serviceMarketData service.MarketData = marketData
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.InitSchema(ctx); err != nil {
			logger.Error("failed to init schema", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := restoreState(ctx, pg, exchangeStore, portfolioStore, orderStore, marketData, books, logger); err != nil {
			logger.Error("failed to restore state", slog.String("error", err.Error()))
			os.Exit(1)
		}
		persisted := store.NewPersistedMarketData(marketData, pg, logger)
		engineMarketData = persisted
		serviceMarketData = persisted
		fills = pg
		archive = pg
		logger.Info("postgres persistence enabled")
	}

	// Engine.
	model := engine.NewPriceModel(engine.UniformNoise)
	ledger := engine.NewLedger(portfolioStore, fills)
	hub := handler.NewHub(logger)
	eng := engine.NewEngine(exchangeStore, books, model, ledger, engineMarketData, hub, cfg.PriceSeed, logger)
	eng.Start(ctx, exchangeStore.IDs())

	// Services.
	exchangeSvc := service.NewExchangeService(exchangeStore, serviceMarketData, eng, cfg.ExchangeDefaults, archive, logger)
	portfolioSvc := service.NewPortfolioService(portfolioStore, exchangeStore, archive, logger)
	orderSvc := service.NewOrderService(orderStore, portfolioStore, exchangeStore, books, archive, logger)

	// Router.
	router := handler.NewRouter(exchangeSvc, portfolioSvc, orderSvc, hub, logger)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, cancel context (stops all
	// exchange schedulers at their next tick boundary).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()

	logger.Info("server stopped")
}

// restoreState reloads exchanges, prices, portfolios, and open orders
// from Postgres into the in-memory stores, then rebuilds each trigger
// book from the open orders so schedulers resume where the last run
// stopped.
func restoreState(
	ctx context.Context,
	pg *postgres.Store,
	exchanges *store.ExchangeStore,
	portfolios *store.PortfolioStore,
	orders *store.OrderStore,
	marketData *store.MarketDataStore,
	books *engine.BookManager,
	logger *slog.Logger,
) error {
	exs, err := pg.LoadExchanges(ctx)
	if err != nil {
		return err
	}
	for _, e := range exs {
		if err := exchanges.Create(e); err != nil {
			return fmt.Errorf("restore exchange %s: %w", e.ExchangeID, err)
		}
	}

	states, err := pg.LoadSymbolStates(ctx)
	if err != nil {
		return err
	}
	for _, st := range states {
		marketData.SetSymbolState(st)
	}

	pfs, err := pg.LoadPortfolios(ctx)
	if err != nil {
		return err
	}
	for _, p := range pfs {
		portfolios.Create(p)
	}

	open, err := pg.LoadOpenOrders(ctx)
	if err != nil {
		return err
	}
	for _, o := range open {
		orders.Create(o)
	}
	for _, e := range exs {
		for _, symbol := range e.Symbols {
			book := books.GetOrCreate(e.ExchangeID, symbol)
			for _, o := range orders.LoadPendingOrders(e.ExchangeID, symbol) {
				book.Add(o)
			}
		}
	}

	logger.Info("state restored",
		slog.Int("exchanges", len(exs)),
		slog.Int("portfolios", len(pfs)),
		slog.Int("open_orders", len(open)),
	)
	return nil
}
