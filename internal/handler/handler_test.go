package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dverney/marketsim/internal/domain"
	"github.com/dverney/marketsim/internal/engine"
	"github.com/dverney/marketsim/internal/service"
	"github.com/dverney/marketsim/internal/store"
)

// noopStarter satisfies service.EngineStarter without starting anything.
type noopStarter struct{}

func (noopStarter) StartExchange(string) {}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exchanges := store.NewExchangeStore()
	portfolios := store.NewPortfolioStore()
	orders := store.NewOrderStore()
	marketData := store.NewMarketDataStore()
	books := engine.NewBookManager()

	defaults := domain.ExchangeConfig{
		TickInterval:        time.Second,
		Volatility:          0.02,
		MarketEngineEnabled: true,
		CommissionBps:       10,
		BaseVolume:          10000,
	}

	exchangeSvc := service.NewExchangeService(exchanges, marketData, noopStarter{}, defaults, nil, logger)
	portfolioSvc := service.NewPortfolioService(portfolios, exchanges, nil, logger)
	orderSvc := service.NewOrderService(orders, portfolios, exchanges, books, nil, logger)
	hub := NewHub(logger)

	srv := httptest.NewServer(NewRouter(exchangeSvc, portfolioSvc, orderSvc, hub, logger))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && err != io.EOF {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func createExchange(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/exchanges", map[string]any{
		"name": "NYSE Sim",
		"symbols": []map[string]any{
			{"symbol": "AAPL", "initial_price": 150.00},
			{"symbol": "MSFT", "initial_price": 300.00},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create exchange: status %d, body %v", resp.StatusCode, body)
	}
	return body["exchange_id"].(string)
}

func createPortfolio(t *testing.T, srv *httptest.Server, exchangeID string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/portfolios", map[string]any{
		"exchange_id":  exchangeID,
		"initial_cash": 100000.00,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create portfolio: status %d, body %v", resp.StatusCode, body)
	}
	return body["portfolio_id"].(string)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %v", resp.StatusCode, body)
	}
}

func TestCreateAndGetExchange(t *testing.T) {
	srv := newTestServer(t)
	id := createExchange(t, srv)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/exchanges/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get exchange: status %d", resp.StatusCode)
	}
	if body["name"] != "NYSE Sim" {
		t.Errorf("unexpected name: %v", body["name"])
	}
	if body["tick_interval_ms"].(float64) != 1000 {
		t.Errorf("unexpected tick interval: %v", body["tick_interval_ms"])
	}
	symbols := body["symbols"].([]any)
	if len(symbols) != 2 {
		t.Errorf("expected 2 symbols, got %v", symbols)
	}
}

func TestGetExchangeNotFound(t *testing.T) {
	srv := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/exchanges/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if body["error"] != "exchange_not_found" {
		t.Errorf("unexpected error code: %v", body["error"])
	}
}

func TestCreateExchangeValidation(t *testing.T) {
	srv := newTestServer(t)
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/exchanges", map[string]any{
		"name":    "NYSE Sim",
		"symbols": []map[string]any{},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body["error"] != "validation_error" {
		t.Errorf("unexpected error code: %v", body["error"])
	}
}

func TestContentTypeRequired(t *testing.T) {
	srv := newTestServer(t)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/exchanges", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "text/plain")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong content type, got %d", resp.StatusCode)
	}
}

func TestUnknownJSONFieldRejected(t *testing.T) {
	srv := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/exchanges", map[string]any{
		"name":       "NYSE Sim",
		"symbols":    []map[string]any{{"symbol": "AAPL", "initial_price": 150.00}},
		"unexpected": true,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.StatusCode)
	}
}

func TestUpdateExchangeConfig(t *testing.T) {
	srv := newTestServer(t)
	id := createExchange(t, srv)

	resp, body := doJSON(t, http.MethodPatch, srv.URL+"/exchanges/"+id+"/config", map[string]any{
		"volatility":            0.5,
		"market_engine_enabled": false,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("patch config: status %d, body %v", resp.StatusCode, body)
	}
	if body["volatility"].(float64) != 0.5 {
		t.Errorf("volatility not updated: %v", body["volatility"])
	}
	if body["market_engine_enabled"].(bool) {
		t.Errorf("engine enabled flag not updated")
	}
	// Untouched fields keep their value.
	if body["commission_bps"].(float64) != 10 {
		t.Errorf("commission must be unchanged: %v", body["commission_bps"])
	}
}

func TestListPrices(t *testing.T) {
	srv := newTestServer(t)
	id := createExchange(t, srv)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/exchanges/"+id+"/prices", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list prices: status %d", resp.StatusCode)
	}
	prices := body["prices"].([]any)
	if len(prices) != 2 {
		t.Fatalf("expected 2 prices, got %d", len(prices))
	}
	first := prices[0].(map[string]any)
	if first["last_price"].(float64) <= 0 {
		t.Errorf("expected a positive seeded price: %v", first)
	}
}

func TestCreateAndGetPortfolio(t *testing.T) {
	srv := newTestServer(t)
	exchangeID := createExchange(t, srv)
	portfolioID := createPortfolio(t, srv, exchangeID)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/portfolios/"+portfolioID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get portfolio: status %d", resp.StatusCode)
	}
	if body["cash"].(float64) != 100000.00 {
		t.Errorf("unexpected cash: %v", body["cash"])
	}
	if body["exchange_id"] != exchangeID {
		t.Errorf("unexpected exchange_id: %v", body["exchange_id"])
	}
}

func TestSubmitGetCancelOrder(t *testing.T) {
	srv := newTestServer(t)
	exchangeID := createExchange(t, srv)
	portfolioID := createPortfolio(t, srv, exchangeID)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/orders", map[string]any{
		"exchange_id":  exchangeID,
		"portfolio_id": portfolioID,
		"symbol":       "AAPL",
		"side":         "buy",
		"order_type":   "limit",
		"quantity":     100,
		"price":        151.00,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit order: status %d, body %v", resp.StatusCode, body)
	}
	orderID := body["order_id"].(string)
	if body["status"] != "pending" {
		t.Errorf("expected pending, got %v", body["status"])
	}
	if body["price"].(float64) != 151.00 {
		t.Errorf("unexpected price: %v", body["price"])
	}
	if _, present := body["stop_price"]; present {
		t.Errorf("stop_price must be omitted for limit orders")
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/orders/"+orderID, nil)
	if resp.StatusCode != http.StatusOK || body["order_id"] != orderID {
		t.Fatalf("get order: status %d, body %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/orders/"+orderID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel order: status %d", resp.StatusCode)
	}
	if body["status"] != "cancelled" {
		t.Errorf("expected cancelled, got %v", body["status"])
	}

	// A second cancel conflicts.
	resp, body = doJSON(t, http.MethodDelete, srv.URL+"/orders/"+orderID, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for double cancel, got %d", resp.StatusCode)
	}
	if body["error"] != "order_not_cancellable" {
		t.Errorf("unexpected error code: %v", body["error"])
	}
}

func TestSubmitOrderUnlistedSymbol(t *testing.T) {
	srv := newTestServer(t)
	exchangeID := createExchange(t, srv)
	portfolioID := createPortfolio(t, srv, exchangeID)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/orders", map[string]any{
		"exchange_id":  exchangeID,
		"portfolio_id": portfolioID,
		"symbol":       "GOOG",
		"side":         "buy",
		"order_type":   "market",
		"quantity":     10,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body["error"] != "symbol_not_listed" {
		t.Errorf("unexpected error code: %v", body["error"])
	}
}

func TestSubmitOrderValidationMessages(t *testing.T) {
	srv := newTestServer(t)
	exchangeID := createExchange(t, srv)
	portfolioID := createPortfolio(t, srv, exchangeID)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"unknown type", map[string]any{"order_type": "trailing", "side": "buy", "quantity": 1}},
		{"limit without price", map[string]any{"order_type": "limit", "side": "buy", "quantity": 1}},
		{"zero quantity", map[string]any{"order_type": "market", "side": "buy", "quantity": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := map[string]any{
				"exchange_id":  exchangeID,
				"portfolio_id": portfolioID,
				"symbol":       "AAPL",
			}
			for k, v := range tt.body {
				payload[k] = v
			}
			resp, body := doJSON(t, http.MethodPost, srv.URL+"/orders", payload)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d (%v)", resp.StatusCode, body)
			}
			if body["error"] != "validation_error" {
				t.Errorf("unexpected error code: %v", body["error"])
			}
		})
	}
}

func TestOrdersAreIsolatedPerExchange(t *testing.T) {
	srv := newTestServer(t)
	first := createExchange(t, srv)
	second := createExchange(t, srv)
	portfolioOnFirst := createPortfolio(t, srv, first)

	// A portfolio from one exchange cannot trade on another.
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/orders", map[string]any{
		"exchange_id":  second,
		"portfolio_id": portfolioOnFirst,
		"symbol":       "AAPL",
		"side":         "buy",
		"order_type":   "market",
		"quantity":     1,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
