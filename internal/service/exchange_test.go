package service

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dverney/marketsim/internal/domain"
	"github.com/dverney/marketsim/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDefaults() domain.ExchangeConfig {
	return domain.ExchangeConfig{
		TickInterval:        time.Second,
		Volatility:          0.02,
		MarketEngineEnabled: true,
		CommissionBps:       10,
		BaseVolume:          10000,
	}
}

// recordingStarter records StartExchange calls.
type recordingStarter struct {
	started []string
}

func (r *recordingStarter) StartExchange(exchangeID string) {
	r.started = append(r.started, exchangeID)
}

type exchangeFixture struct {
	svc        *ExchangeService
	store      *store.ExchangeStore
	marketData *store.MarketDataStore
	starter    *recordingStarter
}

func newExchangeFixture() *exchangeFixture {
	exchanges := store.NewExchangeStore()
	marketData := store.NewMarketDataStore()
	starter := &recordingStarter{}
	svc := NewExchangeService(exchanges, marketData, starter, testDefaults(), nil, testLogger())
	return &exchangeFixture{svc: svc, store: exchanges, marketData: marketData, starter: starter}
}

func validCreateRequest() CreateExchangeRequest {
	return CreateExchangeRequest{
		Name: "NYSE Sim",
		Symbols: []SymbolInput{
			{Symbol: "AAPL", InitialPrice: 150.00},
			{Symbol: "MSFT", InitialPrice: 300.00},
		},
	}
}

func TestExchangeService_Create(t *testing.T) {
	fx := newExchangeFixture()

	e, err := fx.svc.Create(validCreateRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.ExchangeID == "" {
		t.Errorf("expected a generated exchange ID")
	}
	if e.Config.Volatility != 0.02 {
		t.Errorf("expected defaults applied, got %+v", e.Config)
	}

	// Prices are seeded before the first tick can fire.
	price, ok := fx.marketData.LastPrice(e.ExchangeID, "AAPL")
	if !ok || price != 15000 {
		t.Errorf("expected AAPL seeded at 15000 cents, got %d", price)
	}

	if len(fx.starter.started) != 1 || fx.starter.started[0] != e.ExchangeID {
		t.Errorf("expected the scheduler to be started for the new exchange")
	}
}

func TestExchangeService_CreateWithOverrides(t *testing.T) {
	fx := newExchangeFixture()
	req := validCreateRequest()
	tick := int64(500)
	vol := 0.1
	margin := true
	credit := 5000.00
	req.TickIntervalMs = &tick
	req.Volatility = &vol
	req.AllowMargin = &margin
	req.CreditLimit = &credit

	e, err := fx.svc.Create(req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.Config.TickInterval != 500*time.Millisecond || e.Config.Volatility != 0.1 {
		t.Errorf("overrides not applied: %+v", e.Config)
	}
	if !e.Config.AllowMargin || e.Config.CreditLimit != 500_000 {
		t.Errorf("margin overrides not applied: %+v", e.Config)
	}
}

func TestExchangeService_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateExchangeRequest)
	}{
		{"empty name", func(r *CreateExchangeRequest) { r.Name = "" }},
		{"name with bad characters", func(r *CreateExchangeRequest) { r.Name = "bad/name" }},
		{"no symbols", func(r *CreateExchangeRequest) { r.Symbols = nil }},
		{"lowercase symbol", func(r *CreateExchangeRequest) { r.Symbols[0].Symbol = "aapl" }},
		{"duplicate symbol", func(r *CreateExchangeRequest) { r.Symbols[1].Symbol = "AAPL" }},
		{"zero initial price", func(r *CreateExchangeRequest) { r.Symbols[0].InitialPrice = 0 }},
		{"sub-cent initial price", func(r *CreateExchangeRequest) { r.Symbols[0].InitialPrice = 150.005 }},
		{"out-of-bounds volatility", func(r *CreateExchangeRequest) { v := 5.0; r.Volatility = &v }},
		{"out-of-bounds tick interval", func(r *CreateExchangeRequest) { ms := int64(1); r.TickIntervalMs = &ms }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newExchangeFixture()
			req := validCreateRequest()
			tt.mutate(&req)

			_, err := fx.svc.Create(req)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected a ValidationError, got %v", err)
			}
			if len(fx.starter.started) != 0 {
				t.Errorf("no scheduler may start for a rejected request")
			}
		})
	}
}

func TestExchangeService_UpdateConfig(t *testing.T) {
	fx := newExchangeFixture()
	e, err := fx.svc.Create(validCreateRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	enabled := false
	vol := 0.5
	updated, err := fx.svc.UpdateConfig(e.ExchangeID, UpdateConfigRequest{
		EngineEnabled: &enabled,
		Volatility:    &vol,
	})
	if err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	if updated.Config.MarketEngineEnabled || updated.Config.Volatility != 0.5 {
		t.Errorf("update not applied: %+v", updated.Config)
	}
	// Untouched fields keep their value.
	if updated.Config.TickInterval != time.Second || updated.Config.CommissionBps != 10 {
		t.Errorf("partial update must keep other fields: %+v", updated.Config)
	}
}

func TestExchangeService_UpdateConfigInvalid(t *testing.T) {
	fx := newExchangeFixture()
	e, _ := fx.svc.Create(validCreateRequest())

	vol := 50.0
	_, err := fx.svc.UpdateConfig(e.ExchangeID, UpdateConfigRequest{Volatility: &vol})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected a ValidationError, got %v", err)
	}

	// The stored configuration is unchanged.
	got, _ := fx.svc.Get(e.ExchangeID)
	if got.Config.Volatility != 0.02 {
		t.Errorf("rejected update must not change the configuration")
	}
}

func TestExchangeService_UpdateConfigNotFound(t *testing.T) {
	fx := newExchangeFixture()
	vol := 0.1
	_, err := fx.svc.UpdateConfig("missing", UpdateConfigRequest{Volatility: &vol})
	if !errors.Is(err, domain.ErrExchangeNotFound) {
		t.Fatalf("expected ErrExchangeNotFound, got %v", err)
	}
}

func TestExchangeService_ListPrices(t *testing.T) {
	fx := newExchangeFixture()
	e, _ := fx.svc.Create(validCreateRequest())

	states, err := fx.svc.ListPrices(e.ExchangeID)
	if err != nil {
		t.Fatalf("ListPrices: %v", err)
	}
	if len(states) != 2 {
		t.Errorf("expected 2 seeded symbols, got %d", len(states))
	}

	if _, err := fx.svc.ListPrices("missing"); !errors.Is(err, domain.ErrExchangeNotFound) {
		t.Fatalf("expected ErrExchangeNotFound, got %v", err)
	}
}
