package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dverney/marketsim/internal/domain"
	"github.com/dverney/marketsim/internal/service"
)

// ExchangeHandler handles HTTP requests for exchange endpoints.
type ExchangeHandler struct {
	exchangeSvc *service.ExchangeService
}

// NewExchangeHandler creates a new ExchangeHandler.
func NewExchangeHandler(exchangeSvc *service.ExchangeService) *ExchangeHandler {
	return &ExchangeHandler{exchangeSvc: exchangeSvc}
}

// symbolInput is one symbol seed in the create request.
type symbolInput struct {
	Symbol       string  `json:"symbol"`
	InitialPrice float64 `json:"initial_price"`
}

// createExchangeRequest is the JSON request body for POST /exchanges.
type createExchangeRequest struct {
	Name           string        `json:"name"`
	Symbols        []symbolInput `json:"symbols"`
	TickIntervalMs *int64        `json:"tick_interval_ms"`
	Volatility     *float64      `json:"volatility"`
	EngineEnabled  *bool         `json:"market_engine_enabled"`
	AllowMargin    *bool         `json:"allow_margin"`
	CommissionBps  *int64        `json:"commission_bps"`
	CreditLimit    *float64      `json:"credit_limit"`
	BaseVolume     *int64        `json:"base_volume"`
}

// updateConfigRequest is the JSON request body for PATCH
// /exchanges/{exchange_id}/config.
type updateConfigRequest struct {
	TickIntervalMs *int64   `json:"tick_interval_ms"`
	Volatility     *float64 `json:"volatility"`
	EngineEnabled  *bool    `json:"market_engine_enabled"`
	AllowMargin    *bool    `json:"allow_margin"`
	CommissionBps  *int64   `json:"commission_bps"`
	CreditLimit    *float64 `json:"credit_limit"`
	BaseVolume     *int64   `json:"base_volume"`
}

// exchangeResponse is the JSON representation of an exchange.
type exchangeResponse struct {
	ExchangeID     string   `json:"exchange_id"`
	Name           string   `json:"name"`
	Symbols        []string `json:"symbols"`
	TickIntervalMs int64    `json:"tick_interval_ms"`
	Volatility     float64  `json:"volatility"`
	EngineEnabled  bool     `json:"market_engine_enabled"`
	AllowMargin    bool     `json:"allow_margin"`
	CommissionBps  int64    `json:"commission_bps"`
	CreditLimit    float64  `json:"credit_limit"`
	BaseVolume     int64    `json:"base_volume"`
	CreatedAt      string   `json:"created_at"`
}

// symbolStateResponse is one entry in the price snapshot response.
type symbolStateResponse struct {
	Symbol     string  `json:"symbol"`
	LastPrice  float64 `json:"last_price"`
	LastVolume int64   `json:"last_volume"`
	UpdatedAt  string  `json:"updated_at"`
}

func toExchangeResponse(e *domain.Exchange) exchangeResponse {
	return exchangeResponse{
		ExchangeID:     e.ExchangeID,
		Name:           e.Name,
		Symbols:        e.Symbols,
		TickIntervalMs: e.Config.TickInterval.Milliseconds(),
		Volatility:     e.Config.Volatility,
		EngineEnabled:  e.Config.MarketEngineEnabled,
		AllowMargin:    e.Config.AllowMargin,
		CommissionBps:  e.Config.CommissionBps,
		CreditLimit:    domain.CentsToDollars(e.Config.CreditLimit),
		BaseVolume:     e.Config.BaseVolume,
		CreatedAt:      domain.EventTimestamp(e.CreatedAt),
	}
}

// Create handles POST /exchanges.
func (h *ExchangeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createExchangeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	symbols := make([]service.SymbolInput, 0, len(req.Symbols))
	for _, s := range req.Symbols {
		symbols = append(symbols, service.SymbolInput{
			Symbol:       s.Symbol,
			InitialPrice: s.InitialPrice,
		})
	}

	exchange, err := h.exchangeSvc.Create(service.CreateExchangeRequest{
		Name:           req.Name,
		Symbols:        symbols,
		TickIntervalMs: req.TickIntervalMs,
		Volatility:     req.Volatility,
		EngineEnabled:  req.EngineEnabled,
		AllowMargin:    req.AllowMargin,
		CommissionBps:  req.CommissionBps,
		CreditLimit:    req.CreditLimit,
		BaseVolume:     req.BaseVolume,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, toExchangeResponse(exchange))
}

// Get handles GET /exchanges/{exchange_id}.
func (h *ExchangeHandler) Get(w http.ResponseWriter, r *http.Request) {
	exchange, err := h.exchangeSvc.Get(chi.URLParam(r, "exchange_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toExchangeResponse(exchange))
}

// UpdateConfig handles PATCH /exchanges/{exchange_id}/config.
func (h *ExchangeHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req updateConfigRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	exchange, err := h.exchangeSvc.UpdateConfig(chi.URLParam(r, "exchange_id"), service.UpdateConfigRequest{
		TickIntervalMs: req.TickIntervalMs,
		Volatility:     req.Volatility,
		EngineEnabled:  req.EngineEnabled,
		AllowMargin:    req.AllowMargin,
		CommissionBps:  req.CommissionBps,
		CreditLimit:    req.CreditLimit,
		BaseVolume:     req.BaseVolume,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toExchangeResponse(exchange))
}

// ListPrices handles GET /exchanges/{exchange_id}/prices.
func (h *ExchangeHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	states, err := h.exchangeSvc.ListPrices(chi.URLParam(r, "exchange_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	out := make([]symbolStateResponse, 0, len(states))
	for _, st := range states {
		out = append(out, symbolStateResponse{
			Symbol:     st.Symbol,
			LastPrice:  domain.CentsToDollars(st.LastPrice),
			LastVolume: st.LastVolume,
			UpdatedAt:  domain.EventTimestamp(st.UpdatedAt),
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"prices": out})
}

// writeServiceError maps domain errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		WriteError(w, http.StatusBadRequest, "validation_error", ve.Message)
	case errors.Is(err, domain.ErrExchangeNotFound),
		errors.Is(err, domain.ErrPortfolioNotFound),
		errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, err.Error(), "resource not found")
	case errors.Is(err, domain.ErrSymbolNotListed):
		WriteError(w, http.StatusBadRequest, err.Error(), "symbol is not listed on this exchange")
	case errors.Is(err, domain.ErrOrderNotCancellable):
		WriteError(w, http.StatusConflict, err.Error(), "order is already in a terminal state")
	case errors.Is(err, domain.ErrExchangeAlreadyExists):
		WriteError(w, http.StatusConflict, err.Error(), "exchange already exists")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
