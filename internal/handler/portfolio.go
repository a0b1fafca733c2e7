package handler

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/dverney/marketsim/internal/domain"
	"github.com/dverney/marketsim/internal/service"
)

// PortfolioHandler handles HTTP requests for portfolio endpoints.
type PortfolioHandler struct {
	portfolioSvc *service.PortfolioService
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(portfolioSvc *service.PortfolioService) *PortfolioHandler {
	return &PortfolioHandler{portfolioSvc: portfolioSvc}
}

// positionInput is one position in the create request.
type positionInput struct {
	Symbol   string  `json:"symbol"`
	Quantity int64   `json:"quantity"`
	AvgCost  float64 `json:"avg_cost"`
}

// createPortfolioRequest is the JSON request body for POST /portfolios.
type createPortfolioRequest struct {
	ExchangeID       string          `json:"exchange_id"`
	InitialCash      float64         `json:"initial_cash"`
	InitialPositions []positionInput `json:"initial_positions"`
}

// positionResponse is one position in the portfolio response.
type positionResponse struct {
	Symbol   string  `json:"symbol"`
	Quantity int64   `json:"quantity"`
	AvgCost  float64 `json:"avg_cost"`
}

// portfolioResponse is the JSON representation of a portfolio.
type portfolioResponse struct {
	PortfolioID string             `json:"portfolio_id"`
	ExchangeID  string             `json:"exchange_id"`
	Cash        float64            `json:"cash"`
	Positions   []positionResponse `json:"positions"`
	CreatedAt   string             `json:"created_at"`
}

func toPortfolioResponse(p *domain.Portfolio) portfolioResponse {
	p.Mu.Lock()
	defer p.Mu.Unlock()

	positions := make([]positionResponse, 0, len(p.Positions))
	for symbol, pos := range p.Positions {
		positions = append(positions, positionResponse{
			Symbol:   symbol,
			Quantity: pos.Quantity,
			AvgCost:  domain.CentsToDollars(pos.AvgCost),
		})
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})

	return portfolioResponse{
		PortfolioID: p.PortfolioID,
		ExchangeID:  p.ExchangeID,
		Cash:        domain.CentsToDollars(p.Cash),
		Positions:   positions,
		CreatedAt:   domain.EventTimestamp(p.CreatedAt),
	}
}

// Create handles POST /portfolios.
func (h *PortfolioHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPortfolioRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	positions := make([]service.PositionInput, 0, len(req.InitialPositions))
	for _, in := range req.InitialPositions {
		positions = append(positions, service.PositionInput{
			Symbol:   in.Symbol,
			Quantity: in.Quantity,
			AvgCost:  in.AvgCost,
		})
	}

	portfolio, err := h.portfolioSvc.Create(service.CreatePortfolioRequest{
		ExchangeID:       req.ExchangeID,
		InitialCash:      req.InitialCash,
		InitialPositions: positions,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toPortfolioResponse(portfolio))
}

// Get handles GET /portfolios/{portfolio_id}.
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	portfolio, err := h.portfolioSvc.Get(chi.URLParam(r, "portfolio_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toPortfolioResponse(portfolio))
}
