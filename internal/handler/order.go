package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dverney/marketsim/internal/domain"
	"github.com/dverney/marketsim/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// submitOrderRequest is the JSON request body for POST /orders.
type submitOrderRequest struct {
	ExchangeID  string   `json:"exchange_id"`
	PortfolioID string   `json:"portfolio_id"`
	Symbol      string   `json:"symbol"`
	Side        string   `json:"side"`
	OrderType   string   `json:"order_type"`
	Quantity    int64    `json:"quantity"`
	Price       *float64 `json:"price"`
	StopPrice   *float64 `json:"stop_price"`
}

// orderResponse is the JSON representation of an order. Nullable
// fields use pointers and are omitted when not applicable to the type.
type orderResponse struct {
	OrderID        string   `json:"order_id"`
	ExchangeID     string   `json:"exchange_id"`
	PortfolioID    string   `json:"portfolio_id"`
	Symbol         string   `json:"symbol"`
	Side           string   `json:"side"`
	OrderType      string   `json:"order_type"`
	Quantity       int64    `json:"quantity"`
	Price          *float64 `json:"price,omitempty"`
	StopPrice      *float64 `json:"stop_price,omitempty"`
	StopTriggered  bool     `json:"stop_triggered,omitempty"`
	FilledQuantity int64    `json:"filled_quantity"`
	Status         string   `json:"status"`
	RejectReason   string   `json:"reject_reason,omitempty"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	// Snapshot under the order lock; a tick or cancel may be moving the
	// order to a terminal state concurrently.
	o.Mu.Lock()
	defer o.Mu.Unlock()

	resp := orderResponse{
		OrderID:        o.OrderID,
		ExchangeID:     o.ExchangeID,
		PortfolioID:    o.PortfolioID,
		Symbol:         o.Symbol,
		Side:           string(o.Side),
		OrderType:      string(o.Type),
		Quantity:       o.Quantity,
		StopTriggered:  o.StopTriggered,
		FilledQuantity: o.FilledQuantity,
		Status:         string(o.Status),
		RejectReason:   o.RejectReason,
		CreatedAt:      domain.EventTimestamp(o.CreatedAt),
		UpdatedAt:      domain.EventTimestamp(o.UpdatedAt),
	}
	if o.Type == domain.OrderTypeLimit || o.Type == domain.OrderTypeStopLimit {
		price := domain.CentsToDollars(o.LimitPrice)
		resp.Price = &price
	}
	if o.Type == domain.OrderTypeStop || o.Type == domain.OrderTypeStopLimit {
		stop := domain.CentsToDollars(o.StopPrice)
		resp.StopPrice = &stop
	}
	return resp
}

// Submit handles POST /orders.
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orderSvc.Submit(service.SubmitOrderRequest{
		ExchangeID:  req.ExchangeID,
		PortfolioID: req.PortfolioID,
		Symbol:      req.Symbol,
		Side:        domain.OrderSide(req.Side),
		Type:        domain.OrderType(req.OrderType),
		Quantity:    req.Quantity,
		Price:       req.Price,
		StopPrice:   req.StopPrice,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, toOrderResponse(order))
}

// Get handles GET /orders/{order_id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.Get(chi.URLParam(r, "order_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

// Cancel handles DELETE /orders/{order_id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.Cancel(chi.URLParam(r, "order_id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toOrderResponse(order))
}
