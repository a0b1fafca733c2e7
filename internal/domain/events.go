package domain

import "time"

// PriceUpdateEvent is the wire record of one symbol's price advance
// during a tick. It is a derived, immutable snapshot; the market-data
// store keeps only the latest value as authoritative state.
type PriceUpdateEvent struct {
	ExchangeID    string  `json:"exchange_id"`
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	Timestamp     string  `json:"timestamp"` // RFC 3339
}

// OrderFillEvent is the wire record of an order leaving the open state
// during a tick, whether filled or rejected.
type OrderFillEvent struct {
	OrderID        string  `json:"order_id"`
	ExchangeID     string  `json:"exchange_id"`
	PortfolioID    string  `json:"portfolio_id"`
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	OrderType      string  `json:"order_type"`
	Quantity       int64   `json:"quantity"`
	FilledQuantity int64   `json:"filled_quantity"`
	FillPrice      float64 `json:"fill_price"`
	Commission     float64 `json:"commission"`
	Status         string  `json:"status"`
	RejectReason   string  `json:"reject_reason,omitempty"`
	Timestamp      string  `json:"timestamp"` // RFC 3339
}

// EventTimestamp formats a time for event payloads.
func EventTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
