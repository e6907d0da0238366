package order

import "github.com/shopspring/decimal"

// SubmitOrderCommand is an engine-side instruction to place an order
type SubmitOrderCommand struct {
	ClientOrderRef string          `json:"clientOrderRef"`
	Symbol         string          `json:"symbol"`
	Side           string          `json:"side"`
	Type           string          `json:"type"`
	Quantity       decimal.Decimal `json:"quantity"`
	Price          decimal.Decimal `json:"price"`
	TimeInForce    string          `json:"timeInForce,omitempty"`
}

// CancelOrderCommand is an engine-side instruction to cancel an order
type CancelOrderCommand struct {
	OrderRef string `json:"orderRef"`
}
