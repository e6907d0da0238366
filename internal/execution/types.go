package execution

import (
	"time"

	"github.com/shopspring/decimal"
)

// Execution is the broker's canonical record of one fill. It is immutable
// once observed: two records with the same ID describe the same fill.
type Execution struct {
	ID       string          `json:"execution_id"`
	OrderID  string          `json:"order_id"`
	Symbol   string          `json:"symbol"`
	TimeUTC  time.Time       `json:"time_utc"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// OrderStatus represents an order lifecycle state
type OrderStatus int

const (
	StatusNone OrderStatus = iota
	StatusSubmitted
	StatusPartiallyFilled
	StatusFilled
	StatusCanceled
	StatusInvalid
)

// OrderStatusFromString converts a string to OrderStatus
func OrderStatusFromString(s string) OrderStatus {
	switch s {
	case "Submitted":
		return StatusSubmitted
	case "PartiallyFilled":
		return StatusPartiallyFilled
	case "Filled":
		return StatusFilled
	case "Canceled":
		return StatusCanceled
	case "Invalid":
		return StatusInvalid
	default:
		return StatusNone
	}
}

// String returns the string representation
func (s OrderStatus) String() string {
	switch s {
	case StatusSubmitted:
		return "Submitted"
	case StatusPartiallyFilled:
		return "PartiallyFilled"
	case StatusFilled:
		return "Filled"
	case StatusCanceled:
		return "Canceled"
	case StatusInvalid:
		return "Invalid"
	default:
		return "None"
	}
}

// IsFill reports whether the status carries an execution identifier.
func (s OrderStatus) IsFill() bool {
	return s == StatusFilled || s == StatusPartiallyFilled
}

// OrderEvent is a point-in-time status transition for an order.
// ExecutionID is non-empty exactly when Status is a fill status; FillPrice
// and FillQuantity are meaningful only alongside a non-empty ExecutionID.
type OrderEvent struct {
	OrderID      string          `json:"order_id"`
	Status       OrderStatus     `json:"-"`
	StatusName   string          `json:"status"`
	ExecutionID  string          `json:"execution_id,omitempty"`
	FillQuantity decimal.Decimal `json:"fill_quantity,omitempty"`
	FillPrice    decimal.Decimal `json:"fill_price,omitempty"`
	TimeUTC      time.Time       `json:"time_utc"`
}

// NewFillEvent builds an OrderEvent for a fill transition. It returns
// ErrInvariantViolation when status is not a fill status or the execution
// carries no identifier.
func NewFillEvent(status OrderStatus, exec Execution) (OrderEvent, error) {
	if !status.IsFill() {
		return OrderEvent{}, ErrInvariantViolation
	}
	if exec.ID == "" {
		return OrderEvent{}, ErrInvariantViolation
	}
	return OrderEvent{
		OrderID:      exec.OrderID,
		Status:       status,
		StatusName:   status.String(),
		ExecutionID:  exec.ID,
		FillQuantity: exec.Quantity,
		FillPrice:    exec.Price,
		TimeUTC:      exec.TimeUTC,
	}, nil
}

// NewStatusEvent builds an OrderEvent for a non-fill transition. The resulting
// event never carries an execution identifier.
func NewStatusEvent(orderID string, status OrderStatus, at time.Time) (OrderEvent, error) {
	if status.IsFill() {
		return OrderEvent{}, ErrInvariantViolation
	}
	return OrderEvent{
		OrderID:    orderID,
		Status:     status,
		StatusName: status.String(),
		TimeUTC:    at,
	}, nil
}

// OrdersStatusChangedEvent batches one or more order events for subscribers.
type OrdersStatusChangedEvent struct {
	Events []OrderEvent `json:"events"`
}
