package tradix

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/tradix-adapter/internal/execution"
)

// brokerTimeLayout is the naive venue-local timestamp Tradix puts on reports.
const brokerTimeLayout = "2006-01-02T15:04:05"

// ParseBrokerTime converts a venue-local timestamp plus UTC offset into UTC.
// Every time value crossing the boundary goes through here before any
// comparison or storage.
func ParseBrokerTime(value string, utcOffsetMin int) (time.Time, error) {
	loc := time.FixedZone("venue", utcOffsetMin*60)
	t, err := time.ParseInLocation(brokerTimeLayout, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid broker time %q: %w", value, err)
	}
	return t.UTC(), nil
}

// ToExecution normalizes a raw execution report into the internal record.
// Validation of required identifiers is the tracker's responsibility; this
// only fails on unparseable values.
func ToExecution(r ExecutionReport) (execution.Execution, error) {
	at, err := ParseBrokerTime(r.Time, r.UTCOffsetMin)
	if err != nil {
		return execution.Execution{}, err
	}

	qty, err := decimal.NewFromString(r.Quantity)
	if err != nil {
		return execution.Execution{}, fmt.Errorf("invalid quantity %q for execution %s: %w", r.Quantity, r.ExecutionID, err)
	}

	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return execution.Execution{}, fmt.Errorf("invalid price %q for execution %s: %w", r.Price, r.ExecutionID, err)
	}

	return execution.Execution{
		ID:       r.ExecutionID,
		OrderID:  r.OrderRef,
		Symbol:   r.Symbol,
		TimeUTC:  at,
		Quantity: qty,
		Price:    price,
	}, nil
}

// NormalizeStatus maps a Tradix order state name to the internal status.
func NormalizeStatus(state string) execution.OrderStatus {
	switch state {
	case OrderStateWorking:
		return execution.StatusSubmitted
	case OrderStatePartial:
		return execution.StatusPartiallyFilled
	case OrderStateFilled:
		return execution.StatusFilled
	case OrderStateCanceled:
		return execution.StatusCanceled
	case OrderStateRejected:
		return execution.StatusInvalid
	default:
		return execution.StatusNone
	}
}
