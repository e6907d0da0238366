package execution

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/tradix-adapter/internal/metrics"
	"github.com/Checker-Finance/tradix-adapter/pkg/eventbus"
)

// Sink receives every newly observed execution. Append must be safe for
// concurrent use and must report whether the execution was actually inserted.
type Sink interface {
	Append(exec Execution) bool
}

// progress is the per-order fill bookkeeping that survives across broker
// callbacks. Its mutex serializes all transitions for one order; orders
// never share a progress record, so different orders proceed concurrently.
// Records are retained for the process lifetime so late duplicate
// redeliveries stay suppressed even after terminal states.
type progress struct {
	mu       sync.Mutex
	quantity decimal.Decimal
	filled   decimal.Decimal
	seen     map[string]struct{}
}

// Tracker converts raw, possibly duplicated or reordered broker fill
// notifications into exactly-once order event deliveries.
type Tracker struct {
	bus    *eventbus.EventBus
	sink   Sink
	logger *zap.Logger

	mu     sync.Mutex
	orders map[string]*progress
}

// NewTracker creates a new execution tracker publishing to the given bus and
// appending every accepted execution to sink.
func NewTracker(bus *eventbus.EventBus, sink Sink, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		bus:    bus,
		sink:   sink,
		logger: logger,
		orders: make(map[string]*progress),
	}
}

func (t *Tracker) progressFor(orderID string) *progress {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.orders[orderID]
	if !ok {
		p = &progress{seen: make(map[string]struct{})}
		t.orders[orderID] = p
	}
	return p
}

// TrackOrder registers the total quantity of an order so that fill
// notifications can distinguish a partial fill from the final one.
func (t *Tracker) TrackOrder(orderID string, quantity decimal.Decimal) {
	p := t.progressFor(orderID)
	p.mu.Lock()
	p.quantity = quantity
	p.mu.Unlock()
}

// OnFill processes one broker fill notification. Duplicate execution
// identifiers for the same order are discarded without any externally
// visible effect. New identifiers are appended to the sink and published as
// a PartiallyFilled or Filled event carrying the identifier.
func (t *Tracker) OnFill(exec Execution) error {
	if exec.ID == "" {
		metrics.IncReportRejected("missing_execution_id")
		return fmt.Errorf("%w: missing execution id", ErrMalformedReport)
	}
	if exec.OrderID == "" {
		metrics.IncReportRejected("missing_order_ref")
		return fmt.Errorf("%w: missing order reference for execution %s", ErrMalformedReport, exec.ID)
	}

	p := t.progressFor(exec.OrderID)
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, dup := p.seen[exec.ID]; dup {
		t.logger.Debug("tracker.duplicate_suppressed",
			zap.String("order_id", exec.OrderID),
			zap.String("execution_id", exec.ID))
		metrics.IncDuplicateSuppressed()
		return nil
	}
	p.seen[exec.ID] = struct{}{}
	p.filled = p.filled.Add(exec.Quantity.Abs())

	status := StatusPartiallyFilled
	if p.quantity.IsPositive() && p.filled.GreaterThanOrEqual(p.quantity) {
		status = StatusFilled
	}

	t.sink.Append(exec)

	event, err := NewFillEvent(status, exec)
	if err != nil {
		return err
	}

	t.logger.Info("tracker.fill_processed",
		zap.String("order_id", exec.OrderID),
		zap.String("execution_id", exec.ID),
		zap.String("status", status.String()),
		zap.String("quantity", exec.Quantity.String()),
		zap.String("price", exec.Price.String()))
	metrics.IncOrderEvent(status.String())

	// Synchronous dispatch under the per-order lock keeps events for one
	// order in broker-reported order.
	t.bus.PublishSync(OrdersStatusChangedEvent{Events: []OrderEvent{event}})
	return nil
}

// OnStatusChange processes a non-fill status transition reported by the
// broker. The emitted event never carries an execution identifier; fill
// statuses must arrive through OnFill.
func (t *Tracker) OnStatusChange(orderID string, status OrderStatus) error {
	if orderID == "" {
		metrics.IncReportRejected("missing_order_ref")
		return fmt.Errorf("%w: missing order reference", ErrMalformedReport)
	}
	if status.IsFill() {
		return fmt.Errorf("%w: status %s requires a fill notification", ErrInvariantViolation, status)
	}

	p := t.progressFor(orderID)
	p.mu.Lock()
	defer p.mu.Unlock()

	event, err := NewStatusEvent(orderID, status, time.Now().UTC())
	if err != nil {
		return err
	}

	t.logger.Info("tracker.status_change",
		zap.String("order_id", orderID),
		zap.String("status", status.String()))
	metrics.IncOrderEvent(status.String())

	t.bus.PublishSync(OrdersStatusChangedEvent{Events: []OrderEvent{event}})
	return nil
}

// TrackedOrders returns the number of orders with fill progress state.
func (t *Tracker) TrackedOrders() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.orders)
}
