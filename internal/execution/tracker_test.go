package execution

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/tradix-adapter/pkg/eventbus"
)

type captureSink struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	execs []Execution
}

func newCaptureSink() *captureSink {
	return &captureSink{ids: make(map[string]struct{})}
}

func (s *captureSink) Append(exec Execution) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[exec.ID]; ok {
		return false
	}
	s.ids[exec.ID] = struct{}{}
	s.execs = append(s.execs, exec)
	return true
}

func (s *captureSink) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.execs)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []OrderEvent
}

func (r *eventRecorder) attach(bus *eventbus.EventBus) {
	bus.Subscribe(OrdersStatusChangedEvent{}, func(event interface{}) {
		batch := event.(OrdersStatusChangedEvent)
		r.mu.Lock()
		r.events = append(r.events, batch.Events...)
		r.mu.Unlock()
	})
}

func (r *eventRecorder) all() []OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OrderEvent, len(r.events))
	copy(out, r.events)
	return out
}

func newTestTracker() (*Tracker, *captureSink, *eventRecorder) {
	bus := eventbus.New()
	sink := newCaptureSink()
	rec := &eventRecorder{}
	rec.attach(bus)
	return NewTracker(bus, sink, nil), sink, rec
}

func fill(orderID, execID string, qty int64) Execution {
	return Execution{
		ID:       execID,
		OrderID:  orderID,
		Symbol:   "USDC/BRL",
		TimeUTC:  time.Date(2026, 3, 9, 17, 30, 0, 0, time.UTC),
		Quantity: decimal.NewFromInt(qty),
		Price:    decimal.RequireFromString("5.43"),
	}
}

func TestTracker_PartialThenFullFill(t *testing.T) {
	tracker, sink, rec := newTestTracker()
	tracker.TrackOrder("O1", decimal.NewFromInt(25000))

	require.NoError(t, tracker.OnStatusChange("O1", StatusSubmitted))
	require.NoError(t, tracker.OnFill(fill("O1", "E1", 10000)))
	require.NoError(t, tracker.OnFill(fill("O1", "E2", 15000)))

	events := rec.all()
	require.Len(t, events, 3)

	assert.Equal(t, StatusSubmitted, events[0].Status)
	assert.Empty(t, events[0].ExecutionID)

	assert.Equal(t, StatusPartiallyFilled, events[1].Status)
	assert.Equal(t, "E1", events[1].ExecutionID)

	assert.Equal(t, StatusFilled, events[2].Status)
	assert.Equal(t, "E2", events[2].ExecutionID)

	assert.Equal(t, 2, sink.size())
}

func TestTracker_FillEventsAlwaysCarryExecutionID(t *testing.T) {
	tracker, _, rec := newTestTracker()
	tracker.TrackOrder("O1", decimal.NewFromInt(100))

	require.NoError(t, tracker.OnFill(fill("O1", "E1", 40)))
	require.NoError(t, tracker.OnFill(fill("O1", "E2", 60)))

	for _, ev := range rec.all() {
		assert.True(t, ev.Status.IsFill())
		assert.NotEmpty(t, ev.ExecutionID)
	}
}

func TestTracker_NonFillEventsNeverCarryExecutionID(t *testing.T) {
	tracker, sink, rec := newTestTracker()

	require.NoError(t, tracker.OnStatusChange("O1", StatusSubmitted))
	require.NoError(t, tracker.OnStatusChange("O1", StatusCanceled))

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, StatusSubmitted, events[0].Status)
	assert.Equal(t, StatusCanceled, events[1].Status)
	for _, ev := range events {
		assert.Empty(t, ev.ExecutionID)
	}

	// A submit/cancel cycle with no fill contributes nothing to history.
	assert.Equal(t, 0, sink.size())
}

func TestTracker_DuplicateFillSuppressed(t *testing.T) {
	tracker, sink, rec := newTestTracker()
	tracker.TrackOrder("O1", decimal.NewFromInt(25000))

	require.NoError(t, tracker.OnFill(fill("O1", "E1", 10000)))
	require.NoError(t, tracker.OnFill(fill("O1", "E2", 15000)))

	eventsBefore := len(rec.all())
	sizeBefore := sink.size()

	// Redelivery of an already processed notification.
	require.NoError(t, tracker.OnFill(fill("O1", "E2", 15000)))

	assert.Equal(t, eventsBefore, len(rec.all()))
	assert.Equal(t, sizeBefore, sink.size())
}

func TestTracker_DuplicateDoesNotCorruptFillProgress(t *testing.T) {
	tracker, _, rec := newTestTracker()
	tracker.TrackOrder("O1", decimal.NewFromInt(100))

	require.NoError(t, tracker.OnFill(fill("O1", "E1", 40)))
	require.NoError(t, tracker.OnFill(fill("O1", "E1", 40)))
	require.NoError(t, tracker.OnFill(fill("O1", "E2", 60)))

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, StatusPartiallyFilled, events[0].Status)
	assert.Equal(t, StatusFilled, events[1].Status)
}

func TestTracker_UnknownOrderQuantityStaysPartial(t *testing.T) {
	tracker, _, rec := newTestTracker()

	require.NoError(t, tracker.OnFill(fill("O9", "E1", 500)))

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, StatusPartiallyFilled, events[0].Status)
}

func TestTracker_MalformedFillRejected(t *testing.T) {
	tracker, sink, rec := newTestTracker()

	noID := fill("O1", "", 10)
	err := tracker.OnFill(noID)
	assert.ErrorIs(t, err, ErrMalformedReport)

	noOrder := fill("", "E1", 10)
	err = tracker.OnFill(noOrder)
	assert.ErrorIs(t, err, ErrMalformedReport)

	assert.Empty(t, rec.all())
	assert.Equal(t, 0, sink.size())
}

func TestTracker_StatusChangeValidation(t *testing.T) {
	tracker, _, _ := newTestTracker()

	assert.ErrorIs(t, tracker.OnStatusChange("", StatusSubmitted), ErrMalformedReport)
	assert.ErrorIs(t, tracker.OnStatusChange("O1", StatusFilled), ErrInvariantViolation)
	assert.ErrorIs(t, tracker.OnStatusChange("O1", StatusPartiallyFilled), ErrInvariantViolation)
}

func TestTracker_ConcurrentFillsForOneOrder(t *testing.T) {
	tracker, sink, rec := newTestTracker()
	tracker.TrackOrder("O1", decimal.NewFromInt(1000))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			exec := fill("O1", execID(n), 100)
			_ = tracker.OnFill(exec)
			// Every goroutine also redelivers its notification.
			_ = tracker.OnFill(exec)
		}(i)
	}
	wg.Wait()

	events := rec.all()
	assert.Len(t, events, 10)
	assert.Equal(t, 10, sink.size())

	filled := 0
	for _, ev := range events {
		if ev.Status == StatusFilled {
			filled++
		}
	}
	// Cumulative bookkeeping reaches the order quantity exactly once.
	assert.Equal(t, 1, filled)
	assert.Equal(t, StatusFilled, events[len(events)-1].Status)
}

func TestTracker_ConcurrentDistinctOrders(t *testing.T) {
	tracker, sink, _ := newTestTracker()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			orderID := "O" + execID(n)
			tracker.TrackOrder(orderID, decimal.NewFromInt(10))
			_ = tracker.OnFill(fill(orderID, "E-"+orderID, 10))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, sink.size())
	assert.Equal(t, 20, tracker.TrackedOrders())
}

func execID(n int) string {
	return string(rune('A' + n))
}
