package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/tradix-adapter/internal/execution"
)

func newTestStore(t *testing.T) (*HybridStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := &HybridStore{
		redis:    redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		cacheTTL: time.Hour,
		logger:   zap.NewNop(),
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func sampleExecution() execution.Execution {
	return execution.Execution{
		ID:       "E1",
		OrderID:  "O1",
		Symbol:   "USDC/BRL",
		TimeUTC:  time.Date(2026, 3, 9, 17, 30, 5, 0, time.UTC),
		Quantity: decimal.NewFromInt(10000),
		Price:    decimal.RequireFromString("5.4321"),
	}
}

func TestHybridStore_CacheRoundtrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	want := sampleExecution()

	require.NoError(t, s.CacheExecution(ctx, want))

	got, err := s.GetExecution(ctx, "E1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.OrderID, got.OrderID)
	assert.True(t, got.TimeUTC.Equal(want.TimeUTC))
	assert.True(t, got.Quantity.Equal(want.Quantity))
	assert.True(t, got.Price.Equal(want.Price))
}

func TestHybridStore_CacheDoesNotOverwrite(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	first := sampleExecution()
	require.NoError(t, s.CacheExecution(ctx, first))

	// A duplicate delivery with drifted fields must not replace the original.
	dup := first
	dup.Price = decimal.RequireFromString("9.99")
	require.NoError(t, s.CacheExecution(ctx, dup))

	got, err := s.GetExecution(ctx, "E1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Price.Equal(first.Price))
}

func TestHybridStore_CacheTTL(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CacheExecution(ctx, sampleExecution()))
	mr.FastForward(2 * time.Hour)

	got, err := s.GetExecution(ctx, "E1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHybridStore_GetExecutionMiss(t *testing.T) {
	s, _ := newTestStore(t)

	got, err := s.GetExecution(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestHybridStore_GetExecutionCorruptPayload(t *testing.T) {
	s, mr := newTestStore(t)
	require.NoError(t, mr.Set(executionKey("E1"), "{not json"))

	_, err := s.GetExecution(context.Background(), "E1")
	assert.Error(t, err)
}

func TestHybridStore_NoPostgres(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// Writes degrade to cache-only.
	assert.NoError(t, s.RecordExecution(ctx, sampleExecution()))

	// Reads cannot be served without the ledger.
	_, err := s.GetExecutionsBetween(ctx, time.Now().Add(-time.Hour), time.Now())
	assert.Error(t, err)
}

func TestHybridStore_HealthCheck(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	assert.NoError(t, s.HealthCheck(ctx))

	mr.Close()
	assert.Error(t, s.HealthCheck(ctx))
}

func TestExecutionKey(t *testing.T) {
	assert.Equal(t, "execution:E1", executionKey("E1"))
}
