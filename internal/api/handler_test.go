package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/tradix-adapter/internal/execution"
	"github.com/Checker-Finance/tradix-adapter/internal/history"
)

type fakeQuerier struct {
	execs []execution.Execution
	err   error

	gotStart time.Time
	gotEnd   time.Time
}

func (f *fakeQuerier) Query(ctx context.Context, startUTC, endUTC time.Time) ([]execution.Execution, error) {
	f.gotStart = startUTC
	f.gotEnd = endUTC
	return f.execs, f.err
}

func newTestApp(q *fakeQuerier) *fiber.App {
	app := fiber.New()
	h := NewHistoryHandler(zap.NewNop(), q, time.Second)
	app.Get("/api/v1/executions", h.GetExecutions)
	return app
}

func doGet(t *testing.T, app *fiber.App, url string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestGetExecutions_OK(t *testing.T) {
	q := &fakeQuerier{execs: []execution.Execution{{
		ID:       "E1",
		OrderID:  "O1",
		Symbol:   "USDC/BRL",
		TimeUTC:  time.Date(2026, 3, 9, 17, 30, 5, 0, time.UTC),
		Quantity: decimal.NewFromInt(10000),
		Price:    decimal.RequireFromString("5.43"),
	}}}
	app := newTestApp(q)

	resp := doGet(t, app, "/api/v1/executions?start=2026-03-09T00:00:00Z&end=2026-03-10T00:00:00Z")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body ExecutionsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "E1", body.Executions[0].ID)

	// Bounds are forwarded in UTC.
	assert.Equal(t, time.UTC, q.gotStart.Location())
	assert.True(t, q.gotEnd.Equal(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
}

func TestGetExecutions_OffsetBoundsNormalized(t *testing.T) {
	q := &fakeQuerier{}
	app := newTestApp(q)

	resp := doGet(t, app, "/api/v1/executions?start=2026-03-09T00:00:00-03:00&end=2026-03-09T12:00:00-03:00")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, q.gotStart.Equal(time.Date(2026, 3, 9, 3, 0, 0, 0, time.UTC)))
	assert.True(t, q.gotEnd.Equal(time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)))
}

func TestGetExecutions_EmptyResultIsArray(t *testing.T) {
	app := newTestApp(&fakeQuerier{})

	resp := doGet(t, app, "/api/v1/executions?start=2026-03-09T00:00:00Z&end=2026-03-10T00:00:00Z")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.JSONEq(t, "[]", string(body["executions"]))
	assert.JSONEq(t, "0", string(body["count"]))
}

func TestGetExecutions_MissingParams(t *testing.T) {
	app := newTestApp(&fakeQuerier{})

	resp := doGet(t, app, "/api/v1/executions")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doGet(t, app, "/api/v1/executions?start=2026-03-09T00:00:00Z")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetExecutions_MalformedTimestamp(t *testing.T) {
	app := newTestApp(&fakeQuerier{})

	resp := doGet(t, app, "/api/v1/executions?start=yesterday&end=2026-03-10T00:00:00Z")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetExecutions_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid range", history.ErrInvalidRange, http.StatusBadRequest},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"backfill unavailable", history.ErrBackfillUnavailable, http.StatusBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(&fakeQuerier{err: tt.err})
			resp := doGet(t, app, "/api/v1/executions?start=2026-03-09T00:00:00Z&end=2026-03-10T00:00:00Z")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}
