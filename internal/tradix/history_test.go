package tradix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func historyServer(t *testing.T, pages map[string]HistoryPage) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/executions", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.NotEmpty(t, r.URL.Query().Get("from"))
		assert.NotEmpty(t, r.URL.Query().Get("to"))

		page, ok := pages[r.URL.Query().Get("cursor")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))
}

func TestHistoryClient_FetchRangeFollowsCursors(t *testing.T) {
	report := func(id string) ExecutionReport {
		return ExecutionReport{
			OrderRef:     "O1",
			ExecutionID:  id,
			Symbol:       "USDC/BRL",
			Time:         "2026-03-09T14:30:05",
			UTCOffsetMin: -180,
			Quantity:     "100",
			Price:        "5.43",
		}
	}

	srv := historyServer(t, map[string]HistoryPage{
		"":   {Executions: []ExecutionReport{report("E2"), report("E1")}, NextCursor: "p2"},
		"p2": {Executions: []ExecutionReport{report("E3")}},
	})
	defer srv.Close()

	client := NewHistoryClient(srv.URL, "secret", nil, zap.NewNop())
	got, err := client.FetchRange(context.Background(),
		time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// Wire order is preserved; sorting is the store's job.
	require.Len(t, got, 3)
	assert.Equal(t, "E2", got[0].ID)
	assert.Equal(t, "E1", got[1].ID)
	assert.Equal(t, "E3", got[2].ID)
	assert.True(t, got[0].TimeUTC.Equal(time.Date(2026, 3, 9, 17, 30, 5, 0, time.UTC)))
}

func TestHistoryClient_FetchRangeEmpty(t *testing.T) {
	srv := historyServer(t, map[string]HistoryPage{"": {}})
	defer srv.Close()

	client := NewHistoryClient(srv.URL, "secret", nil, zap.NewNop())
	got, err := client.FetchRange(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestHistoryClient_FetchRangeInvalidRecordFailsRange(t *testing.T) {
	bad := ExecutionReport{
		OrderRef:    "O1",
		ExecutionID: "E1",
		Time:        "garbage",
		Quantity:    "100",
		Price:       "5.43",
	}
	srv := historyServer(t, map[string]HistoryPage{"": {Executions: []ExecutionReport{bad}}})
	defer srv.Close()

	client := NewHistoryClient(srv.URL, "secret", nil, zap.NewNop())
	_, err := client.FetchRange(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E1")
}

func TestHistoryClient_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "forbidden", Message: "bad api key"})
	}))
	defer srv.Close()

	client := NewHistoryClient(srv.URL, "secret", nil, zap.NewNop())
	_, err := client.FetchRange(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad api key")
	assert.Equal(t, 1, calls)
}

func TestHistoryClient_ServerErrorRetriedThenFails(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewHistoryClient(srv.URL, "secret", nil, zap.NewNop())
	_, err := client.FetchRange(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}
