package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/tradix-adapter/internal/execution"
	"github.com/Checker-Finance/tradix-adapter/internal/history"
)

// HistoryQuerier is the query surface exposed by the execution history store.
type HistoryQuerier interface {
	Query(ctx context.Context, startUTC, endUTC time.Time) ([]execution.Execution, error)
}

// ExecutionsResponse is the JSON body returned by the executions endpoint.
type ExecutionsResponse struct {
	Executions []execution.Execution `json:"executions"`
	Count      int                   `json:"count"`
}

// HistoryHandler serves execution history queries over HTTP.
type HistoryHandler struct {
	logger       *zap.Logger
	store        HistoryQuerier
	queryTimeout time.Duration
}

// NewHistoryHandler creates a new HistoryHandler. queryTimeout bounds the
// backfill round-trip to the broker per request.
func NewHistoryHandler(logger *zap.Logger, store HistoryQuerier, queryTimeout time.Duration) *HistoryHandler {
	if queryTimeout <= 0 {
		queryTimeout = 10 * time.Second
	}
	return &HistoryHandler{
		logger:       logger,
		store:        store,
		queryTimeout: queryTimeout,
	}
}

// GetExecutions handles GET /api/v1/executions?start=...&end=...
// Both bounds are required, RFC3339, and inclusive.
func (h *HistoryHandler) GetExecutions(c *fiber.Ctx) error {
	startParam := c.Query("start")
	endParam := c.Query("end")
	if startParam == "" || endParam == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "start and end query parameters are required (RFC3339)",
		})
	}

	start, err := time.Parse(time.RFC3339, startParam)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid start: " + err.Error()})
	}
	end, err := time.Parse(time.RFC3339, endParam)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid end: " + err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Context(), h.queryTimeout)
	defer cancel()

	execs, err := h.store.Query(ctx, start.UTC(), end.UTC())
	if err != nil {
		switch {
		case errors.Is(err, history.ErrInvalidRange):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, context.DeadlineExceeded):
			h.logger.Warn("api.history_query_timeout",
				zap.Time("start", start),
				zap.Time("end", end))
			return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{"error": "history query timed out"})
		case errors.Is(err, history.ErrBackfillUnavailable):
			h.logger.Error("api.history_backfill_unavailable", zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
		default:
			h.logger.Error("api.history_query_failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}

	// An empty interval is a valid, successful result.
	if execs == nil {
		execs = []execution.Execution{}
	}

	return c.JSON(ExecutionsResponse{
		Executions: execs,
		Count:      len(execs),
	})
}
