package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/tradix-adapter/internal/execution"
)

// Store defines the contract for caching and persisting executions.
type Store interface {
	CacheExecution(ctx context.Context, exec execution.Execution) error
	RecordExecution(ctx context.Context, exec execution.Execution) error
	GetExecution(ctx context.Context, executionID string) (*execution.Execution, error)
	GetExecutionsBetween(ctx context.Context, startUTC, endUTC time.Time) ([]execution.Execution, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

type HybridStore struct {
	redis    *redis.Client
	PG       *pgxpool.Pool
	cacheTTL time.Duration
	logger   *zap.Logger
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis-first, Postgres-backed execution store. An empty
// pgURL disables durable persistence; writes then degrade to cache-only.
func NewHybrid(redisAddr string, redisDB int, pgURL string, pgPoolConfig PGPoolConfig, cacheTTL time.Duration, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   redisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &HybridStore{redis: rdb, PG: pgPool, cacheTTL: cacheTTL, logger: logger}, nil
}

func executionKey(executionID string) string {
	return fmt.Sprintf("execution:%s", executionID)
}

// CacheExecution writes the execution to Redis with NX semantics so that a
// concurrent duplicate write cannot overwrite the first-seen record.
func (s *HybridStore) CacheExecution(ctx context.Context, exec execution.Execution) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return err
	}
	return s.redis.SetNX(ctx, executionKey(exec.ID), data, s.cacheTTL).Err()
}

// RecordExecution appends an immutable row into ledger.execution_event.
// Re-inserting a known execution id is a no-op.
func (s *HybridStore) RecordExecution(ctx context.Context, exec execution.Execution) error {
	if s.PG == nil {
		return nil
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO ledger.execution_event (
			execution_id, order_id, symbol, quantity, price, executed_at, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (execution_id) DO NOTHING
	`, exec.ID, exec.OrderID, exec.Symbol,
		exec.Quantity.String(), exec.Price.String(), exec.TimeUTC)
	if err != nil {
		s.logger.Error("store.pg.insert_execution_failed",
			zap.String("execution_id", exec.ID),
			zap.Error(err))
	}
	return err
}

// GetExecution returns a cached execution, or nil when unknown.
func (s *HybridStore) GetExecution(ctx context.Context, executionID string) (*execution.Execution, error) {
	data, err := s.redis.Get(ctx, executionKey(executionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var exec execution.Execution
	if err := json.Unmarshal(data, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

// GetExecutionsBetween reads durably persisted executions for warm-starting
// the in-memory history index after a restart.
func (s *HybridStore) GetExecutionsBetween(ctx context.Context, startUTC, endUTC time.Time) ([]execution.Execution, error) {
	if s.PG == nil {
		return nil, fmt.Errorf("postgres unavailable")
	}
	rows, err := s.PG.Query(ctx, `
		SELECT execution_id, order_id, symbol, quantity::text, price::text, executed_at
		FROM ledger.execution_event
		WHERE executed_at >= $1 AND executed_at <= $2
		ORDER BY executed_at ASC, execution_id ASC;
	`, startUTC.UTC(), endUTC.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []execution.Execution
	for rows.Next() {
		var e execution.Execution
		var qty, price string
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Symbol, &qty, &price, &e.TimeUTC); err != nil {
			return nil, err
		}
		if e.Quantity, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("corrupt quantity for execution %s: %w", e.ID, err)
		}
		if e.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("corrupt price for execution %s: %w", e.ID, err)
		}
		e.TimeUTC = e.TimeUTC.UTC()
		results = append(results, e)
	}
	return results, rows.Err()
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
