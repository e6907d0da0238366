package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/tradix-adapter/internal/execution"
	"github.com/Checker-Finance/tradix-adapter/internal/metrics"
)

var (
	// ErrInvalidRange marks a query whose start is after its end.
	ErrInvalidRange = errors.New("history query start must not be after end")

	// ErrBackfillUnavailable marks a query that could not be served because
	// the broker's history API failed. Queries never silently fall back to
	// a partial local result.
	ErrBackfillUnavailable = errors.New("history backfill unavailable")
)

// Backfiller replays historical executions from the broker for a UTC range.
type Backfiller interface {
	FetchRange(ctx context.Context, startUTC, endUTC time.Time) ([]execution.Execution, error)
}

// Persistence is the optional write-through layer behind the in-memory
// index. Failures here are logged, not surfaced: the index alone carries the
// consistency guarantee between the live stream and queries.
type Persistence interface {
	CacheExecution(ctx context.Context, exec execution.Execution) error
	RecordExecution(ctx context.Context, exec execution.Execution) error
}

type interval struct {
	start time.Time
	end   time.Time
}

// Store is a time-indexed, append-only record of every execution observed,
// either live from the gateway or replayed from the broker's history API.
type Store struct {
	backfill Backfiller
	persist  Persistence
	logger   *zap.Logger

	mu      sync.RWMutex
	byID    map[string]struct{}
	index   []execution.Execution // sorted by TimeUTC asc, then ID
	covered []interval            // merged ranges already backfilled, sorted
}

// New creates a Store. backfill and persist may be nil; without a backfiller
// every query range is treated as already covered by local observation.
func New(backfill Backfiller, persist Persistence, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		backfill: backfill,
		persist:  persist,
		logger:   logger,
		byID:     make(map[string]struct{}),
	}
}

// Append inserts an execution if its identifier is new and reports whether
// an insert happened. Concurrent appends of the same identifier produce
// exactly one entry.
func (s *Store) Append(exec execution.Execution) bool {
	exec.TimeUTC = exec.TimeUTC.UTC()

	s.mu.Lock()
	if _, ok := s.byID[exec.ID]; ok {
		s.mu.Unlock()
		return false
	}
	s.byID[exec.ID] = struct{}{}
	s.insertSorted(exec)
	s.mu.Unlock()

	if s.persist != nil {
		go s.writeThrough(exec)
	}
	return true
}

// insertSorted keeps the index ordered by TimeUTC ascending, ID as tiebreak.
// Caller holds s.mu.
func (s *Store) insertSorted(exec execution.Execution) {
	i := sort.Search(len(s.index), func(i int) bool {
		e := s.index[i]
		if !e.TimeUTC.Equal(exec.TimeUTC) {
			return e.TimeUTC.After(exec.TimeUTC)
		}
		return e.ID >= exec.ID
	})
	s.index = append(s.index, execution.Execution{})
	copy(s.index[i+1:], s.index[i:])
	s.index[i] = exec
}

func (s *Store) writeThrough(exec execution.Execution) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.persist.CacheExecution(ctx, exec); err != nil {
		s.logger.Warn("history.cache_write_failed",
			zap.String("execution_id", exec.ID),
			zap.Error(err))
	}
	if err := s.persist.RecordExecution(ctx, exec); err != nil {
		s.logger.Warn("history.record_write_failed",
			zap.String("execution_id", exec.ID),
			zap.Error(err))
	}
}

// Len returns the number of executions in the index.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// Contains reports whether an execution identifier has been observed.
func (s *Store) Contains(executionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[executionID]
	return ok
}

// Query returns every execution whose TimeUTC falls in [startUTC, endUTC],
// both ends inclusive, sorted by TimeUTC ascending. Sub-ranges not yet
// observed locally are backfilled from the broker first; if that fails the
// query fails with ErrBackfillUnavailable (or the context error on timeout)
// rather than returning a silently partial result. Executions appended by a
// backfill that later fails are kept, so a retry reuses the completed work.
func (s *Store) Query(ctx context.Context, startUTC, endUTC time.Time) ([]execution.Execution, error) {
	start := time.Now()

	startUTC = startUTC.UTC()
	endUTC = endUTC.UTC()
	if startUTC.After(endUTC) {
		metrics.ObserveDuration(metrics.HistoryQueryDuration, start, "invalid")
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange,
			startUTC.Format(time.RFC3339), endUTC.Format(time.RFC3339))
	}

	if err := s.ensureCovered(ctx, startUTC, endUTC); err != nil {
		metrics.ObserveDuration(metrics.HistoryQueryDuration, start, "error")
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []execution.Execution
	for _, e := range s.index {
		if e.TimeUTC.Before(startUTC) {
			continue
		}
		if e.TimeUTC.After(endUTC) {
			break
		}
		out = append(out, e)
	}

	metrics.ObserveDuration(metrics.HistoryQueryDuration, start, "ok")
	return out, nil
}

// ensureCovered backfills every gap of [startUTC, endUTC] that has not been
// replayed from the broker yet. Each completed gap is marked covered as soon
// as its executions are appended, independent of later gaps failing.
func (s *Store) ensureCovered(ctx context.Context, startUTC, endUTC time.Time) error {
	if s.backfill == nil {
		return nil
	}

	for _, gap := range s.gaps(startUTC, endUTC) {
		fetchStart := time.Now()
		execs, err := s.backfill.FetchRange(ctx, gap.start, gap.end)
		if err != nil {
			metrics.IncBackfill("error")
			metrics.ObserveDuration(metrics.BackfillDuration, fetchStart, "error")
			if ctx.Err() != nil {
				return fmt.Errorf("history backfill timed out: %w", ctx.Err())
			}
			return fmt.Errorf("%w: %v", ErrBackfillUnavailable, err)
		}
		metrics.IncBackfill("ok")
		metrics.ObserveDuration(metrics.BackfillDuration, fetchStart, "ok")

		for _, e := range execs {
			s.Append(e)
		}
		s.markCovered(gap)

		s.logger.Info("history.backfill_complete",
			zap.Time("start", gap.start),
			zap.Time("end", gap.end),
			zap.Int("executions", len(execs)))
	}
	return nil
}

// gaps returns the sub-ranges of [start, end] not yet covered by prior
// backfills, in ascending order.
func (s *Store) gaps(start, end time.Time) []interval {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor := start
	var out []interval
	for _, c := range s.covered {
		if c.end.Before(cursor) {
			continue
		}
		if c.start.After(end) {
			break
		}
		if c.start.After(cursor) {
			out = append(out, interval{start: cursor, end: c.start})
		}
		if c.end.After(cursor) {
			cursor = c.end
		}
		if !cursor.Before(end) {
			return out
		}
	}
	if cursor.Before(end) || (cursor.Equal(start) && start.Equal(end)) {
		out = append(out, interval{start: cursor, end: end})
	}
	return out
}

// markCovered records iv as replayed, merging overlapping or adjacent ranges.
func (s *Store) markCovered(iv interval) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]interval, 0, len(s.covered)+1)
	placed := false
	for _, c := range s.covered {
		switch {
		case c.end.Before(iv.start):
			merged = append(merged, c)
		case c.start.After(iv.end):
			if !placed {
				merged = append(merged, iv)
				placed = true
			}
			merged = append(merged, c)
		default:
			// Overlapping or touching: absorb into iv.
			if c.start.Before(iv.start) {
				iv.start = c.start
			}
			if c.end.After(iv.end) {
				iv.end = c.end
			}
		}
	}
	if !placed {
		merged = append(merged, iv)
	}
	s.covered = merged
}
