package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	zerrors "github.com/canonica-labs/zircon/internal/errors"
)

// MemoryHistory is an in-memory HistoryRepository. It backs dry runs and tests.
type MemoryHistory struct {
	mu      sync.RWMutex
	records map[string]time.Time

	// test helper for simulating an unreachable store
	failure bool
}

// NewMemoryHistory creates an empty in-memory history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{records: make(map[string]time.Time)}
}

// checkContext verifies the context is not cancelled or timed out.
func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// SetFailure makes every subsequent call fail with a database error.
func (h *MemoryHistory) SetFailure(fail bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failure = fail
}

func (h *MemoryHistory) unavailable() error {
	if !h.failure {
		return nil
	}
	return &zerrors.ZirconError{
		Code:    zerrors.CodeDatabase,
		Message: "seed history unavailable (simulated)",
	}
}

// Applied reports whether name was recorded.
func (h *MemoryHistory) Applied(ctx context.Context, name string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if err := h.unavailable(); err != nil {
		return false, err
	}
	_, ok := h.records[name]
	return ok, nil
}

// Record marks name as completed, keeping the first completion time.
func (h *MemoryHistory) Record(ctx context.Context, name string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.unavailable(); err != nil {
		return err
	}
	if _, ok := h.records[name]; !ok {
		h.records[name] = time.Now().UTC()
	}
	return nil
}

// List returns the records ordered by completion time.
func (h *MemoryHistory) List(ctx context.Context) ([]SeedRecord, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if err := h.unavailable(); err != nil {
		return nil, err
	}
	records := make([]SeedRecord, 0, len(h.records))
	for name, at := range h.records {
		records = append(records, SeedRecord{Name: name, AppliedAt: at})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].AppliedAt.Equal(records[j].AppliedAt) {
			return records[i].Name < records[j].Name
		}
		return records[i].AppliedAt.Before(records[j].AppliedAt)
	})
	return records, nil
}
