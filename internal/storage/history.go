package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/canonica-labs/zircon/internal/database"
	zerrors "github.com/canonica-labs/zircon/internal/errors"
)

// DefaultHistoryTable records seeders that run once per database.
const DefaultHistoryTable = "seed_history"

// SeedRecord is one completed one-time seeder.
type SeedRecord struct {
	Name      string
	AppliedAt time.Time
}

// HistoryRepository persists which one-time seeders have completed.
// Implementations must be safe for concurrent use and honor ctx.
type HistoryRepository interface {
	// Applied reports whether the named seeder has completed before.
	Applied(ctx context.Context, name string) (bool, error)

	// Record marks the named seeder as completed. Recording twice is not an error.
	Record(ctx context.Context, name string) error

	// List returns every record ordered by completion time.
	// Returns an empty slice (not nil) when nothing has run.
	List(ctx context.Context) ([]SeedRecord, error)
}

// SQLHistory implements HistoryRepository over a SQL table that is created
// on first use.
type SQLHistory struct {
	db    *database.DB
	table string

	mu      sync.Mutex
	ensured bool
}

// NewSQLHistory creates a seed history stored in table.
func NewSQLHistory(db *database.DB, table string) (*SQLHistory, error) {
	if table == "" {
		table = DefaultHistoryTable
	}
	if err := database.ValidateIdentifier(table, "seeding.historyTable"); err != nil {
		return nil, zerrors.NewConfigError("seeding.historyTable", err.Error())
	}
	return &SQLHistory{db: db, table: table}, nil
}

func (h *SQLHistory) ensure(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ensured {
		return nil
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name VARCHAR(255) PRIMARY KEY,
			applied_at %s NOT NULL
		)
	`, h.table, h.db.Dialect.TimestampType)
	if _, err := h.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create seed history table: %w", err)
	}
	h.ensured = true
	return nil
}

// Applied reports whether name has a history row.
func (h *SQLHistory) Applied(ctx context.Context, name string) (bool, error) {
	if err := h.ensure(ctx); err != nil {
		return false, err
	}
	var count int
	err := h.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE name = %s`, h.table, h.db.Dialect.Placeholder(1)),
		name,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check seed history: %w", err)
	}
	return count > 0, nil
}

// Record inserts a history row for name unless one exists.
func (h *SQLHistory) Record(ctx context.Context, name string) error {
	applied, err := h.Applied(ctx, name)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	_, err = h.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (name, applied_at) VALUES (%s)`, h.table, h.db.Dialect.PlaceholderList(2)),
		name, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record seeder %s: %w", name, err)
	}
	return nil
}

// List returns the history ordered by completion time.
func (h *SQLHistory) List(ctx context.Context) ([]SeedRecord, error) {
	if err := h.ensure(ctx); err != nil {
		return nil, err
	}
	rows, err := h.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT name, applied_at FROM %s ORDER BY applied_at, name`, h.table))
	if err != nil {
		return nil, fmt.Errorf("failed to list seed history: %w", err)
	}
	defer rows.Close()

	records := []SeedRecord{}
	for rows.Next() {
		var rec SeedRecord
		if err := rows.Scan(&rec.Name, &rec.AppliedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
