package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/canonica-labs/zircon/internal/database"
	"github.com/canonica-labs/zircon/pkg/migration"
)

// FixtureSeeder inserts a fixture's rows that are missing by key.
// Existing rows are never updated, so running it again is a no-op.
type FixtureSeeder struct {
	db      *database.DB
	fixture *Fixture
	logger  *zap.Logger
}

// NewFixtureSeeder creates a seeder for a validated fixture.
func NewFixtureSeeder(db *database.DB, f *Fixture, logger *zap.Logger) *FixtureSeeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FixtureSeeder{db: db, fixture: f, logger: logger}
}

// Name returns the fixture name.
func (s *FixtureSeeder) Name() string {
	return s.fixture.Name
}

// Seed inserts missing rows in a single transaction.
func (s *FixtureSeeder) Seed(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted, skipped := 0, 0
	for _, t := range s.fixture.Tables {
		for i, row := range t.Rows {
			exists, err := s.rowExists(ctx, tx, t, row)
			if err != nil {
				return fmt.Errorf("%s.rows[%d]: failed to check existing row: %w", t.Table, i, err)
			}
			if exists {
				skipped++
				continue
			}
			if err := s.insertRow(ctx, tx, t.Table, row); err != nil {
				return fmt.Errorf("%s.rows[%d]: failed to insert row: %w", t.Table, i, err)
			}
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fixture: %w", err)
	}

	s.logger.Info("Fixture applied",
		zap.String("fixture", s.fixture.Name),
		zap.Int("inserted", inserted),
		zap.Int("skipped", skipped),
	)
	return nil
}

func (s *FixtureSeeder) rowExists(ctx context.Context, tx *sql.Tx, t TableFixture, row map[string]any) (bool, error) {
	conds := make([]string, 0, len(t.Key))
	args := make([]any, 0, len(t.Key))
	for _, k := range t.Key {
		// k = NULL never matches
		if row[k] == nil {
			conds = append(conds, k+" IS NULL")
			continue
		}
		args = append(args, row[k])
		conds = append(conds, fmt.Sprintf("%s = %s", k, s.db.Dialect.Placeholder(len(args))))
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", t.Table, strings.Join(conds, " AND "))

	var count int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *FixtureSeeder) insertRow(ctx context.Context, tx *sql.Tx, table string, row map[string]any) error {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	for i, col := range cols {
		args[i] = row[col]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), s.db.Dialect.PlaceholderList(len(cols)))
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// Seeders loads each fixture file and returns one seeder per file, in order.
// Fixtures marked once are recorded in history.
func Seeders(db *database.DB, history migration.SeedHistory, paths []string, logger *zap.Logger) ([]migration.Seeder, error) {
	seeders := make([]migration.Seeder, 0, len(paths))
	for _, path := range paths {
		f, err := Load(path)
		if err != nil {
			return nil, err
		}
		var s migration.Seeder = NewFixtureSeeder(db, f, logger)
		if f.Once {
			s = migration.OneTime(history, s)
		}
		seeders = append(seeders, s)
	}
	return seeders, nil
}
