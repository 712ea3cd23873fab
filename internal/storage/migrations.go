// Package storage provides the SQL-backed schema migration runner and the
// seed history used by one-time seeders.
package storage

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/canonica-labs/zircon/internal/database"
	zerrors "github.com/canonica-labs/zircon/internal/errors"
)

// DefaultMigrationsTable tracks applied schema migrations.
const DefaultMigrationsTable = "schema_migrations"

// MigrationRunner applies NNNNNN_name.up.sql files from a file system in
// version order. Each migration runs in its own transaction together with
// the row that records it.
type MigrationRunner struct {
	db     *database.DB
	source fs.FS
	table  string
	logger *zap.Logger
}

// MigrationRunnerConfig configures a MigrationRunner.
type MigrationRunnerConfig struct {
	// Source holds the migration files at its root.
	Source fs.FS

	// Table tracks applied migrations. Defaults to DefaultMigrationsTable.
	Table string

	// Logger is optional.
	Logger *zap.Logger
}

// AppliedMigration is one row of the tracking table.
type AppliedMigration struct {
	Version   string
	Name      string
	AppliedAt time.Time
}

// NewMigrationRunner creates a migration runner.
func NewMigrationRunner(db *database.DB, cfg MigrationRunnerConfig) (*MigrationRunner, error) {
	if cfg.Table == "" {
		cfg.Table = DefaultMigrationsTable
	}
	if err := database.ValidateIdentifier(cfg.Table, "migrations.table"); err != nil {
		return nil, zerrors.NewConfigError("migrations.table", err.Error())
	}
	if cfg.Source == nil {
		return nil, zerrors.NewConfigError("migrations.dir", "no migration source configured")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MigrationRunner{db: db, source: cfg.Source, table: cfg.Table, logger: logger}, nil
}

// Migrate executes all pending migrations. The first failure stops the run
// and is reported as a migration failure naming the file.
func (r *MigrationRunner) Migrate(ctx context.Context) error {
	if err := r.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	pending, err := r.pending(applied)
	if err != nil {
		return err
	}

	for _, m := range pending {
		if err := r.applyMigration(ctx, m); err != nil {
			return zerrors.NewMigrationFailed(m.Name, err)
		}
		r.logger.Info("Applied migration", zap.String("version", m.Version), zap.String("name", m.Name))
	}

	if len(pending) == 0 {
		r.logger.Debug("Schema is up to date", zap.Int("applied", len(applied)))
	}
	return nil
}

// Pending lists the migrations that have not been applied yet.
func (r *MigrationRunner) Pending(ctx context.Context) ([]Migration, error) {
	if err := r.ensureMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	applied, err := r.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	return r.pending(applied)
}

func (r *MigrationRunner) pending(applied map[string]bool) ([]Migration, error) {
	all, err := r.migrationFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to read migration files: %w", err)
	}
	var pending []Migration
	for _, m := range all {
		if applied[m.Version] {
			continue
		}
		pending = append(pending, m)
	}
	return pending, nil
}

// Applied lists the recorded migrations in version order. A database that
// has never been migrated has none.
func (r *MigrationRunner) Applied(ctx context.Context) ([]AppliedMigration, error) {
	if err := r.ensureMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT version, name, applied_at FROM %s ORDER BY version`, r.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AppliedMigration
	for rows.Next() {
		var m AppliedMigration
		if err := rows.Scan(&m.Version, &m.Name, &m.AppliedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return versionSeq(out[i].Version) < versionSeq(out[j].Version)
	})
	return out, nil
}

// versionSeq orders recorded versions numerically; the column is text.
func versionSeq(version string) uint64 {
	n, _ := strconv.ParseUint(version, 10, 64)
	return n
}

// Migration is one migration file.
type Migration struct {
	// Version is the numeric file prefix.
	Version string
	// Name is the file name without the .up.sql suffix.
	Name string

	seq     uint64
	content []byte
}

func (r *MigrationRunner) ensureMigrationsTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version VARCHAR(255) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			applied_at %s NOT NULL
		)
	`, r.table, r.db.Dialect.TimestampType)
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *MigrationRunner) appliedVersions(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT version FROM %s`, r.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (r *MigrationRunner) migrationFiles() ([]Migration, error) {
	entries, err := fs.ReadDir(r.source, ".")
	if err != nil {
		return nil, err
	}

	var list []Migration
	seen := make(map[uint64]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		// e.g. "000001_create_app_settings.up.sql"
		version, _, ok := strings.Cut(name, "_")
		if !ok || version == "" {
			continue
		}
		baseName := strings.TrimSuffix(name, ".up.sql")
		seq, err := strconv.ParseUint(version, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("migration %s: version %q is not a number", baseName, version)
		}
		if other, dup := seen[seq]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %s", other, baseName, version)
		}
		seen[seq] = baseName

		content, err := fs.ReadFile(r.source, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}

		list = append(list, Migration{Version: version, Name: baseName, seq: seq, content: content})
	}

	// numeric order: 9_x runs before 10_y even without zero padding
	sort.Slice(list, func(i, j int) bool {
		return list[i].seq < list[j].seq
	})
	return list, nil
}

func (r *MigrationRunner) applyMigration(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(m.content)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (version, name, applied_at) VALUES (%s)`,
			r.table, r.db.Dialect.PlaceholderList(3)),
		m.Version, m.Name, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}
	return nil
}
