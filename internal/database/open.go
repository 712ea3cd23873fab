package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/marcboeker/go-duckdb"
	_ "github.com/snowflakedb/gosnowflake"
	_ "modernc.org/sqlite"

	"github.com/canonica-labs/zircon/internal/config"
	"github.com/canonica-labs/zircon/internal/errors"
)

// DB is an open connection pool together with its dialect.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open opens and pings the configured database.
// Startup fails if the database is unreachable.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	dialect, err := Lookup(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect.Name, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	timeout := cfg.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &errors.ZirconError{
			Code:       errors.CodeDatabase,
			Message:    fmt.Sprintf("%s connectivity check failed", dialect.Name),
			Reason:     "the database did not answer a ping",
			Suggestion: "check database.dsn and that the server is running",
			Cause:      err,
		}
	}

	return &DB{DB: db, Dialect: dialect}, nil
}
