// Package migration brings a database up to date on application start.
//
// The Orchestrator resolves a Migrator and the registered Seeders from an
// isolated service provider, applies the schema migration, then runs the
// seeders one at a time in registration order. Any failure is logged, recorded
// on the tracing span and returned unchanged; remaining seeders are skipped
// and the host is expected to abort startup.
package migration

import (
	"context"
	"fmt"
)

// Migrator applies pending schema changes. Calling it with nothing pending
// must be a no-op.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// MigratorFunc adapts a function to Migrator.
type MigratorFunc func(ctx context.Context) error

// Migrate calls f(ctx).
func (f MigratorFunc) Migrate(ctx context.Context) error { return f(ctx) }

// Seeder populates data after the schema is current.
type Seeder interface {
	Name() string
	Seed(ctx context.Context) error
}

type seederFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (s seederFunc) Name() string                   { return s.name }
func (s seederFunc) Seed(ctx context.Context) error { return s.fn(ctx) }

// NewSeeder adapts a function to Seeder.
func NewSeeder(name string, fn func(ctx context.Context) error) Seeder {
	return seederFunc{name: name, fn: fn}
}

// SeedHistory records which one-time seeders have completed.
type SeedHistory interface {
	Applied(ctx context.Context, name string) (bool, error)
	Record(ctx context.Context, name string) error
}

// OneTime wraps s so it runs only if history has no record of it, and is
// recorded after it succeeds.
func OneTime(history SeedHistory, s Seeder) Seeder {
	return oneTime{history: history, seeder: s}
}

type oneTime struct {
	history SeedHistory
	seeder  Seeder
}

func (o oneTime) Name() string { return o.seeder.Name() }

func (o oneTime) Seed(ctx context.Context) error {
	name := o.seeder.Name()
	applied, err := o.history.Applied(ctx, name)
	if err != nil {
		return fmt.Errorf("check seed history for %s: %w", name, err)
	}
	if applied {
		return nil
	}
	if err := o.seeder.Seed(ctx); err != nil {
		return err
	}
	if err := o.history.Record(ctx, name); err != nil {
		return fmt.Errorf("record seed history for %s: %w", name, err)
	}
	return nil
}

// Locker serializes migrations across processes sharing a database.
// Lock blocks or fails; the returned function releases the lock.
type Locker interface {
	Lock(ctx context.Context) (unlock func(context.Context) error, err error)
}
