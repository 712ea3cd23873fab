package cli

import (
	"context"
	"io/fs"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/canonica-labs/zircon/internal/bootstrap"
	"github.com/canonica-labs/zircon/internal/database"
	"github.com/canonica-labs/zircon/internal/lock"
	"github.com/canonica-labs/zircon/internal/storage"
	"github.com/canonica-labs/zircon/migrations"
	"github.com/canonica-labs/zircon/pkg/container"
	"github.com/canonica-labs/zircon/pkg/migration"
)

// openDatabase opens the configured database. Startup fails if it is unreachable.
func (c *CLI) openDatabase(ctx context.Context) (*database.DB, error) {
	c.debugf("Opening %s database\n", c.cfg.Database.Driver)
	return database.Open(ctx, c.cfg.Database)
}

// migrationSource is the configured migrations directory, or the embedded
// default schema.
func (c *CLI) migrationSource() fs.FS {
	if c.cfg.Migrations.Dir != "" {
		return os.DirFS(c.cfg.Migrations.Dir)
	}
	return migrations.FS
}

func (c *CLI) newMigrationRunner(db *database.DB) (*storage.MigrationRunner, error) {
	return storage.NewMigrationRunner(db, storage.MigrationRunnerConfig{
		Source: c.migrationSource(),
		Table:  c.cfg.Migrations.Table,
		Logger: c.logger,
	})
}

// services registers the migrator, the optional lock and, when withSeeders
// is set, one seeder per configured fixture file.
func (c *CLI) services(db *database.DB, withSeeders bool) (*container.Collection, error) {
	services := container.NewCollection()

	runner, err := c.newMigrationRunner(db)
	if err != nil {
		return nil, err
	}
	container.AddInstance[migration.Migrator](services, runner)

	if c.cfg.Lock.RedisAddr != "" {
		lockCfg := c.cfg.Lock
		container.AddSingleton(services, func(container.Resolver) (*redis.Client, error) {
			return redis.NewClient(&redis.Options{Addr: lockCfg.RedisAddr}), nil
		})
		container.AddSingleton(services, func(r container.Resolver) (migration.Locker, error) {
			rdb, err := container.Resolve[*redis.Client](r)
			if err != nil {
				return nil, err
			}
			return lock.NewRedisLocker(rdb,
				lock.WithKey(lockCfg.Key),
				lock.WithTTL(lockCfg.TTL),
				lock.WithWait(lockCfg.Wait),
				lock.WithLogger(c.logger),
			), nil
		})
	}

	if !withSeeders || !c.cfg.Seeding.Enabled {
		return services, nil
	}

	history, err := storage.NewSQLHistory(db, c.cfg.Seeding.HistoryTable)
	if err != nil {
		return nil, err
	}
	container.AddInstance[migration.SeedHistory](services, history)

	seeders, err := bootstrap.Seeders(db, history, c.cfg.Seeding.Fixtures, c.logger)
	if err != nil {
		return nil, err
	}
	for _, s := range seeders {
		container.AddInstance(services, s)
	}
	return services, nil
}

// options builds the orchestrator options from configuration.
func (c *CLI) options() migration.Options {
	return migration.NewOptionsBuilder().
		WithContextName(c.cfg.Migrations.Context).
		Build()
}

// runOrchestrator migrates and, when withSeeders is set, seeds once.
func (c *CLI) runOrchestrator(ctx context.Context, withSeeders bool) error {
	db, err := c.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	services, err := c.services(db, withSeeders)
	if err != nil {
		return err
	}
	provider, err := services.Build()
	if err != nil {
		return err
	}
	defer provider.Close()

	return migration.NewOrchestrator(migration.Config{
		Provider: provider,
		Options:  c.options(),
		Logger:   c.logger,
	}).Run(ctx)
}
