package cli

import (
	"context"

	"github.com/spf13/cobra"
)

func (c *CLI) newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply pending schema migrations and exit.

Migrations are NNNNNN_name.up.sql files from migrations.dir, or the built-in
schema when no directory is configured. Each migration runs in its own
transaction. Seeders are not run; use 'zircon seed' for that.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runMigrate(cmd.Context(), false)
		},
	}
}

func (c *CLI) newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Migrate, then run every configured seeder",
		Long: `Run the full startup sequence once: apply pending migrations, then run
the fixture seeders listed in seeding.fixtures in order.

The first failure stops the run. Seeders that already ran are skipped only
when their fixture is marked once; other fixtures insert missing rows.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runMigrate(cmd.Context(), true)
		},
	}
}

func (c *CLI) runMigrate(ctx context.Context, withSeeders bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}

	if err := c.runOrchestrator(ctx, withSeeders); err != nil {
		return err
	}

	step := "Migrations applied"
	if withSeeders {
		step = "Database migrated and seeded"
	}
	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"status":  "ok",
			"seeded":  withSeeders,
			"context": c.cfg.Migrations.Context,
		})
	}
	c.printf("✓ %s (%s)\n", step, c.cfg.Migrations.Context)
	return nil
}
