package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/zircon/internal/database"
	"github.com/canonica-labs/zircon/internal/storage"
)

func (c *CLI) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration and seed status",
		Long: `Display the state of the configured database:
  - applied migrations
  - pending migrations
  - one-time seeders recorded in seed history`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus(cmd.Context())
		},
	}
}

// StatusReport is the database state shown by status and served by serve.
type StatusReport struct {
	Driver  string            `json:"driver"`
	Context string            `json:"context"`
	Applied []MigrationStatus `json:"applied"`
	Pending []MigrationStatus `json:"pending"`
	Seeded  []SeedStatus      `json:"seeded"`
}

// MigrationStatus is one applied or pending migration.
type MigrationStatus struct {
	Version   string     `json:"version"`
	Name      string     `json:"name"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

// SeedStatus is one seed history entry.
type SeedStatus struct {
	Name      string    `json:"name"`
	AppliedAt time.Time `json:"applied_at"`
}

func (c *CLI) runStatus(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := c.cfg.Validate(); err != nil {
		return err
	}
	db, err := c.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	report, err := c.collectStatus(ctx, db)
	if err != nil {
		return err
	}

	if c.jsonOutput {
		return c.outputJSON(report)
	}

	c.printf("Database: %s (%s)\n", report.Driver, report.Context)
	c.println("")
	c.printf("Applied migrations (%d):\n", len(report.Applied))
	for _, m := range report.Applied {
		c.printf("  ✓ %s  %s\n", m.Name, m.AppliedAt.Format(time.RFC3339))
	}
	c.printf("Pending migrations (%d):\n", len(report.Pending))
	for _, m := range report.Pending {
		c.printf("  • %s\n", m.Name)
	}
	if c.cfg.Seeding.Enabled {
		c.printf("Seed history (%d):\n", len(report.Seeded))
		for _, s := range report.Seeded {
			c.printf("  ✓ %s  %s\n", s.Name, s.AppliedAt.Format(time.RFC3339))
		}
	}
	return nil
}

func (c *CLI) collectStatus(ctx context.Context, db *database.DB) (*StatusReport, error) {
	runner, err := c.newMigrationRunner(db)
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		Driver:  db.Dialect.Name,
		Context: c.cfg.Migrations.Context,
		Applied: []MigrationStatus{},
		Pending: []MigrationStatus{},
		Seeded:  []SeedStatus{},
	}

	applied, err := runner.Applied(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range applied {
		at := m.AppliedAt
		report.Applied = append(report.Applied, MigrationStatus{Version: m.Version, Name: m.Name, AppliedAt: &at})
	}

	pending, err := runner.Pending(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range pending {
		report.Pending = append(report.Pending, MigrationStatus{Version: m.Version, Name: m.Name})
	}

	if c.cfg.Seeding.Enabled {
		history, err := storage.NewSQLHistory(db, c.cfg.Seeding.HistoryTable)
		if err != nil {
			return nil, err
		}
		records, err := history.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			report.Seeded = append(report.Seeded, SeedStatus{Name: r.Name, AppliedAt: r.AppliedAt})
		}
	}
	return report, nil
}
