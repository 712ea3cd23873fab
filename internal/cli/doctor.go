package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/canonica-labs/zircon/internal/bootstrap"
	"github.com/canonica-labs/zircon/internal/database"
	"github.com/canonica-labs/zircon/internal/errors"
)

func (c *CLI) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run system diagnostics",
		Long: `Run comprehensive system diagnostics.

Checks:
  - configuration
  - database driver and connectivity
  - pending migrations
  - fixture files
  - lock server connectivity (when configured)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDoctor(cmd.Context())
		},
	}
}

// DiagnosticCheck represents a single diagnostic check result.
type DiagnosticCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (c *CLI) runDoctor(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if !c.jsonOutput {
		c.println("Zircon System Diagnostics")
		c.println("=========================")
		c.println("")
	}

	checks := []DiagnosticCheck{c.checkConfig()}
	db, dbCheck := c.checkDatabase(ctx)
	checks = append(checks, dbCheck)
	if db != nil {
		defer db.Close()
		checks = append(checks, c.checkMigrations(ctx, db))
	}
	checks = append(checks, c.checkFixtures())
	if c.cfg.Lock.RedisAddr != "" {
		checks = append(checks, c.checkLock(ctx))
	}

	allPassed := true
	for _, check := range checks {
		if !check.Passed {
			allPassed = false
		}
	}

	if c.jsonOutput {
		if err := c.outputJSON(map[string]interface{}{
			"checks":     checks,
			"all_passed": allPassed,
		}); err != nil {
			return err
		}
	} else {
		for _, check := range checks {
			c.printCheck(check)
		}
		c.println("")
		if allPassed {
			c.println("✓ All checks passed")
		} else {
			c.println("✗ Some checks failed - see above for details")
		}
	}

	if !allPassed {
		var failed []string
		for _, check := range checks {
			if !check.Passed {
				failed = append(failed, check.Name)
			}
		}
		return errors.NewValidationFailed(failed)
	}
	return nil
}

func (c *CLI) printCheck(check DiagnosticCheck) {
	status := "✗"
	if check.Passed {
		status = "✓"
	}
	c.printf("%s %s: %s\n", status, check.Name, check.Message)
	if check.Details != "" && !check.Passed {
		c.printf("  → %s\n", check.Details)
	}
}

func (c *CLI) checkConfig() DiagnosticCheck {
	check := DiagnosticCheck{Name: "Configuration"}

	if err := c.cfg.Validate(); err != nil {
		check.Message = "Invalid configuration"
		check.Details = firstLine(err)
		return check
	}

	check.Passed = true
	check.Message = fmt.Sprintf("Driver: %s, context: %s", c.cfg.Database.Driver, c.cfg.Migrations.Context)
	return check
}

func (c *CLI) checkDatabase(ctx context.Context) (*database.DB, DiagnosticCheck) {
	check := DiagnosticCheck{Name: "Database Connectivity"}

	if _, err := database.Lookup(c.cfg.Database.Driver); err != nil {
		check.Message = "Unsupported driver"
		check.Details = fmt.Sprintf("Supported drivers: %s", strings.Join(database.Supported(), ", "))
		return nil, check
	}

	db, err := c.openDatabase(ctx)
	if err != nil {
		check.Message = "Cannot connect to database"
		check.Details = fmt.Sprintf("Error: %v", firstLine(err))
		return nil, check
	}

	check.Passed = true
	check.Message = fmt.Sprintf("Connected (%s)", db.Dialect.Name)
	return db, check
}

func (c *CLI) checkMigrations(ctx context.Context, db *database.DB) DiagnosticCheck {
	check := DiagnosticCheck{Name: "Migrations"}

	runner, err := c.newMigrationRunner(db)
	if err != nil {
		check.Message = "Cannot read migrations"
		check.Details = firstLine(err)
		return check
	}
	pending, err := runner.Pending(ctx)
	if err != nil {
		check.Message = "Cannot read migrations"
		check.Details = firstLine(err)
		return check
	}

	// pending migrations are not a failure; serve and seed apply them
	check.Passed = true
	if len(pending) == 0 {
		check.Message = "Schema is up to date"
	} else {
		check.Message = fmt.Sprintf("%d pending migration(s), next: %s", len(pending), pending[0].Name)
	}
	return check
}

func (c *CLI) checkFixtures() DiagnosticCheck {
	check := DiagnosticCheck{Name: "Fixtures"}

	if !c.cfg.Seeding.Enabled {
		check.Passed = true
		check.Message = "Seeding disabled"
		return check
	}

	for _, path := range c.cfg.Seeding.Fixtures {
		if _, err := bootstrap.Load(path); err != nil {
			check.Message = fmt.Sprintf("Invalid fixture %s", path)
			check.Details = firstLine(err)
			return check
		}
	}

	check.Passed = true
	check.Message = fmt.Sprintf("%d fixture file(s) valid", len(c.cfg.Seeding.Fixtures))
	return check
}

func (c *CLI) checkLock(ctx context.Context) DiagnosticCheck {
	check := DiagnosticCheck{Name: "Lock Server"}

	rdb := redis.NewClient(&redis.Options{Addr: c.cfg.Lock.RedisAddr})
	defer func() { _ = rdb.Close() }()

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		check.Message = "Cannot reach redis"
		check.Details = fmt.Sprintf("Error: %v", err)
		return check
	}

	check.Passed = true
	check.Message = fmt.Sprintf("Connected to %s", c.cfg.Lock.RedisAddr)
	return check
}

func firstLine(err error) string {
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return msg
}
