package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/zircon/internal/bootstrap"
	"github.com/canonica-labs/zircon/internal/errors"
)

func (c *CLI) newFixturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fixtures",
		Short: "Fixture file management",
		Long: `Manage declarative seed fixtures.

Commands:
  init     - Generate an example fixture
  validate - Check fixture files without touching a database`,
	}

	cmd.AddCommand(c.newFixturesInitCmd())
	cmd.AddCommand(c.newFixturesValidateCmd())

	return cmd
}

func (c *CLI) newFixturesInitCmd() *cobra.Command {
	var (
		outputDir string
		format    string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate an example fixture",
		Long: `Generate an example fixture file.

This command does NOT modify any database - it only creates a template file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFixturesInit(outputDir, bootstrap.Format(format))
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "output directory for the fixture file")
	cmd.Flags().StringVar(&format, "format", string(bootstrap.FormatYAML), "fixture format: yaml or toml")

	return cmd
}

func (c *CLI) runFixturesInit(outputDir string, format bootstrap.Format) error {
	if format != bootstrap.FormatYAML && format != bootstrap.FormatTOML {
		return errors.NewInvalidFixture("format", fmt.Sprintf("unknown format %q (want yaml or toml)", format))
	}

	path, err := bootstrap.WriteExample(outputDir, format)
	if err != nil {
		return err
	}
	absPath, _ := filepath.Abs(path)

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"status": "created",
			"path":   absPath,
		})
	}

	c.printf("✓ Fixture file created: %s\n", absPath)
	c.println("\nNext steps:")
	c.println("  1. Edit the rows to match your reference data")
	c.println("  2. Run 'zircon fixtures validate' to check it")
	c.println("  3. Add it to seeding.fixtures and run 'zircon seed'")
	return nil
}

// FixtureCheck is the validation outcome of one file.
type FixtureCheck struct {
	Path     string   `json:"path"`
	Name     string   `json:"name,omitempty"`
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty"`
}

func (c *CLI) newFixturesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [files...]",
		Short: "Validate fixture files",
		Long: `Validate fixture files for syntax, unknown keys, identifiers and key columns.

With no arguments the files listed in seeding.fixtures are checked.
No database is touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runFixturesValidate(args)
		},
	}
}

func (c *CLI) runFixturesValidate(paths []string) error {
	if len(paths) == 0 {
		paths = c.cfg.Seeding.Fixtures
	}
	if len(paths) == 0 {
		return errors.NewBootstrapError(
			"no fixture files to validate",
			"no files were given and seeding.fixtures is empty",
			"pass fixture paths or set seeding.fixtures",
		)
	}

	checks := make([]FixtureCheck, 0, len(paths))
	var failed []string
	for _, path := range paths {
		c.debugf("Validating fixture: %s\n", path)
		check := FixtureCheck{Path: path}

		f, err := bootstrap.Parse(path)
		if err != nil {
			check.Problems = []string{err.Error()}
		} else {
			check.Name = f.Name
			check.Problems = f.Validate().Errors()
		}
		check.Valid = len(check.Problems) == 0
		if !check.Valid {
			failed = append(failed, path)
		}
		checks = append(checks, check)
	}

	if c.jsonOutput {
		if err := c.outputJSON(map[string]interface{}{"fixtures": checks}); err != nil {
			return err
		}
	} else {
		for _, check := range checks {
			if check.Valid {
				c.printf("✓ %s (%s)\n", check.Path, check.Name)
				continue
			}
			c.printf("✗ %s\n", check.Path)
			for _, p := range check.Problems {
				c.printf("  → %s\n", p)
			}
		}
	}

	if len(failed) > 0 {
		return errors.NewValidationFailed(failed)
	}
	return nil
}
