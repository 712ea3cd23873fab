// Package cli provides the command-line interface for zircon.
// The CLI migrates and seeds databases, reports their state, and can host
// the startup sequence in front of a small status server.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/canonica-labs/zircon/internal/config"
	"github.com/canonica-labs/zircon/internal/errors"
	"github.com/canonica-labs/zircon/internal/observability"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// CLI holds the command-line interface state.
type CLI struct {
	rootCmd *cobra.Command
	cfg     *config.Config
	logger  *zap.Logger

	out    io.Writer
	errOut io.Writer

	// Global flags
	configPath string
	jsonOutput bool
	quiet      bool
	debug      bool
}

// New creates a new CLI instance writing to stdout and stderr.
func New() *CLI {
	return NewWithOutput(os.Stdout, os.Stderr)
}

// NewWithOutput creates a CLI with explicit output streams.
func NewWithOutput(out, errOut io.Writer) *CLI {
	cli := &CLI{out: out, errOut: errOut, logger: zap.NewNop()}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

// SetArgs overrides os.Args[1:].
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// Execute runs the CLI and returns the process exit code.
func (c *CLI) Execute() int {
	err := c.rootCmd.Execute()
	_ = c.logger.Sync()
	if err == nil {
		return 0
	}
	c.reportError(err)
	return errors.ExitCode(err)
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zircon",
		Short: "Zircon - database migration and seeding at startup",
		Long: `Zircon brings a database to a known state before an application serves traffic.

It provides:
  • Ordered SQL schema migrations
  • Declarative YAML/TOML fixtures, inserted when missing
  • One-time seeders tracked in seed history
  • A cross-instance lock so only one process migrates at a time`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}
	cmd.SetOut(c.out)
	cmd.SetErr(c.errOut)
	cmd.Version = Version
	cmd.SetVersionTemplate(GetVersionString() + "\n")

	// Global flags
	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ./zircon.yaml or ~/.zircon/zircon.yaml)")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "machine-readable JSON output")
	cmd.PersistentFlags().BoolVar(&c.quiet, "quiet", false, "suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "verbose debug logs")

	cmd.AddCommand(c.newMigrateCmd())
	cmd.AddCommand(c.newSeedCmd())
	cmd.AddCommand(c.newStatusCmd())
	cmd.AddCommand(c.newFixturesCmd())
	cmd.AddCommand(c.newDoctorCmd())
	cmd.AddCommand(c.newServeCmd())
	cmd.AddCommand(c.newVersionCmd())

	return cmd
}

func (c *CLI) initConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return &errors.ZirconError{
			Code:       errors.CodeConfig,
			Message:    "cannot load configuration",
			Suggestion: "check the --config file or ZIRCON_* environment variables",
			Cause:      err,
		}
	}
	c.cfg = cfg

	logger, err := observability.NewLogger(observability.LoggerConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Debug:  c.debug,
	})
	if err != nil {
		return errors.NewConfigError("logging.level", err.Error())
	}
	c.logger = logger
	return nil
}

// reportError prints err. ZirconErrors already carry their reason and suggestion.
func (c *CLI) reportError(err error) {
	if c.jsonOutput {
		_ = c.outputJSON(map[string]interface{}{
			"error":     err.Error(),
			"exit_code": errors.ExitCode(err),
		})
		return
	}
	c.errorf("Error: %v\n", err)
}

// Helper functions for output

func (c *CLI) printf(format string, args ...interface{}) {
	if !c.quiet {
		fmt.Fprintf(c.out, format, args...)
	}
}

func (c *CLI) println(args ...interface{}) {
	if !c.quiet {
		fmt.Fprintln(c.out, args...)
	}
}

func (c *CLI) errorf(format string, args ...interface{}) {
	fmt.Fprintf(c.errOut, format, args...)
}

func (c *CLI) debugf(format string, args ...interface{}) {
	if c.debug {
		fmt.Fprintf(c.errOut, "[DEBUG] "+format, args...)
	}
}

func (c *CLI) outputJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
