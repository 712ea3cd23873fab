// Package database opens SQL connections and describes the dialect
// differences the migration runner and fixture seeders care about.
package database

import (
	"fmt"
	"sort"
	"strings"

	"github.com/canonica-labs/zircon/internal/errors"
)

// PlaceholderStyle is how a driver spells bind parameters.
type PlaceholderStyle int

const (
	// Question uses "?" for every parameter.
	Question PlaceholderStyle = iota
	// Dollar uses "$1", "$2", ...
	Dollar
)

// Dialect captures the per-driver SQL differences.
type Dialect struct {
	// Name is the configured driver name (database.driver).
	Name string

	// DriverName is the name registered with database/sql.
	DriverName string

	// Placeholders is the bind parameter style.
	Placeholders PlaceholderStyle

	// TimestampType is the column type used for applied_at columns.
	TimestampType string
}

// Placeholder returns the bind parameter for the n-th argument (1-based).
func (d Dialect) Placeholder(n int) string {
	if d.Placeholders == Dollar {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// PlaceholderList returns count comma-separated placeholders starting at 1.
func (d Dialect) PlaceholderList(count int) string {
	parts := make([]string, count)
	for i := range parts {
		parts[i] = d.Placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}

var dialects = map[string]Dialect{
	"postgres": {
		Name:          "postgres",
		DriverName:    "postgres",
		Placeholders:  Dollar,
		TimestampType: "TIMESTAMP WITH TIME ZONE",
	},
	"sqlite": {
		Name:          "sqlite",
		DriverName:    "sqlite",
		Placeholders:  Question,
		TimestampType: "TIMESTAMP",
	},
	"mysql": {
		Name:          "mysql",
		DriverName:    "mysql",
		Placeholders:  Question,
		TimestampType: "DATETIME(6)",
	},
	"duckdb": {
		Name:          "duckdb",
		DriverName:    "duckdb",
		Placeholders:  Question,
		TimestampType: "TIMESTAMPTZ",
	},
	"snowflake": {
		Name:          "snowflake",
		DriverName:    "snowflake",
		Placeholders:  Question,
		TimestampType: "TIMESTAMP_TZ",
	},
}

// Lookup returns the dialect for a configured driver name.
func Lookup(driver string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(driver)]
	if !ok {
		return Dialect{}, errors.NewUnsupportedDriver(driver, Supported())
	}
	return d, nil
}

// Supported lists the configured driver names, sorted.
func Supported() []string {
	names := make([]string, 0, len(dialects))
	for name := range dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
