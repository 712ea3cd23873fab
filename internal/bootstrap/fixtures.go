// Package bootstrap loads declarative fixture files and turns them into
// seeders that insert reference data.
//
// Fixture files must be:
// - human-readable
// - versionable
// - strict (unknown keys fail)
package bootstrap

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/canonica-labs/zircon/internal/database"
	"github.com/canonica-labs/zircon/internal/errors"
	"github.com/canonica-labs/zircon/pkg/result"
)

// Format is a fixture file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Fixture is one fixture file: a named set of rows for one or more tables.
type Fixture struct {
	// Name identifies the seeder. Defaults to the file name without extension.
	Name string `yaml:"name" toml:"name"`

	// Once records the fixture in seed history so it runs a single time per
	// database, even if rows are later deleted.
	Once bool `yaml:"once" toml:"once"`

	// Tables are seeded in file order.
	Tables []TableFixture `yaml:"tables" toml:"tables"`

	// path is the source file
	path string
}

// TableFixture holds the rows for one table.
type TableFixture struct {
	Table string `yaml:"table" toml:"table"`

	// Key lists the columns that identify an existing row.
	Key []string `yaml:"key" toml:"key"`

	Rows []map[string]any `yaml:"rows" toml:"rows"`
}

// Path returns the file the fixture was loaded from.
func (f *Fixture) Path() string {
	return f.path
}

// FormatFor picks the decoder by file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", errors.NewInvalidFixture("file", fmt.Sprintf("%s: unsupported extension (want .yaml, .yml or .toml)", path))
	}
}

// Load reads, parses and validates a fixture file.
func Load(path string) (*Fixture, error) {
	f, err := Parse(path)
	if err != nil {
		return nil, err
	}
	checked := f.Validate()
	if checked.IsFailure() {
		return nil, checked.Err()
	}
	return f, nil
}

// Parse reads a fixture file without semantic validation.
// Unknown keys fail.
func Parse(path string) (*Fixture, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}

	var f Fixture
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, errors.NewInvalidFixture("file", fmt.Sprintf("%s: %v", path, err))
		}
	case FormatTOML:
		meta, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, errors.NewInvalidFixture("file", fmt.Sprintf("%s: %v", path, err))
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, errors.NewInvalidFixture(undecoded[0].String(), fmt.Sprintf("%s: unknown fixture key", path))
		}
	}

	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	f.path = path
	return &f, nil
}

// Validate collects every problem in the fixture. Table and column names
// must be plain identifiers and every row must carry its key columns.
func (f *Fixture) Validate() result.Result[*Fixture] {
	var problems []string
	if len(f.Tables) == 0 {
		problems = append(problems, "fixture has no tables")
	}

	for i, t := range f.Tables {
		where := fmt.Sprintf("tables[%d]", i)
		if err := database.ValidateIdentifier(t.Table, where+".table"); err != nil {
			problems = append(problems, err.Error())
		} else {
			where = t.Table
		}
		if len(t.Key) == 0 {
			problems = append(problems, fmt.Sprintf("%s: key must name at least one column", where))
		}
		for _, k := range t.Key {
			if err := database.ValidateIdentifier(k, where+".key"); err != nil {
				problems = append(problems, err.Error())
			}
		}
		for r, row := range t.Rows {
			for _, k := range t.Key {
				v, ok := row[k]
				switch {
				case !ok:
					problems = append(problems, fmt.Sprintf("%s.rows[%d]: missing key column %s", where, r, k))
				case v == nil:
					problems = append(problems, fmt.Sprintf("%s.rows[%d]: key column %s must not be null", where, r, k))
				}
			}
			for col, v := range row {
				if err := database.ValidateIdentifier(col, fmt.Sprintf("%s.rows[%d] column", where, r)); err != nil {
					problems = append(problems, err.Error())
				}
				if !scalar(v) {
					problems = append(problems, fmt.Sprintf("%s.rows[%d].%s: value must be a scalar", where, r, col))
				}
			}
		}
	}

	if len(problems) > 0 {
		return result.Failure[*Fixture](problems...)
	}
	return result.Success(f)
}

func scalar(v any) bool {
	switch v.(type) {
	case nil, string, bool, int, int64, uint64, float64, time.Time:
		return true
	default:
		return false
	}
}

// WriteExample writes a commented example fixture into dir.
func WriteExample(dir string, format Format) (string, error) {
	var name, body string
	switch format {
	case FormatTOML:
		name, body = "settings.toml", exampleTOML
	default:
		name, body = "settings.yaml", exampleYAML
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err == nil {
		return "", errors.NewBootstrapError(
			"fixture file already exists",
			fmt.Sprintf("refusing to overwrite %s", path),
			"remove the file or choose another directory",
		)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("failed to write fixture file: %w", err)
	}
	return path, nil
}

const exampleYAML = `# Zircon fixture
# Generated by 'zircon fixtures init'
#
# Rows are inserted when no row with the same key exists.

name: default-settings
once: false

tables:
  - table: app_settings
    key: [setting_key]
    rows:
      - setting_key: site.name
        setting_value: Zircon
        description: Display name
      - setting_key: site.locale
        setting_value: en-US
`

const exampleTOML = `# Zircon fixture
# Generated by 'zircon fixtures init'
#
# Rows are inserted when no row with the same key exists.

name = "default-settings"
once = false

[[tables]]
table = "app_settings"
key = ["setting_key"]

[[tables.rows]]
setting_key = "site.name"
setting_value = "Zircon"
description = "Display name"

[[tables.rows]]
setting_key = "site.locale"
setting_value = "en-US"
`
