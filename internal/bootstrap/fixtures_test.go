package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/canonica-labs/zircon/internal/config"
	"github.com/canonica-labs/zircon/internal/database"
	"github.com/canonica-labs/zircon/internal/errors"
	"github.com/canonica-labs/zircon/internal/storage"
	"github.com/canonica-labs/zircon/migrations"
)

func writeFixture(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func migratedDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()
	cfg := config.DefaultConfig().Database
	cfg.DSN = "file:" + filepath.Join(t.TempDir(), "fixtures.db")
	db, err := database.Open(ctx, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	runner, err := storage.NewMigrationRunner(db, storage.MigrationRunnerConfig{Source: migrations.FS})
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	if err := runner.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type setting struct {
	Key   string
	Value string
}

func settings(t *testing.T, db *database.DB) []setting {
	t.Helper()
	rows, err := db.QueryContext(context.Background(),
		`SELECT setting_key, setting_value FROM app_settings ORDER BY setting_key`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()
	var out []setting
	for rows.Next() {
		var s setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, s)
	}
	return out
}

const settingsYAML = `
name: settings
tables:
  - table: app_settings
    key: [setting_key]
    rows:
      - setting_key: site.name
        setting_value: Zircon
      - setting_key: site.locale
        setting_value: en-US
`

const settingsTOML = `
name = "settings"

[[tables]]
table = "app_settings"
key = ["setting_key"]

[[tables.rows]]
setting_key = "site.name"
setting_value = "Zircon"

[[tables.rows]]
setting_key = "site.locale"
setting_value = "en-US"
`

// TestLoad_YAMLAndTOMLAgree verifies both encodings produce the same fixture.
func TestLoad_YAMLAndTOMLAgree(t *testing.T) {
	y, err := Load(writeFixture(t, "settings.yaml", settingsYAML))
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	tm, err := Load(writeFixture(t, "settings.toml", settingsTOML))
	if err != nil {
		t.Fatalf("load toml: %v", err)
	}

	if diff := cmp.Diff(y.Tables, tm.Tables); diff != "" {
		t.Errorf("yaml and toml fixtures differ (-yaml +toml):\n%s", diff)
	}
	if y.Name != "settings" || tm.Name != "settings" {
		t.Errorf("expected name settings, got %q and %q", y.Name, tm.Name)
	}
}

// TestParse_DefaultsNameToFileName verifies that an unnamed fixture is named
// after its file.
func TestParse_DefaultsNameToFileName(t *testing.T) {
	body := strings.Replace(settingsYAML, "name: settings\n", "", 1)
	f, err := Parse(writeFixture(t, "010-settings.yml", body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Name != "010-settings" {
		t.Errorf("expected name 010-settings, got %q", f.Name)
	}
}

// TestParse_UnknownKeysFail verifies strict decoding in both formats.
func TestParse_UnknownKeysFail(t *testing.T) {
	cases := map[string]string{
		"extra.yaml": settingsYAML + "colour: blue\n",
		"extra.toml": "colour = \"blue\"\n" + settingsTOML,
		"bad.json":   "{}",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(writeFixture(t, name, body))
			if err == nil {
				t.Fatal("expected error")
			}
			if errors.ExitCode(err) != int(errors.CodeValidation) {
				t.Errorf("expected validation exit code, got %d (%v)", errors.ExitCode(err), err)
			}
		})
	}
}

// TestValidate_CollectsAllProblems verifies that every problem is reported,
// not just the first.
func TestValidate_CollectsAllProblems(t *testing.T) {
	f := &Fixture{
		Name: "broken",
		Tables: []TableFixture{
			{
				Table: "users; --",
				Key:   []string{"email"},
				Rows:  []map[string]any{{"name": "a"}},
			},
			{
				Table: "roles",
				Rows:  []map[string]any{{"name": []any{"x"}}},
			},
		},
	}

	checked := f.Validate()
	if checked.IsSuccess() {
		t.Fatal("expected validation failure")
	}
	got := checked.Errors()
	want := []string{
		"tables[0].table must start with a letter and contain only letters, numbers, and underscores (got: users; --)",
		"tables[0].rows[0]: missing key column email",
		"roles: key must name at least one column",
		"roles.rows[0].name: value must be a scalar",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("problems mismatch (-want +got):\n%s", diff)
	}
}

// TestFixtureSeeder_InsertsMissingRowsOnly verifies idempotent seeding.
func TestFixtureSeeder_InsertsMissingRowsOnly(t *testing.T) {
	ctx := context.Background()
	db := migratedDB(t)

	if _, err := db.ExecContext(ctx,
		`INSERT INTO app_settings (setting_key, setting_value) VALUES ('site.name', 'Custom')`); err != nil {
		t.Fatalf("pre-insert: %v", err)
	}

	f, err := Load(writeFixture(t, "settings.yaml", settingsYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	seeder := NewFixtureSeeder(db, f, nil)
	for i := 0; i < 2; i++ {
		if err := seeder.Seed(ctx); err != nil {
			t.Fatalf("seed run %d: %v", i, err)
		}
	}

	want := []setting{
		{Key: "site.locale", Value: "en-US"},
		{Key: "site.name", Value: "Custom"},
	}
	if diff := cmp.Diff(want, settings(t, db)); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

// TestFixtureSeeder_FailureRollsBack verifies that a failing row leaves the
// table untouched.
func TestFixtureSeeder_FailureRollsBack(t *testing.T) {
	ctx := context.Background()
	db := migratedDB(t)

	body := settingsYAML + `      - setting_key: site.owner
        owner: nobody
`
	f, err := Load(writeFixture(t, "settings.yaml", body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := NewFixtureSeeder(db, f, nil).Seed(ctx); err == nil {
		t.Fatal("expected error for unknown column")
	}
	if got := settings(t, db); len(got) != 0 {
		t.Errorf("expected no rows after rollback, got %v", got)
	}
}

// TestSeeders_OnceUsesHistory verifies fixtures marked once are skipped after
// their first run even when their rows are gone.
func TestSeeders_OnceUsesHistory(t *testing.T) {
	ctx := context.Background()
	db := migratedDB(t)
	history := storage.NewMemoryHistory()
	path := writeFixture(t, "settings.yaml", "once: true\n"+settingsYAML)

	seeders, err := Seeders(db, history, []string{path}, nil)
	if err != nil {
		t.Fatalf("seeders: %v", err)
	}
	if len(seeders) != 1 || seeders[0].Name() != "settings" {
		t.Fatalf("unexpected seeders: %v", seeders)
	}
	if err := seeders[0].Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DELETE FROM app_settings`); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := seeders[0].Seed(ctx); err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if got := settings(t, db); len(got) != 0 {
		t.Errorf("once fixture ran twice: %v", got)
	}
}

// TestValidate_RejectsNullKey verifies that a row cannot be identified by a
// null key value.
func TestValidate_RejectsNullKey(t *testing.T) {
	f := &Fixture{
		Name: "tags",
		Tables: []TableFixture{{
			Table: "tags",
			Key:   []string{"grp"},
			Rows:  []map[string]any{{"grp": nil, "name": "x"}},
		}},
	}

	want := []string{"tags.rows[0]: key column grp must not be null"}
	if diff := cmp.Diff(want, f.Validate().Errors()); diff != "" {
		t.Errorf("problems mismatch (-want +got):\n%s", diff)
	}
}

// TestFixtureSeeder_NullKeyMatchesExistingRow verifies that a null key value
// finds the row inserted by an earlier run.
func TestFixtureSeeder_NullKeyMatchesExistingRow(t *testing.T) {
	ctx := context.Background()
	db := migratedDB(t)
	if _, err := db.ExecContext(ctx, `CREATE TABLE tags (grp TEXT, name TEXT UNIQUE)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	f := &Fixture{
		Name: "tags",
		Tables: []TableFixture{{
			Table: "tags",
			Key:   []string{"grp", "name"},
			Rows:  []map[string]any{{"grp": nil, "name": "x"}},
		}},
	}
	seeder := NewFixtureSeeder(db, f, nil)
	for i := 0; i < 2; i++ {
		if err := seeder.Seed(ctx); err != nil {
			t.Fatalf("seed run %d: %v", i, err)
		}
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
}

// TestLoad_TOMLDates verifies that TOML date and time literals are accepted
// as column values.
func TestLoad_TOMLDates(t *testing.T) {
	body := `
[[tables]]
table = "releases"
key = ["version"]

[[tables.rows]]
version = "1.0"
released_on = 2024-01-02
released_at = 2024-01-02T15:04:05
cutoff = 09:30:00
`
	f, err := Load(writeFixture(t, "releases.toml", body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	row := f.Tables[0].Rows[0]
	for _, col := range []string{"released_on", "released_at", "cutoff"} {
		if _, ok := row[col].(time.Time); !ok {
			t.Errorf("%s: expected time.Time, got %T", col, row[col])
		}
	}
	day := row["released_on"].(time.Time)
	if day.Year() != 2024 || day.Month() != time.January || day.Day() != 2 {
		t.Errorf("released_on = %v", day)
	}
}

// TestWriteExample verifies generated examples load and refuse to overwrite.
func TestWriteExample(t *testing.T) {
	dir := t.TempDir()
	for _, format := range []Format{FormatYAML, FormatTOML} {
		path, err := WriteExample(dir, format)
		if err != nil {
			t.Fatalf("write %s example: %v", format, err)
		}
		if _, err := Load(path); err != nil {
			t.Errorf("%s example does not load: %v", format, err)
		}
		if _, err := WriteExample(dir, format); err == nil {
			t.Errorf("%s example overwritten", format)
		}
	}
}
