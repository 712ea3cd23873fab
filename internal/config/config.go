// Package config provides configuration loading for the zircon CLI and host.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/canonica-labs/zircon/internal/errors"
)

// Config holds the application configuration.
type Config struct {
	// Database connection
	Database DatabaseConfig `mapstructure:"database"`

	// Schema migrations
	Migrations MigrationsConfig `mapstructure:"migrations"`

	// Data seeding
	Seeding SeedingConfig `mapstructure:"seeding"`

	// Cross-instance migration lock
	Lock LockConfig `mapstructure:"lock"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`

	// Server configuration (for serve)
	Server ServerConfig `mapstructure:"server"`
}

// DatabaseConfig holds the database connection settings.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
	PingTimeout     time.Duration `mapstructure:"pingTimeout"`
}

// MigrationsConfig holds schema migration settings.
type MigrationsConfig struct {
	// Dir is a directory of NNNNNN_name.up.sql files. Empty means the
	// embedded default schema.
	Dir string `mapstructure:"dir"`

	// Table tracks applied migrations.
	Table string `mapstructure:"table"`

	// Context names the database in logs and spans.
	Context string `mapstructure:"context"`
}

// SeedingConfig holds data seeding settings.
type SeedingConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Fixtures     []string `mapstructure:"fixtures"`
	HistoryTable string   `mapstructure:"historyTable"`
}

// LockConfig holds the redis-backed migration lock settings.
// The lock is disabled when RedisAddr is empty.
type LockConfig struct {
	RedisAddr string        `mapstructure:"redisAddr"`
	Key       string        `mapstructure:"key"`
	TTL       time.Duration `mapstructure:"ttl"`
	Wait      time.Duration `mapstructure:"wait"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "file:zircon.db",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			PingTimeout:     5 * time.Second,
		},
		Migrations: MigrationsConfig{
			Table:   "schema_migrations",
			Context: "default",
		},
		Seeding: SeedingConfig{
			Enabled:      true,
			HistoryTable: "seed_history",
		},
		Lock: LockConfig{
			Key:  "zircon:migration-lock",
			TTL:  5 * time.Minute,
			Wait: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Listen:          ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".zircon"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("zircon")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("ZIRCON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.Database.Driver == "" {
		return errors.NewConfigError("database.driver", "must not be empty")
	}
	if c.Database.DSN == "" {
		return errors.NewConfigError("database.dsn", "must not be empty")
	}
	if c.Migrations.Table == "" {
		return errors.NewConfigError("migrations.table", "must not be empty")
	}
	if c.Seeding.Enabled && c.Seeding.HistoryTable == "" {
		return errors.NewConfigError("seeding.historyTable", "must not be empty when seeding is enabled")
	}
	if c.Lock.RedisAddr != "" && c.Lock.TTL <= 0 {
		return errors.NewConfigError("lock.ttl", "must be positive when lock.redisAddr is set")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.maxOpenConns", d.Database.MaxOpenConns)
	v.SetDefault("database.maxIdleConns", d.Database.MaxIdleConns)
	v.SetDefault("database.connMaxLifetime", d.Database.ConnMaxLifetime)
	v.SetDefault("database.pingTimeout", d.Database.PingTimeout)
	v.SetDefault("migrations.dir", "")
	v.SetDefault("migrations.table", d.Migrations.Table)
	v.SetDefault("migrations.context", d.Migrations.Context)
	v.SetDefault("seeding.enabled", d.Seeding.Enabled)
	v.SetDefault("seeding.fixtures", []string{})
	v.SetDefault("seeding.historyTable", d.Seeding.HistoryTable)
	v.SetDefault("lock.redisAddr", "")
	v.SetDefault("lock.key", d.Lock.Key)
	v.SetDefault("lock.ttl", d.Lock.TTL)
	v.SetDefault("lock.wait", d.Lock.Wait)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.readTimeout", d.Server.ReadTimeout)
	v.SetDefault("server.writeTimeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdownTimeout", d.Server.ShutdownTimeout)
}
