// Package config loads vsmecore settings from an optional YAML file and
// VSMECORE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. VSMECORE_STORAGE_DRIVER.
const EnvPrefix = "VSMECORE"

// Storage driver names.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Archive driver names.
const (
	ArchiveFS     = "fs"
	ArchiveS3     = "s3"
	ArchiveMemory = "memory"
)

// Config is the fully resolved configuration.
type Config struct {
	Storage Storage `mapstructure:"storage" yaml:"storage"`
	Archive Archive `mapstructure:"archive" yaml:"archive"`
	Log     Log     `mapstructure:"log" yaml:"log"`
}

// Storage selects the section record backend.
type Storage struct {
	Driver      string `mapstructure:"driver" yaml:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	MySQLDSN    string `mapstructure:"mysql_dsn" yaml:"mysql_dsn"`
}

// Archive selects where exported submissions are written.
type Archive struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	FSRoot string `mapstructure:"fs_root" yaml:"fs_root"`
	S3     S3     `mapstructure:"s3" yaml:"s3"`
}

// S3 configures the S3-compatible archive driver.
type S3 struct {
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	PathStyle bool   `mapstructure:"path_style" yaml:"path_style"`
}

// Log configures the zap logger.
type Log struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("storage.sqlite_path", "vsmecore.db")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.mysql_dsn", "")

	v.SetDefault("archive.driver", ArchiveFS)
	v.SetDefault("archive.fs_root", "./archive")
	v.SetDefault("archive.s3.bucket", "")
	v.SetDefault("archive.s3.region", "us-east-1")
	v.SetDefault("archive.s3.endpoint", "")
	v.SetDefault("archive.s3.path_style", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads path (if non-empty) and applies environment overrides on top of
// the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and missing driver-specific settings.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite driver"))
		}
	case DriverPostgres:
	case DriverMySQL:
		if c.Storage.MySQLDSN == "" {
			errs = append(errs, errors.New("storage.mysql_dsn is required for the mysql driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	switch c.Archive.Driver {
	case ArchiveFS, ArchiveMemory:
	case ArchiveS3:
		if c.Archive.S3.Bucket == "" {
			errs = append(errs, errors.New("archive.s3.bucket is required for the s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown archive driver %q", c.Archive.Driver))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	return errors.Join(errs...)
}
