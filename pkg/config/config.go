// Package config loads the process configuration.
//
// Values are layered: built-in defaults, then the YAML file named by
// --config or METADATA_CONFIG, then environment variables, then flags
// set explicitly on the command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr           = ":8080"
	DefaultDatabaseURL    = "sqlite:"
	DefaultRegion         = "EU"
	DefaultInterval       = 60 * time.Second
	DefaultRegistryPrefix = "schemas/"
)

type Config struct {
	Addr        string           `yaml:"addr"`
	DatabaseURL string           `yaml:"database_url"`
	Log         LogConfig        `yaml:"log"`
	Warehouse   WarehouseConfig  `yaml:"warehouse"`
	Registry    RegistryConfig   `yaml:"registry"`
	Maintainer  MaintainerConfig `yaml:"maintainer"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type WarehouseConfig struct {
	// Project hosts every app dataset and the shared monitoring dataset.
	Project string `yaml:"project"`
	// Region is where new datasets are created.
	Region string `yaml:"region"`
}

type RegistryConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

type MaintainerConfig struct {
	// Run enables side effects. When off the maintainers still run, in
	// dry-run mode.
	Run      bool          `yaml:"run"`
	DryRun   bool          `yaml:"dry_run"`
	Interval time.Duration `yaml:"interval"`
}

type TelemetryConfig struct {
	Stdout bool `yaml:"stdout"`
}

// Default returns the configuration used for local runs.
func Default() *Config {
	return &Config{
		Addr:        DefaultAddr,
		DatabaseURL: DefaultDatabaseURL,
		Log:         LogConfig{Level: "info"},
		Warehouse:   WarehouseConfig{Region: DefaultRegion},
		Registry:    RegistryConfig{Prefix: DefaultRegistryPrefix},
		Maintainer:  MaintainerConfig{Interval: DefaultInterval},
	}
}

// DryRun reports whether maintainers must skip collaborator calls.
func (c *Config) DryRun() bool { return c.Maintainer.DryRun || !c.Maintainer.Run }

func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database_url is required"))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Maintainer.Interval <= 0 {
		errs = append(errs, fmt.Errorf("maintainer.interval must be positive, got %s", c.Maintainer.Interval))
	}
	if c.Warehouse.Region == "" {
		errs = append(errs, errors.New("warehouse.region is required"))
	}
	if !c.DryRun() {
		if c.Warehouse.Project == "" {
			errs = append(errs, errors.New("warehouse.project is required when the maintainer runs"))
		}
		if c.Registry.Bucket == "" {
			errs = append(errs, errors.New("registry.bucket is required when the maintainer runs"))
		}
	}
	return errors.Join(errs...)
}

// Flags are the command line options. Only flags set explicitly override
// the file and the environment.
type Flags struct {
	fs          *pflag.FlagSet
	ConfigPath  string
	Addr        string
	DatabaseURL string
	LogLevel    string
	DryRun      bool
	Version     bool
}

func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.ConfigPath, "config", "", "path to the YAML config file (env METADATA_CONFIG)")
	fs.StringVar(&f.Addr, "addr", DefaultAddr, "http listen address")
	fs.StringVar(&f.DatabaseURL, "database-url", "", "postgres:// or sqlite: database url (env DATABASE_URL)")
	fs.StringVar(&f.LogLevel, "log-level", "info", "debug, info, warn or error")
	fs.BoolVar(&f.DryRun, "dry-run", false, "run maintainers without side effects")
	fs.BoolVar(&f.Version, "version", false, "print version and exit")
	return f
}

func (f *Flags) changed(name string) bool { return f != nil && f.fs != nil && f.fs.Changed(name) }

// Load builds the configuration. lookup reads the environment; nil uses
// os.LookupEnv.
func Load(f *Flags, lookup func(string) (string, bool)) (*Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := Default()

	path := ""
	if f != nil {
		path = f.ConfigPath
	}
	if path == "" {
		path, _ = lookup("METADATA_CONFIG")
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if f.changed("addr") {
		cfg.Addr = f.Addr
	}
	if f.changed("database-url") {
		cfg.DatabaseURL = f.DatabaseURL
	}
	if f.changed("log-level") {
		cfg.Log.Level = f.LogLevel
	}
	if f.changed("dry-run") {
		cfg.Maintainer.DryRun = f.DryRun
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}

	str("METADATA_ADDR", &c.Addr)
	str("DATABASE_URL", &c.DatabaseURL)
	str("LOG_LEVEL", &c.Log.Level)
	str("WAREHOUSE_PROJECT", &c.Warehouse.Project)
	str("BIGQUERY_REGION", &c.Warehouse.Region)
	str("SCHEMA_BUCKET_NAME", &c.Registry.Bucket)
	if v, ok := lookup("MAINTAINER_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MAINTAINER_INTERVAL: %w", err)
		}
		c.Maintainer.Interval = d
	}
	return errors.Join(
		boolean("JSON_LOGS", &c.Log.JSON),
		boolean("RUN_MAINTAINER", &c.Maintainer.Run),
		boolean("DRY_RUN", &c.Maintainer.DryRun),
		boolean("OTEL_STDOUT", &c.Telemetry.Stdout),
	)
}

// Logger builds the process logger.
func (c *Config) Logger() *logrus.Logger {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(c.Log.Level); err == nil {
		log.SetLevel(lvl)
	}
	if c.Log.JSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
