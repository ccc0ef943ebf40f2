// Package config loads the data source layout of a feature session from a
// YAML file. Settings may be overridden by environment variables with the
// FEATURES_ prefix.
package config

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	features "github.com/pumped-fn/pumped-features"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const envPrefix = "FEATURES_"

// Config is the file layout
type Config struct {
	LogLevel          string         `yaml:"log_level"`
	StipulationPolicy string         `yaml:"stipulation_policy"`
	Sources           []SourceConfig `yaml:"sources"`

	// dir is the directory relative CSV paths are resolved against
	dir string
}

// SourceConfig describes one data source. Kind is "csv" or "sql".
type SourceConfig struct {
	Name     string          `yaml:"name"`
	Kind     string          `yaml:"kind"`
	Path     string          `yaml:"path"`    // csv
	Dialect  DialectConfig   `yaml:"dialect"` // csv
	Driver   string          `yaml:"driver"`  // sql: sqlite or postgres
	DSN      string          `yaml:"dsn"`     // sql
	Query    string          `yaml:"query"`   // sql
	Mappings []MappingConfig `yaml:"mappings"`
}

type DialectConfig struct {
	Delimiter        string `yaml:"delimiter"`
	Comment          string `yaml:"comment"`
	LazyQuotes       bool   `yaml:"lazy_quotes"`
	TrimLeadingSpace bool   `yaml:"trim_leading_space"`
}

// MappingConfig names the feature a column supplies and the column holding
// the entity name.
type MappingConfig struct {
	EntityType string `yaml:"entity_type"`
	Feature    string `yaml:"feature"`
	Column     string `yaml:"column"`
	NameColumn string `yaml:"name_column"`
}

// Load reads and validates the file at path, then applies environment
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML data. Relative CSV paths are resolved against dir.
func Parse(data []byte, dir string) (*Config, error) {
	cfg := &Config{dir: dir}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decoding yaml: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv(envPrefix+"LOG_LEVEL", c.LogLevel)
	c.StipulationPolicy = getEnv(envPrefix+"STIPULATION_POLICY", c.StipulationPolicy)
}

// Validate checks the file on its own; feature names are checked by Apply.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]bool)
	for i, src := range c.Sources {
		if src.Name == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: name is required", i))
		} else if seen[src.Name] {
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate name %q", i, src.Name))
		}
		seen[src.Name] = true

		switch src.Kind {
		case "csv":
			if src.Path == "" {
				errs = append(errs, fmt.Errorf("source %q: path is required", src.Name))
			}
			if _, err := src.Dialect.dialect(); err != nil {
				errs = append(errs, fmt.Errorf("source %q: %w", src.Name, err))
			}
		case "sql":
			if src.Driver == "" || src.Query == "" {
				errs = append(errs, fmt.Errorf("source %q: driver and query are required", src.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("source %q: unknown kind %q", src.Name, src.Kind))
		}

		if len(src.Mappings) == 0 {
			errs = append(errs, fmt.Errorf("source %q: no mappings", src.Name))
		}
		for j, m := range src.Mappings {
			if m.EntityType == "" || m.Feature == "" || m.Column == "" || m.NameColumn == "" {
				errs = append(errs, fmt.Errorf("source %q: mappings[%d]: entity_type, feature, column and name_column are required", src.Name, j))
			}
		}
	}

	return errors.Join(errs...)
}

// Level parses LogLevel, defaulting to info.
func (c *Config) Level() (zapcore.Level, error) {
	if c.LogLevel == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}

func (c *Config) Policy() (features.StipulationPolicy, error) {
	p, err := features.ParseStipulationPolicy(c.StipulationPolicy)
	if err != nil {
		return p, fmt.Errorf("stipulation_policy: %w", err)
	}
	return p, nil
}

// Apply builds every configured data source and registers it with the
// session. Entity types and features must already be registered. The
// returned function closes the databases opened for SQL sources.
func (c *Config) Apply(s *features.Session) (func() error, error) {
	var dbs []*sql.DB
	closeAll := func() error {
		var errs []error
		for _, db := range dbs {
			errs = append(errs, db.Close())
		}
		return errors.Join(errs...)
	}

	for _, src := range c.Sources {
		ds, db, err := c.build(s.Catalog(), src)
		if db != nil {
			dbs = append(dbs, db)
		}
		if err == nil {
			err = s.AddDataSource(ds)
		}
		if err != nil {
			_ = closeAll()
			return nil, fmt.Errorf("config: source %q: %w", src.Name, err)
		}
	}
	return closeAll, nil
}

type mapper interface {
	features.DataSource
	AddMapping(feature features.AnyFeature, featureColumn, nameColumn string)
}

func (c *Config) build(cat *features.Catalog, src SourceConfig) (features.DataSource, *sql.DB, error) {
	var (
		ds mapper
		db *sql.DB
	)

	switch src.Kind {
	case "csv":
		dialect, err := src.Dialect.dialect()
		if err != nil {
			return nil, nil, err
		}
		path := src.Path
		if !filepath.IsAbs(path) && c.dir != "" {
			path = filepath.Join(c.dir, path)
		}
		ds = features.NewCSVDataSource(src.Name, path, dialect)
	case "sql":
		var err error
		db, err = sql.Open(driverName(src.Driver), src.DSN)
		if err != nil {
			return nil, nil, err
		}
		ds = features.NewSQLDataSource(src.Name, db, src.Query)
	default:
		return nil, nil, fmt.Errorf("unknown kind %q", src.Kind)
	}

	for _, m := range src.Mappings {
		et, ok := cat.EntityType(m.EntityType)
		if !ok {
			return nil, db, fmt.Errorf("%w: %q", features.ErrUnknownEntityType, m.EntityType)
		}
		f, ok := cat.Feature(et, m.Feature)
		if !ok {
			return nil, db, &features.UnknownFeatureError{EntityType: m.EntityType, Feature: m.Feature}
		}
		ds.AddMapping(f, m.Column, m.NameColumn)
	}
	return ds, db, nil
}

// driverName maps config driver names to registered database/sql drivers.
func driverName(driver string) string {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return "sqlite"
	case "postgres", "postgresql":
		return "postgres"
	default:
		return driver
	}
}

func (d DialectConfig) dialect() (features.Dialect, error) {
	out := features.DefaultDialect
	out.LazyQuotes = d.LazyQuotes
	out.TrimLeadingSpace = d.TrimLeadingSpace

	if d.Delimiter != "" {
		r, err := singleRune("delimiter", d.Delimiter)
		if err != nil {
			return out, err
		}
		out.Delimiter = r
	}
	if d.Comment != "" {
		r, err := singleRune("comment", d.Comment)
		if err != nil {
			return out, err
		}
		out.Comment = r
	}
	return out, nil
}

func singleRune(field, s string) (rune, error) {
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("dialect %s must be a single character, got %q", field, s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
