// Package config loads the tablekeeper project configuration: the target
// database, the schema model file, tracking table names and the optional
// advisory lock.
package config

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type (
	// Database contains target database settings.
	Database struct {
		// URL is the PostgreSQL connection string (postgres://... or
		// key=value DSN form).
		URL string `yaml:"url"`
	}

	// History configures the engine's tracking tables.
	History struct {
		// MigrationsTable is the append-only migration log table name.
		MigrationsTable string `yaml:"migrations_table,omitempty"`

		// ChecksumTable is the schema checksum record table name.
		ChecksumTable string `yaml:"checksum_table,omitempty"`
	}

	// Lock configures the optional advisory lock wrapped around a run, for
	// deployments where multiple processes may start concurrently against
	// one database.
	Lock struct {
		Enabled bool  `yaml:"enabled,omitempty"`
		Key     int64 `yaml:"key,omitempty"`
	}

	// Config is the tablekeeper project configuration.
	Config struct {
		Database Database `yaml:"database"`
		History  History  `yaml:"history,omitempty"`
		Lock     Lock     `yaml:"lock,omitempty"`

		// Schema is the path of the schema model file, relative to the
		// project directory.
		Schema string `yaml:"schema"`
	}
)

// LoadConfig parses a project configuration from the provided io.Reader.
//
// The function expects YAML-formatted configuration defining the target
// database, the schema model file, and optional history/lock settings.
//
// Example:
//
//	yamlData := `
//	database:
//	  url: postgres://localhost:5432/app?sslmode=disable
//	schema: schema.yaml
//	`
//
//	cfg, err := config.LoadConfig(strings.NewReader(yamlData))
//	if err != nil {
//		return err
//	}
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal project config")
	}

	if cfg.Schema == "" {
		return nil, errors.New("config is missing the schema file path")
	}

	return &cfg, nil
}

// LoadConfigFile loads a project configuration from the named file.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open config file %s", path)
	}
	defer f.Close()

	return LoadConfig(f)
}
