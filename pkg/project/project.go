// Package project loads a tablekeeper project: the directory holding
// tablekeeper.yaml and the schema model file it points at.
//
// The schema file is the boundary to the application's own configuration
// system: it is a declarative YAML rendering of the schema model, with
// field types given by their catalog names. Loading normalizes the virtual
// flag from the type catalog and validates the resulting model.
package project

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/tablekeeper/tablekeeper/pkg/config"
	"github.com/tablekeeper/tablekeeper/pkg/model"
	"gopkg.in/yaml.v3"
)

type (
	// Project is a tablekeeper project rooted at Dir.
	Project struct {
		Dir    string
		Config *config.Config
	}

	schemaFile struct {
		Tables []tableEntry `yaml:"tables"`
		Views  []viewEntry  `yaml:"views,omitempty"`
	}

	tableEntry struct {
		StableID          int64        `yaml:"stableId"`
		Name              string       `yaml:"name"`
		Fields            []fieldEntry `yaml:"fields"`
		UniqueConstraints [][]int64    `yaml:"uniqueConstraints,omitempty"`
		Indexes           []indexEntry `yaml:"indexes,omitempty"`
	}

	fieldEntry struct {
		StableID int64    `yaml:"stableId"`
		Name     string   `yaml:"name"`
		Type     string   `yaml:"type"`
		Required bool     `yaml:"required,omitempty"`
		Unique   bool     `yaml:"unique,omitempty"`
		Default  *string  `yaml:"default,omitempty"`
		Options  []string `yaml:"options,omitempty"`
	}

	indexEntry struct {
		Fields     []int64 `yaml:"fields"`
		Unique     bool    `yaml:"unique,omitempty"`
		Concurrent bool    `yaml:"concurrent,omitempty"`
	}

	viewEntry struct {
		StableID     int64  `yaml:"stableId"`
		Name         string `yaml:"name"`
		Definition   string `yaml:"definition"`
		Materialized bool   `yaml:"materialized,omitempty"`
		Refresh      bool   `yaml:"refresh,omitempty"`
	}
)

// New creates a Project for the given directory and configuration.
func New(dir string, cfg *config.Config) *Project {
	return &Project{Dir: dir, Config: cfg}
}

// LoadSchema reads and validates the project's schema model file.
func (p *Project) LoadSchema() (*model.SchemaModel, error) {
	path := filepath.Join(p.Dir, p.Config.Schema)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open schema file %s", path)
	}
	defer f.Close()

	return LoadSchema(f)
}

// LoadSchema parses a schema model from YAML and validates it.
func LoadSchema(r io.Reader) (*model.SchemaModel, error) {
	var file schemaFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal schema file")
	}

	m := &model.SchemaModel{}
	for _, te := range file.Tables {
		table := model.TableSpec{
			StableID:          te.StableID,
			Name:              te.Name,
			UniqueConstraints: te.UniqueConstraints,
		}
		for _, fe := range te.Fields {
			ft, err := model.ParseFieldType(fe.Type)
			if err != nil {
				return nil, errors.Wrapf(err, "table %q, field %q", te.Name, fe.Name)
			}
			table.Fields = append(table.Fields, model.FieldSpec{
				StableID: fe.StableID,
				Name:     fe.Name,
				Type:     ft,
				Required: fe.Required,
				Unique:   fe.Unique,
				Default:  fe.Default,
				Options:  fe.Options,
				Virtual:  ft.Virtual(),
			})
		}
		for _, ie := range te.Indexes {
			table.Indexes = append(table.Indexes, model.IndexSpec{
				FieldIDs:   ie.Fields,
				Unique:     ie.Unique,
				Concurrent: ie.Concurrent,
			})
		}
		m.Tables = append(m.Tables, table)
	}

	for _, ve := range file.Views {
		m.Views = append(m.Views, model.ViewSpec{
			StableID:     ve.StableID,
			Name:         ve.Name,
			Definition:   ve.Definition,
			Materialized: ve.Materialized,
			Refresh:      ve.Refresh,
		})
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
