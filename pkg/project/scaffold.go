package project

import (
	_ "embed"
	"os"
	"path/filepath"
	"testing/fstest"

	"github.com/pkg/errors"
	"github.com/tablekeeper/tablekeeper/pkg/config"
	"github.com/tablekeeper/tablekeeper/pkg/consts"
)

var (
	//go:embed embed/tablekeeper.yaml
	defaultConfig []byte

	//go:embed embed/schema.yaml
	defaultSchema []byte

	image = fstest.MapFS{
		"db":               {Mode: os.ModeDir | consts.ModeDir},
		"db/schema.yaml":   {Data: defaultSchema},
		"tablekeeper.yaml": {Data: defaultConfig},
	}
)

// Initialize sets up the project directory structure: tablekeeper.yaml and a
// starter schema model file. It is idempotent, creating only the missing
// pieces and leaving existing content untouched.
//
// Example:
//
//	proj := project.New("/path/to/my/project", nil)
//	if err := proj.Initialize(); err != nil {
//		log.Fatal(err)
//	}
func (p *Project) Initialize() error {
	if err := p.ensureDirectory(); err != nil {
		return err
	}

	for path, entry := range image {
		fullPath := filepath.Join(p.Dir, path)

		if _, err := os.Stat(fullPath); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to stat %s", fullPath)
		}

		if entry.Mode.IsDir() {
			if err := os.MkdirAll(fullPath, entry.Mode.Perm()); err != nil {
				return errors.Wrapf(err, "failed to create directory %s", fullPath)
			}

			continue
		}

		if err := os.MkdirAll(filepath.Dir(fullPath), consts.ModeDir); err != nil {
			return errors.Wrapf(err, "failed to create parent directory %s", filepath.Dir(fullPath))
		}

		if err := os.WriteFile(fullPath, entry.Data, consts.ModeFile); err != nil {
			return errors.Wrapf(err, "failed to write file %s", fullPath)
		}
	}

	cfg, err := config.LoadConfigFile(filepath.Join(p.Dir, "tablekeeper.yaml"))
	if err != nil {
		return errors.Wrap(err, "failed to load tablekeeper.yaml")
	}

	p.Config = cfg
	return nil
}

func (p *Project) ensureDirectory() error {
	dir, err := os.Stat(p.Dir)
	if err != nil {
		return errors.Wrapf(err, "failed to stat dir: %s", p.Dir)
	}

	if !dir.IsDir() {
		return errors.Errorf("%s is not a directory", p.Dir)
	}

	return nil
}
