package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/tablekeeper/tablekeeper/pkg/consts"
	"github.com/tablekeeper/tablekeeper/pkg/project"
	"github.com/urfave/cli/v3"
)

// initCmd creates the init command for scaffolding a new tablekeeper
// project.
//
// The command creates tablekeeper.yaml and a starter schema model under
// db/schema.yaml. It is idempotent: existing files are never overwritten.
//
// Example usage:
//
//	# Initialize in the current directory
//	tablekeeper init
//
//	# Initialize a new directory
//	tablekeeper init my-project
func initCmd() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Initialize a new tablekeeper project",
		ArgsUsage: "[directory]",
		Description: `Create the tablekeeper project layout:

  tablekeeper.yaml   project configuration (database URL, schema file path)
  db/schema.yaml     starter schema model

Existing files are left untouched, so init is safe to re-run.`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := cmd.Args().First()
			if dir == "" {
				dir = "."
			}

			if err := os.MkdirAll(dir, consts.ModeDir); err != nil {
				return errors.Wrapf(err, "failed to create project directory %s", dir)
			}

			proj := project.New(dir, nil)
			if err := proj.Initialize(); err != nil {
				return err
			}

			fmt.Printf("Initialized tablekeeper project in %s\n", dir)
			fmt.Println("Edit tablekeeper.yaml to point at your database, then run 'tablekeeper plan'.")
			return nil
		},
	}
}
