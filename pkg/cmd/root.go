package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	"github.com/tablekeeper/tablekeeper/pkg/config"
	"github.com/tablekeeper/tablekeeper/pkg/project"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

var currentProject *project.Project

type (
	Params struct {
		fx.In

		Args       []string
		Commands   []*cli.Command `group:"commands"`
		Ctx        context.Context
		Lifecycle  fx.Lifecycle
		Shutdowner fx.Shutdowner
		Version    *Version
	}

	Version struct {
		Version   string
		Commit    string
		Timestamp string
	}
)

// Run assembles the root tablekeeper command from the injected subcommands
// and schedules it on the fx lifecycle; the process exits with code 1 when
// the command fails.
//
// The root command owns what every subcommand shares: the global --dir flag
// changes into the project directory before the subcommand runs, and when
// that directory holds a tablekeeper.yaml the project is loaded there so
// subcommands see its configuration no matter where the process started.
// Commands that work without a project (init, help, version) run either way.
//
// Example usage:
//
//	# Run in the current directory
//	tablekeeper migrate
//
//	# Run against another project directory
//	tablekeeper --dir /path/to/project plan
func Run(p Params) {
	cli.VersionPrinter = func(cmd *cli.Command) {
		fmt.Fprintln(cmd.Writer, "Version:", p.Version.Version)
		fmt.Fprintln(cmd.Writer, "Commit:", p.Version.Commit)
		fmt.Fprintln(cmd.Writer, "Date:", p.Version.Timestamp)
	}

	app := &cli.Command{
		Name:  "tablekeeper",
		Usage: "A tool for migrating PostgreSQL schemas from a declarative model",
		Description: `tablekeeper is a CLI tool that keeps a PostgreSQL database in step with a
declarative schema model. It diffs the desired model against the last applied
one, generates the DDL to close the gap, and applies it in a single
transaction with full history tracking.`,
		Version: p.Version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "dir",
				Aliases:     []string{"d"},
				Usage:       "the project directory",
				Value:       ".",
				DefaultText: "Current directory",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			projectDir := cmd.String("dir")

			// Change to project directory first
			if err := os.Chdir(projectDir); err != nil {
				return ctx, err
			}

			// Check if this is a tablekeeper project
			_, err := os.Stat("tablekeeper.yaml")
			if os.IsNotExist(err) {
				return ctx, nil
			}

			if err != nil {
				return ctx, err
			}

			pwd, err := os.Getwd()
			if err != nil {
				return ctx, errors.Wrap(err, "failed to get current working directory")
			}

			cfg, err := config.LoadConfigFile("tablekeeper.yaml")
			if err != nil {
				return ctx, err
			}

			currentProject = project.New(pwd, cfg)
			return ctx, nil
		},
		Commands: p.Commands,
	}

	p.Lifecycle.Append(fx.StartHook(func() {
		if err := app.Run(p.Ctx, p.Args); err != nil {
			slog.Error("Error running command", "err", err)
			_ = p.Shutdowner.Shutdown(fx.ExitCode(1))
		}

		_ = p.Shutdowner.Shutdown(fx.ExitCode(0))
	}))
}

func requireConfig(cfg *config.Config) func(context.Context, *cli.Command) (context.Context, error) {
	return func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
		if projectConfig(cfg) == nil {
			return ctx, errors.New("tablekeeper.yaml not found")
		}

		return ctx, nil
	}
}
