package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tablekeeper/tablekeeper/pkg/config"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type statusParams struct {
	fx.In

	Config *config.Config
}

// status creates the status command for showing the migration state of the
// target database.
//
// The status command compares the desired model checksum with the stored one
// and reports whether a migration is pending, then lists the migration
// history.
//
// Command flags:
//   - --url, -u: PostgreSQL connection string (overrides database.url)
//   - --verbose: Show the statements of each recorded migration
//
// Example usage:
//
//	# Show whether the database is in sync
//	tablekeeper status
//
//	# Include per-migration statement detail
//	tablekeeper status --verbose
func status(p statusParams) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show migration status",
		Description: `Display the migration state of the configured PostgreSQL database.

The status command shows:
- Whether the desired schema model matches the last applied one
- The recorded migration history with timestamps
- Any concurrent index build failure flagged on the last migration

This command is useful for:
- Checking if a migration is pending before a deploy
- Auditing what DDL previous runs executed
- Spotting a failed concurrent index build that needs a retry`,
		Before: requireConfig(p.Config),
		Flags: []cli.Flag{
			urlFlag,
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Show the statements of each recorded migration",
				Value: false,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runStatus(ctx, cmd, projectConfig(p.Config))
		},
	}
}

func runStatus(ctx context.Context, cmd *cli.Command, cfg *config.Config) error {
	verbose := cmd.Bool("verbose")

	desired, err := loadDesiredSchema(cfg)
	if err != nil {
		return err
	}

	checksum, err := desired.Checksum()
	if err != nil {
		return err
	}

	t, err := openTarget(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer t.close()

	slog.Info("Checking migration status", "checksum", checksum)

	if err := t.store.EnsureBootstrap(ctx); err != nil {
		return err
	}

	stored, found, err := t.store.Checksum(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Migration Status")
	fmt.Println()

	switch {
	case !found:
		fmt.Println("No migrations have been applied yet.")
		fmt.Println("Run 'tablekeeper migrate' to apply the schema model.")
	case stored == checksum:
		fmt.Println("Database is in sync with the schema model.")
	default:
		fmt.Println("Schema model has changed since the last migration.")
		fmt.Println("Run 'tablekeeper plan' to preview or 'tablekeeper migrate' to apply.")
	}
	fmt.Println()

	records, err := t.store.History(ctx, 25)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		return nil
	}

	fmt.Printf("Migration history (%d):\n", len(records))
	for _, rec := range records {
		fmt.Printf("  %s  %s  (%d statements)\n",
			rec.AppliedAt.Format("2006-01-02 15:04:05 UTC"),
			rec.Checksum,
			len(rec.Statements),
		)

		if rec.IndexError != "" {
			fmt.Printf("    Warning: concurrent index build failed: %s\n", rec.IndexError)
		}

		if verbose {
			for _, stmt := range rec.Statements {
				fmt.Printf("    %s\n", stmt)
			}
		}
	}

	return nil
}
