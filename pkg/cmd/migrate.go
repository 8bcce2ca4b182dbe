package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tablekeeper/tablekeeper/pkg/config"
	"github.com/tablekeeper/tablekeeper/pkg/engine"
	"github.com/tablekeeper/tablekeeper/pkg/executor"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type migrateParams struct {
	fx.In

	Config *config.Config
}

// migrate creates the migrate command for applying the schema model to the
// target database.
//
// The migrate command diffs the desired schema model against the last
// applied one, generates the DDL to close the gap, and applies it in a
// single transaction. When the stored checksum already matches the desired
// model, nothing is executed.
//
// Command flags:
//   - --url, -u: PostgreSQL connection string (overrides database.url)
//
// Example usage:
//
//	# Apply the schema model from tablekeeper.yaml's database
//	tablekeeper migrate
//
//	# Apply against a different database
//	tablekeeper migrate --url postgres://localhost:5432/staging
func migrate(p migrateParams) *cli.Command {
	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"apply"},
		Usage:   "Apply the schema model to the target database",
		Description: `Apply the declarative schema model to the configured PostgreSQL database.

The migrate command executes all required DDL in a single transaction. If any
statement fails, the transaction is rolled back and the database is left
untouched. Runs whose model checksum matches the last applied one are skipped
without touching the database.

The command automatically handles:
- Bootstrap of the tracking tables on first run
- Cold-start reconciliation against an existing database without history
- Rename detection via stable field and table identities
- Concurrent index builds after the transaction commits`,
		Before: requireConfig(p.Config),
		Flags:  []cli.Flag{urlFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runMigrate(ctx, cmd, projectConfig(p.Config))
		},
	}
}

func runMigrate(ctx context.Context, cmd *cli.Command, cfg *config.Config) error {
	desired, err := loadDesiredSchema(cfg)
	if err != nil {
		return err
	}

	t, err := openTarget(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer t.close()

	slog.Info("Connected to database successfully")

	var outcome *engine.Outcome

	runErr := t.run(ctx, func(ctx context.Context) error {
		var err error
		outcome, err = t.newEngine().Run(ctx, desired)
		return err
	})

	if outcome == nil {
		return runErr
	}

	return reportOutcome(outcome)
}

func reportOutcome(o *engine.Outcome) error {
	fmt.Println()

	switch o.Status {
	case executor.StatusSkipped:
		fmt.Println("Schema is up to date. Nothing to apply.")

	case executor.StatusSuccess:
		fmt.Printf("Applied %d statements:\n", len(o.AppliedStatements))
		for _, stmt := range o.AppliedStatements {
			fmt.Printf("  %s\n", stmt)
		}

		if o.IndexError != nil {
			fmt.Println()
			fmt.Printf("Warning: a concurrent index build failed after commit: %v\n", o.IndexError)
			fmt.Println("The schema itself is correct. Re-run migrate to retry the index.")
		}

	case executor.StatusFailed:
		fmt.Printf("Migration failed: %v\n", o.Error)
		fmt.Println("The transaction was rolled back; the database is unchanged.")
		return o.Error
	}

	return nil
}
