package cmd

import (
	"context"
	"fmt"

	"github.com/tablekeeper/tablekeeper/pkg/config"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type planParams struct {
	fx.In

	Config *config.Config
}

// plan creates the plan command for previewing pending schema changes.
//
// The plan command computes the DDL that migrate would execute and prints it
// without applying anything. Statements that run after the transaction
// commits (concurrent index builds) are listed separately.
//
// Command flags:
//   - --url, -u: PostgreSQL connection string (overrides database.url)
//
// Example usage:
//
//	# Preview pending changes
//	tablekeeper plan
//
//	# Preview against a different database
//	tablekeeper plan --url postgres://localhost:5432/staging
func plan(p planParams) *cli.Command {
	return &cli.Command{
		Name:    "plan",
		Aliases: []string{"diff"},
		Usage:   "Show the DDL that migrate would execute",
		Description: `Compute and print the DDL required to bring the configured database in
step with the schema model, without executing any of it.

Only the tracking tables are created if missing; the application schema is
never modified by this command.`,
		Before: requireConfig(p.Config),
		Flags:  []cli.Flag{urlFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runPlan(ctx, cmd, projectConfig(p.Config))
		},
	}
}

func runPlan(ctx context.Context, cmd *cli.Command, cfg *config.Config) error {
	desired, err := loadDesiredSchema(cfg)
	if err != nil {
		return err
	}

	t, err := openTarget(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer t.close()

	pl, err := t.newEngine().Plan(ctx, desired)
	if err != nil {
		return err
	}

	if pl == nil {
		fmt.Println("Schema is up to date. Nothing to apply.")
		return nil
	}

	if pl.Empty() {
		fmt.Println("No structural changes; migrate would only refresh the stored checksum.")
		return nil
	}

	printStatements("Transactional statements:", pl.SQL())

	post := make([]string, 0, len(pl.PostCommit))
	for _, stmt := range pl.PostCommit {
		post = append(post, stmt.SQL)
	}
	printStatements("Post-commit statements (run outside the transaction):", post)

	fmt.Println("Run 'tablekeeper migrate' to apply these changes.")
	return nil
}
