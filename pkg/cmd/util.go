package cmd

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the postgres driver.
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/tablekeeper/tablekeeper/pkg/config"
	"github.com/tablekeeper/tablekeeper/pkg/engine"
	"github.com/tablekeeper/tablekeeper/pkg/executor"
	"github.com/tablekeeper/tablekeeper/pkg/history"
	"github.com/tablekeeper/tablekeeper/pkg/introspect"
	"github.com/tablekeeper/tablekeeper/pkg/model"
	"github.com/tablekeeper/tablekeeper/pkg/project"
	"github.com/urfave/cli/v3"
)

// target bundles everything a command needs to talk to the configured
// database. Close releases the underlying connection pool.
type target struct {
	db    *sql.DB
	store history.Store
	intro engine.Introspector
	cfg   *config.Config
}

// projectConfig prefers the configuration of the project detected by the
// global --dir flag over the one injected from the startup directory.
func projectConfig(cfg *config.Config) *config.Config {
	if currentProject != nil {
		return currentProject.Config
	}
	return cfg
}

// openTarget connects to the configured database and wires up the tracking
// store and introspector. The --url flag overrides the configured URL.
func openTarget(ctx context.Context, cmd *cli.Command, cfg *config.Config) (*target, error) {
	url := cmd.String("url")
	if url == "" {
		url = cfg.Database.URL
	}
	if url == "" {
		return nil, errors.New("no database URL configured (set database.url or pass --url)")
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to connect to database")
	}

	store := history.NewPostgresWithConfig(db, history.PostgresConfig{
		MigrationsTable: cfg.History.MigrationsTable,
		ChecksumTable:   cfg.History.ChecksumTable,
	})

	migrationsTable := cfg.History.MigrationsTable
	if migrationsTable == "" {
		migrationsTable = history.DefaultMigrationsTable
	}
	checksumTable := cfg.History.ChecksumTable
	if checksumTable == "" {
		checksumTable = history.DefaultChecksumTable
	}

	return &target{
		db:    db,
		store: store,
		intro: introspect.NewPostgres(db, migrationsTable, checksumTable),
		cfg:   cfg,
	}, nil
}

func (t *target) close() {
	_ = t.db.Close()
}

// newEngine builds the migration engine for this target.
func (t *target) newEngine() *engine.Engine {
	return engine.New(engine.Config{
		Store: t.store,
		Executor: executor.New(executor.Config{
			Session: executor.NewSession(t.db),
			Store:   t.store,
		}),
		Introspector: t.intro,
	})
}

// run invokes fn, wrapped in the configured advisory lock when enabled.
func (t *target) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if !t.cfg.Lock.Enabled {
		return fn(ctx)
	}

	return engine.WithAdvisoryLock(ctx, t.db, t.cfg.Lock.Key, fn)
}

// loadDesiredSchema reads the desired schema model for the detected project.
func loadDesiredSchema(cfg *config.Config) (*model.SchemaModel, error) {
	proj := currentProject
	if proj == nil {
		proj = project.New(".", cfg)
	}

	return proj.LoadSchema()
}

var urlFlag = &cli.StringFlag{
	Name:    "url",
	Aliases: []string{"u"},
	Usage:   "PostgreSQL connection string (overrides database.url)",
	Sources: cli.EnvVars("PG_DATABASE_URL"),
	Config: cli.StringConfig{
		TrimSpace: true,
	},
}

// printStatements renders a plan's statements for human inspection.
func printStatements(heading string, statements []string) {
	if len(statements) == 0 {
		return
	}

	fmt.Println(heading)
	for _, stmt := range statements {
		fmt.Printf("  %s\n", stmt)
	}
	fmt.Println()
}
