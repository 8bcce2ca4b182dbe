// Package engine orchestrates one migration run: checksum short-circuit,
// diff, generation, transactional execution and history recording, as an
// explicit sequence of independently testable steps.
package engine

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/tablekeeper/tablekeeper/pkg/ddl"
	"github.com/tablekeeper/tablekeeper/pkg/differ"
	"github.com/tablekeeper/tablekeeper/pkg/executor"
	"github.com/tablekeeper/tablekeeper/pkg/history"
	"github.com/tablekeeper/tablekeeper/pkg/model"
)

// State labels the run state machine. Transitions:
//
//	Idle -> Skipped                (checksum match)
//	Idle -> Diffing -> Generating -> Executing -> Committed
//	Executing -> RolledBack        (any statement failure)
type State string

const (
	StateIdle       State = "idle"
	StateSkipped    State = "skipped"
	StateDiffing    State = "diffing"
	StateGenerating State = "generating"
	StateExecuting  State = "executing"
	StateCommitted  State = "committed"
	StateRolledBack State = "rolledBack"
)

type (
	// Introspector recovers a schema model from the live catalog; used when
	// the history store has no stored model.
	Introspector interface {
		Introspect(ctx context.Context) (*model.SchemaModel, error)
	}

	// Outcome is the structured result contract exposed to the caller.
	Outcome struct {
		Status executor.Status

		// AppliedStatements holds the committed statement texts, in order.
		AppliedStatements []string

		// Error is set when Status is failed.
		Error error

		// IndexError reports a post-commit concurrent index build failure,
		// distinct from Error: the schema is correct, the index is missing.
		IndexError error
	}

	// Engine runs the migration pipeline.
	Engine struct {
		store  history.Store
		exec   *executor.Executor
		intro  Introspector
		logger *slog.Logger
	}

	// Config contains the collaborators an Engine needs.
	Config struct {
		Store    history.Store
		Executor *executor.Executor

		// Introspector is optional; without it a missing stored model is
		// treated as an empty database.
		Introspector Introspector

		// Logger defaults to slog.Default.
		Logger *slog.Logger
	}
)

// New creates an Engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  cfg.Store,
		exec:   cfg.Executor,
		intro:  cfg.Introspector,
		logger: logger,
	}
}

// Run migrates the database to match the desired model. It validates the
// model, short-circuits on a checksum match, otherwise diffs against the
// previous model (stored, or introspected on cold start), generates the
// plan, and executes it transactionally. The error, when non-nil, is one of
// the taxonomy types (*model.ValidationError, *differ.AmbiguityError,
// *executor.ConstraintViolationError, *executor.ExecutionError) or a wrapped
// infrastructure failure.
func (e *Engine) Run(ctx context.Context, desired *model.SchemaModel) (*Outcome, error) {
	if err := desired.Validate(); err != nil {
		return &Outcome{Status: executor.StatusFailed, Error: err}, err
	}

	checksum, err := desired.Checksum()
	if err != nil {
		return &Outcome{Status: executor.StatusFailed, Error: err}, err
	}

	if err := e.store.EnsureBootstrap(ctx); err != nil {
		return &Outcome{Status: executor.StatusFailed, Error: err}, err
	}

	// Fast path: unchanged model, nothing to do.
	current, found, err := e.store.Checksum(ctx)
	if err != nil {
		return &Outcome{Status: executor.StatusFailed, Error: err}, err
	}
	if found && current == checksum {
		e.logger.Info("schema unchanged, skipping migration", "state", StateSkipped, "checksum", checksum)
		return &Outcome{Status: executor.StatusSkipped}, nil
	}

	e.logger.Info("schema changed, computing diff", "state", StateDiffing, "checksum", checksum)

	previous, matchByName, err := e.previousModel(ctx)
	if err != nil {
		return &Outcome{Status: executor.StatusFailed, Error: err}, err
	}

	var opts []differ.Option
	if matchByName {
		opts = append(opts, differ.MatchByName())
	}
	changes, err := differ.New(opts...).Diff(previous, desired)
	if err != nil {
		return &Outcome{Status: executor.StatusFailed, Error: err}, err
	}

	e.logger.Info("generating statements", "state", StateGenerating,
		"tableChanges", len(changes.Tables), "viewChanges", len(changes.Views))

	plan, err := ddl.Generate(changes)
	if err != nil {
		return &Outcome{Status: executor.StatusFailed, Error: err}, err
	}

	e.logger.Info("executing migration", "state", StateExecuting,
		"statements", len(plan.Statements), "postCommit", len(plan.PostCommit))

	result, err := e.exec.Execute(ctx, plan, desired, checksum)
	if err != nil {
		e.logger.Error("migration rolled back", "state", StateRolledBack, "err", err)
		return &Outcome{Status: executor.StatusFailed, Error: err}, err
	}

	e.logger.Info("migration committed", "state", StateCommitted,
		"applied", len(result.Applied), "duration", result.Duration)
	if result.IndexError != nil {
		e.logger.Error("post-commit index build failed; schema is committed, retry the index independently",
			"err", result.IndexError)
	}

	return &Outcome{
		Status:            result.Status,
		AppliedStatements: result.Applied,
		IndexError:        result.IndexError,
	}, nil
}

// Plan computes the DDL that Run would execute without touching the
// database beyond the tracking table bootstrap. It returns a nil plan when
// the stored checksum already matches the desired model.
func (e *Engine) Plan(ctx context.Context, desired *model.SchemaModel) (*ddl.Plan, error) {
	if err := desired.Validate(); err != nil {
		return nil, err
	}

	checksum, err := desired.Checksum()
	if err != nil {
		return nil, err
	}

	if err := e.store.EnsureBootstrap(ctx); err != nil {
		return nil, err
	}

	current, found, err := e.store.Checksum(ctx)
	if err != nil {
		return nil, err
	}
	if found && current == checksum {
		return nil, nil
	}

	previous, matchByName, err := e.previousModel(ctx)
	if err != nil {
		return nil, err
	}

	var opts []differ.Option
	if matchByName {
		opts = append(opts, differ.MatchByName())
	}
	changes, err := differ.New(opts...).Diff(previous, desired)
	if err != nil {
		return nil, err
	}

	return ddl.Generate(changes)
}

// previousModel resolves the model to diff against: the stored last-applied
// model when available, otherwise the introspected live catalog (matched by
// name), otherwise an empty database.
func (e *Engine) previousModel(ctx context.Context) (*model.SchemaModel, bool, error) {
	stored, ok, err := e.store.Model(ctx)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return stored, false, nil
	}

	if e.intro == nil {
		return &model.SchemaModel{}, false, nil
	}

	introspected, err := e.intro.Introspect(ctx)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to introspect live catalog")
	}
	return introspected, true, nil
}
