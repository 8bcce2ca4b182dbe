package engine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/tablekeeper/tablekeeper/pkg/differ"
	. "github.com/tablekeeper/tablekeeper/pkg/engine"
	"github.com/tablekeeper/tablekeeper/pkg/executor"
	"github.com/tablekeeper/tablekeeper/pkg/history"
	"github.com/tablekeeper/tablekeeper/pkg/model"
	"github.com/stretchr/testify/require"
)

type (
	fakeTx struct {
		executed []string
	}

	fakeSession struct {
		tx           *fakeTx
		postExecuted []string
	}

	fakeStore struct {
		bootstrapped bool
		checksum     string
		model        *model.SchemaModel
		records      []history.Record
	}

	fakeIntrospector struct {
		model *model.SchemaModel
	}
)

func (t *fakeTx) Exec(_ context.Context, query string, _ ...any) error {
	t.executed = append(t.executed, query)
	return nil
}

func (t *fakeTx) Commit() error   { return nil }
func (t *fakeTx) Rollback() error { return nil }

func (s *fakeSession) Begin(context.Context) (executor.Tx, error) { return s.tx, nil }

func (s *fakeSession) Exec(_ context.Context, query string, _ ...any) error {
	s.postExecuted = append(s.postExecuted, query)
	return nil
}

func (s *fakeStore) EnsureBootstrap(context.Context) error {
	s.bootstrapped = true
	return nil
}

func (s *fakeStore) Checksum(context.Context) (string, bool, error) {
	return s.checksum, s.checksum != "", nil
}

func (s *fakeStore) Model(context.Context) (*model.SchemaModel, bool, error) {
	return s.model, s.model != nil, nil
}

func (s *fakeStore) History(context.Context, int) ([]history.Record, error) {
	return s.records, nil
}

func (s *fakeStore) RecordMigration(_ context.Context, _ history.Execer, rec *history.Record) error {
	s.records = append([]history.Record{*rec}, s.records...)
	return nil
}

func (s *fakeStore) SaveChecksum(_ context.Context, _ history.Execer, checksum string, m *model.SchemaModel) error {
	s.checksum = checksum
	s.model = m
	return nil
}

func (s *fakeStore) FlagIndexFailure(_ context.Context, _ string, indexErr string) error {
	if len(s.records) > 0 {
		s.records[0].IndexError = indexErr
	}
	return nil
}

func (i *fakeIntrospector) Introspect(context.Context) (*model.SchemaModel, error) {
	return i.model, nil
}

func desiredModel() *model.SchemaModel {
	return &model.SchemaModel{
		Tables: []model.TableSpec{
			{
				StableID: 1,
				Name:     "contacts",
				Fields: []model.FieldSpec{
					{StableID: 1, Name: "email", Type: model.TypeEmail, Required: true},
				},
			},
		},
	}
}

func newEngine(store history.Store, sess executor.Session, intro Introspector) *Engine {
	return New(Config{
		Store:        store,
		Executor:     executor.New(executor.Config{Session: sess, Store: store}),
		Introspector: intro,
	})
}

func TestRunColdStartCreatesEverything(t *testing.T) {
	tx := &fakeTx{}
	store := &fakeStore{}
	eng := newEngine(store, &fakeSession{tx: tx}, nil)

	outcome, err := eng.Run(context.Background(), desiredModel())
	require.NoError(t, err)
	require.Equal(t, executor.StatusSuccess, outcome.Status)
	require.True(t, store.bootstrapped)

	require.NotEmpty(t, outcome.AppliedStatements)
	require.Contains(t, outcome.AppliedStatements[0], `CREATE TABLE "contacts"`)

	// Second run with the same model is a checksum skip.
	tx.executed = nil
	outcome, err = eng.Run(context.Background(), desiredModel())
	require.NoError(t, err)
	require.Equal(t, executor.StatusSkipped, outcome.Status)
	require.Empty(t, tx.executed)
}

func TestRunRejectsInvalidModel(t *testing.T) {
	store := &fakeStore{}
	eng := newEngine(store, &fakeSession{tx: &fakeTx{}}, nil)

	bad := desiredModel()
	bad.Tables[0].Fields[0].StableID = 0

	outcome, err := eng.Run(context.Background(), bad)
	require.Equal(t, executor.StatusFailed, outcome.Status)

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	require.False(t, store.bootstrapped) // nothing touched the database
}

func TestRunRenameUsesStoredModel(t *testing.T) {
	prev := desiredModel()
	prevChecksum, err := prev.Checksum()
	require.NoError(t, err)

	tx := &fakeTx{}
	store := &fakeStore{checksum: prevChecksum, model: prev}
	eng := newEngine(store, &fakeSession{tx: tx}, nil)

	next := desiredModel()
	next.Tables[0].Fields[0].Name = "primary_email"

	outcome, err := eng.Run(context.Background(), next)
	require.NoError(t, err)
	require.Equal(t, executor.StatusSuccess, outcome.Status)

	require.Len(t, outcome.AppliedStatements, 1)
	require.Contains(t, outcome.AppliedStatements[0], `RENAME COLUMN "email" TO "primary_email"`)

	// The stored model and checksum now reflect the new schema.
	nextChecksum, err := next.Checksum()
	require.NoError(t, err)
	require.Equal(t, nextChecksum, store.checksum)
}

func TestRunAmbiguityAborts(t *testing.T) {
	prev := desiredModel()
	prevChecksum, err := prev.Checksum()
	require.NoError(t, err)

	tx := &fakeTx{}
	store := &fakeStore{checksum: prevChecksum, model: prev}
	eng := newEngine(store, &fakeSession{tx: tx}, nil)

	next := desiredModel()
	next.Tables[0].Fields[0].StableID = 7 // reused identity under the same name

	outcome, err := eng.Run(context.Background(), next)
	require.Equal(t, executor.StatusFailed, outcome.Status)

	var aerr *differ.AmbiguityError
	require.ErrorAs(t, err, &aerr)
	require.Empty(t, tx.executed)
}

func TestRunColdStartWithIntrospection(t *testing.T) {
	// A live database that already matches the desired schema, but with no
	// recorded history: introspection plus name matching yields no changes.
	desired := &model.SchemaModel{
		Tables: []model.TableSpec{
			{
				StableID: 1,
				Name:     "contacts",
				Fields: []model.FieldSpec{
					{StableID: 1, Name: "email", Type: model.TypeText, Required: true},
				},
			},
		},
	}
	introspected := &model.SchemaModel{
		Tables: []model.TableSpec{
			{
				StableID: 100, // synthetic identity from the catalog scan
				Name:     "contacts",
				Fields: []model.FieldSpec{
					{StableID: 101, Name: "email", Type: model.TypeText, Required: true},
				},
			},
		},
	}

	tx := &fakeTx{}
	store := &fakeStore{}
	eng := newEngine(store, &fakeSession{tx: tx}, &fakeIntrospector{model: introspected})

	outcome, err := eng.Run(context.Background(), desired)
	require.NoError(t, err)
	require.Equal(t, executor.StatusSuccess, outcome.Status)

	// No DDL was needed; the run only established checksum and history.
	require.Empty(t, outcome.AppliedStatements)
	require.NotEmpty(t, store.checksum)
	require.Len(t, store.records, 1)
}

func TestPlan(t *testing.T) {
	store := &fakeStore{}
	eng := newEngine(store, &fakeSession{tx: &fakeTx{}}, nil)

	plan, err := eng.Plan(context.Background(), desiredModel())
	require.NoError(t, err)
	require.NotNil(t, plan)
	require.True(t, strings.HasPrefix(plan.Statements[0].SQL, "CREATE TABLE"))

	// Once applied, planning again reports nothing to do.
	_, err = eng.Run(context.Background(), desiredModel())
	require.NoError(t, err)

	plan, err = eng.Plan(context.Background(), desiredModel())
	require.NoError(t, err)
	require.Nil(t, plan)
}
