package executor_test

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/tablekeeper/tablekeeper/pkg/ddl"
	. "github.com/tablekeeper/tablekeeper/pkg/executor"
	"github.com/tablekeeper/tablekeeper/pkg/history"
	"github.com/tablekeeper/tablekeeper/pkg/model"
	"github.com/stretchr/testify/require"
)

type (
	fakeTx struct {
		executed   []string
		failOn     string
		failErr    error
		committed  bool
		rolledBack bool
	}

	fakeSession struct {
		tx           *fakeTx
		postExecuted []string
		postFailOn   string
		postFailErr  error
	}

	fakeStore struct {
		history.Store

		recorded      *history.Record
		savedChecksum bool
		flagged       string
		recordErr     error
	}
)

func (t *fakeTx) Exec(_ context.Context, query string, _ ...any) error {
	if t.failOn != "" && query == t.failOn {
		return t.failErr
	}
	t.executed = append(t.executed, query)
	return nil
}

func (t *fakeTx) Commit() error   { t.committed = true; return nil }
func (t *fakeTx) Rollback() error { t.rolledBack = true; return nil }

func (s *fakeSession) Begin(context.Context) (Tx, error) { return s.tx, nil }

func (s *fakeSession) Exec(_ context.Context, query string, _ ...any) error {
	if s.postFailOn != "" && query == s.postFailOn {
		return s.postFailErr
	}
	s.postExecuted = append(s.postExecuted, query)
	return nil
}

func (s *fakeStore) RecordMigration(_ context.Context, _ history.Execer, rec *history.Record) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.recorded = rec
	return nil
}

func (s *fakeStore) SaveChecksum(_ context.Context, _ history.Execer, _ string, _ *model.SchemaModel) error {
	s.savedChecksum = true
	return nil
}

func (s *fakeStore) FlagIndexFailure(_ context.Context, _ string, indexErr string) error {
	s.flagged = indexErr
	return nil
}

func testPlan() *ddl.Plan {
	p := &ddl.Plan{}
	p.Statements = []ddl.Statement{
		{SQL: `CREATE TABLE "contacts" ("email" text)`, Description: `Create table "contacts"`},
		{SQL: `CREATE INDEX IF NOT EXISTS "tk_idx_1_1" ON "contacts" ("email")`, Description: "index"},
	}
	return p
}

func TestExecuteSuccess(t *testing.T) {
	tx := &fakeTx{}
	sess := &fakeSession{tx: tx}
	store := &fakeStore{}

	exec := New(Config{Session: sess, Store: store})
	result, err := exec.Execute(context.Background(), testPlan(), &model.SchemaModel{}, "h1:abc")
	require.NoError(t, err)

	require.Equal(t, StatusSuccess, result.Status)
	require.Equal(t, testPlan().SQL(), result.Applied)
	require.True(t, tx.committed)
	require.False(t, tx.rolledBack)

	// History and checksum were written through the open transaction.
	require.NotNil(t, store.recorded)
	require.Equal(t, "h1:abc", store.recorded.Checksum)
	require.Equal(t, testPlan().SQL(), store.recorded.Statements)
	require.True(t, store.savedChecksum)
}

func TestExecuteRollsBackOnFailure(t *testing.T) {
	boom := errors.New("boom")
	tx := &fakeTx{failOn: `CREATE INDEX IF NOT EXISTS "tk_idx_1_1" ON "contacts" ("email")`, failErr: boom}
	sess := &fakeSession{tx: tx}
	store := &fakeStore{}

	exec := New(Config{Session: sess, Store: store})
	result, err := exec.Execute(context.Background(), testPlan(), &model.SchemaModel{}, "h1:abc")

	require.Error(t, err)
	require.Equal(t, StatusFailed, result.Status)
	require.True(t, tx.rolledBack)
	require.False(t, tx.committed)
	require.Nil(t, store.recorded)

	var execErr *ExecutionError
	require.ErrorAs(t, err, &execErr)
	require.Contains(t, execErr.Error(), `"tk_idx_1_1"`)
	require.ErrorIs(t, err, boom)
}

func TestExecuteClassifiesConstraintViolations(t *testing.T) {
	pqErr := &pq.Error{Code: "23505", Message: "duplicate key"}
	tx := &fakeTx{failOn: `CREATE TABLE "contacts" ("email" text)`, failErr: pqErr}
	sess := &fakeSession{tx: tx}
	store := &fakeStore{}

	exec := New(Config{Session: sess, Store: store})
	_, err := exec.Execute(context.Background(), testPlan(), &model.SchemaModel{}, "h1:abc")

	var cvErr *ConstraintViolationError
	require.ErrorAs(t, err, &cvErr)
	require.True(t, tx.rolledBack)
}

func TestExecuteRollsBackWhenHistoryWriteFails(t *testing.T) {
	tx := &fakeTx{}
	sess := &fakeSession{tx: tx}
	store := &fakeStore{recordErr: errors.New("log table gone")}

	exec := New(Config{Session: sess, Store: store})
	result, err := exec.Execute(context.Background(), testPlan(), &model.SchemaModel{}, "h1:abc")

	require.Error(t, err)
	require.Equal(t, StatusFailed, result.Status)
	require.True(t, tx.rolledBack)
}

func TestExecutePostCommitFailureIsNonFatal(t *testing.T) {
	concurrent := `CREATE INDEX CONCURRENTLY IF NOT EXISTS "tk_idx_1_1" ON "contacts" ("email")`

	plan := testPlan()
	plan.PostCommit = []ddl.Statement{{SQL: concurrent, Description: "concurrent index"}}

	tx := &fakeTx{}
	sess := &fakeSession{tx: tx, postFailOn: concurrent, postFailErr: errors.New("deadlock")}
	store := &fakeStore{}

	exec := New(Config{Session: sess, Store: store})
	result, err := exec.Execute(context.Background(), plan, &model.SchemaModel{}, "h1:abc")

	// The transaction committed; the run is still a success.
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)
	require.True(t, tx.committed)

	var idxErr *ConcurrentIndexError
	require.ErrorAs(t, result.IndexError, &idxErr)
	require.Contains(t, store.flagged, "concurrent index build failed")
}

func TestExecutePostCommitRunsOutsideTransaction(t *testing.T) {
	concurrent := `CREATE INDEX CONCURRENTLY IF NOT EXISTS "tk_idx_1_1" ON "contacts" ("email")`

	plan := testPlan()
	plan.PostCommit = []ddl.Statement{{SQL: concurrent, Description: "concurrent index"}}

	tx := &fakeTx{}
	sess := &fakeSession{tx: tx}
	store := &fakeStore{}

	exec := New(Config{Session: sess, Store: store})
	_, err := exec.Execute(context.Background(), plan, &model.SchemaModel{}, "h1:abc")
	require.NoError(t, err)

	require.NotContains(t, tx.executed, concurrent)
	require.Contains(t, sess.postExecuted, concurrent)
}
