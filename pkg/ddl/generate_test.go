package ddl_test

import (
	"fmt"
	"strings"
	"testing"

	. "github.com/tablekeeper/tablekeeper/pkg/ddl"
	"github.com/tablekeeper/tablekeeper/pkg/differ"
	"github.com/tablekeeper/tablekeeper/pkg/model"
	"github.com/tablekeeper/tablekeeper/pkg/utils"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/golden"
)

func render(p *Plan) string {
	var b strings.Builder
	for _, s := range p.Statements {
		fmt.Fprintf(&b, "-- %s\n%s;\n\n", s.Description, s.SQL)
	}
	for _, s := range p.PostCommit {
		fmt.Fprintf(&b, "-- post-commit: %s\n%s;\n\n", s.Description, s.SQL)
	}
	return b.String()
}

func TestGenerateGoldenFiles(t *testing.T) {
	tests := []struct {
		name string
		prev *model.SchemaModel
		next *model.SchemaModel
	}{
		{
			name: "create_table",
			prev: nil,
			next: &model.SchemaModel{
				Tables: []model.TableSpec{
					{
						StableID: 1,
						Name:     "contacts",
						Fields: []model.FieldSpec{
							{StableID: 1, Name: "email", Type: model.TypeEmail, Required: true, Unique: true},
							{StableID: 2, Name: "status", Type: model.TypeSingleSelect, Options: []string{"lead", "active"}, Default: utils.Ptr("lead")},
							{StableID: 3, Name: "score", Type: model.TypeInteger},
							{StableID: 4, Name: "display", Type: model.TypeFormula, Virtual: true},
						},
						UniqueConstraints: [][]int64{{1, 3}},
						Indexes: []model.IndexSpec{
							{FieldIDs: []int64{3}},
							{FieldIDs: []int64{2}, Concurrent: true},
						},
					},
				},
				Views: []model.ViewSpec{
					{StableID: 1, Name: "active_contacts", Definition: "SELECT * FROM contacts WHERE status = 'active'"},
				},
			},
		},
		{
			name: "rename_and_backfill",
			prev: &model.SchemaModel{
				Tables: []model.TableSpec{
					{
						StableID: 1,
						Name:     "contacts",
						Fields: []model.FieldSpec{
							{StableID: 1, Name: "email", Type: model.TypeEmail, Required: true, Unique: true},
							{StableID: 2, Name: "score", Type: model.TypeInteger},
						},
					},
				},
			},
			next: &model.SchemaModel{
				Tables: []model.TableSpec{
					{
						StableID: 1,
						Name:     "people",
						Fields: []model.FieldSpec{
							{StableID: 1, Name: "email", Type: model.TypeEmail, Required: true, Unique: true},
							{StableID: 2, Name: "points", Type: model.TypeInteger, Required: true, Default: utils.Ptr("0")},
						},
					},
				},
			},
		},
		{
			name: "add_column",
			prev: &model.SchemaModel{
				Tables: []model.TableSpec{
					{
						StableID: 1,
						Name:     "contacts",
						Fields:   []model.FieldSpec{{StableID: 1, Name: "email", Type: model.TypeEmail}},
					},
				},
			},
			next: &model.SchemaModel{
				Tables: []model.TableSpec{
					{
						StableID: 1,
						Name:     "contacts",
						Fields: []model.FieldSpec{
							{StableID: 1, Name: "email", Type: model.TypeEmail},
							{StableID: 2, Name: "tags", Type: model.TypeMultiSelect, Options: []string{"x", "y"}},
							{StableID: 3, Name: "nick", Type: model.TypeText, Unique: true},
						},
					},
				},
			},
		},
		{
			name: "drop_column_cascade",
			prev: &model.SchemaModel{
				Tables: []model.TableSpec{
					{
						StableID: 1,
						Name:     "contacts",
						Fields: []model.FieldSpec{
							{StableID: 1, Name: "email", Type: model.TypeEmail},
							{StableID: 2, Name: "status", Type: model.TypeSingleSelect, Options: []string{"a", "b"}, Unique: true},
						},
						UniqueConstraints: [][]int64{{1, 2}},
						Indexes:           []model.IndexSpec{{FieldIDs: []int64{2}}},
					},
				},
			},
			next: &model.SchemaModel{
				Tables: []model.TableSpec{
					{
						StableID: 1,
						Name:     "contacts",
						Fields:   []model.FieldSpec{{StableID: 1, Name: "email", Type: model.TypeEmail}},
					},
				},
			},
		},
		{
			name: "retype_and_options",
			prev: &model.SchemaModel{
				Tables: []model.TableSpec{
					{
						StableID: 1,
						Name:     "contacts",
						Fields: []model.FieldSpec{
							{StableID: 1, Name: "score", Type: model.TypeText},
							{StableID: 2, Name: "status", Type: model.TypeSingleSelect, Options: []string{"a", "b"}},
						},
					},
				},
			},
			next: &model.SchemaModel{
				Tables: []model.TableSpec{
					{
						StableID: 1,
						Name:     "contacts",
						Fields: []model.FieldSpec{
							{StableID: 1, Name: "score", Type: model.TypeInteger},
							{StableID: 2, Name: "status", Type: model.TypeSingleSelect, Options: []string{"a", "b", "c"}},
						},
					},
				},
			},
		},
		{
			name: "views",
			prev: &model.SchemaModel{
				Views: []model.ViewSpec{
					{StableID: 1, Name: "summary", Definition: "SELECT 1", Materialized: true},
					{StableID: 2, Name: "old_view", Definition: "SELECT 2"},
				},
			},
			next: &model.SchemaModel{
				Views: []model.ViewSpec{
					{StableID: 1, Name: "summary", Definition: "SELECT 1, 2", Materialized: true, Refresh: true},
					{StableID: 3, Name: "totals", Definition: "SELECT 3"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs, err := differ.New().Diff(tt.prev, tt.next)
			require.NoError(t, err)

			plan, err := Generate(cs)
			require.NoError(t, err)

			golden.Assert(t, render(plan), tt.name+".sql")
		})
	}
}

func TestGenerateBackfillOrdering(t *testing.T) {
	prev := &model.SchemaModel{
		Tables: []model.TableSpec{
			{
				StableID: 1,
				Name:     "contacts",
				Fields:   []model.FieldSpec{{StableID: 1, Name: "score", Type: model.TypeInteger}},
			},
		},
	}
	next := &model.SchemaModel{
		Tables: []model.TableSpec{
			{
				StableID: 1,
				Name:     "contacts",
				Fields:   []model.FieldSpec{{StableID: 1, Name: "score", Type: model.TypeInteger, Required: true, Default: utils.Ptr("0")}},
			},
		},
	}

	cs, err := differ.New().Diff(prev, next)
	require.NoError(t, err)
	plan, err := Generate(cs)
	require.NoError(t, err)

	sql := plan.SQL()
	var setDefault, backfill, setNotNull int
	for i, stmt := range sql {
		switch {
		case strings.Contains(stmt, "SET DEFAULT"):
			setDefault = i
		case strings.Contains(stmt, "WHERE \"score\" IS NULL"):
			backfill = i
		case strings.Contains(stmt, "SET NOT NULL"):
			setNotNull = i
		}
	}
	require.Less(t, setDefault, backfill)
	require.Less(t, backfill, setNotNull)
}

func TestGenerateConcurrentIndexIsPostCommit(t *testing.T) {
	next := &model.SchemaModel{
		Tables: []model.TableSpec{
			{
				StableID: 1,
				Name:     "contacts",
				Fields:   []model.FieldSpec{{StableID: 1, Name: "email", Type: model.TypeEmail}},
				Indexes:  []model.IndexSpec{{FieldIDs: []int64{1}, Concurrent: true}},
			},
		},
	}

	cs, err := differ.New().Diff(nil, next)
	require.NoError(t, err)
	plan, err := Generate(cs)
	require.NoError(t, err)

	require.Len(t, plan.PostCommit, 1)
	require.Contains(t, plan.PostCommit[0].SQL, "CONCURRENTLY")
	for _, stmt := range plan.Statements {
		require.NotContains(t, stmt.SQL, "CONCURRENTLY")
	}
}

func TestGenerateViewRenameWithNewDefinition(t *testing.T) {
	prev := &model.SchemaModel{
		Views: []model.ViewSpec{{StableID: 1, Name: "old_summary", Definition: "SELECT 1"}},
	}
	next := &model.SchemaModel{
		Views: []model.ViewSpec{{StableID: 1, Name: "new_summary", Definition: "SELECT 2"}},
	}

	cs, err := differ.New().Diff(prev, next)
	require.NoError(t, err)
	plan, err := Generate(cs)
	require.NoError(t, err)

	// Drop under the old name, create under the new one. A RENAME between
	// the two would reference the relation the drop just removed.
	require.Len(t, plan.Statements, 2)
	require.Equal(t, `DROP VIEW IF EXISTS "old_summary"`, plan.Statements[0].SQL)
	require.Equal(t, `CREATE VIEW "new_summary" AS SELECT 2`, plan.Statements[1].SQL)
	for _, stmt := range plan.Statements {
		require.NotContains(t, stmt.SQL, "RENAME")
	}
}

func TestGenerateUnknownCastFails(t *testing.T) {
	prev := &model.SchemaModel{
		Tables: []model.TableSpec{
			{
				StableID: 1,
				Name:     "contacts",
				Fields:   []model.FieldSpec{{StableID: 1, Name: "pos", Type: model.TypeGeolocation}},
			},
		},
	}
	next := &model.SchemaModel{
		Tables: []model.TableSpec{
			{
				StableID: 1,
				Name:     "contacts",
				Fields:   []model.FieldSpec{{StableID: 1, Name: "pos", Type: model.TypeInteger}},
			},
		},
	}

	cs, err := differ.New().Diff(prev, next)
	require.NoError(t, err)

	_, err = Generate(cs)

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
}
