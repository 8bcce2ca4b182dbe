package model_test

import (
	"testing"

	. "github.com/tablekeeper/tablekeeper/pkg/model"
	"github.com/stretchr/testify/require"
)

func validModel() *SchemaModel {
	return &SchemaModel{
		Tables: []TableSpec{
			{
				StableID: 1,
				Name:     "contacts",
				Fields: []FieldSpec{
					{StableID: 1, Name: "email", Type: TypeEmail, Required: true, Unique: true},
					{StableID: 2, Name: "score", Type: TypeInteger},
					{StableID: 3, Name: "status", Type: TypeSingleSelect, Options: []string{"lead", "active"}},
					{StableID: 4, Name: "full_name", Type: TypeFormula, Virtual: true},
				},
				UniqueConstraints: [][]int64{{1, 2}},
				Indexes:           []IndexSpec{{FieldIDs: []int64{3}}},
			},
		},
		Views: []ViewSpec{
			{StableID: 1, Name: "active_contacts", Definition: "SELECT * FROM contacts WHERE status = 'active'"},
		},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validModel().Validate())
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(m *SchemaModel)
		message string
	}{
		{
			name:    "non-positive table stableId",
			mutate:  func(m *SchemaModel) { m.Tables[0].StableID = 0 },
			message: "invalid stableId",
		},
		{
			name: "duplicate table stableId",
			mutate: func(m *SchemaModel) {
				m.Tables = append(m.Tables, TableSpec{StableID: 1, Name: "orders"})
			},
			message: "duplicate table stableId",
		},
		{
			name: "duplicate table name",
			mutate: func(m *SchemaModel) {
				m.Tables = append(m.Tables, TableSpec{StableID: 2, Name: "contacts"})
			},
			message: "duplicate table name",
		},
		{
			name:    "empty field name",
			mutate:  func(m *SchemaModel) { m.Tables[0].Fields[0].Name = "" },
			message: "empty name",
		},
		{
			name:    "duplicate field stableId",
			mutate:  func(m *SchemaModel) { m.Tables[0].Fields[1].StableID = 1 },
			message: "duplicate field stableId",
		},
		{
			name:    "duplicate field name",
			mutate:  func(m *SchemaModel) { m.Tables[0].Fields[1].Name = "email" },
			message: "duplicate field name",
		},
		{
			name:    "unknown field type",
			mutate:  func(m *SchemaModel) { m.Tables[0].Fields[0].Type = FieldType(999) },
			message: "unknown type",
		},
		{
			name:    "virtual flag disagrees with type",
			mutate:  func(m *SchemaModel) { m.Tables[0].Fields[3].Virtual = false },
			message: "virtual flag disagrees",
		},
		{
			name:    "options on a non-select type",
			mutate:  func(m *SchemaModel) { m.Tables[0].Fields[0].Options = []string{"a"} },
			message: "cannot carry options",
		},
		{
			name:    "select without options",
			mutate:  func(m *SchemaModel) { m.Tables[0].Fields[2].Options = nil },
			message: "has no options",
		},
		{
			name:    "constraints on a virtual field",
			mutate:  func(m *SchemaModel) { m.Tables[0].Fields[3].Required = true },
			message: "cannot carry column constraints",
		},
		{
			name:    "unique constraint on a virtual field",
			mutate:  func(m *SchemaModel) { m.Tables[0].UniqueConstraints = [][]int64{{4}} },
			message: "unknown or virtual field",
		},
		{
			name:    "index on a missing field",
			mutate:  func(m *SchemaModel) { m.Tables[0].Indexes = []IndexSpec{{FieldIDs: []int64{99}}} },
			message: "unknown or virtual field",
		},
		{
			name:    "empty index",
			mutate:  func(m *SchemaModel) { m.Tables[0].Indexes = []IndexSpec{{}} },
			message: "index with no fields",
		},
		{
			name:    "view without definition",
			mutate:  func(m *SchemaModel) { m.Views[0].Definition = "" },
			message: "empty definition",
		},
		{
			name:    "view name collides with table",
			mutate:  func(m *SchemaModel) { m.Views[0].Name = "contacts" },
			message: "collides with a table",
		},
		{
			name:    "refresh on a plain view",
			mutate:  func(m *SchemaModel) { m.Views[0].Refresh = true },
			message: "not materialized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := validModel()
			tt.mutate(m)

			err := m.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestStoredFields(t *testing.T) {
	m := validModel()
	stored := m.Tables[0].StoredFields()
	require.Len(t, stored, 3)
	for _, f := range stored {
		require.False(t, f.IsVirtual())
	}
}
