package model_test

import (
	"strings"
	"testing"

	. "github.com/tablekeeper/tablekeeper/pkg/model"
	"github.com/stretchr/testify/require"
)

func TestChecksumDeterministic(t *testing.T) {
	a, err := validModel().Checksum()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(a, ChecksumPrefix))

	b, err := validModel().Checksum()
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestChecksumIgnoresTableOrder(t *testing.T) {
	m := validModel()
	m.Tables = append(m.Tables, TableSpec{
		StableID: 2,
		Name:     "orders",
		Fields:   []FieldSpec{{StableID: 1, Name: "total", Type: TypeCurrency}},
	})

	a, err := m.Checksum()
	require.NoError(t, err)

	m.Tables[0], m.Tables[1] = m.Tables[1], m.Tables[0]
	b, err := m.Checksum()
	require.NoError(t, err)

	require.Equal(t, a, b)
}

func TestChecksumSensitiveToFieldOrder(t *testing.T) {
	m := validModel()
	a, err := m.Checksum()
	require.NoError(t, err)

	m.Tables[0].Fields[0], m.Tables[0].Fields[1] = m.Tables[0].Fields[1], m.Tables[0].Fields[0]
	b, err := m.Checksum()
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestChecksumChangesOnRename(t *testing.T) {
	m := validModel()
	a, err := m.Checksum()
	require.NoError(t, err)

	m.Tables[0].Fields[0].Name = "primary_email"
	b, err := m.Checksum()
	require.NoError(t, err)

	require.NotEqual(t, a, b)
}

func TestCanonicalJSONRoundTrip(t *testing.T) {
	m := validModel()
	data, err := m.CanonicalJSON()
	require.NoError(t, err)

	decoded, err := UnmarshalModel(data)
	require.NoError(t, err)
	require.Equal(t, m, decoded)

	sum, err := decoded.Checksum()
	require.NoError(t, err)
	orig, err := m.Checksum()
	require.NoError(t, err)
	require.Equal(t, orig, sum)
}
