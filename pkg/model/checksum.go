package model

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
)

// ChecksumPrefix identifies the hash format used for schema checksums
// (base64-encoded SHA256).
const ChecksumPrefix = "h1:"

// CanonicalJSON returns the deterministic serialization of the model used
// for checksum computation and for persisting the last-applied model.
//
// Canonical form: tables and views are sorted by StableID (table order is not
// significant for matching), while field order within a table is preserved
// (it determines column order in the initial CREATE TABLE).
func (m *SchemaModel) CanonicalJSON() ([]byte, error) {
	canon := SchemaModel{
		Tables: append([]TableSpec(nil), m.Tables...),
		Views:  append([]ViewSpec(nil), m.Views...),
	}
	sort.Slice(canon.Tables, func(i, j int) bool {
		return canon.Tables[i].StableID < canon.Tables[j].StableID
	})
	sort.Slice(canon.Views, func(i, j int) bool {
		return canon.Views[i].StableID < canon.Views[j].StableID
	})

	data, err := json.Marshal(&canon)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize schema model")
	}
	return data, nil
}

// Checksum computes the content hash of the model in h1 format
// ("h1:" + base64(SHA256(canonical serialization))).
func (m *SchemaModel) Checksum() (string, error) {
	data, err := m.CanonicalJSON()
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	return ChecksumPrefix + base64.StdEncoding.EncodeToString(sum[:]), nil
}

// UnmarshalModel decodes a model previously serialized with CanonicalJSON.
func UnmarshalModel(data []byte) (*SchemaModel, error) {
	var m SchemaModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, "failed to decode schema model")
	}
	return &m, nil
}
