package model

import "github.com/pkg/errors"

// FieldType is the closed enumeration of abstract field types supported by
// the engine. Every type maps to a concrete PostgreSQL column definition via
// the catalog below, except the virtual types (formula, rollup, lookup,
// count) which never produce a column.
type FieldType int

const (
	TypeUnknown FieldType = iota

	// Text family
	TypeText
	TypeLongText
	TypeRichText
	TypeEmail
	TypeURL
	TypePhone
	TypeBarcode

	// Numeric family
	TypeInteger
	TypeBigInteger
	TypeAutoNumber
	TypeDecimal
	TypeFloat
	TypeCurrency
	TypePercent
	TypeRating

	// Boolean
	TypeBoolean

	// Temporal family
	TypeDate
	TypeDateTime
	TypeTime
	TypeDuration
	TypeCreatedTime
	TypeModifiedTime

	// Selection
	TypeSingleSelect
	TypeMultiSelect

	// Structured
	TypeAttachment
	TypeJSON
	TypeGeolocation

	// Collaborator references
	TypeUser
	TypeCreatedBy
	TypeModifiedBy

	// Relations
	TypeLinkedRecord

	// Virtual (computed) types; these never yield a column
	TypeFormula
	TypeRollup
	TypeLookup
	TypeCount
)

// StorageClass groups field types by their underlying PostgreSQL storage
// representation. Cast expressions for type changes are defined between
// storage classes rather than between individual field types.
type StorageClass int

const (
	StorageNone StorageClass = iota // virtual types
	StorageText
	StorageInteger
	StorageBigint
	StorageNumeric
	StorageDouble
	StorageSmallint
	StorageBoolean
	StorageDate
	StorageTimestamp
	StorageTimeOfDay
	StorageInterval
	StorageJSONB
	StorageTextArray
	StoragePoint
)

type catalogEntry struct {
	name    string
	sqlType string
	class   StorageClass
	virtual bool
	// options indicates the type carries an enumerated allowed-value set
	options bool
}

var catalog = map[FieldType]catalogEntry{
	TypeText:     {name: "text", sqlType: "text", class: StorageText},
	TypeLongText: {name: "longText", sqlType: "text", class: StorageText},
	TypeRichText: {name: "richText", sqlType: "text", class: StorageText},
	TypeEmail:    {name: "email", sqlType: "text", class: StorageText},
	TypeURL:      {name: "url", sqlType: "text", class: StorageText},
	TypePhone:    {name: "phone", sqlType: "text", class: StorageText},
	TypeBarcode:  {name: "barcode", sqlType: "text", class: StorageText},

	TypeInteger:    {name: "integer", sqlType: "integer", class: StorageInteger},
	TypeBigInteger: {name: "bigInteger", sqlType: "bigint", class: StorageBigint},
	TypeAutoNumber: {name: "autoNumber", sqlType: "bigint", class: StorageBigint},
	TypeDecimal:    {name: "decimal", sqlType: "numeric(38,18)", class: StorageNumeric},
	TypeFloat:      {name: "float", sqlType: "double precision", class: StorageDouble},
	TypeCurrency:   {name: "currency", sqlType: "numeric(19,4)", class: StorageNumeric},
	TypePercent:    {name: "percent", sqlType: "numeric(7,4)", class: StorageNumeric},
	TypeRating:     {name: "rating", sqlType: "smallint", class: StorageSmallint},

	TypeBoolean: {name: "boolean", sqlType: "boolean", class: StorageBoolean},

	TypeDate:         {name: "date", sqlType: "date", class: StorageDate},
	TypeDateTime:     {name: "dateTime", sqlType: "timestamptz", class: StorageTimestamp},
	TypeTime:         {name: "time", sqlType: "time", class: StorageTimeOfDay},
	TypeDuration:     {name: "duration", sqlType: "interval", class: StorageInterval},
	TypeCreatedTime:  {name: "createdTime", sqlType: "timestamptz", class: StorageTimestamp},
	TypeModifiedTime: {name: "modifiedTime", sqlType: "timestamptz", class: StorageTimestamp},

	TypeSingleSelect: {name: "singleSelect", sqlType: "text", class: StorageText, options: true},
	TypeMultiSelect:  {name: "multiSelect", sqlType: "text[]", class: StorageTextArray, options: true},

	TypeAttachment:  {name: "attachment", sqlType: "jsonb", class: StorageJSONB},
	TypeJSON:        {name: "json", sqlType: "jsonb", class: StorageJSONB},
	TypeGeolocation: {name: "geolocation", sqlType: "point", class: StoragePoint},

	TypeUser:       {name: "user", sqlType: "text", class: StorageText},
	TypeCreatedBy:  {name: "createdBy", sqlType: "text", class: StorageText},
	TypeModifiedBy: {name: "modifiedBy", sqlType: "text", class: StorageText},

	TypeLinkedRecord: {name: "linkedRecord", sqlType: "bigint", class: StorageBigint},

	TypeFormula: {name: "formula", virtual: true, class: StorageNone},
	TypeRollup:  {name: "rollup", virtual: true, class: StorageNone},
	TypeLookup:  {name: "lookup", virtual: true, class: StorageNone},
	TypeCount:   {name: "count", virtual: true, class: StorageNone},
}

var typesByName = func() map[string]FieldType {
	m := make(map[string]FieldType, len(catalog))
	for ft, entry := range catalog {
		m[entry.name] = ft
	}
	return m
}()

// String returns the canonical name of the field type (e.g. "singleSelect").
func (t FieldType) String() string {
	if entry, ok := catalog[t]; ok {
		return entry.name
	}
	return "unknown"
}

// ParseFieldType resolves a canonical type name back to its FieldType.
func ParseFieldType(name string) (FieldType, error) {
	if ft, ok := typesByName[name]; ok {
		return ft, nil
	}
	return TypeUnknown, errors.Errorf("unknown field type %q", name)
}

// Valid reports whether the type is part of the catalog.
func (t FieldType) Valid() bool {
	_, ok := catalog[t]
	return ok
}

// Virtual reports whether the type is computed and never produces a column.
func (t FieldType) Virtual() bool {
	return catalog[t].virtual
}

// SQLType returns the PostgreSQL column type for the field type. Virtual
// types return an empty string.
func (t FieldType) SQLType() string {
	return catalog[t].sqlType
}

// Class returns the storage class used for cast-expression lookups.
func (t FieldType) Class() StorageClass {
	return catalog[t].class
}

// SupportsOptions reports whether the type carries an enumerated
// allowed-value set (single and multi select).
func (t FieldType) SupportsOptions() bool {
	return catalog[t].options
}

// MarshalText implements encoding.TextMarshaler so models serialize with
// stable type names rather than integer tags.
func (t FieldType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, errors.Errorf("cannot marshal unknown field type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *FieldType) UnmarshalText(text []byte) error {
	ft, err := ParseFieldType(string(text))
	if err != nil {
		return err
	}
	*t = ft
	return nil
}
