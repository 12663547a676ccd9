// Package schema defines the tabular schema model shared by parsers, the
// ingestion pipeline, and destination sinks.
package schema

import (
	"sort"
	"strings"
)

// FieldType represents the data type of a field
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeInt       FieldType = "int"
	FieldTypeFloat     FieldType = "float"
	FieldTypeBool      FieldType = "bool"
	FieldTypeTimestamp FieldType = "timestamp"
)

// Field represents a single column in a table schema
type Field struct {
	// Name is the column identifier
	Name string `json:"name" yaml:"name"`

	// Type specifies the declared data type
	Type FieldType `json:"type" yaml:"type"`

	// Nullable indicates whether the column may carry nulls
	Nullable bool `json:"nullable" yaml:"nullable"`
}

// Schema is an ordered mapping from column name to declared data type.
// The first successfully parsed segment of a run establishes the schema;
// every later segment must be structurally compatible with it.
type Schema struct {
	// Name identifies the schema, typically derived from the source key
	Name string `json:"name" yaml:"name"`

	// Fields defines the columns in source order
	Fields []Field `json:"fields" yaml:"fields"`
}

// New creates a schema with the given name and fields.
func New(name string, fields ...Field) *Schema {
	return &Schema{Name: name, Fields: fields}
}

// ColumnNames returns the column names in source order.
func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the field with the given name, if present.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Compatible reports whether other is structurally compatible with s:
// the same column-name set with an identical declared type per column.
// Column order is not significant. Any column-set difference, including
// extra columns appearing in later segments, is incompatible; callers that
// need schema evolution must pre-partition by schema version.
func (s *Schema) Compatible(other *Schema) bool {
	if other == nil || len(s.Fields) != len(other.Fields) {
		return false
	}

	for _, f := range s.Fields {
		of, ok := other.Field(f.Name)
		if !ok || of.Type != f.Type {
			return false
		}
	}
	return true
}

// Diff describes how other diverges from s, for error reporting. The result
// lists missing, unexpected, and retyped columns in sorted order.
func (s *Schema) Diff(other *Schema) string {
	var parts []string

	var missing, extra, retyped []string
	for _, f := range s.Fields {
		of, ok := other.Field(f.Name)
		switch {
		case !ok:
			missing = append(missing, f.Name)
		case of.Type != f.Type:
			retyped = append(retyped, f.Name+"("+string(f.Type)+"->"+string(of.Type)+")")
		}
	}
	for _, of := range other.Fields {
		if _, ok := s.Field(of.Name); !ok {
			extra = append(extra, of.Name)
		}
	}

	sort.Strings(missing)
	sort.Strings(extra)
	sort.Strings(retyped)

	if len(missing) > 0 {
		parts = append(parts, "missing: "+strings.Join(missing, ","))
	}
	if len(extra) > 0 {
		parts = append(parts, "unexpected: "+strings.Join(extra, ","))
	}
	if len(retyped) > 0 {
		parts = append(parts, "retyped: "+strings.Join(retyped, ","))
	}
	if len(parts) == 0 {
		return "schemas identical"
	}
	return strings.Join(parts, "; ")
}
