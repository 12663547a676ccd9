package parser

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bucketsource/bucketsource/pkg/errors"
	"github.com/bucketsource/bucketsource/pkg/schema"
)

func TestJSONParseArray(t *testing.T) {
	input := `[
		{"id": 1, "name": "alice", "active": true},
		{"id": 2, "name": "bob", "active": false}
	]`

	p := &JSONParser{}
	s, it, err := p.Parse(context.Background(), strings.NewReader(input), Options{
		SchemaName: "t.json",
		JSONLayout: "array",
	})
	require.NoError(t, err)
	defer it.Close()

	// field names are ordered lexicographically
	assert.Equal(t, []string{"active", "id", "name"}, s.ColumnNames())

	active, _ := s.Field("active")
	assert.Equal(t, schema.FieldTypeBool, active.Type)
	id, _ := s.Field("id")
	assert.Equal(t, schema.FieldTypeFloat, id.Type)
	name, _ := s.Field("name")
	assert.Equal(t, schema.FieldTypeString, name.Type)

	rows := drain(t, it)
	require.Len(t, rows, 2)
	assert.Equal(t, float64(1), rows[0]["id"])
	assert.Equal(t, "bob", rows[1]["name"])
	assert.Equal(t, false, rows[1]["active"])
}

func TestJSONParseLines(t *testing.T) {
	input := `{"id": 1, "name": "alice"}

{"id": 2, "name": "bob"}
`

	p := &JSONParser{}
	s, it, err := p.Parse(context.Background(), strings.NewReader(input), Options{
		JSONLayout: "lines",
	})
	require.NoError(t, err)
	defer it.Close()

	assert.Equal(t, []string{"id", "name"}, s.ColumnNames())

	rows := drain(t, it)
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0]["name"])
	assert.Equal(t, float64(2), rows[1]["id"])
}

func TestJSONNestedValuesFlattened(t *testing.T) {
	input := `[{"id": 1, "tags": ["a", "b"], "meta": {"k": "v"}}]`

	p := &JSONParser{}
	_, it, err := p.Parse(context.Background(), strings.NewReader(input), Options{JSONLayout: "array"})
	require.NoError(t, err)
	defer it.Close()

	rows := drain(t, it)
	require.Len(t, rows, 1)
	assert.Equal(t, `["a","b"]`, rows[0]["tags"])
	assert.Equal(t, `{"k":"v"}`, rows[0]["meta"])
}

func TestJSONMissingFieldsAreNil(t *testing.T) {
	input := `[{"id": 1, "name": "alice"}, {"id": 2}]`

	p := &JSONParser{}
	_, it, err := p.Parse(context.Background(), strings.NewReader(input), Options{JSONLayout: "array"})
	require.NoError(t, err)
	defer it.Close()

	rows := drain(t, it)
	require.Len(t, rows, 2)
	assert.Nil(t, rows[1]["name"])
}

func TestJSONParseErrors(t *testing.T) {
	p := &JSONParser{}

	t.Run("not an array", func(t *testing.T) {
		_, _, err := p.Parse(context.Background(), strings.NewReader(`{"id": 1}`), Options{JSONLayout: "array"})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
	})

	t.Run("empty array", func(t *testing.T) {
		_, _, err := p.Parse(context.Background(), strings.NewReader(`[]`), Options{JSONLayout: "array"})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
	})

	t.Run("empty lines stream", func(t *testing.T) {
		_, _, err := p.Parse(context.Background(), strings.NewReader("\n\n"), Options{JSONLayout: "lines"})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
	})

	t.Run("malformed line", func(t *testing.T) {
		input := "{\"id\": 1}\n{broken\n"
		_, it, err := p.Parse(context.Background(), strings.NewReader(input), Options{JSONLayout: "lines"})
		require.NoError(t, err)
		defer it.Close()

		_, err = it.Next()
		require.NoError(t, err)

		_, err = it.Next()
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
	})

	t.Run("unknown layout", func(t *testing.T) {
		_, _, err := p.Parse(context.Background(), strings.NewReader(`[]`), Options{JSONLayout: "stream"})
		require.Error(t, err)
	})
}

func TestJSONExhaustedIterator(t *testing.T) {
	p := &JSONParser{}
	_, it, err := p.Parse(context.Background(), strings.NewReader(`[{"id": 1}]`), Options{JSONLayout: "array"})
	require.NoError(t, err)
	defer it.Close()

	drain(t, it)
	_, err = it.Next()
	assert.Equal(t, io.EOF, err)
}
