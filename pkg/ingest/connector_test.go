package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bucketsource/bucketsource/pkg/config"
	"github.com/bucketsource/bucketsource/pkg/errors"
	"github.com/bucketsource/bucketsource/pkg/schema"
	"github.com/bucketsource/bucketsource/pkg/sink"
	"github.com/bucketsource/bucketsource/pkg/table"
)

func testConfig(key string) *config.ConnectionConfig {
	cfg := config.NewConnectionConfig("bkt", key)
	return cfg
}

func TestConnectorLoadCSV(t *testing.T) {
	store := newFakeStore()
	store.put("data/users.csv", "id,name\n1,alice\n2,bob\n")

	c := New(store)
	tbl, err := c.Load(context.Background(), NewRequest(testConfig("data/users.csv")))
	require.NoError(t, err)

	assert.Equal(t, "data/users.csv", tbl.SourceKey)
	assert.Equal(t, []string{"id", "name"}, tbl.Schema.ColumnNames())
	require.Equal(t, 2, tbl.NumRows())
	assert.Equal(t, "bob", tbl.Rows[1]["name"])
}

func TestConnectorLoadJSONWithInference(t *testing.T) {
	store := newFakeStore()
	store.put("data/users.json", `[{"id": 1, "name": "alice"}, {"id": 2, "name": "bob"}]`)

	c := New(store)
	tbl, err := c.Load(context.Background(), NewRequest(testConfig("data/users.json")))
	require.NoError(t, err)

	require.Equal(t, 2, tbl.NumRows())
	id, ok := tbl.Schema.Field("id")
	require.True(t, ok)
	assert.Equal(t, schema.FieldTypeFloat, id.Type)
	assert.Equal(t, float64(2), tbl.Rows[1]["id"])
}

func TestConnectorLoadCompressed(t *testing.T) {
	store := newFakeStore()
	store.put("data/users.csv.gz", gzipped(t, "id,name\n1,alice\n"))

	c := New(store)
	tbl, err := c.Load(context.Background(), NewRequest(testConfig("data/users.csv.gz")))
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.NumRows())
}

func TestConnectorLoadRejectsPattern(t *testing.T) {
	store := newFakeStore()
	store.put("data/a.csv", "id\n1\n")

	c := New(store)

	t.Run("without permission", func(t *testing.T) {
		_, err := c.Load(context.Background(), NewRequest(testConfig("data/")))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedPattern))
	})

	t.Run("with permission the in-memory path still refuses", func(t *testing.T) {
		cfg := testConfig("data/")
		cfg.AllowMultiSegment = true
		_, err := c.Load(context.Background(), NewRequest(cfg))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidRequest))
	})
}

func TestConnectorLoadValidation(t *testing.T) {
	c := New(newFakeStore())

	_, err := c.Load(context.Background(), NewRequest(nil))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidRequest))

	_, err = c.Load(context.Background(), NewRequest(testConfig("")))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidRequest))
}

func TestConnectorRunSingleObject(t *testing.T) {
	store := newFakeStore()
	store.put("data/users.csv", csvBody(5))

	snk := sink.NewMemorySink()
	c := New(store)

	cfg := testConfig("data/users.csv")
	cfg.BatchSize = 2
	result, err := c.Run(context.Background(), NewRequest(cfg), snk)
	require.NoError(t, err)

	assert.Equal(t, int64(5), result.RowsAppended)
	assert.Equal(t, int64(3), result.BatchesAppended)
	assert.Equal(t, 1, result.SegmentsRead)
	assert.Equal(t, int64(5), snk.RowCount())
}

func TestConnectorRunPrefix(t *testing.T) {
	store := newFakeStore()
	store.put("exports/a.csv", "id,name\n1,alice\n")
	store.put("exports/b.csv", "id,name\n2,bob\n")

	snk := sink.NewMemorySink()
	c := New(store)

	cfg := testConfig("exports/")
	cfg.AllowMultiSegment = true
	result, err := c.Run(context.Background(), NewRequest(cfg), snk)
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.RowsAppended)
	assert.Equal(t, 2, result.SegmentsRead)
	assert.Equal(t, "alice", snk.Rows()[0]["name"])
}

func TestConnectorRunRepeatable(t *testing.T) {
	// re-running the same request against an unchanged bucket yields the
	// same row count, segment count, and failure list
	store := newFakeStore()
	store.put("exports/a.csv", "id,name\n1,alice\n2,bob\n")
	store.put("exports/b.csv", "id,name\n3,carol\n")
	store.put("exports/c.csv", "id,name\n4,dave\n")
	store.getErr["exports/b.csv"] = errors.New(errors.ErrorTypeTransport, "connection reset")

	c := New(store)
	cfg := testConfig("exports/")
	cfg.AllowMultiSegment = true

	run := func() *table.Result {
		snk := sink.NewMemorySink()
		req := NewRequest(cfg).WithErrorHandler(func(string, error) {})
		result, err := c.Run(context.Background(), req, snk)
		require.NoError(t, err)
		assert.Equal(t, result.RowsAppended, snk.RowCount())
		return result
	}

	first := run()
	second := run()

	assert.Equal(t, int64(3), first.RowsAppended)
	assert.Equal(t, first.RowsAppended, second.RowsAppended)
	assert.Equal(t, first.SegmentsRead, second.SegmentsRead)
	assert.Equal(t, first.BytesRead, second.BytesRead)

	require.Len(t, first.Failures, 1)
	require.Len(t, second.Failures, len(first.Failures))
	for i := range first.Failures {
		assert.Equal(t, first.Failures[i].Key, second.Failures[i].Key)
	}
}

func TestConnectorRunEmptyPrefix(t *testing.T) {
	store := newFakeStore()

	c := New(store)
	cfg := testConfig("exports/")
	cfg.AllowMultiSegment = true

	_, err := c.Run(context.Background(), NewRequest(cfg), sink.NewMemorySink())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeEmptySelection))
}

func TestConnectorRunUpfrontListingValidation(t *testing.T) {
	store := newFakeStore()
	store.pageSize = 1
	store.put("exports/a.csv", "id\n1\n")
	store.put("exports/z.json", `[{"id": 1}]`)

	c := New(store)
	cfg := testConfig("exports/")
	cfg.AllowMultiSegment = true
	cfg.ValidateListing = true

	snk := sink.NewMemorySink()
	_, err := c.Run(context.Background(), NewRequest(cfg), snk)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeMixedFormat))
	assert.Equal(t, int64(0), snk.RowCount())
}
