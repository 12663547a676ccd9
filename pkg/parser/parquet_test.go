package parser

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bucketsource/bucketsource/pkg/errors"
	"github.com/bucketsource/bucketsource/pkg/schema"
)

// writeParquet builds a three-column Parquet file in memory.
func writeParquet(t *testing.T, chunkSize int64) []byte {
	t.Helper()

	pool := memory.NewGoAllocator()
	arrowSchema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
		{Name: "score", Type: arrow.PrimitiveTypes.Float64},
	}, nil)

	b := array.NewRecordBuilder(pool, arrowSchema)
	defer b.Release()

	b.Field(0).(*array.Int64Builder).AppendValues([]int64{1, 2, 3}, nil)
	b.Field(1).(*array.StringBuilder).AppendValues([]string{"alice", "bob", ""}, []bool{true, true, false})
	b.Field(2).(*array.Float64Builder).AppendValues([]float64{9.5, 7.25, 3.0}, nil)

	rec := b.NewRecord()
	defer rec.Release()

	tbl := array.NewTableFromRecords(arrowSchema, []arrow.Record{rec})
	defer tbl.Release()

	var buf bytes.Buffer
	err := pqarrow.WriteTable(tbl, &buf, chunkSize,
		parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParquetParse(t *testing.T) {
	data := writeParquet(t, 3)

	p := &ParquetParser{}
	s, it, err := p.Parse(context.Background(), bytes.NewReader(data), Options{SchemaName: "t.parquet"})
	require.NoError(t, err)
	defer it.Close()

	assert.Equal(t, []string{"id", "name", "score"}, s.ColumnNames())
	id, _ := s.Field("id")
	assert.Equal(t, schema.FieldTypeInt, id.Type)
	name, _ := s.Field("name")
	assert.Equal(t, schema.FieldTypeString, name.Type)
	assert.True(t, name.Nullable)
	score, _ := s.Field("score")
	assert.Equal(t, schema.FieldTypeFloat, score.Type)

	rows := drain(t, it)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1), rows[0]["id"])
	assert.Equal(t, "bob", rows[1]["name"])
	assert.Equal(t, 7.25, rows[1]["score"])
	assert.Nil(t, rows[2]["name"])
}

func TestParquetParseAcrossRecordBatches(t *testing.T) {
	// chunk size 1 forces one record batch per row
	data := writeParquet(t, 1)

	p := &ParquetParser{}
	_, it, err := p.Parse(context.Background(), bytes.NewReader(data), Options{})
	require.NoError(t, err)
	defer it.Close()

	rows := drain(t, it)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(3), rows[2]["id"])

	_, err = it.Next()
	assert.Equal(t, io.EOF, err)
}

func TestParquetParseGarbage(t *testing.T) {
	p := &ParquetParser{}
	_, _, err := p.Parse(context.Background(), bytes.NewReader([]byte("not parquet at all")), Options{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
}

func TestParquetCancelledContext(t *testing.T) {
	data := writeParquet(t, 3)

	ctx, cancel := context.WithCancel(context.Background())
	p := &ParquetParser{}
	_, it, err := p.Parse(ctx, bytes.NewReader(data), Options{})
	require.NoError(t, err)
	defer it.Close()

	cancel()
	_, err = it.Next()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParse))
}
