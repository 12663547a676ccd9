package parser

import (
	"bytes"
	"context"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/bucketsource/bucketsource/pkg/errors"
	"github.com/bucketsource/bucketsource/pkg/schema"
	"github.com/bucketsource/bucketsource/pkg/table"
)

// ParquetParser parses columnar binary objects via Arrow. The Parquet
// container requires random access, so the stream is buffered in full before
// decoding; rows are then yielded record-batch-wise to keep the row
// conversion incremental.
type ParquetParser struct{}

// Parse buffers the stream, opens the Parquet footer, and returns the
// converted Arrow schema with a lazy per-row iterator.
func (p *ParquetParser) Parse(ctx context.Context, r io.Reader, opts Options) (*schema.Schema, RowIterator, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeTransport, "failed to read columnar object")
	}

	fr, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to open Parquet container")
	}

	arrowReader, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	if err != nil {
		fr.Close()
		return nil, nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to create Arrow reader")
	}

	arrowSchema, err := arrowReader.Schema()
	if err != nil {
		fr.Close()
		return nil, nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to read Parquet schema")
	}

	rr, err := arrowReader.GetRecordReader(ctx, nil, nil)
	if err != nil {
		fr.Close()
		return nil, nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to create record reader")
	}

	s := arrowToSchema(opts.SchemaName, arrowSchema)

	return s, &parquetIterator{
		ctx:        ctx,
		fileReader: fr,
		records:    rr,
		schema:     s,
	}, nil
}

type parquetIterator struct {
	ctx        context.Context
	fileReader *file.Reader
	records    pqarrow.RecordReader
	current    arrow.Record
	currentRow int
	exhausted  bool
	schema     *schema.Schema
}

func (it *parquetIterator) Next() (table.Row, error) {
	if it.exhausted {
		return nil, io.EOF
	}
	if err := it.ctx.Err(); err != nil {
		it.exhausted = true
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "row iteration cancelled")
	}

	for it.current == nil || it.currentRow >= int(it.current.NumRows()) {
		if it.current != nil {
			it.current.Release()
			it.current = nil
		}
		if !it.records.Next() {
			it.exhausted = true
			if err := it.records.Err(); err != nil && err != io.EOF {
				return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to read record batch")
			}
			return nil, io.EOF
		}
		it.current = it.records.Record()
		it.current.Retain()
		it.currentRow = 0
	}

	row := make(table.Row, it.current.NumCols())
	for i := 0; i < int(it.current.NumCols()); i++ {
		field := it.current.Schema().Field(i)
		row[field.Name] = columnValue(it.current.Column(i), it.currentRow)
	}
	it.currentRow++
	return row, nil
}

func (it *parquetIterator) Close() error {
	if it.current != nil {
		it.current.Release()
		it.current = nil
	}
	it.exhausted = true
	it.records.Release()
	return it.fileReader.Close()
}

// columnValue extracts a Go value from an Arrow column at the given row.
func columnValue(col arrow.Array, rowIdx int) interface{} {
	if col.IsNull(rowIdx) {
		return nil
	}

	switch c := col.(type) {
	case *array.Boolean:
		return c.Value(rowIdx)
	case *array.Int8:
		return int64(c.Value(rowIdx))
	case *array.Int16:
		return int64(c.Value(rowIdx))
	case *array.Int32:
		return int64(c.Value(rowIdx))
	case *array.Int64:
		return c.Value(rowIdx)
	case *array.Float32:
		return float64(c.Value(rowIdx))
	case *array.Float64:
		return c.Value(rowIdx)
	case *array.String:
		return c.Value(rowIdx)
	case *array.LargeString:
		return c.Value(rowIdx)
	case *array.Binary:
		return string(c.Value(rowIdx))
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		return c.Value(rowIdx).ToTime(unit)
	case *array.Date32:
		return c.Value(rowIdx).ToTime()
	default:
		return col.ValueStr(rowIdx)
	}
}

// arrowToSchema converts an Arrow schema into the connector schema model.
func arrowToSchema(name string, arrowSchema *arrow.Schema) *schema.Schema {
	fields := make([]schema.Field, 0, arrowSchema.NumFields())
	for i := 0; i < arrowSchema.NumFields(); i++ {
		f := arrowSchema.Field(i)
		fields = append(fields, schema.Field{
			Name:     f.Name,
			Type:     arrowFieldType(f.Type),
			Nullable: f.Nullable,
		})
	}
	return schema.New(name, fields...)
}

func arrowFieldType(t arrow.DataType) schema.FieldType {
	switch t.ID() {
	case arrow.BOOL:
		return schema.FieldTypeBool
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return schema.FieldTypeInt
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return schema.FieldTypeFloat
	case arrow.TIMESTAMP, arrow.DATE32, arrow.DATE64:
		return schema.FieldTypeTimestamp
	default:
		return schema.FieldTypeString
	}
}
