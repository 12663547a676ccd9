package parser

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/bucketsource/bucketsource/pkg/errors"
	"github.com/bucketsource/bucketsource/pkg/schema"
	"github.com/bucketsource/bucketsource/pkg/table"
)

// CSVParser parses delimited text streams. The header row, when present,
// names the columns; otherwise names are synthesized as col_1..col_n. With
// type inference enabled the first data row decides each column's type and
// later cells must convert to it.
type CSVParser struct{}

// Parse reads the header and, when inferring types, one buffered data row,
// then returns a lazy iterator over the remaining rows.
func (p *CSVParser) Parse(ctx context.Context, r io.Reader, opts Options) (*schema.Schema, RowIterator, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.ReuseRecord = false

	var headers []string
	var buffered []string

	first, err := cr.Read()
	if err == io.EOF {
		return nil, nil, errors.New(errors.ErrorTypeParse, "delimited text stream is empty")
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to read delimited text")
	}

	if opts.HasHeader {
		headers = first
	} else {
		headers = make([]string, len(first))
		for i := range first {
			headers[i] = fmt.Sprintf("col_%d", i+1)
		}
		buffered = first
	}

	fields := make([]schema.Field, len(headers))
	for i, name := range headers {
		fields[i] = schema.Field{Name: name, Type: schema.FieldTypeString, Nullable: true}
	}

	if opts.InferTypes {
		sample := buffered
		if sample == nil {
			row, err := cr.Read()
			if err != nil && err != io.EOF {
				return nil, nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to read delimited text")
			}
			if err == nil {
				sample = row
				buffered = row
			}
		}
		for i := range fields {
			if i < len(sample) {
				fields[i].Type = inferFieldType(sample[i])
			}
		}
	}

	s := schema.New(opts.SchemaName, fields...)

	return s, &csvIterator{
		ctx:      ctx,
		reader:   cr,
		schema:   s,
		buffered: buffered,
		rowNum:   1,
	}, nil
}

type csvIterator struct {
	ctx       context.Context
	reader    *csv.Reader
	schema    *schema.Schema
	buffered  []string
	rowNum    int
	exhausted bool
}

func (it *csvIterator) Next() (table.Row, error) {
	if it.exhausted {
		return nil, io.EOF
	}
	if err := it.ctx.Err(); err != nil {
		it.exhausted = true
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "row iteration cancelled")
	}

	var record []string
	if it.buffered != nil {
		record = it.buffered
		it.buffered = nil
	} else {
		var err error
		record, err = it.reader.Read()
		if err == io.EOF {
			it.exhausted = true
			return nil, io.EOF
		}
		if err != nil {
			it.exhausted = true
			return nil, errors.Wrap(err, errors.ErrorTypeParse, "malformed delimited text row")
		}
	}

	it.rowNum++
	row := make(table.Row, len(it.schema.Fields))
	for i, field := range it.schema.Fields {
		if i >= len(record) {
			row[field.Name] = nil
			continue
		}
		value, err := convertCell(record[i], field.Type)
		if err != nil {
			it.exhausted = true
			return nil, errors.Wrap(err, errors.ErrorTypeParse,
				fmt.Sprintf("row %d: cell %q does not convert to %s", it.rowNum, record[i], field.Type)).
				WithDetail("column", field.Name)
		}
		row[field.Name] = value
	}
	return row, nil
}

func (it *csvIterator) Close() error {
	it.exhausted = true
	return nil
}
