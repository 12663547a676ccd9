package parser

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/bucketsource/bucketsource/pkg/errors"
	"github.com/bucketsource/bucketsource/pkg/schema"
	"github.com/bucketsource/bucketsource/pkg/table"
)

// XLSXParser parses spreadsheet objects. The workbook container is a zip
// archive, so the stream is buffered by excelize on open; rows are then
// walked with the streaming row iterator. The sheet is selected by name,
// by index, or falls back to the active sheet.
type XLSXParser struct{}

// Parse opens the workbook, resolves the target sheet, reads the header row
// (and one sample row when inferring types), and returns a lazy iterator
// over the remaining rows.
func (p *XLSXParser) Parse(ctx context.Context, r io.Reader, opts Options) (*schema.Schema, RowIterator, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to open spreadsheet")
	}

	sheet, err := resolveSheet(f, opts)
	if err != nil {
		f.Close()
		return nil, nil, err
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, nil, errors.Wrap(err, errors.ErrorTypeParse,
			fmt.Sprintf("failed to read rows from sheet %q", sheet))
	}

	readRow := func() ([]string, error) {
		if !rows.Next() {
			if err := rows.Error(); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to advance spreadsheet row")
			}
			return nil, io.EOF
		}
		return rows.Columns()
	}

	first, err := readRow()
	if err == io.EOF {
		rows.Close()
		f.Close()
		return nil, nil, errors.Newf(errors.ErrorTypeParse, "sheet %q is empty", sheet)
	}
	if err != nil {
		rows.Close()
		f.Close()
		return nil, nil, err
	}

	var headers []string
	var buffered []string
	if opts.HasHeader {
		headers = make([]string, len(first))
		for i, h := range first {
			headers[i] = strings.TrimSpace(h)
		}
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
			row, err := readRow()
			if err != nil && err != io.EOF {
				rows.Close()
				f.Close()
				return nil, nil, err
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

	return s, &xlsxIterator{
		ctx:      ctx,
		file:     f,
		rows:     rows,
		readRow:  readRow,
		schema:   s,
		buffered: buffered,
		rowNum:   1,
	}, nil
}

// resolveSheet picks the target sheet: by name when given, else by index,
// else the workbook's active sheet.
func resolveSheet(f *excelize.File, opts Options) (string, error) {
	if opts.SheetName != "" {
		for _, name := range f.GetSheetList() {
			if name == opts.SheetName {
				return name, nil
			}
		}
		return "", errors.Newf(errors.ErrorTypeParse, "sheet %q not found in workbook", opts.SheetName)
	}

	if opts.SheetIndex != nil {
		name := f.GetSheetName(*opts.SheetIndex)
		if name == "" {
			return "", errors.Newf(errors.ErrorTypeParse,
				"sheet index %d out of range (%d sheets)", *opts.SheetIndex, len(f.GetSheetList()))
		}
		return name, nil
	}

	name := f.GetSheetName(f.GetActiveSheetIndex())
	if name == "" {
		name = f.GetSheetName(0)
	}
	if name == "" {
		return "", errors.New(errors.ErrorTypeParse, "workbook contains no sheets")
	}
	return name, nil
}

type xlsxIterator struct {
	ctx       context.Context
	file      *excelize.File
	rows      *excelize.Rows
	readRow   func() ([]string, error)
	schema    *schema.Schema
	buffered  []string
	rowNum    int
	exhausted bool
}

func (it *xlsxIterator) Next() (table.Row, error) {
	if it.exhausted {
		return nil, io.EOF
	}
	if err := it.ctx.Err(); err != nil {
		it.exhausted = true
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "row iteration cancelled")
	}

	var cells []string
	if it.buffered != nil {
		cells = it.buffered
		it.buffered = nil
	} else {
		var err error
		cells, err = it.readRow()
		if err == io.EOF {
			it.exhausted = true
			return nil, io.EOF
		}
		if err != nil {
			it.exhausted = true
			return nil, err
		}
	}

	it.rowNum++
	row := make(table.Row, len(it.schema.Fields))
	for i, field := range it.schema.Fields {
		if i >= len(cells) {
			// trailing empty cells are omitted by the container
			row[field.Name] = nil
			continue
		}
		value, err := convertCell(cells[i], field.Type)
		if err != nil {
			it.exhausted = true
			return nil, errors.Wrap(err, errors.ErrorTypeParse,
				fmt.Sprintf("row %d: cell %q does not convert to %s", it.rowNum, cells[i], field.Type)).
				WithDetail("column", field.Name)
		}
		row[field.Name] = value
	}
	return row, nil
}

func (it *xlsxIterator) Close() error {
	it.exhausted = true
	it.rows.Close()
	return it.file.Close()
}
