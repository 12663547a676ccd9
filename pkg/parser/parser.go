// Package parser provides the format-specific parsers that turn an object's
// byte stream into a table schema and a lazy, single-pass row sequence.
package parser

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/bucketsource/bucketsource/pkg/config"
	"github.com/bucketsource/bucketsource/pkg/errors"
	"github.com/bucketsource/bucketsource/pkg/format"
	"github.com/bucketsource/bucketsource/pkg/schema"
	"github.com/bucketsource/bucketsource/pkg/table"
)

// Options carries the format-specific parse options of one segment.
type Options struct {
	// SchemaName names the resulting schema, typically the object key
	SchemaName string

	// Comma is the field separator for delimited text
	Comma rune

	// HasHeader indicates whether the first row carries column names
	HasHeader bool

	// InferTypes enables int/float/bool inference for textual cells
	InferTypes bool

	// JSONLayout selects "lines" or "array"
	JSONLayout string

	// SheetName selects a spreadsheet sheet by name
	SheetName string

	// SheetIndex selects a spreadsheet sheet by zero-based index when
	// SheetName is empty; nil falls back to the workbook's active sheet
	SheetIndex *int
}

// OptionsFor resolves parse options from the run config for one object key.
// The delimiter defaults to comma, or tab for .tsv keys; the JSON layout
// defaults to line-delimited for .jsonl/.ndjson keys and array otherwise.
func OptionsFor(cfg config.ParseConfig, key string) Options {
	opts := Options{
		SchemaName: key,
		Comma:      ',',
		HasHeader:  cfg.HeaderPresent(),
		InferTypes: cfg.InferTypes,
		JSONLayout: cfg.JSONLayout,
		SheetName:  cfg.SheetName,
		SheetIndex: cfg.SheetIndex,
	}

	trimmed := strings.ToLower(format.TrimCompression(key))
	if cfg.Delimiter != "" {
		opts.Comma = []rune(cfg.Delimiter)[0]
	} else if strings.HasSuffix(trimmed, ".tsv") {
		opts.Comma = '\t'
	}

	if opts.JSONLayout == "" {
		if strings.HasSuffix(trimmed, ".jsonl") || strings.HasSuffix(trimmed, ".ndjson") {
			opts.JSONLayout = "lines"
		} else {
			opts.JSONLayout = "array"
		}
	}

	return opts
}

// RowIterator is a lazy, single-pass sequence of rows. Next returns io.EOF
// once the sequence is exhausted and every call after that; re-iteration is
// not possible.
type RowIterator interface {
	Next() (table.Row, error)
	Close() error
}

// Parser turns a byte stream into a schema and a lazy row sequence. The
// stream is consumed exactly once; parsers must not require seeking, though
// container formats (Parquet, XLSX) buffer internally.
type Parser interface {
	Parse(ctx context.Context, r io.Reader, opts Options) (*schema.Schema, RowIterator, error)
}

// ForKind returns the parser for a format kind.
func ForKind(kind format.Kind) (Parser, error) {
	switch kind {
	case format.KindDelimitedText:
		return &CSVParser{}, nil
	case format.KindJSON:
		return &JSONParser{}, nil
	case format.KindColumnar:
		return &ParquetParser{}, nil
	case format.KindSpreadsheet:
		return &XLSXParser{}, nil
	default:
		return nil, errors.Newf(errors.ErrorTypeUnsupportedFormat, "no parser for format %q", kind)
	}
}

// inferFieldType guesses a field type from a textual sample value.
func inferFieldType(sample string) schema.FieldType {
	s := strings.TrimSpace(sample)
	if s == "" {
		return schema.FieldTypeString
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return schema.FieldTypeInt
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return schema.FieldTypeFloat
	}
	if _, err := strconv.ParseBool(s); err == nil {
		return schema.FieldTypeBool
	}
	return schema.FieldTypeString
}

// convertCell converts a textual cell into the field's declared type.
// Empty cells become nil.
func convertCell(value string, t schema.FieldType) (interface{}, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	switch t {
	case schema.FieldTypeInt:
		return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	case schema.FieldTypeFloat:
		return strconv.ParseFloat(strings.TrimSpace(value), 64)
	case schema.FieldTypeBool:
		return strconv.ParseBool(strings.TrimSpace(value))
	default:
		return value, nil
	}
}

// exhaustedIterator is the shared terminal state for iterators that finish
// or fail during construction.
type exhaustedIterator struct{}

func (exhaustedIterator) Next() (table.Row, error) { return nil, io.EOF }
func (exhaustedIterator) Close() error             { return nil }
