package parser

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"

	gojson "github.com/goccy/go-json"

	"github.com/bucketsource/bucketsource/pkg/errors"
	"github.com/bucketsource/bucketsource/pkg/schema"
	"github.com/bucketsource/bucketsource/pkg/table"
)

// JSONParser parses JSON streams in two layouts: a top-level array of
// objects, or line-delimited objects (JSONL/NDJSON). The first object
// establishes the schema; its field names are ordered lexicographically
// since JSON objects carry no column order. Nested objects and arrays are
// flattened to their JSON text and typed as strings.
type JSONParser struct{}

// Parse decodes the first object to derive the schema and returns a lazy
// iterator that yields it followed by the remaining objects.
func (p *JSONParser) Parse(ctx context.Context, r io.Reader, opts Options) (*schema.Schema, RowIterator, error) {
	var next func() (map[string]interface{}, error)
	var closeFn func() error

	switch opts.JSONLayout {
	case "lines":
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		lineNum := 0
		next = func() (map[string]interface{}, error) {
			for scanner.Scan() {
				lineNum++
				line := scanner.Bytes()
				if len(line) == 0 {
					continue
				}
				var obj map[string]interface{}
				if err := gojson.Unmarshal(line, &obj); err != nil {
					return nil, errors.Wrap(err, errors.ErrorTypeParse,
						fmt.Sprintf("malformed JSON on line %d", lineNum))
				}
				return obj, nil
			}
			if err := scanner.Err(); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to scan JSON lines")
			}
			return nil, io.EOF
		}
		closeFn = func() error { return nil }

	case "array":
		decoder := gojson.NewDecoder(r)
		token, err := decoder.Token()
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to read JSON array start")
		}
		if delim, ok := token.(gojson.Delim); !ok || delim != '[' {
			return nil, nil, errors.Newf(errors.ErrorTypeParse, "expected JSON array, got %v", token)
		}
		next = func() (map[string]interface{}, error) {
			if !decoder.More() {
				return nil, io.EOF
			}
			var obj map[string]interface{}
			if err := decoder.Decode(&obj); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to decode JSON object")
			}
			return obj, nil
		}
		closeFn = func() error { return nil }

	default:
		return nil, nil, errors.Newf(errors.ErrorTypeParse, "unknown JSON layout %q", opts.JSONLayout)
	}

	first, err := next()
	if err == io.EOF {
		return nil, nil, errors.New(errors.ErrorTypeParse, "JSON stream contains no objects")
	}
	if err != nil {
		return nil, nil, err
	}

	s := schemaFromObject(opts.SchemaName, first)

	return s, &jsonIterator{
		ctx:      ctx,
		next:     next,
		closeFn:  closeFn,
		schema:   s,
		buffered: first,
	}, nil
}

// schemaFromObject derives a schema from the first decoded object.
func schemaFromObject(name string, obj map[string]interface{}) *schema.Schema {
	names := make([]string, 0, len(obj))
	for k := range obj {
		names = append(names, k)
	}
	sort.Strings(names)

	fields := make([]schema.Field, len(names))
	for i, n := range names {
		fields[i] = schema.Field{Name: n, Type: jsonFieldType(obj[n]), Nullable: true}
	}
	return schema.New(name, fields...)
}

func jsonFieldType(v interface{}) schema.FieldType {
	switch v.(type) {
	case bool:
		return schema.FieldTypeBool
	case float64:
		return schema.FieldTypeFloat
	default:
		return schema.FieldTypeString
	}
}

type jsonIterator struct {
	ctx       context.Context
	next      func() (map[string]interface{}, error)
	closeFn   func() error
	schema    *schema.Schema
	buffered  map[string]interface{}
	exhausted bool
}

func (it *jsonIterator) Next() (table.Row, error) {
	if it.exhausted {
		return nil, io.EOF
	}
	if err := it.ctx.Err(); err != nil {
		it.exhausted = true
		return nil, errors.Wrap(err, errors.ErrorTypeParse, "row iteration cancelled")
	}

	var obj map[string]interface{}
	if it.buffered != nil {
		obj = it.buffered
		it.buffered = nil
	} else {
		var err error
		obj, err = it.next()
		if err == io.EOF {
			it.exhausted = true
			return nil, io.EOF
		}
		if err != nil {
			it.exhausted = true
			return nil, err
		}
	}

	row := make(table.Row, len(it.schema.Fields))
	for _, field := range it.schema.Fields {
		row[field.Name] = flattenJSONValue(obj[field.Name])
	}
	return row, nil
}

func (it *jsonIterator) Close() error {
	it.exhausted = true
	return it.closeFn()
}

// flattenJSONValue reduces nested structures to their JSON text so every
// cell is a primitive the sink can store.
func flattenJSONValue(v interface{}) interface{} {
	switch v.(type) {
	case nil, bool, float64, string:
		return v
	default:
		data, err := gojson.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
