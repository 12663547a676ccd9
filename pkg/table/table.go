// Package table defines the tabular value types moved through the ingestion
// pipeline: rows, bounded batches, materialized tables, and run results.
package table

import (
	"github.com/bucketsource/bucketsource/pkg/schema"
)

// Row is a single record keyed by column name.
type Row map[string]interface{}

// Batch is a bounded, ordered slice of a segment's rows carrying a reference
// to the run schema. Ownership transfers to the sink on append; a batch is
// never reused afterward.
type Batch struct {
	Schema *schema.Schema
	Rows   []Row
}

// NewBatch creates a batch with capacity for up to size rows.
func NewBatch(s *schema.Schema, size int) *Batch {
	return &Batch{
		Schema: s,
		Rows:   make([]Row, 0, size),
	}
}

// Append adds a row to the batch.
func (b *Batch) Append(row Row) {
	b.Rows = append(b.Rows, row)
}

// Len returns the number of rows in the batch.
func (b *Batch) Len() int {
	return len(b.Rows)
}

// Table is a fully materialized result of the single-object load path.
type Table struct {
	// SourceKey is the object key the table was loaded from
	SourceKey string

	Schema *schema.Schema
	Rows   []Row
}

// NumRows returns the row count of the table.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// SegmentFailure records one handled per-segment error of a multi-segment run.
type SegmentFailure struct {
	// Key is the object key of the failed segment
	Key string

	// Err is the segment-scoped error routed to the handler
	Err error
}

// Result is the terminal outcome of a multi-segment ingestion run. A run that
// completed with handled segment failures still reports every failed segment
// here; callers must inspect Failures to detect a fully failed run.
type Result struct {
	// Schema is the run schema established by the first successful segment,
	// nil when every segment failed
	Schema *schema.Schema

	// RowsAppended is the total number of rows appended to the sink
	RowsAppended int64

	// BytesRead is the total number of object bytes consumed
	BytesRead int64

	// BatchesAppended is the number of sink appends performed
	BatchesAppended int64

	// SegmentsRead is the number of segments fully drained into the sink
	SegmentsRead int

	// Failures lists handled per-segment errors in enumeration order
	Failures []SegmentFailure
}

// Failed reports whether no segment contributed any rows.
func (r *Result) Failed() bool {
	return r.SegmentsRead == 0 && len(r.Failures) > 0
}
