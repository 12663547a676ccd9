// Package sink defines the destination-sink contract of the ingestion
// pipeline and provides two implementations: a DuckDB-backed table store and
// an in-memory sink for tests and previews.
package sink

import (
	"context"
	"sync"

	"github.com/bucketsource/bucketsource/pkg/schema"
	"github.com/bucketsource/bucketsource/pkg/table"
)

// Sink receives streamed row batches from one ingestion run. A sink instance
// is exclusively owned by a single run for its duration; concurrent runs must
// not share one. Batch ownership transfers to the sink on append.
type Sink interface {
	// AppendBatch appends one bounded batch of rows in order. The pipeline
	// awaits each append before producing the next batch.
	AppendBatch(ctx context.Context, s *schema.Schema, rows []table.Row) error

	// Flush persists buffered writes at run end.
	Flush(ctx context.Context) error

	// RowCount returns the number of rows appended so far.
	RowCount() int64
}

// MemorySink accumulates appended rows in memory.
type MemorySink struct {
	mu      sync.Mutex
	schema  *schema.Schema
	rows    []table.Row
	appends int
	flushed bool
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// AppendBatch stores the batch rows.
func (m *MemorySink) AppendBatch(ctx context.Context, s *schema.Schema, rows []table.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.schema == nil {
		m.schema = s
	}
	m.rows = append(m.rows, rows...)
	m.appends++
	return nil
}

// Flush marks the sink flushed.
func (m *MemorySink) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushed = true
	return nil
}

// RowCount returns the number of appended rows.
func (m *MemorySink) RowCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.rows))
}

// Schema returns the schema of the first appended batch.
func (m *MemorySink) Schema() *schema.Schema {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.schema
}

// Rows returns the appended rows in append order.
func (m *MemorySink) Rows() []table.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows
}

// Appends returns the number of AppendBatch calls.
func (m *MemorySink) Appends() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appends
}

// Flushed reports whether Flush was called.
func (m *MemorySink) Flushed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushed
}
