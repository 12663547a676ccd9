package ingest

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/bucketsource/bucketsource/pkg/table"
)

// Loader is the simplified single-object path: it reads one segment fully
// into memory and materializes a complete table, bypassing the batch
// pipeline. Retrieval and parse failures always propagate; there is no
// partial-failure tolerance because there is nothing to continue past.
type Loader struct {
	reader *SegmentReader
}

// NewLoader creates a single-object loader.
func NewLoader(reader *SegmentReader) *Loader {
	return &Loader{reader: reader}
}

// Load reads the segment and materializes all of its rows.
func (l *Loader) Load(ctx context.Context, seg Segment) (*table.Table, error) {
	open, err := l.reader.Read(ctx, seg)
	if err != nil {
		return nil, err
	}
	defer open.Close()

	t := &table.Table{
		SourceKey: seg.Key,
		Schema:    open.Schema,
	}

	for {
		row, err := open.Rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, row)
	}

	l.reader.logger.Info("object loaded",
		zap.String("key", seg.Key),
		zap.Int("rows", t.NumRows()),
		zap.Int64("bytes", open.BytesRead()))

	return t, nil
}
