package ingest

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/bucketsource/bucketsource/pkg/errors"
	"github.com/bucketsource/bucketsource/pkg/logger"
	"github.com/bucketsource/bucketsource/pkg/schema"
	"github.com/bucketsource/bucketsource/pkg/sink"
	"github.com/bucketsource/bucketsource/pkg/table"
)

// segmentSource abstracts where the pipeline's segments come from: the
// enumerator for pattern requests, or a fixed singleton for single-object
// symmetry.
type segmentSource interface {
	Next(ctx context.Context) (Segment, bool, error)
}

// singletonSource yields exactly one segment.
type singletonSource struct {
	seg  Segment
	done bool
}

func (s *singletonSource) Next(ctx context.Context) (Segment, bool, error) {
	if s.done {
		return Segment{}, false, nil
	}
	s.done = true
	return s.seg, true, nil
}

// Pipeline drives enumeration, segment reading, batching, and sink appends
// for multi-segment requests. Segments are processed strictly sequentially
// to bound peak memory at O(batch size) and to preserve a deterministic row
// order in the sink; each append is awaited before the next batch is built.
type Pipeline struct {
	reader    *SegmentReader
	sink      sink.Sink
	batchSize int
	onError   SegmentErrorHandler
	logger    *zap.Logger
}

// NewPipeline creates a pipeline writing to the given sink. The sink is
// exclusively owned by this run until Run returns.
func NewPipeline(reader *SegmentReader, snk sink.Sink, batchSize int, onError SegmentErrorHandler) *Pipeline {
	return &Pipeline{
		reader:    reader,
		sink:      snk,
		batchSize: batchSize,
		onError:   onError,
		logger:    logger.With(zap.String("component", "pipeline")),
	}
}

// Run drains every segment from the source into the sink and returns the
// run result. Segment-scoped failures go to the configured error handler and
// the run continues; without a handler the first failure aborts the run.
// Fatal errors (mixed formats, schema mismatch, cancelled context) abort the
// run regardless of handler configuration. A run in which every segment
// failed yields a zero-row result with a non-empty failure list, not an
// error.
func (p *Pipeline) Run(ctx context.Context, source segmentSource) (*table.Result, error) {
	result := &table.Result{}
	var runSchema *schema.Schema

	for {
		// cancellation is checked at every segment boundary
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "ingestion run cancelled")
		}

		seg, ok, err := source.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		segSchema, err := p.processSegment(ctx, seg, runSchema, result)

		// The first segment that opens successfully establishes the run
		// schema, even when it fails mid-drain afterwards: rows it already
		// appended are in the sink, so later segments must still match it.
		if runSchema == nil && segSchema != nil {
			runSchema = segSchema
			result.Schema = runSchema
		}

		if err != nil {
			if errors.IsSegmentScoped(err) && p.onError != nil {
				p.logger.Warn("segment failed, continuing",
					zap.String("key", seg.Key),
					zap.Error(err))
				p.onError(seg.Key, err)
				result.Failures = append(result.Failures, table.SegmentFailure{Key: seg.Key, Err: err})
				continue
			}
			return nil, err
		}
		result.SegmentsRead++
	}

	p.logger.Info("ingestion run complete",
		zap.Int64("rows_appended", result.RowsAppended),
		zap.Int64("batches", result.BatchesAppended),
		zap.Int("segments_read", result.SegmentsRead),
		zap.Int("segments_failed", len(result.Failures)))

	return result, nil
}

// processSegment reads one segment and streams its rows into the sink in
// bounded batches. The segment's schema is returned as soon as the segment
// opened, including alongside a mid-drain error; it is nil when the segment
// failed to open or diverged from the run schema.
func (p *Pipeline) processSegment(ctx context.Context, seg Segment, runSchema *schema.Schema, result *table.Result) (*schema.Schema, error) {
	open, err := p.reader.Read(ctx, seg)
	if err != nil {
		return nil, err
	}
	defer open.Close()

	// Schema compatibility is verified before any row of the segment is
	// appended; a mismatch is fatal for the run, not handler-recoverable.
	if runSchema != nil && !runSchema.Compatible(open.Schema) {
		return nil, errors.Newf(errors.ErrorTypeSchemaMismatch,
			"segment %q schema diverges from run schema: %s",
			seg.Key, runSchema.Diff(open.Schema))
	}

	appendSchema := runSchema
	if appendSchema == nil {
		appendSchema = open.Schema
	}

	batch := table.NewBatch(appendSchema, p.batchSize)
	rowsAppended := int64(0)
	batchesAppended := int64(0)

	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		// cancellation is checked at every batch-append boundary
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "ingestion run cancelled")
		}
		// a broken sink aborts the run; it is not a per-segment condition
		if err := p.sink.AppendBatch(ctx, appendSchema, batch.Rows); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "sink append failed").
				WithDetail("key", seg.Key)
		}
		rowsAppended += int64(batch.Len())
		batchesAppended++
		// ownership of the previous batch moved to the sink
		batch = table.NewBatch(appendSchema, p.batchSize)
		return nil
	}

	for {
		row, err := open.Rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// rows already appended from this segment stay in the sink; the
			// failure is reported against the segment
			result.RowsAppended += rowsAppended
			result.BatchesAppended += batchesAppended
			result.BytesRead += open.BytesRead()
			return open.Schema, err
		}

		batch.Append(row)
		if batch.Len() >= p.batchSize {
			if err := flush(); err != nil {
				result.RowsAppended += rowsAppended
				result.BatchesAppended += batchesAppended
				result.BytesRead += open.BytesRead()
				return open.Schema, err
			}
		}
	}

	// the final partial batch of a segment is still appended
	if err := flush(); err != nil {
		result.RowsAppended += rowsAppended
		result.BatchesAppended += batchesAppended
		result.BytesRead += open.BytesRead()
		return open.Schema, err
	}

	result.RowsAppended += rowsAppended
	result.BatchesAppended += batchesAppended
	result.BytesRead += open.BytesRead()

	p.logger.Debug("segment drained",
		zap.String("key", seg.Key),
		zap.Int64("rows", rowsAppended),
		zap.Int64("batches", batchesAppended))

	return open.Schema, nil
}
