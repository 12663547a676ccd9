package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/bucketsource/bucketsource/pkg/config"
	"github.com/bucketsource/bucketsource/pkg/errors"
	"github.com/bucketsource/bucketsource/pkg/format"
	"github.com/bucketsource/bucketsource/pkg/logger"
	"github.com/bucketsource/bucketsource/pkg/sink"
	"github.com/bucketsource/bucketsource/pkg/storage"
	"github.com/bucketsource/bucketsource/pkg/table"
)

// Connector is the public entry point of the ingestion core. One connector
// wraps one storage backend handle, which is stateless between calls and may
// serve sequential runs.
type Connector struct {
	store  storage.ObjectStore
	logger *zap.Logger
}

// New creates a connector over an object store.
func New(store storage.ObjectStore) *Connector {
	return &Connector{
		store:  store,
		logger: logger.With(zap.String("component", "connector")),
	}
}

// Connect builds a connector with an S3 client from the connection config.
func Connect(ctx context.Context, cfg *config.ConnectionConfig) (*Connector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := storage.NewS3Store(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(store), nil
}

// Load resolves the request to exactly one object and materializes it as an
// in-memory table. Requests that classify as a pattern are rejected here;
// use Run for multi-segment ingestion.
func (c *Connector) Load(ctx context.Context, req *Request) (*table.Table, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cfg := req.Config

	sel, err := ClassifyKey(cfg.Key, cfg.AllowMultiSegment)
	if err != nil {
		return nil, err
	}
	if sel.Kind != SelectionSingle {
		return nil, errors.Newf(errors.ErrorTypeInvalidRequest,
			"key %q expands to multiple objects; use a streaming run with a sink", cfg.Key)
	}

	kind, err := format.Detect(sel.Key)
	if err != nil {
		return nil, err
	}

	reader := NewSegmentReader(c.store, cfg.Bucket, cfg.Parse)
	return NewLoader(reader).Load(ctx, Segment{Key: sel.Key, Kind: kind})
}

// Run streams the request's segments into the sink through the batch
// pipeline and returns the run result. Single-object keys run as a
// singleton sequence; patterns are expanded by the enumerator. The sink is
// exclusively owned by this run until Run returns; the caller flushes it
// afterwards.
func (c *Connector) Run(ctx context.Context, req *Request, snk sink.Sink) (*table.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cfg := req.Config

	sel, err := ClassifyKey(cfg.Key, cfg.AllowMultiSegment)
	if err != nil {
		return nil, err
	}

	var source segmentSource
	switch sel.Kind {
	case SelectionSingle:
		kind, err := format.Detect(sel.Key)
		if err != nil {
			return nil, err
		}
		source = &singletonSource{seg: Segment{Key: sel.Key, Kind: kind}}
	case SelectionPattern:
		source = NewEnumerator(c.store, cfg.Bucket, sel, cfg.ValidateListing)
	}

	c.logger.Info("starting ingestion run",
		zap.String("bucket", cfg.Bucket),
		zap.String("key", cfg.Key),
		zap.Bool("pattern", sel.Kind == SelectionPattern),
		zap.Int("batch_size", cfg.EffectiveBatchSize()))

	reader := NewSegmentReader(c.store, cfg.Bucket, cfg.Parse)
	pipeline := NewPipeline(reader, snk, cfg.EffectiveBatchSize(), req.OnSegmentError)

	return pipeline.Run(ctx, source)
}
