// Package ingest implements the ingestion core: key classification, segment
// enumeration, segment reading, the batch ingestion pipeline, and the
// single-object loader.
package ingest

import (
	"github.com/bucketsource/bucketsource/pkg/config"
	"github.com/bucketsource/bucketsource/pkg/errors"
)

// SegmentErrorHandler receives segment-scoped failures of a multi-segment
// run. When a handler is configured the run continues with the next segment;
// without one the first segment failure aborts the run.
type SegmentErrorHandler func(key string, err error)

// Request describes one ingestion run: the immutable connection config plus
// the optional per-run error handler. The handler is an injected value, not
// retained global state.
type Request struct {
	Config *config.ConnectionConfig

	// OnSegmentError, when set, receives each segment-scoped failure
	OnSegmentError SegmentErrorHandler
}

// NewRequest wraps a connection config into a request.
func NewRequest(cfg *config.ConnectionConfig) *Request {
	return &Request{Config: cfg}
}

// WithErrorHandler sets the segment error handler and returns the request.
func (r *Request) WithErrorHandler(h SegmentErrorHandler) *Request {
	r.OnSegmentError = h
	return r
}

// Validate checks the request invariants.
func (r *Request) Validate() error {
	if r.Config == nil {
		return errors.New(errors.ErrorTypeInvalidRequest, "request config is required")
	}
	return r.Config.Validate()
}
