// Package storage provides the object-storage backend used by the ingestion
// core: paginated key listing and object retrieval against S3-compatible
// services, with backend failures mapped into the connector error taxonomy.
package storage

import (
	"context"
	"io"
)

// ObjectStore is the narrow contract the ingestion core requires from a
// storage backend. The client handle is stateless between calls and may be
// reused read-only across sequential segment reads within one run.
type ObjectStore interface {
	// GetObject retrieves one object's byte stream. The caller owns the
	// returned reader and must close it.
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// ListPage lists one page of object keys under the prefix. Pass an empty
	// continuation for the first page; an empty next continuation signals the
	// final page. Keys within a page are returned in the backend's listing
	// order, which for S3 is lexicographic by key.
	ListPage(ctx context.Context, bucket, prefix, continuation string) (keys []string, next string, err error)
}
