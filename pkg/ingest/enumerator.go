package ingest

import (
	"context"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/bucketsource/bucketsource/pkg/errors"
	"github.com/bucketsource/bucketsource/pkg/format"
	"github.com/bucketsource/bucketsource/pkg/logger"
	"github.com/bucketsource/bucketsource/pkg/storage"
)

// Segment is one resolved object of a multi-object request: its key plus the
// format detected from it. A segment is consumed exactly once.
type Segment struct {
	Key  string
	Kind format.Kind
}

// Enumerator lazily yields the segments matching a pattern selection, in
// lexicographic key order. Every yielded segment must carry the same format
// as the first; a differing format fails the run with a mixed_format error
// before any data of the offending segment is read. Format checking is lazy
// per segment by default; with upfront validation the whole match list is
// verified before the first segment is yielded.
//
// An enumerator is single-use. Restarting a listing means creating a new
// enumerator with the same selection.
type Enumerator struct {
	store    storage.ObjectStore
	bucket   string
	sel      Selection
	upfront  bool
	logger   *zap.Logger

	// paging state
	page         []Segment
	pageIdx      int
	continuation string
	done         bool

	// format consistency state
	firstKind format.Kind
	yielded   int
}

// NewEnumerator creates an enumerator for a pattern selection.
func NewEnumerator(store storage.ObjectStore, bucket string, sel Selection, validateUpfront bool) *Enumerator {
	return &Enumerator{
		store:   store,
		bucket:  bucket,
		sel:     sel,
		upfront: validateUpfront,
		logger: logger.With(
			zap.String("component", "enumerator"),
			zap.String("bucket", bucket),
			zap.String("prefix", sel.Prefix)),
	}
}

// Next yields the next matching segment. It returns ok=false once the
// listing is exhausted. An empty_selection error is returned when the
// pattern matched no objects at all, and a mixed_format error when a match's
// format differs from the first match.
func (e *Enumerator) Next(ctx context.Context) (Segment, bool, error) {
	if e.upfront && e.page == nil && !e.done {
		if err := e.loadAll(ctx); err != nil {
			return Segment{}, false, err
		}
	}

	for {
		if e.pageIdx < len(e.page) {
			seg := e.page[e.pageIdx]
			e.pageIdx++
			e.yielded++
			return seg, true, nil
		}

		if e.done {
			if e.yielded == 0 {
				return Segment{}, false, errors.Newf(errors.ErrorTypeEmptySelection,
					"no objects match %q in bucket %q", e.sel.Key, e.bucket)
			}
			return Segment{}, false, nil
		}

		if err := e.loadPage(ctx); err != nil {
			return Segment{}, false, err
		}
	}
}

// loadPage fetches and filters one listing page.
func (e *Enumerator) loadPage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "enumeration cancelled")
	}

	keys, next, err := e.store.ListPage(ctx, e.bucket, e.sel.Prefix, e.continuation)
	if err != nil {
		return err
	}

	page, err := e.filterPage(keys)
	if err != nil {
		return err
	}

	e.page = page
	e.pageIdx = 0
	e.continuation = next
	e.done = next == ""

	e.logger.Debug("listing page loaded",
		zap.Int("keys", len(keys)),
		zap.Int("segments", len(page)),
		zap.Bool("final", e.done))

	return nil
}

// loadAll drains the full listing so every match's format is validated
// before the first segment is served.
func (e *Enumerator) loadAll(ctx context.Context) error {
	var all []Segment
	for {
		if err := e.loadPage(ctx); err != nil {
			return err
		}
		all = append(all, e.page...)
		if e.done {
			break
		}
	}
	e.page = all
	e.pageIdx = 0
	return nil
}

// filterPage drops directory markers, applies the wildcard when present, and
// enforces format consistency against the first match.
func (e *Enumerator) filterPage(keys []string) ([]Segment, error) {
	segments := make([]Segment, 0, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, "/") {
			continue
		}

		if e.sel.Wildcard {
			matched, err := path.Match(e.sel.Key, key)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeInvalidRequest, "malformed key pattern").
					WithDetail("pattern", e.sel.Key)
			}
			if !matched {
				continue
			}
		}

		kind, err := format.Detect(key)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeMixedFormat,
				"pattern matched an object with an unsupported format").
				WithDetail("key", key)
		}

		if e.firstKind == "" {
			e.firstKind = kind
		} else if kind != e.firstKind {
			return nil, errors.Newf(errors.ErrorTypeMixedFormat,
				"pattern matches span formats: %q is %s but %q expects %s",
				key, kind, e.sel.Key, e.firstKind)
		}

		segments = append(segments, Segment{Key: key, Kind: kind})
	}
	return segments, nil
}
