package ingest

import (
	"path"
	"strings"

	"github.com/bucketsource/bucketsource/pkg/errors"
	"github.com/bucketsource/bucketsource/pkg/format"
)

// SelectionKind tells whether a request denotes one object or many.
type SelectionKind int

const (
	// SelectionSingle denotes exactly one object
	SelectionSingle SelectionKind = iota
	// SelectionPattern denotes a prefix or wildcard expansion
	SelectionPattern
)

// Selection is the classified form of a requested key.
type Selection struct {
	Kind SelectionKind

	// Key is the requested key, verbatim
	Key string

	// Prefix is the listing prefix for pattern selections: the key up to the
	// first wildcard, or the key itself for plain prefixes
	Prefix string

	// Wildcard is true when Key contains a glob character and matches must
	// be filtered with it
	Wildcard bool
}

// ClassifyKey decides whether a requested key denotes a single object or a
// prefix/wildcard pattern. A key is a pattern if it ends with a path
// separator, contains a wildcard character, or has no file extension.
// Pattern keys require multi-segment permission; single keys must carry a
// supported extension. Pure function of its inputs.
func ClassifyKey(key string, allowMultiSegment bool) (Selection, error) {
	if strings.TrimSpace(key) == "" {
		return Selection{}, errors.New(errors.ErrorTypeInvalidRequest, "object key is required")
	}

	wildcard := strings.ContainsAny(key, "*?")
	pattern := wildcard ||
		strings.HasSuffix(key, "/") ||
		path.Ext(format.TrimCompression(key)) == ""

	if !pattern {
		if _, err := format.Detect(key); err != nil {
			return Selection{}, err
		}
		return Selection{Kind: SelectionSingle, Key: key}, nil
	}

	if !allowMultiSegment {
		return Selection{}, errors.Newf(errors.ErrorTypeUnsupportedPattern,
			"ambiguous single-object request: key %q denotes a pattern but multi-segment expansion is not permitted", key)
	}

	prefix := key
	if wildcard {
		if i := strings.IndexAny(key, "*?"); i >= 0 {
			prefix = key[:i]
		}
	}

	return Selection{
		Kind:     SelectionPattern,
		Key:      key,
		Prefix:   prefix,
		Wildcard: wildcard,
	}, nil
}
