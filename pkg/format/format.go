// Package format maps object-key extensions to the closed set of supported
// serialization formats. Detection is a fixed lookup table over extensions,
// case-insensitive on the extension only.
package format

import (
	"path"
	"sort"
	"strings"

	"github.com/bucketsource/bucketsource/pkg/errors"
)

// Kind identifies one of the supported serialization formats.
type Kind string

const (
	// KindDelimitedText covers comma- and tab-separated text files
	KindDelimitedText Kind = "delimited_text"
	// KindJSON covers JSON arrays and line-delimited JSON
	KindJSON Kind = "json"
	// KindColumnar covers columnar binary files (Parquet)
	KindColumnar Kind = "columnar"
	// KindSpreadsheet covers Excel workbooks
	KindSpreadsheet Kind = "spreadsheet"
)

// extensions is the closed lookup table from key extension to format kind.
var extensions = map[string]Kind{
	".csv":     KindDelimitedText,
	".tsv":     KindDelimitedText,
	".txt":     KindDelimitedText,
	".json":    KindJSON,
	".jsonl":   KindJSON,
	".ndjson":  KindJSON,
	".parquet": KindColumnar,
	".xlsx":    KindSpreadsheet,
	".xlsm":    KindSpreadsheet,
}

// compressionSuffixes are stripped before format detection; the object stream
// is transparently decompressed by the storage layer.
var compressionSuffixes = []string{".gz", ".zst"}

// TrimCompression removes a trailing compression suffix from the key, if any.
func TrimCompression(key string) string {
	lower := strings.ToLower(key)
	for _, suffix := range compressionSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return key[:len(key)-len(suffix)]
		}
	}
	return key
}

// IsCompressed reports whether the key carries a recognized compression suffix.
func IsCompressed(key string) bool {
	return TrimCompression(key) != key
}

// Detect maps an object key's extension to its format kind. Unknown
// extensions fail with an unsupported_format error naming the extension.
func Detect(objectKey string) (Kind, error) {
	ext := strings.ToLower(path.Ext(TrimCompression(objectKey)))
	if ext == "" {
		return "", errors.Newf(errors.ErrorTypeUnsupportedFormat,
			"object key %q has no file extension", objectKey)
	}

	kind, ok := extensions[ext]
	if !ok {
		return "", errors.Newf(errors.ErrorTypeUnsupportedFormat,
			"unsupported file extension %q", ext)
	}
	return kind, nil
}

// Supported reports whether the key's extension is in the supported set.
func Supported(objectKey string) bool {
	_, err := Detect(objectKey)
	return err == nil
}

// SupportedExtensions returns the recognized extensions in sorted order.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extensions))
	for ext := range extensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
