package storage

import (
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/bucketsource/bucketsource/pkg/errors"
)

// Decompress wraps an object stream in a decompressor chosen by the key's
// compression suffix. Keys without a recognized suffix pass through unchanged.
// Closing the returned reader closes the underlying stream.
func Decompress(key string, rc io.ReadCloser) (io.ReadCloser, error) {
	lower := strings.ToLower(key)

	switch {
	case strings.HasSuffix(lower, ".gz"):
		gz, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to open gzip stream").
				WithDetail("key", key)
		}
		return &decompressReader{r: gz, closers: []io.Closer{gz, rc}}, nil

	case strings.HasSuffix(lower, ".zst"):
		zr, err := zstd.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeParse, "failed to open zstd stream").
				WithDetail("key", key)
		}
		zrc := zr.IOReadCloser()
		return &decompressReader{r: zrc, closers: []io.Closer{zrc, rc}}, nil

	default:
		return rc, nil
	}
}

// decompressReader chains a decompressor with its underlying stream so one
// Close releases both.
type decompressReader struct {
	r       io.Reader
	closers []io.Closer
}

func (d *decompressReader) Read(p []byte) (int, error) {
	return d.r.Read(p)
}

func (d *decompressReader) Close() error {
	var firstErr error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
