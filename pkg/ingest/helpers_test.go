package ingest

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/bucketsource/bucketsource/pkg/errors"
)

// fakeStore is an in-memory ObjectStore with configurable page size and
// per-key failure injection.
type fakeStore struct {
	objects  map[string][]byte
	pageSize int

	// getErr fails GetObject for the given keys
	getErr map[string]error

	listCalls int
	getCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:  map[string][]byte{},
		pageSize: 1000,
		getErr:   map[string]error{},
	}
}

func (f *fakeStore) put(key, data string) {
	f.objects[key] = []byte(data)
}

func (f *fakeStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	f.getCalls++
	if err := f.getErr[key]; err != nil {
		return nil, err
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "object %q not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) ListPage(ctx context.Context, bucket, prefix, continuation string) ([]string, string, error) {
	f.listCalls++

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if continuation != "" {
		start, _ = strconv.Atoi(continuation)
	}
	end := start + f.pageSize
	if end >= len(keys) {
		return keys[start:], "", nil
	}
	return keys[start:end], strconv.Itoa(end), nil
}

func gzipped(t *testing.T, data string) string {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.String()
}
