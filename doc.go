// Package bucketsource is a remote-object ingestion connector: it resolves
// objects in an S3-compatible bucket by key or key-prefix, detects each
// object's serialization format from its name, parses the bytes into tabular
// rows, and delivers them either as a single in-memory table or as a sequence
// of bounded batches streamed into a disk-backed sink.
//
// # Architecture
//
// The ingestion core lives in pkg/ingest and is composed of small,
// sequentially wired stages:
//
//   - the key classifier decides whether a request names one object or a
//     prefix/wildcard pattern (patterns require explicit permission)
//   - the segment enumerator pages the bucket listing lazily, filters
//     wildcard matches, and enforces that every match carries one format
//   - the segment reader opens an object stream, transparently decompresses
//     gzip/zstd payloads, and hands the bytes to the format parser
//   - the batch pipeline drains segments strictly one at a time into the
//     sink, holding at most one batch in memory, with per-segment failure
//     tolerance and cross-segment schema enforcement
//
// Supporting packages: pkg/format (extension detection), pkg/parser
// (delimited text, JSON, Parquet, XLSX), pkg/storage (S3 backend),
// pkg/sink (DuckDB and in-memory destinations), pkg/schema and pkg/table
// (data model), pkg/config, pkg/errors, pkg/logger.
//
// # Quick start
//
// Load one object into memory:
//
//	cfg := config.NewConnectionConfig("my-bucket", "exports/users.csv")
//	conn, err := ingest.Connect(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	tbl, err := conn.Load(ctx, ingest.NewRequest(cfg))
//
// Stream a prefix into DuckDB:
//
//	cfg := config.NewConnectionConfig("my-bucket", "exports/2024/")
//	cfg.AllowMultiSegment = true
//	conn, _ := ingest.Connect(ctx, cfg)
//	snk, _ := sink.NewDuckDBSink("out.duckdb", "events")
//	req := ingest.NewRequest(cfg).WithErrorHandler(func(key string, err error) {
//		log.Printf("segment %s failed: %v", key, err)
//	})
//	result, err := conn.Run(ctx, req, snk)
package bucketsource
