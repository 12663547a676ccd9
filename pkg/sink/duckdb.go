package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"

	"github.com/bucketsource/bucketsource/pkg/errors"
	"github.com/bucketsource/bucketsource/pkg/logger"
	"github.com/bucketsource/bucketsource/pkg/schema"
	"github.com/bucketsource/bucketsource/pkg/table"
)

// DuckDBSink streams batches into a DuckDB table. The table is created from
// the run schema on the first append; each batch is inserted inside one
// transaction so a failed append leaves no partial batch behind.
type DuckDBSink struct {
	db        *sql.DB
	tableName string
	created   bool
	rowCount  atomic.Int64
	logger    *zap.Logger
}

// NewDuckDBSink opens (or creates) the database file at path and targets the
// named table. An empty path opens an in-memory database.
func NewDuckDBSink(path, tableName string) (*DuckDBSink, error) {
	if tableName == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "sink table name is required")
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to open duckdb database")
	}

	return &DuckDBSink{
		db:        db,
		tableName: tableName,
		logger: logger.With(
			zap.String("component", "duckdb_sink"),
			zap.String("table", tableName)),
	}, nil
}

// AppendBatch inserts one batch transactionally, creating the table from the
// schema on first use.
func (d *DuckDBSink) AppendBatch(ctx context.Context, s *schema.Schema, rows []table.Row) error {
	if len(rows) == 0 {
		return nil
	}

	if !d.created {
		if err := d.createTable(ctx, s); err != nil {
			return err
		}
		d.created = true
	}

	columns := s.ColumnNames()
	placeholders := make([]string, len(columns))
	quoted := make([]string, len(columns))
	for i, c := range columns {
		placeholders[i] = "?"
		quoted[i] = quoteIdent(c)
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(d.tableName),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "))

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "failed to begin sink transaction")
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, errors.ErrorTypeTransport, "failed to prepare sink insert")
	}

	for _, row := range rows {
		args := make([]interface{}, len(columns))
		for i, c := range columns {
			args[i] = row[c]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			stmt.Close()
			tx.Rollback()
			return errors.Wrap(err, errors.ErrorTypeTransport, "failed to insert row")
		}
	}

	stmt.Close()
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "failed to commit sink transaction")
	}

	d.rowCount.Add(int64(len(rows)))
	d.logger.Debug("batch appended", zap.Int("rows", len(rows)))
	return nil
}

// Flush forces a checkpoint so appended data reaches the database file.
func (d *DuckDBSink) Flush(ctx context.Context) error {
	if !d.created {
		return nil
	}
	if _, err := d.db.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "failed to checkpoint database")
	}
	return nil
}

// RowCount returns the number of rows appended by this sink instance.
func (d *DuckDBSink) RowCount() int64 {
	return d.rowCount.Load()
}

// Close releases the database handle.
func (d *DuckDBSink) Close() error {
	return d.db.Close()
}

func (d *DuckDBSink) createTable(ctx context.Context, s *schema.Schema) error {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = fmt.Sprintf("%s %s", quoteIdent(f.Name), duckdbType(f.Type))
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		quoteIdent(d.tableName), strings.Join(cols, ", "))

	if _, err := d.db.ExecContext(ctx, ddl); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "failed to create sink table")
	}

	d.logger.Info("sink table ready", zap.Strings("columns", s.ColumnNames()))
	return nil
}

func duckdbType(t schema.FieldType) string {
	switch t {
	case schema.FieldTypeInt:
		return "BIGINT"
	case schema.FieldTypeFloat:
		return "DOUBLE"
	case schema.FieldTypeBool:
		return "BOOLEAN"
	case schema.FieldTypeTimestamp:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
