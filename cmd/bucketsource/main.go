package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/bucketsource/bucketsource/pkg/config"
	"github.com/bucketsource/bucketsource/pkg/format"
	"github.com/bucketsource/bucketsource/pkg/ingest"
	"github.com/bucketsource/bucketsource/pkg/logger"
	"github.com/bucketsource/bucketsource/pkg/sink"
	"github.com/bucketsource/bucketsource/pkg/table"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "bucketsource",
		Short: "bucketsource - object-storage ingestion connector",
		Long: `bucketsource resolves objects in an S3-compatible bucket by key or
key-prefix, detects each object's format from its name, and streams the
parsed rows either to stdout or into a DuckDB table in bounded batches.`,
	}

	root.AddCommand(versionCmd(), formatsCmd(), loadCmd(), ingestCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("bucketsource v%s\n", version)
		},
	}
}

func formatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported object formats",
		Run: func(cmd *cobra.Command, args []string) {
			for _, ext := range format.SupportedExtensions() {
				kind, _ := format.Detect("x" + ext)
				fmt.Printf("  %-10s %s\n", ext, kind)
			}
		},
	}
}

// connectionFlags binds the shared connection flags and resolves them
// (flags > config file > defaults) into a ConnectionConfig.
func connectionFlags(cmd *cobra.Command) func() (*config.ConnectionConfig, error) {
	v := viper.New()

	cmd.Flags().String("config", "", "YAML connection config file")
	cmd.Flags().String("region", config.DefaultRegion, "storage service region")
	cmd.Flags().String("endpoint", "", "custom service URL for S3-compatible endpoints")
	cmd.Flags().Bool("path-style", false, "use path-style bucket addressing")
	cmd.Flags().String("bucket", "", "bucket name")
	cmd.Flags().String("key", "", "object key or key prefix")
	cmd.Flags().Bool("multi", false, "permit multi-object expansion of the key")
	cmd.Flags().Bool("validate-listing", false, "validate formats of the whole match list upfront")
	cmd.Flags().Int("batch-size", config.DefaultBatchSize, "rows per appended batch")
	cmd.Flags().String("delimiter", "", "field delimiter for delimited text")
	cmd.Flags().Bool("infer-types", false, "infer column types from the first data row")
	cmd.Flags().String("sheet", "", "spreadsheet sheet name")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	bind := map[string]string{
		"region":           "region",
		"endpoint":         "endpoint",
		"path-style":       "use_path_style",
		"bucket":           "bucket",
		"key":              "key",
		"multi":            "allow_multi_segment",
		"validate-listing": "validate_listing",
		"batch-size":       "batch_size",
		"delimiter":        "parse.delimiter",
		"infer-types":      "parse.infer_types",
		"sheet":            "parse.sheet_name",
		"log-level":        "log_level",
	}

	return func() (*config.ConnectionConfig, error) {
		for flagName, key := range bind {
			if err := v.BindPFlag(key, cmd.Flags().Lookup(flagName)); err != nil {
				return nil, err
			}
		}

		if file, _ := cmd.Flags().GetString("config"); file != "" {
			v.SetConfigFile(file)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}

		cfg := config.NewConnectionConfig(v.GetString("bucket"), v.GetString("key"))
		cfg.Region = v.GetString("region")
		cfg.Endpoint = v.GetString("endpoint")
		cfg.UsePathStyle = v.GetBool("use_path_style")
		cfg.AllowMultiSegment = v.GetBool("allow_multi_segment")
		cfg.ValidateListing = v.GetBool("validate_listing")
		cfg.BatchSize = v.GetInt("batch_size")
		cfg.Credentials.AccessKeyID = v.GetString("credentials.access_key_id")
		cfg.Credentials.SecretAccessKey = v.GetString("credentials.secret_access_key")
		cfg.Credentials.SessionToken = v.GetString("credentials.session_token")
		cfg.Parse.Delimiter = v.GetString("parse.delimiter")
		if v.IsSet("parse.has_header") {
			hasHeader := v.GetBool("parse.has_header")
			cfg.Parse.HasHeader = &hasHeader
		}
		cfg.Parse.InferTypes = v.GetBool("parse.infer_types")
		cfg.Parse.JSONLayout = v.GetString("parse.json_layout")
		cfg.Parse.SheetName = v.GetString("parse.sheet_name")
		if v.IsSet("parse.sheet_index") {
			sheetIndex := v.GetInt("parse.sheet_index")
			cfg.Parse.SheetIndex = &sheetIndex
		}
		cfg.LogLevel = v.GetString("log_level")

		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := logger.Init(logger.Config{Level: cfg.LogLevel, Encoding: "console"}); err != nil {
			return nil, err
		}
		return cfg, nil
	}
}

func loadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a single object into memory and print a preview",
	}
	resolve := connectionFlags(cmd)
	var previewRows int
	cmd.Flags().IntVar(&previewRows, "preview", 10, "number of rows to print")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := resolve()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		conn, err := ingest.Connect(ctx, cfg)
		if err != nil {
			return err
		}

		tbl, err := conn.Load(ctx, ingest.NewRequest(cfg))
		if err != nil {
			return err
		}

		printPreview(tbl, previewRows)
		return nil
	}
	return cmd
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Stream matching objects into a DuckDB table",
	}
	resolve := connectionFlags(cmd)
	var dbPath, tableName string
	cmd.Flags().StringVar(&dbPath, "db", "bucketsource.duckdb", "DuckDB database file")
	cmd.Flags().StringVar(&tableName, "table", "ingested", "destination table name")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := resolve()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		conn, err := ingest.Connect(ctx, cfg)
		if err != nil {
			return err
		}

		snk, err := sink.NewDuckDBSink(dbPath, tableName)
		if err != nil {
			return err
		}
		defer snk.Close()

		req := ingest.NewRequest(cfg).WithErrorHandler(func(key string, err error) {
			logger.Warn("segment failed", zap.String("key", key), zap.Error(err))
		})

		result, err := conn.Run(ctx, req, snk)
		if err != nil {
			return err
		}
		if err := snk.Flush(ctx); err != nil {
			return err
		}

		fmt.Printf("appended %d rows in %d batches from %d segments (%d bytes read)\n",
			result.RowsAppended, result.BatchesAppended, result.SegmentsRead, result.BytesRead)
		for _, f := range result.Failures {
			fmt.Printf("  failed segment %s: %v\n", f.Key, f.Err)
		}
		if result.Failed() {
			return fmt.Errorf("every segment failed")
		}
		return nil
	}
	return cmd
}

func printPreview(tbl *table.Table, limit int) {
	fmt.Printf("%s: %d rows\n", tbl.SourceKey, tbl.NumRows())
	cols := tbl.Schema.ColumnNames()
	for i, f := range tbl.Schema.Fields {
		fmt.Printf("  %-24s %s\n", cols[i], f.Type)
	}
	for i, row := range tbl.Rows {
		if i >= limit {
			fmt.Printf("  ... %d more rows\n", tbl.NumRows()-limit)
			break
		}
		fmt.Printf("  %v\n", row)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
