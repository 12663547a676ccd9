// Package config provides the run configuration surface for bucketsource.
// A ConnectionConfig describes one ingestion request: where the objects live,
// which key or prefix to resolve, how to parse the segments, and how the
// batch pipeline should behave.
package config

import (
	"strings"

	"github.com/bucketsource/bucketsource/pkg/errors"
)

const (
	// DefaultBatchSize is the batch size used when none is configured
	DefaultBatchSize = 4096

	// DefaultRegion is assumed when the request names no region
	DefaultRegion = "us-east-1"
)

// ConnectionConfig is the immutable description of one ingestion request.
type ConnectionConfig struct {
	// Region is the storage service region
	Region string `yaml:"region" json:"region"`

	// Endpoint overrides the service URL, for S3-compatible services
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// UsePathStyle forces path-style bucket addressing, required by most
	// non-AWS endpoints
	UsePathStyle bool `yaml:"use_path_style" json:"use_path_style"`

	// Bucket is the bucket name; required
	Bucket string `yaml:"bucket" json:"bucket"`

	// Key is the object key or key prefix/pattern; required
	Key string `yaml:"key" json:"key"`

	// AllowMultiSegment permits the key to expand to multiple objects
	AllowMultiSegment bool `yaml:"allow_multi_segment" json:"allow_multi_segment"`

	// ValidateListing validates the format of every enumerated key before
	// any data is read, instead of lazily per segment
	ValidateListing bool `yaml:"validate_listing" json:"validate_listing"`

	// Credentials holds optional static or temporary credentials
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`

	// Parse holds format-specific parse options
	Parse ParseConfig `yaml:"parse" json:"parse"`

	// BatchSize bounds the number of rows per appended batch
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// CredentialsConfig holds static or temporary credentials. When AccessKeyID
// is empty the ambient credential chain of the environment is used.
type CredentialsConfig struct {
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	SessionToken    string `yaml:"session_token" json:"session_token"`
}

// Static reports whether explicit credentials were provided.
func (c CredentialsConfig) Static() bool {
	return c.AccessKeyID != ""
}

// ParseConfig carries the per-format parse options of a request.
type ParseConfig struct {
	// Delimiter is the field separator for delimited text; default comma,
	// tab for .tsv keys
	Delimiter string `yaml:"delimiter" json:"delimiter"`

	// HasHeader indicates whether delimited text and spreadsheets carry a
	// header row; defaults to true
	HasHeader *bool `yaml:"has_header" json:"has_header"`

	// InferTypes enables int/float/bool inference for delimited text and
	// spreadsheet cells; without it every column is typed string
	InferTypes bool `yaml:"infer_types" json:"infer_types"`

	// JSONLayout selects "lines" (NDJSON) or "array"; detected from the
	// extension when empty
	JSONLayout string `yaml:"json_layout" json:"json_layout"`

	// SheetName selects a spreadsheet sheet by name
	SheetName string `yaml:"sheet_name" json:"sheet_name"`

	// SheetIndex selects a spreadsheet sheet by zero-based index when
	// SheetName is empty; unset falls back to the workbook's active sheet
	SheetIndex *int `yaml:"sheet_index" json:"sheet_index"`
}

// HeaderPresent resolves the HasHeader option with its default of true.
func (p ParseConfig) HeaderPresent() bool {
	if p.HasHeader == nil {
		return true
	}
	return *p.HasHeader
}

// NewConnectionConfig creates a config with defaults applied.
func NewConnectionConfig(bucket, key string) *ConnectionConfig {
	return &ConnectionConfig{
		Region:    DefaultRegion,
		Bucket:    bucket,
		Key:       key,
		BatchSize: DefaultBatchSize,
		LogLevel:  "info",
	}
}

// Validate enforces the request invariants. Bucket and key must be non-empty;
// the remaining pattern checks belong to the key classifier, which sees the
// multi-segment permission flag.
func (c *ConnectionConfig) Validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New(errors.ErrorTypeInvalidRequest, "bucket name is required")
	}
	if strings.TrimSpace(c.Key) == "" {
		return errors.New(errors.ErrorTypeInvalidRequest, "object key is required")
	}
	// zero means "use the default"; only negatives are malformed
	if c.BatchSize < 0 {
		return errors.Newf(errors.ErrorTypeInvalidRequest, "batch size must not be negative, got %d", c.BatchSize)
	}
	if c.Credentials.AccessKeyID != "" && c.Credentials.SecretAccessKey == "" {
		return errors.New(errors.ErrorTypeInvalidRequest, "secret access key is required with a static access key id")
	}
	if c.Parse.SheetIndex != nil && *c.Parse.SheetIndex < 0 {
		return errors.Newf(errors.ErrorTypeInvalidRequest, "sheet index must not be negative, got %d", *c.Parse.SheetIndex)
	}
	switch c.Parse.JSONLayout {
	case "", "lines", "array":
	default:
		return errors.Newf(errors.ErrorTypeInvalidRequest, "unknown json layout %q", c.Parse.JSONLayout)
	}
	return nil
}

// EffectiveBatchSize resolves the batch size with its default.
func (c *ConnectionConfig) EffectiveBatchSize() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

// EffectiveRegion resolves the region with its default.
func (c *ConnectionConfig) EffectiveRegion() string {
	if c.Region == "" {
		return DefaultRegion
	}
	return c.Region
}
