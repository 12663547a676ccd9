package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bucketsource/bucketsource/pkg/errors"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ConnectionConfig)
		ok     bool
	}{
		{"valid", func(c *ConnectionConfig) {}, true},
		{"missing bucket", func(c *ConnectionConfig) { c.Bucket = "" }, false},
		{"blank bucket", func(c *ConnectionConfig) { c.Bucket = "   " }, false},
		{"missing key", func(c *ConnectionConfig) { c.Key = "" }, false},
		{"negative batch size", func(c *ConnectionConfig) { c.BatchSize = -1 }, false},
		{"zero batch size defaults", func(c *ConnectionConfig) { c.BatchSize = 0 }, true},
		{"access key without secret", func(c *ConnectionConfig) {
			c.Credentials.AccessKeyID = "AKIA123"
		}, false},
		{"full static credentials", func(c *ConnectionConfig) {
			c.Credentials.AccessKeyID = "AKIA123"
			c.Credentials.SecretAccessKey = "secret"
		}, true},
		{"unknown json layout", func(c *ConnectionConfig) { c.Parse.JSONLayout = "stream" }, false},
		{"negative sheet index", func(c *ConnectionConfig) {
			idx := -1
			c.Parse.SheetIndex = &idx
		}, false},
		{"zero sheet index", func(c *ConnectionConfig) {
			idx := 0
			c.Parse.SheetIndex = &idx
		}, true},
		{"lines json layout", func(c *ConnectionConfig) { c.Parse.JSONLayout = "lines" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConnectionConfig("my-bucket", "data/events.csv")
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidRequest))
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	cfg := NewConnectionConfig("b", "k.csv")
	assert.Equal(t, DefaultRegion, cfg.Region)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)

	cfg.BatchSize = 0
	assert.Equal(t, DefaultBatchSize, cfg.EffectiveBatchSize())
	cfg.BatchSize = 100
	assert.Equal(t, 100, cfg.EffectiveBatchSize())

	cfg.Region = ""
	assert.Equal(t, DefaultRegion, cfg.EffectiveRegion())
}

func TestHeaderPresent(t *testing.T) {
	var p ParseConfig
	assert.True(t, p.HeaderPresent())

	no := false
	p.HasHeader = &no
	assert.False(t, p.HeaderPresent())
}

func TestCredentialsStatic(t *testing.T) {
	assert.False(t, CredentialsConfig{}.Static())
	assert.True(t, CredentialsConfig{AccessKeyID: "AKIA123"}.Static())
}

func TestLoad(t *testing.T) {
	data := []byte(`
bucket: my-bucket
key: exports/2024/
allow_multi_segment: true
endpoint: http://localhost:9000
use_path_style: true
batch_size: 500
parse:
  delimiter: ";"
  has_header: false
  infer_types: true
  sheet_index: 0
credentials:
  access_key_id: minioadmin
  secret_access_key: minioadmin
`)

	cfg, err := Load(data)
	require.NoError(t, err)

	assert.Equal(t, "my-bucket", cfg.Bucket)
	assert.Equal(t, "exports/2024/", cfg.Key)
	assert.True(t, cfg.AllowMultiSegment)
	assert.True(t, cfg.UsePathStyle)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.Equal(t, DefaultRegion, cfg.Region)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ";", cfg.Parse.Delimiter)
	assert.False(t, cfg.Parse.HeaderPresent())
	assert.True(t, cfg.Parse.InferTypes)
	require.NotNil(t, cfg.Parse.SheetIndex)
	assert.Equal(t, 0, *cfg.Parse.SheetIndex)
	assert.True(t, cfg.Credentials.Static())
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load([]byte("bucket: [broken"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = Load([]byte("bucket: only-bucket\n"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalidRequest))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conn.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bucket: b\nkey: k.csv\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "b", cfg.Bucket)

	_, err = LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
