package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-convert/pkg/archive"
	"github.com/ajitpratap0/nebula-convert/pkg/compression"
	"github.com/ajitpratap0/nebula-convert/pkg/errors"
	"github.com/ajitpratap0/nebula-convert/pkg/testutil"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "zip", cfg.Archive.Format)
	assert.Equal(t, int64(32<<20), cfg.Input.MaxBytes)
	assert.Equal(t, 30*time.Second, cfg.Input.Timeout)
	assert.False(t, cfg.Observability.Tracing.Enabled)

	f, err := cfg.ArchiveFormat()
	require.NoError(t, err)
	assert.Equal(t, archive.Zip, f)
	assert.Equal(t, compression.Default, cfg.ArchiveOptions().Level)

	opts, err := cfg.TabularOptions()
	require.NoError(t, err)
	assert.Equal(t, ',', opts.Comma)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"max bytes", func(c *Config) { c.Input.MaxBytes = 0 }, "input.max_bytes"},
		{"timeout", func(c *Config) { c.Input.Timeout = -time.Second }, "input.timeout"},
		{"redirects", func(c *Config) { c.Input.MaxRedirects = -1 }, "input.max_redirects"},
		{"delimiter", func(c *Config) { c.Output.Tabular.Delimiter = ";;" }, "delimiter"},
		{"quote delimiter", func(c *Config) { c.Output.Tabular.Delimiter = `"` }, "delimiter"},
		{"format", func(c *Config) { c.Archive.Format = "rar" }, "archive.format"},
		{"level", func(c *Config) { c.Archive.Level = "max" }, "archive.level"},
		{"addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"upload", func(c *Config) { c.Server.MaxUploadBytes = 0 }, "server.max_upload_bytes"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"log encoding", func(c *Config) { c.Logging.Encoding = "xml" }, "logging.encoding"},
		{"sampling", func(c *Config) { c.Observability.Tracing.SamplingRate = 2 }, "sampling_rate"},
		{"exporter", func(c *Config) { c.Observability.Tracing.Exporter = "jaeger" }, "exporter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestTabularOptions(t *testing.T) {
	cfg := Default()
	cfg.Output.Tabular.Delimiter = ";"
	cfg.Output.Tabular.CRLF = true

	opts, err := cfg.TabularOptions()
	require.NoError(t, err)
	assert.Equal(t, ';', opts.Comma)
	assert.True(t, opts.CRLF)

	cfg.Output.Tabular.Delimiter = "\t"
	opts, err = cfg.TabularOptions()
	require.NoError(t, err)
	assert.Equal(t, '\t', opts.Comma)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	p := testutil.WriteFile(t, "nebula-convert.yaml", `
archive:
  format: tar.zst
  level: best
server:
  addr: 127.0.0.1:9090
  read_timeout: 5s
output:
  tabular:
    delimiter: ";"
logging:
  level: debug
`)

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "tar.zst", cfg.Archive.Format)
	assert.Equal(t, compression.Best, cfg.ArchiveOptions().Level)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, ";", cfg.Output.Tabular.Delimiter)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Encoding)
}

func TestLoadEnvOverride(t *testing.T) {
	p := testutil.WriteFile(t, "nebula-convert.yaml", "archive:\n  format: tar.gz\n")
	t.Setenv("NEBULA_CONVERT_ARCHIVE_FORMAT", "tar.lz4")
	t.Setenv("NEBULA_CONVERT_INPUT_TIMEOUT", "45s")
	t.Setenv("NEBULA_CONVERT_OBSERVABILITY_TRACING_ENABLED", "true")

	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "tar.lz4", cfg.Archive.Format)
	assert.Equal(t, 45*time.Second, cfg.Input.Timeout)
	assert.True(t, cfg.Observability.Tracing.Enabled)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	p := testutil.WriteFile(t, "bad.yaml", "archive:\n  format: rar\n")
	_, err = Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive.format")
}

func TestLoadYAMLSubstitutesEnv(t *testing.T) {
	t.Setenv("NC_BUCKET", "exports")
	p := testutil.WriteFile(t, "plain.yaml", `
output:
  destination: s3://${NC_BUCKET}/daily/
  s3:
    region: ${NC_UNSET_REGION:-eu-west-1}
input:
  timeout: 10s
`)

	cfg, err := LoadYAML(p)
	require.NoError(t, err)
	assert.Equal(t, "s3://exports/daily/", cfg.Output.Destination)
	assert.Equal(t, "eu-west-1", cfg.Output.S3.Region)
	assert.Equal(t, 10*time.Second, cfg.Input.Timeout)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("NC_A", "alpha")
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"${NC_A}", "alpha"},
		{"x-${NC_A}-${NC_A}", "x-alpha-alpha"},
		{"${NC_MISSING}", ""},
		{"${NC_MISSING:-beta}", "beta"},
		{"${NC_A:-beta}", "alpha"},
		{"open ${NC_A", "open ${NC_A"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, substituteEnvVars(tt.in), tt.in)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Archive.Format = "tar.s2"
	cfg.Server.ShutdownTimeout = 3 * time.Second

	p := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, Save(p, cfg))

	loaded, err := LoadYAML(p)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
