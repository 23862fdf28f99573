package config

import (
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/nebula-convert/pkg/archive"
	"github.com/ajitpratap0/nebula-convert/pkg/compression"
	"github.com/ajitpratap0/nebula-convert/pkg/errors"
	"github.com/ajitpratap0/nebula-convert/pkg/formats/tabular"
	"github.com/ajitpratap0/nebula-convert/pkg/input"
	"github.com/ajitpratap0/nebula-convert/pkg/logger"
	"github.com/ajitpratap0/nebula-convert/pkg/observability"
	"github.com/ajitpratap0/nebula-convert/pkg/sink"
)

// Config is the complete nebula-convert configuration. Every section has
// usable defaults, so an empty file is a valid configuration.
type Config struct {
	// Input controls how source documents are fetched
	Input input.Config `yaml:"input" json:"input" mapstructure:"input"`

	// Output controls where artifacts and archives end up
	Output OutputConfig `yaml:"output" json:"output" mapstructure:"output"`

	// Archive selects the archive container
	Archive ArchiveConfig `yaml:"archive" json:"archive" mapstructure:"archive"`

	// Server configures the HTTP front end
	Server ServerConfig `yaml:"server" json:"server" mapstructure:"server"`

	Logging logger.Config `yaml:"logging" json:"logging" mapstructure:"logging"`

	Observability ObservabilityConfig `yaml:"observability" json:"observability" mapstructure:"observability"`
}

// OutputConfig contains artifact and delivery settings
type OutputConfig struct {
	// WorkDir is the parent of per-conversion working directories.
	// Empty means the system temp directory.
	WorkDir string `yaml:"work_dir" json:"work_dir" mapstructure:"work_dir"`
	// KeepWorkDir leaves working directories behind after delivery
	KeepWorkDir bool `yaml:"keep_work_dir" json:"keep_work_dir" mapstructure:"keep_work_dir"`
	// Destination is the default delivery target: a path, s3:// or gs://
	Destination string `yaml:"destination" json:"destination" mapstructure:"destination"`
	// Tabular is the CSV dialect used on both sides of a conversion
	Tabular TabularConfig  `yaml:"tabular" json:"tabular" mapstructure:"tabular"`
	S3      sink.S3Config  `yaml:"s3" json:"s3" mapstructure:"s3"`
	GCS     sink.GCSConfig `yaml:"gcs" json:"gcs" mapstructure:"gcs"`
}

// TabularConfig is the CSV dialect
type TabularConfig struct {
	// Delimiter is a single character
	Delimiter string `yaml:"delimiter" json:"delimiter" mapstructure:"delimiter"`
	CRLF      bool   `yaml:"crlf" json:"crlf" mapstructure:"crlf"`
}

// ArchiveConfig selects the archive container and compression effort
type ArchiveConfig struct {
	// Format is zip, tar.gz, tar.zst, tar.lz4 or tar.s2
	Format string `yaml:"format" json:"format" mapstructure:"format"`
	// Level is fastest, default, better or best
	Level string `yaml:"level" json:"level" mapstructure:"level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Addr            string        `yaml:"addr" json:"addr" mapstructure:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	// MaxUploadBytes bounds a multipart upload
	MaxUploadBytes int64 `yaml:"max_upload_bytes" json:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// ObservabilityConfig contains metrics and tracing settings
type ObservabilityConfig struct {
	// EnableMetrics exposes /metrics on the server
	EnableMetrics bool                        `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	Tracing       observability.TracingConfig `yaml:"tracing" json:"tracing" mapstructure:"tracing"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Input: input.DefaultConfig(),
		Output: OutputConfig{
			Tabular: TabularConfig{Delimiter: ","},
			S3: sink.S3Config{
				PartSize:    8 << 20,
				Concurrency: 4,
			},
		},
		Archive: ArchiveConfig{
			Format: string(archive.Zip),
			Level:  "default",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  32 << 20,
		},
		Logging: logger.DefaultConfig(),
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			Tracing:       observability.DefaultConfig(),
		},
	}
}

// Validate checks the configuration for values the rest of the program
// cannot work with. The first problem found is returned.
func (c *Config) Validate() error {
	if c.Input.MaxBytes <= 0 {
		return invalid("input.max_bytes must be positive")
	}
	if c.Input.Timeout < 0 {
		return invalid("input.timeout cannot be negative")
	}
	if c.Input.MaxRedirects < 0 {
		return invalid("input.max_redirects cannot be negative")
	}

	if _, err := c.TabularOptions(); err != nil {
		return err
	}

	if _, err := archive.ParseFormat(c.Archive.Format); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid archive.format")
	}
	if _, err := compression.ParseLevel(c.Archive.Level); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid archive.level")
	}

	if c.Server.Addr == "" {
		return invalid("server.addr is required")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return invalid("server.max_upload_bytes must be positive")
	}

	if c.Logging.Level != "" {
		if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid logging.level")
		}
	}
	switch c.Logging.Encoding {
	case "", "json", "console":
	default:
		return invalid("logging.encoding must be json or console")
	}

	tr := c.Observability.Tracing
	if tr.SamplingRate < 0 || tr.SamplingRate > 1 {
		return invalid("observability.tracing.sampling_rate must be between 0 and 1")
	}
	switch tr.Exporter {
	case "", "stdout", "stderr":
	default:
		return invalid("observability.tracing.exporter must be stdout or stderr")
	}
	return nil
}

func invalid(msg string) error {
	return errors.New(errors.ErrorTypeConfig, msg)
}

// TabularOptions converts the tabular section into codec options
func (c *Config) TabularOptions() (tabular.Options, error) {
	opts := tabular.DefaultOptions()
	opts.CRLF = c.Output.Tabular.CRLF

	d := c.Output.Tabular.Delimiter
	if d == "" {
		return opts, nil
	}
	r, size := utf8.DecodeRuneInString(d)
	if size != len(d) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return opts, errors.Newf(errors.ErrorTypeConfig, "invalid output.tabular.delimiter: %q", d)
	}
	opts.Comma = r
	return opts, nil
}

// ArchiveFormat returns the configured archive format
func (c *Config) ArchiveFormat() (archive.Format, error) {
	f, err := archive.ParseFormat(c.Archive.Format)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConfig, "invalid archive.format")
	}
	return f, nil
}

// ArchiveOptions returns the archive writer options. An unparseable level
// falls back to the default.
func (c *Config) ArchiveOptions() archive.Options {
	level, err := compression.ParseLevel(c.Archive.Level)
	if err != nil {
		level = compression.Default
	}
	return archive.Options{Level: level}
}

// SinkOptions returns the options used to resolve delivery destinations
func (c *Config) SinkOptions(l *zap.Logger) sink.Options {
	return sink.Options{
		S3:     c.Output.S3,
		GCS:    c.Output.GCS,
		Logger: l,
	}
}
