package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/nebula-convert/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g.
// NEBULA_CONVERT_ARCHIVE_FORMAT=tar.zst
const EnvPrefix = "NEBULA_CONVERT"

// Load builds the configuration from defaults, the optional file at path
// (YAML, JSON or TOML by extension) and NEBULA_CONVERT_* environment
// variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	return LoadViper(NewViper(), path)
}

// LoadViper is Load on a caller-prepared viper instance, typically one with
// command-line flags bound to it
func LoadViper(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
				WithDetail("path", path)
		}
	}
	return FromViper(v)
}

// NewViper returns a viper instance that knows every configuration key and
// reads environment overrides. Callers may bind command-line flags to it
// before calling FromViper.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, Default())
	return v
}

// FromViper decodes and validates the configuration held by v
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so that AutomaticEnv can override keys
// the file does not mention
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("input.max_bytes", d.Input.MaxBytes)
	v.SetDefault("input.timeout", d.Input.Timeout)
	v.SetDefault("input.enable_http2", d.Input.EnableHTTP2)
	v.SetDefault("input.max_redirects", d.Input.MaxRedirects)
	v.SetDefault("input.user_agent", d.Input.UserAgent)

	v.SetDefault("output.work_dir", d.Output.WorkDir)
	v.SetDefault("output.keep_work_dir", d.Output.KeepWorkDir)
	v.SetDefault("output.destination", d.Output.Destination)
	v.SetDefault("output.tabular.delimiter", d.Output.Tabular.Delimiter)
	v.SetDefault("output.tabular.crlf", d.Output.Tabular.CRLF)
	v.SetDefault("output.s3.region", d.Output.S3.Region)
	v.SetDefault("output.s3.part_size", d.Output.S3.PartSize)
	v.SetDefault("output.s3.concurrency", d.Output.S3.Concurrency)
	v.SetDefault("output.gcs.credentials_file", d.Output.GCS.CredentialsFile)

	v.SetDefault("archive.format", d.Archive.Format)
	v.SetDefault("archive.level", d.Archive.Level)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_upload_bytes", d.Server.MaxUploadBytes)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.development", d.Logging.Development)
	v.SetDefault("logging.encoding", d.Logging.Encoding)
	v.SetDefault("logging.output_paths", d.Logging.OutputPaths)

	tr := d.Observability.Tracing
	v.SetDefault("observability.enable_metrics", d.Observability.EnableMetrics)
	v.SetDefault("observability.tracing.enabled", tr.Enabled)
	v.SetDefault("observability.tracing.service_name", tr.ServiceName)
	v.SetDefault("observability.tracing.service_version", tr.ServiceVersion)
	v.SetDefault("observability.tracing.environment", tr.Environment)
	v.SetDefault("observability.tracing.sampling_rate", tr.SamplingRate)
	v.SetDefault("observability.tracing.exporter", tr.Exporter)
	v.SetDefault("observability.tracing.pretty_print", tr.PrettyPrint)
	v.SetDefault("observability.tracing.batch_timeout", tr.BatchTimeout)
}
