// Package config loads the nebula-convert configuration.
//
// The configuration is organized into sections:
//   - Input: fetch limits and HTTP client behavior
//   - Output: working directories, the CSV dialect and cloud delivery
//   - Archive: container format and compression level
//   - Server: listen address and timeouts
//   - Logging: zap level, encoding and outputs
//   - Observability: metrics and tracing
//
// Load layers a YAML file and NEBULA_CONVERT_* environment variables over
// Default using viper:
//
//	cfg, err := config.Load("nebula-convert.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Nested keys map to variables by upper-casing and replacing dots with
// underscores, so archive.format is NEBULA_CONVERT_ARCHIVE_FORMAT.
//
// LoadYAML reads a plain YAML file instead and expands ${VAR} and
// ${VAR:-fallback} references in it before decoding:
//
//	output:
//	  destination: s3://${BUCKET}/exports/
//	  s3:
//	    region: ${AWS_REGION:-us-east-1}
package config
