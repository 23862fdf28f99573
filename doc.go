// Package nebulaconvert converts documents between three encodings and
// bundles the results into an archive.
//
// A source is tabular (CSV), hierarchical-key (JSON or key=value lines) or
// tree (YAML), chosen from its file extension. Converting it produces the
// other two encodings as converted_file.<ext> artifacts, which are written
// into a working directory and archived as converted_files.zip (or a
// compressed tar).
//
// # Architecture
//
// The conversion core is synchronous and free of I/O:
//   - pkg/value: the ordered value model shared by every codec
//   - pkg/path: dotted-path flattening and unflattening
//   - pkg/formats/tabular, pkg/formats/hierarchical, pkg/formats/tree: codecs
//   - pkg/bridge: moves data between tree values and flat rows
//   - pkg/convert: encoding detection and the conversion dispatcher
//
// Around it sit the collaborators:
//   - pkg/input: local and HTTP(S) fetching
//   - pkg/archive and pkg/compression: zip and compressed tar containers
//   - pkg/sink: working directories and delivery to files, S3, GCS or HTTP
//   - internal/pipeline: fetch, convert, archive and deliver in one call
//   - internal/server: the HTTP front end
//   - cmd/nebula-convert: the command line
//
// # Quick Start
//
// Convert a CSV document in memory:
//
//	result, err := convert.Convert(convert.Tabular, []byte("name,age\nAda,36\n"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	yml, _ := result.Get("converted_file.yml")
//
// Or from the command line:
//
//	nebula-convert convert people.csv --out exports/
//	nebula-convert serve --addr :8080
//
// # Configuration
//
// See pkg/config. Files are YAML, environment variables use the
// NEBULA_CONVERT_ prefix, and a .env file in the working directory is
// loaded on start.
package nebulaconvert
