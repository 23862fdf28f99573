// Package archive bundles converted artifacts into one downloadable file.
//
// The default container is a deflated zip. Tar containers wrapped by any of
// the stream compressors are supported as well. Every entry's xxhash64
// digest is recorded in a Manifest; for zip archives the manifest is also
// written as the archive comment.
package archive

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/ajitpratap0/nebula-convert/pkg/compression"
	"github.com/ajitpratap0/nebula-convert/pkg/convert"
	"github.com/ajitpratap0/nebula-convert/pkg/errors"
)

// BaseName is the archive file name without extension
const BaseName = "converted_files"

// Format is an archive container
type Format string

const (
	// Zip is a deflated zip archive
	Zip Format = "zip"
	// TarGzip is a gzip-compressed tar archive
	TarGzip Format = "tar.gz"
	// TarZstd is a zstd-compressed tar archive
	TarZstd Format = "tar.zst"
	// TarLZ4 is an lz4-compressed tar archive
	TarLZ4 Format = "tar.lz4"
	// TarS2 is an s2-compressed tar archive
	TarS2 Format = "tar.s2"
)

// Formats lists every supported format, default first
var Formats = []Format{Zip, TarGzip, TarZstd, TarLZ4, TarS2}

var tarAlgorithms = map[Format]compression.Algorithm{
	TarGzip: compression.Gzip,
	TarZstd: compression.Zstd,
	TarLZ4:  compression.LZ4,
	TarS2:   compression.S2,
}

// ParseFormat resolves a format name. The empty string is Zip.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")))
	switch f {
	case "":
		return Zip, nil
	case "tgz":
		return TarGzip, nil
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.Newf(errors.ErrorTypeValidation, "unsupported archive format: %s", s)
}

// Extension returns the file extension without the leading dot
func (f Format) Extension() string { return string(f) }

// FileName returns converted_files.<ext>
func (f Format) FileName() string { return BaseName + "." + f.Extension() }

// ContentType returns the MIME type served for the format
func (f Format) ContentType() string {
	switch f {
	case Zip:
		return "application/zip"
	case TarGzip:
		return "application/gzip"
	case TarZstd:
		return "application/zstd"
	default:
		return "application/octet-stream"
	}
}

// Entry describes one archived artifact
type Entry struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Digest uint64 `json:"xxhash64"`
}

// Manifest lists the entries of an archive in write order
type Manifest struct {
	Format  Format  `json:"format"`
	Entries []Entry `json:"entries"`
}

// String renders one "name size digest" line per entry
func (m *Manifest) String() string {
	var b strings.Builder
	for _, e := range m.Entries {
		fmt.Fprintf(&b, "%s %d %016x\n", e.Name, e.Size, e.Digest)
	}
	return b.String()
}

// Options tunes archive writing
type Options struct {
	Level compression.Level
	// ModTime is stamped on every entry. Zero means time.Now.
	ModTime time.Time
}

// Write archives result into w using the default options
func Write(w io.Writer, result *convert.Result, format Format) (*Manifest, error) {
	return WriteWithOptions(w, result, format, Options{Level: compression.Default})
}

// WriteWithOptions archives result into w. An empty result yields a valid,
// empty archive.
func WriteWithOptions(w io.Writer, result *convert.Result, format Format, opts Options) (*Manifest, error) {
	if opts.ModTime.IsZero() {
		opts.ModTime = time.Now()
	}

	manifest := &Manifest{Format: format}
	result.Each(func(name string, data []byte) bool {
		manifest.Entries = append(manifest.Entries, Entry{
			Name:   name,
			Size:   int64(len(data)),
			Digest: xxhash.Sum64(data),
		})
		return true
	})

	var err error
	switch format {
	case Zip, "":
		manifest.Format = Zip
		err = writeZip(w, result, manifest, opts)
	default:
		alg, ok := tarAlgorithms[format]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported archive format: %s", format)
		}
		err = writeTar(w, result, compression.Config{Algorithm: alg, Level: opts.Level}, opts)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to write archive").
			WithDetail("format", string(format))
	}
	return manifest, nil
}

func writeZip(w io.Writer, result *convert.Result, manifest *Manifest, opts Options) error {
	zw := zip.NewWriter(w)
	level := zipLevel(opts.Level)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	var werr error
	result.Each(func(name string, data []byte) bool {
		var f io.Writer
		f, werr = zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: opts.ModTime,
		})
		if werr != nil {
			return false
		}
		_, werr = f.Write(data)
		return werr == nil
	})
	if werr != nil {
		return werr
	}

	if err := zw.SetComment(manifest.String()); err != nil {
		return err
	}
	return zw.Close()
}

func zipLevel(level compression.Level) int {
	switch level {
	case compression.Fastest:
		return flate.BestSpeed
	case compression.Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}

func writeTar(w io.Writer, result *convert.Result, cfg compression.Config, opts Options) error {
	cw, err := compression.NewWriter(w, cfg)
	if err != nil {
		return err
	}

	tw := tar.NewWriter(cw)
	var werr error
	result.Each(func(name string, data []byte) bool {
		werr = tw.WriteHeader(&tar.Header{
			Name:    name,
			Mode:    0o644,
			Size:    int64(len(data)),
			ModTime: opts.ModTime,
			Format:  tar.FormatPAX,
		})
		if werr != nil {
			return false
		}
		_, werr = tw.Write(data)
		return werr == nil
	})
	if werr != nil {
		return werr
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return cw.Close()
}

// Read extracts every entry of an archive and checks it against the
// manifest when one is given
func Read(data []byte, format Format, manifest *Manifest) (*convert.Result, error) {
	var (
		out *convert.Result
		err error
	)
	switch format {
	case Zip, "":
		out, err = readZip(data)
	default:
		alg, ok := tarAlgorithms[format]
		if !ok {
			return nil, errors.Newf(errors.ErrorTypeValidation, "unsupported archive format: %s", format)
		}
		out, err = readTar(data, alg)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read archive")
	}
	if manifest != nil {
		if err := Verify(out, manifest); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Verify checks names, sizes and digests of result against manifest
func Verify(result *convert.Result, manifest *Manifest) error {
	if result.Len() != len(manifest.Entries) {
		return errors.Newf(errors.ErrorTypeValidation, "archive has %d entries, manifest lists %d",
			result.Len(), len(manifest.Entries))
	}
	for _, e := range manifest.Entries {
		data, ok := result.Get(e.Name)
		if !ok {
			return errors.Newf(errors.ErrorTypeValidation, "archive is missing %s", e.Name)
		}
		if int64(len(data)) != e.Size || xxhash.Sum64(data) != e.Digest {
			return errors.Newf(errors.ErrorTypeValidation, "digest mismatch for %s", e.Name)
		}
	}
	return nil
}

// ParseManifest reads the String form of a manifest back, for example from
// a zip comment
func ParseManifest(format Format, text string) (*Manifest, error) {
	m := &Manifest{Format: format}
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, errors.Newf(errors.ErrorTypeValidation, "malformed manifest line %q", line)
		}
		size, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "malformed manifest size")
		}
		digest, err := strconv.ParseUint(fields[2], 16, 64)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeValidation, "malformed manifest digest")
		}
		m.Entries = append(m.Entries, Entry{Name: fields[0], Size: size, Digest: digest})
	}
	return m, nil
}

// ZipManifest returns the manifest stored in a zip archive's comment
func ZipManifest(data []byte) (*Manifest, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open zip archive")
	}
	return ParseManifest(Zip, zr.Comment)
}

func readZip(data []byte) (*convert.Result, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	out := convert.NewResult()
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		b, err := io.ReadAll(io.LimitReader(rc, compression.MaxDecompressedSize))
		rc.Close()
		if err != nil {
			return nil, err
		}
		out.Add(f.Name, b)
	}
	return out, nil
}

func readTar(data []byte, alg compression.Algorithm) (*convert.Result, error) {
	cr, err := compression.NewReader(bytes.NewReader(data), alg)
	if err != nil {
		return nil, err
	}
	defer cr.Close()

	out := convert.NewResult()
	tr := tar.NewReader(cr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		b, err := io.ReadAll(io.LimitReader(tr, compression.MaxDecompressedSize))
		if err != nil {
			return nil, err
		}
		out.Add(hdr.Name, b)
	}
	return out, nil
}

// Names returns the entry names of a manifest, sorted
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Entries))
	for _, e := range m.Entries {
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}
