// Package sink persists conversion results and delivers the archive.
//
// A Workdir reproduces the on-disk flow of the service: artifacts are
// written into a converted_files/ directory, archived from there, and the
// loose files are removed once the archive exists. Deliverers then move the
// archive to its destination: a local path, an S3 or GCS object, or an
// HTTP response.
package sink

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-convert/pkg/archive"
	"github.com/ajitpratap0/nebula-convert/pkg/convert"
	"github.com/ajitpratap0/nebula-convert/pkg/errors"
)

// ArtifactsDir is the directory artifacts are written into
const ArtifactsDir = "converted_files"

// Workdir is a per-conversion working directory
type Workdir struct {
	root      string
	temporary bool
	names     []string
	logger    *zap.Logger
}

// NewWorkdir prepares root/converted_files. An empty root creates a
// temporary directory under base (or the system temp dir) that Close
// removes.
func NewWorkdir(root, base string, logger *zap.Logger) (*Workdir, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	temporary := false
	if root == "" {
		dir, err := os.MkdirTemp(base, "nebula-convert-")
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create working directory")
		}
		root = dir
		temporary = true
	}

	if err := os.MkdirAll(filepath.Join(root, ArtifactsDir), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create artifacts directory").
			WithDetail("root", root)
	}

	return &Workdir{
		root:      root,
		temporary: temporary,
		logger:    logger.With(zap.String("component", "workdir"), zap.String("root", root)),
	}, nil
}

// Root returns the working directory
func (w *Workdir) Root() string { return w.root }

// Dir returns the artifacts directory
func (w *Workdir) Dir() string { return filepath.Join(w.root, ArtifactsDir) }

// Persist writes every artifact of result into the artifacts directory
func (w *Workdir) Persist(result *convert.Result) error {
	var werr error
	result.Each(func(name string, data []byte) bool {
		p := filepath.Join(w.Dir(), filepath.Base(name))
		if werr = os.WriteFile(p, data, 0o644); werr != nil {
			werr = errors.Wrap(werr, errors.ErrorTypeFile, "failed to write artifact").
				WithDetail("path", p)
			return false
		}
		w.names = append(w.names, filepath.Base(name))
		w.logger.Debug("artifact persisted", zap.String("artifact", name), zap.Int("bytes", len(data)))
		return true
	})
	return werr
}

// Archive bundles the persisted artifacts into root/converted_files.<ext>
// and removes the loose files. It returns the archive path.
func (w *Workdir) Archive(format archive.Format, opts archive.Options) (string, *archive.Manifest, error) {
	contents := convert.NewResult()
	for _, name := range w.names {
		p := filepath.Join(w.Dir(), name)
		data, err := os.ReadFile(p)
		if err != nil {
			return "", nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read artifact").
				WithDetail("path", p)
		}
		contents.Add(name, data)
	}

	archivePath := filepath.Join(w.root, format.FileName())
	f, err := os.Create(archivePath)
	if err != nil {
		return "", nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create archive").
			WithDetail("path", archivePath)
	}

	manifest, err := archive.WriteWithOptions(f, contents, format, opts)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close archive")
	}
	if err != nil {
		_ = os.Remove(archivePath)
		return "", nil, err
	}

	for _, name := range w.names {
		if err := os.Remove(filepath.Join(w.Dir(), name)); err != nil && !os.IsNotExist(err) {
			w.logger.Warn("failed to remove artifact", zap.String("artifact", name), zap.Error(err))
		}
	}
	w.names = nil

	w.logger.Info("archive written",
		zap.String("path", archivePath),
		zap.Int("entries", len(manifest.Entries)))
	return archivePath, manifest, nil
}

// Close removes a temporary working directory. Directories the caller
// named are left in place.
func (w *Workdir) Close() error {
	if !w.temporary {
		return nil
	}
	if err := os.RemoveAll(w.root); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to remove working directory").
			WithDetail("root", w.root)
	}
	return nil
}
