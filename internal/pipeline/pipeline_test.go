package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-convert/pkg/archive"
	"github.com/ajitpratap0/nebula-convert/pkg/config"
	"github.com/ajitpratap0/nebula-convert/pkg/convert"
	"github.com/ajitpratap0/nebula-convert/pkg/errors"
	"github.com/ajitpratap0/nebula-convert/pkg/input"
	"github.com/ajitpratap0/nebula-convert/pkg/sink"
)

const peopleCSV = "name,age\nAda,36\nGrace,85\n"

func newPipeline(t *testing.T, mutate func(*config.Config)) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.Output.WorkDir = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}
	p, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	return p
}

func readArchive(t *testing.T, report *Report, format archive.Format) *convert.Result {
	t.Helper()
	result, err := archive.Read(report.Archive, format, report.Manifest)
	require.NoError(t, err)
	return result
}

type recordingDeliverer struct {
	got []sink.Artifact
}

func (r *recordingDeliverer) Deliver(_ context.Context, a sink.Artifact) (string, error) {
	r.got = append(r.got, a)
	return "memory://" + a.Name, nil
}

func TestRunUploadedInput(t *testing.T) {
	p := newPipeline(t, nil)

	report, err := p.Run(context.Background(), Request{
		ID:    "req-1",
		Input: input.New("people.csv", []byte(peopleCSV)),
	})
	require.NoError(t, err)

	assert.Equal(t, "req-1", report.RequestID)
	assert.Equal(t, convert.Tabular, report.Encoding)
	assert.ElementsMatch(t, []string{"converted_file.json", "converted_file.yml"}, report.Artifacts)
	assert.Equal(t, "converted_files.zip", report.ArchiveName)
	assert.Equal(t, "application/zip", report.ContentType)
	assert.Empty(t, report.DeliveredTo)
	assert.NoError(t, report.Warning)

	result := readArchive(t, report, archive.Zip)
	yml, ok := result.Get("converted_file.yml")
	require.True(t, ok)
	assert.Equal(t, "-\n    name: Ada\n    age: 36\n-\n    name: Grace\n    age: 85\n", string(yml))

	manifest, err := archive.ZipManifest(report.Archive)
	require.NoError(t, err)
	assert.Equal(t, report.Manifest.Names(), manifest.Names())
}

func TestRunRemovesTemporaryWorkdir(t *testing.T) {
	base := t.TempDir()
	p := newPipeline(t, func(c *config.Config) { c.Output.WorkDir = base })

	_, err := p.Run(context.Background(), Request{Input: input.New("people.csv", []byte(peopleCSV))})
	require.NoError(t, err)

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunKeepsNamedWorkdir(t *testing.T) {
	root := filepath.Join(t.TempDir(), "job")
	p := newPipeline(t, nil)

	_, err := p.Run(context.Background(), Request{
		Input:   input.New("people.csv", []byte(peopleCSV)),
		WorkDir: root,
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(root, "converted_files.zip"))
	loose, err := os.ReadDir(filepath.Join(root, sink.ArtifactsDir))
	require.NoError(t, err)
	assert.Empty(t, loose)
}

func TestRunLocalFileToDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "people.yml")
	require.NoError(t, os.WriteFile(src, []byte("- name: Ada\n  age: 36\n"), 0o600))
	out := filepath.Join(dir, "out") + string(os.PathSeparator)

	p := newPipeline(t, nil)
	report, err := p.Run(context.Background(), Request{
		Location:    src,
		Destination: out,
		Format:      archive.TarZstd,
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "out", "converted_files.tar.zst"), report.DeliveredTo)
	data, err := os.ReadFile(report.DeliveredTo)
	require.NoError(t, err)
	assert.Equal(t, report.Archive, data)

	result := readArchive(t, report, archive.TarZstd)
	csv, ok := result.Get("converted_file.csv")
	require.True(t, ok)
	assert.Equal(t, "name,age\nAda,36\n", string(csv))
}

func TestRunConfiguredDestination(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "bundle.tgz")
	p := newPipeline(t, func(c *config.Config) {
		c.Output.Destination = dst
		c.Archive.Format = "tar.gz"
	})

	report, err := p.Run(context.Background(), Request{Input: input.New("people.csv", []byte(peopleCSV))})
	require.NoError(t, err)
	assert.Equal(t, dst, report.DeliveredTo)
	assert.Equal(t, "converted_files.tar.gz", report.ArchiveName)
	assert.FileExists(t, dst)
}

func TestRunCustomDeliverer(t *testing.T) {
	d := &recordingDeliverer{}
	p := newPipeline(t, nil)

	report, err := p.Run(context.Background(), Request{
		ID:        "req-7",
		Input:     input.New("people.json", []byte(`{"user.name": "Ada"}`)),
		Deliverer: d,
	})
	require.NoError(t, err)

	require.Len(t, d.got, 1)
	assert.Equal(t, "memory://converted_files.zip", report.DeliveredTo)
	assert.Equal(t, report.Archive, d.got[0].Data)
	assert.Equal(t, "people.json", d.got[0].Metadata["source"])
	assert.Equal(t, "hierarchical", d.got[0].Metadata["encoding"])
	assert.Equal(t, "req-7", d.got[0].Metadata["request-id"])
	assert.Equal(t, "custom", sinkName(d))
}

func TestRunUnsupportedSourceYieldsEmptyArchive(t *testing.T) {
	p := newPipeline(t, nil)

	report, err := p.Run(context.Background(), Request{Input: input.New("notes.txt", []byte("hello"))})
	require.NoError(t, err)
	assert.Equal(t, convert.Unknown, report.Encoding)
	assert.Empty(t, report.Artifacts)
	assert.NotEmpty(t, report.Archive)

	result := readArchive(t, report, archive.Zip)
	assert.Equal(t, 0, result.Len())
}

func TestRunDecodeFailure(t *testing.T) {
	p := newPipeline(t, nil)

	report, err := p.Run(context.Background(), Request{Input: input.New("bad.csv", []byte("a,\"b\n"))})
	require.Error(t, err)
	assert.True(t, errors.IsEncoding(err))
	require.NotNil(t, report)
	assert.Nil(t, report.Archive)
}

func TestRunPartialConversion(t *testing.T) {
	p := newPipeline(t, nil)

	report, err := p.Run(context.Background(), Request{Input: input.New("list.json", []byte(`[1, 2]`))})
	require.NoError(t, err)
	require.Error(t, report.Warning)
	assert.True(t, errors.IsEncoding(report.Warning))
	assert.Equal(t, []string{"converted_file.csv"}, report.Artifacts)

	result := readArchive(t, report, archive.Zip)
	csv, _ := result.Get("converted_file.csv")
	assert.Equal(t, "value\n1\n2\n", string(csv))
}

func TestRunFetchesURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/people.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(peopleCSV))
	}))
	defer srv.Close()

	p := newPipeline(t, nil)
	p.WithProvider(input.NewProvider(input.DefaultConfig(), nil).WithHTTPClient(srv.Client()))

	report, err := p.Run(context.Background(), Request{Location: srv.URL + "/data/people.csv?token=x"})
	require.NoError(t, err)
	assert.Equal(t, convert.Tabular, report.Encoding)
	assert.Len(t, report.Artifacts, 2)

	_, err = p.Run(context.Background(), Request{Location: srv.URL + "/missing.csv"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConnection))
}

func TestRunRequiresInput(t *testing.T) {
	p := newPipeline(t, nil)
	report, err := p.Run(context.Background(), Request{})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestRunRejectsUnknownDestinationScheme(t *testing.T) {
	p := newPipeline(t, nil)
	_, err := p.Run(context.Background(), Request{
		Input:       input.New("people.csv", []byte(peopleCSV)),
		Destination: "ftp://host/out.zip",
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Archive.Format = "rar"
	_, err := New(cfg, nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
