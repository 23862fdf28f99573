package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/nebula-convert/pkg/archive"
	"github.com/ajitpratap0/nebula-convert/pkg/testutil"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(append(args, "--log-level", "error"), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "nebula-convert v"+version)
}

func TestFormats(t *testing.T) {
	out, _, err := execute(t, "formats")
	require.NoError(t, err)
	assert.Contains(t, out, "tabular")
	assert.Contains(t, out, "converted_file.yml")
	for _, f := range archive.Formats {
		assert.Contains(t, out, string(f))
	}
}

func TestConvertToDirectory(t *testing.T) {
	src := testutil.WriteFile(t, "people.csv", "name,age\nAda,36\n")
	outDir := t.TempDir() + string(os.PathSeparator)

	out, stderr, err := execute(t, "convert", src, "--out", outDir)
	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Contains(t, out, "(tabular)")
	assert.Contains(t, out, "artifacts: converted_file.json, converted_file.yml")

	data, err := os.ReadFile(filepath.Join(outDir, "converted_files.zip"))
	require.NoError(t, err)
	result, err := archive.Read(data, archive.Zip, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Len())
}

func TestConvertFormatFlag(t *testing.T) {
	src := testutil.WriteFile(t, "people.yml", "- name: Ada\n")
	dst := filepath.Join(t.TempDir(), "bundle.tar.lz4")

	_, _, err := execute(t, "convert", src, "-o", dst, "-f", "tar.lz4")
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	result, err := archive.Read(data, archive.TarLZ4, nil)
	require.NoError(t, err)
	csv, _ := result.Get("converted_file.csv")
	assert.Equal(t, "name\nAda\n", string(csv))
}

func TestConvertEnvFormat(t *testing.T) {
	t.Setenv("NEBULA_CONVERT_ARCHIVE_FORMAT", "tar.s2")
	src := testutil.WriteFile(t, "people.json", `[{"name": "Ada"}]`)
	outDir := t.TempDir() + string(os.PathSeparator)

	_, _, err := execute(t, "convert", src, "--out", outDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(outDir, "converted_files.tar.s2"))
}

func TestConvertPartialWarns(t *testing.T) {
	src := testutil.WriteFile(t, "list.json", `[1, 2]`)
	outDir := t.TempDir() + string(os.PathSeparator)

	out, stderr, err := execute(t, "convert", src, "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "artifacts: converted_file.csv")
	assert.Contains(t, stderr, "warning:")
}

func TestConvertErrors(t *testing.T) {
	bad := testutil.WriteFile(t, "bad.csv", "a,\"b\n")
	good := testutil.WriteFile(t, "people.csv", "name\nAda\n")
	badConfig := testutil.WriteFile(t, "config.yaml", "archive:\n  format: rar\n")

	tests := []struct {
		name string
		args []string
	}{
		{"malformed input", []string{"convert", bad, "--out", t.TempDir() + "/"}},
		{"missing input", []string{"convert", filepath.Join(t.TempDir(), "nope.csv")}},
		{"unknown format", []string{"convert", good, "--format", "rar"}},
		{"bad config", []string{"--config", badConfig, "version"}},
		{"no argument", []string{"convert"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestProfiles(t *testing.T) {
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.prof")
	mem := filepath.Join(dir, "mem.prof")

	_, _, err := execute(t, "version", "--cpuprofile", cpu, "--memprofile", mem)
	require.NoError(t, err)
	assert.FileExists(t, cpu)
	assert.FileExists(t, mem)
}
