package compression

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = []byte(strings.Repeat("name,age\nAda,36\nGrace,85\n", 200))

func TestRoundTrip(t *testing.T) {
	for _, alg := range Algorithms {
		for _, level := range []Level{Fastest, Default, Better, Best} {
			cfg := Config{Algorithm: alg, Level: level}

			compressed, err := Compress(sample, cfg)
			require.NoError(t, err, "%s/%d", alg, level)
			if alg != None {
				assert.Less(t, len(compressed), len(sample), "%s/%d", alg, level)
			}

			out, err := Decompress(compressed, alg)
			require.NoError(t, err, "%s/%d", alg, level)
			assert.True(t, bytes.Equal(sample, out), "%s/%d", alg, level)
		}
	}
}

func TestConcurrentEncoders(t *testing.T) {
	for _, alg := range []Algorithm{Zstd, S2} {
		compressed, err := Compress(sample, Config{Algorithm: alg, Concurrency: 2})
		require.NoError(t, err)

		out, err := Decompress(compressed, alg)
		require.NoError(t, err)
		assert.Equal(t, sample, out)
	}
}

func TestWriterDoesNotCloseDestination(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, Config{Algorithm: None})
	require.NoError(t, err)
	_, err = w.Write([]byte("plain"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, "plain", buf.String())
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("ZSTD")
	require.NoError(t, err)
	assert.Equal(t, Zstd, alg)

	alg, err = ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, alg)

	_, err = ParseAlgorithm("brotli")
	assert.Error(t, err)

	_, err = NewWriter(&bytes.Buffer{}, Config{Algorithm: "brotli"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("best")
	require.NoError(t, err)
	assert.Equal(t, Best, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, Default, level)

	_, err = ParseLevel("ultra")
	assert.Error(t, err)
}

func BenchmarkCompress(b *testing.B) {
	for _, alg := range Algorithms {
		b.Run(string(alg), func(b *testing.B) {
			cfg := Config{Algorithm: alg, Level: Default}
			b.SetBytes(int64(len(sample)))
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := Compress(sample, cfg); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
