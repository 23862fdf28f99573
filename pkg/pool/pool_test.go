package pool

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolResetsObjects(t *testing.T) {
	p := New(
		func() *bytes.Buffer { return new(bytes.Buffer) },
		WithReset(func(b *bytes.Buffer) { b.Reset() }),
	)

	b := p.Get()
	b.WriteString("dirty")
	p.Put(b)

	again := p.Get()
	assert.Equal(t, 0, again.Len())
	p.Put(again)

	allocated, inUse, gets, dropped := p.Stats()
	assert.GreaterOrEqual(t, allocated, int64(1))
	assert.Equal(t, int64(0), inUse)
	assert.Equal(t, int64(2), gets)
	assert.Equal(t, int64(0), dropped)
}

func TestPoolKeep(t *testing.T) {
	p := New(
		func() []int { return make([]int, 0, 4) },
		WithKeep(func(s []int) bool { return cap(s) <= 8 }),
	)

	p.Put(make([]int, 0, 64))
	_, _, _, dropped := p.Stats()
	assert.Equal(t, int64(1), dropped)
}

func TestBuffers(t *testing.T) {
	buf := GetBuffer()
	require.Equal(t, 0, buf.Len())
	buf.WriteString("converted")

	out := Bytes(buf)
	PutBuffer(buf)
	assert.Equal(t, "converted", string(out))

	empty := GetBuffer()
	assert.NotNil(t, Bytes(empty))
	assert.Len(t, Bytes(empty), 0)
	PutBuffer(empty)
}

func TestBuffersConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				buf := GetBuffer()
				buf.WriteByte(byte(n))
				if buf.Len() != 1 {
					t.Errorf("buffer was not reset: %d bytes", buf.Len())
				}
				PutBuffer(buf)
			}
		}(i)
	}
	wg.Wait()
}

func BenchmarkBuffers(b *testing.B) {
	payload := bytes.Repeat([]byte("name,age\n"), 128)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf := GetBuffer()
		buf.Write(payload)
		_ = Bytes(buf)
		PutBuffer(buf)
	}
}
