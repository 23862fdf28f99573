// Package pool provides typed object pools. Encoders use the shared buffer
// pool for their scratch output.
package pool

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// Pool represents a generic object pool with type safety.
// It wraps sync.Pool with statistics tracking and an optional reset
// function. The pool is safe for concurrent use.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	keep  func(T) bool
	stats struct {
		allocated int64
		inUse     int64
		hits      int64
		dropped   int64
	}
}

// Option configures a Pool
type Option[T any] func(*Pool[T])

// WithReset cleans an object before it goes back into the pool
func WithReset[T any](reset func(T)) Option[T] {
	return func(p *Pool[T]) { p.reset = reset }
}

// WithKeep decides whether a returned object is worth keeping. Objects it
// rejects are left to the garbage collector.
func WithKeep[T any](keep func(T) bool) Option[T] {
	return func(p *Pool[T]) { p.keep = keep }
}

// New creates a pool allocating with newFn when empty
//
// Example:
//
//	p := pool.New(
//	    func() *bytes.Buffer { return new(bytes.Buffer) },
//	    pool.WithReset(func(b *bytes.Buffer) { b.Reset() }),
//	)
func New[T any](newFn func() T, opts ...Option[T]) *Pool[T] {
	p := &Pool[T]{}
	for _, opt := range opts {
		opt(p)
	}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get retrieves an object from the pool, allocating one if it is empty
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.inUse, 1)
	atomic.AddInt64(&p.stats.hits, 1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool for reuse
func (p *Pool[T]) Put(obj T) {
	atomic.AddInt64(&p.stats.inUse, -1)
	if p.keep != nil && !p.keep(obj) {
		atomic.AddInt64(&p.stats.dropped, 1)
		return
	}
	if p.reset != nil {
		p.reset(obj)
	}
	p.pool.Put(obj)
}

// Stats returns the number of objects allocated, currently checked out,
// handed out in total and dropped on Put
func (p *Pool[T]) Stats() (allocated, inUse, gets, dropped int64) {
	return atomic.LoadInt64(&p.stats.allocated),
		atomic.LoadInt64(&p.stats.inUse),
		atomic.LoadInt64(&p.stats.hits),
		atomic.LoadInt64(&p.stats.dropped)
}

// MaxBufferSize is the largest buffer capacity kept by the buffer pool.
// Encoding one huge document must not pin its buffer forever.
const MaxBufferSize = 4 << 20

var buffers = New(
	func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, 4096)) },
	WithReset(func(b *bytes.Buffer) { b.Reset() }),
	WithKeep(func(b *bytes.Buffer) bool { return b.Cap() <= MaxBufferSize }),
)

// GetBuffer returns an empty buffer from the shared pool
func GetBuffer() *bytes.Buffer {
	return buffers.Get()
}

// PutBuffer returns buf to the shared pool. buf must not be used afterwards.
func PutBuffer(buf *bytes.Buffer) {
	buffers.Put(buf)
}

// Bytes copies the contents of a pooled buffer so the buffer can be
// returned
func Bytes(buf *bytes.Buffer) []byte {
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out
}
