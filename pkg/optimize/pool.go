// Package optimize holds allocation helpers for hot request paths.
package optimize

import (
	"bytes"
	"io"
	"sync"
)

// Pool is a typed sync.Pool. reset prepares a value for reuse and returns
// false when the value should be dropped instead.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T) bool
}

// NewPool creates a pool. reset may be nil.
func NewPool[T any](newFn func() T, reset func(T) bool) *Pool[T] {
	return &Pool[T]{
		pool:  sync.Pool{New: func() any { return newFn() }},
		reset: reset,
	}
}

// Get returns a pooled or new value
func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

// Put hands v back to the pool
func (p *Pool[T]) Put(v T) {
	if p.reset != nil && !p.reset(v) {
		return
	}
	p.pool.Put(v)
}

// BufferPool pools bytes.Buffers. Buffers that grew past maxCap are dropped
// so one oversized request does not pin memory.
type BufferPool struct {
	pool *Pool[*bytes.Buffer]
}

// NewBufferPool creates a pool of buffers starting at initial bytes
func NewBufferPool(initial, maxCap int) *BufferPool {
	return &BufferPool{
		pool: NewPool(
			func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, initial)) },
			func(b *bytes.Buffer) bool {
				if b.Cap() > maxCap {
					return false
				}
				b.Reset()
				return true
			},
		),
	}
}

// Get returns an empty buffer
func (p *BufferPool) Get() *bytes.Buffer {
	return p.pool.Get()
}

// Put returns buf to the pool
func (p *BufferPool) Put(buf *bytes.Buffer) {
	p.pool.Put(buf)
}

// ReadAll drains r through a pooled buffer and returns an exactly sized copy.
// On error the bytes read so far are returned with it.
func (p *BufferPool) ReadAll(r io.Reader) ([]byte, error) {
	buf := p.Get()
	defer p.Put(buf)

	_, err := buf.ReadFrom(r)
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, err
}
