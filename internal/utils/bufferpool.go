// Package utils holds small shared helpers.
package utils

import (
	"sync"

	"github.com/valyala/bytebufferpool"
)

// BufferPool pools byte buffers for request payload assembly.
// bytebufferpool handles size-class management internally.
type BufferPool struct {
	pool *bytebufferpool.Pool
}

func NewBufferPool() *BufferPool {
	return &BufferPool{pool: &bytebufferpool.Pool{}}
}

func (bp *BufferPool) Get() *bytebufferpool.ByteBuffer {
	return bp.pool.Get()
}

func (bp *BufferPool) Put(buf *bytebufferpool.ByteBuffer) {
	bp.pool.Put(buf)
}

var (
	globalPool     *BufferPool
	globalPoolOnce sync.Once
)

// Global returns the shared process-wide pool.
func Global() *BufferPool {
	globalPoolOnce.Do(func() {
		globalPool = NewBufferPool()
	})
	return globalPool
}

// Get fetches a buffer from the global pool.
func Get() *bytebufferpool.ByteBuffer {
	return Global().Get()
}

// Put returns a buffer to the global pool.
func Put(buf *bytebufferpool.ByteBuffer) {
	Global().Put(buf)
}
