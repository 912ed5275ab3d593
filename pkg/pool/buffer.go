// Package pool provides reusable fixed-size byte buffers for file copies.
package pool

import "sync"

// FixedBufferPool hands out byte slices of a single fixed size. Reusing
// buffers keeps the copy loop allocation-free regardless of file count.
type FixedBufferPool struct {
	pool sync.Pool
	size int
}

// NewFixedBufferPool creates a pool of buffers with the given size in bytes.
func NewFixedBufferPool(size int) *FixedBufferPool {
	return &FixedBufferPool{
		size: size,
		pool: sync.Pool{
			New: func() any {
				b := make([]byte, size)
				return &b
			},
		},
	}
}

// Get returns a buffer from the pool.
func (p *FixedBufferPool) Get() *[]byte {
	return p.pool.Get().(*[]byte)
}

// Put returns a buffer to the pool. Buffers of the wrong size are dropped
// rather than poisoning the pool.
func (p *FixedBufferPool) Put(b *[]byte) {
	if b == nil || len(*b) != p.size {
		return
	}
	p.pool.Put(b)
}

// Size returns the size of the buffers managed by this pool.
func (p *FixedBufferPool) Size() int {
	return p.size
}
