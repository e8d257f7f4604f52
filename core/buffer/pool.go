// File: core/buffer/pool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Pooled MessageBuffers keyed by capacity. Buffers come back from Get reset.

package buffer

import "sync"

// Pool recycles MessageBuffers of one capacity.
type Pool struct {
	capacity int
	pool     sync.Pool
}

// NewPool creates a pool handing out buffers of the given capacity.
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pool{capacity: capacity}
	p.pool.New = func() any { return New(capacity) }
	return p
}

// Capacity returns the capacity of buffers produced by this pool.
func (p *Pool) Capacity() int { return p.capacity }

// Get returns an empty buffer.
func (p *Pool) Get() *MessageBuffer {
	b := p.pool.Get().(*MessageBuffer)
	b.Reset()
	return b
}

// Put returns b to the pool. Buffers of a foreign capacity are dropped.
func (p *Pool) Put(b *MessageBuffer) {
	if b == nil || b.Capacity() != p.capacity {
		return
	}
	b.Reset()
	p.pool.Put(b)
}

var defaultPool = NewPool(DefaultCapacity)

// Get returns an empty buffer of DefaultCapacity from the shared pool.
func Get() *MessageBuffer { return defaultPool.Get() }

// Put hands b back to the shared pool.
func Put(b *MessageBuffer) { defaultPool.Put(b) }
