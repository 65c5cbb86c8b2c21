// Package bufpool provides sized byte slices backed by reusable buffers to
// reduce GC churn on the frame ingest hot path.
package bufpool

import "sync"

var sizeClasses = []int{4096, 65536, 1 << 20, 8 << 20}

type classPool struct {
	size int
	pool *sync.Pool
}

// Pool recycles byte slices in a handful of fixed size classes.
type Pool struct {
	pools []classPool
}

var defaultPool = New()

// Get acquires a buffer of length size from the package-level default pool.
func Get(size int) []byte { return defaultPool.Get(size) }

// Put releases a buffer back to the package-level default pool.
func Put(buf []byte) { defaultPool.Put(buf) }

// New creates a buffer pool with size classes tailored to frame payloads
// (a few KB of control data up to MAX_FRAME_BYTES-sized video frames).
func New() *Pool {
	pools := make([]classPool, len(sizeClasses))
	for i, classSize := range sizeClasses {
		size := classSize
		pools[i] = classPool{
			size: size,
			pool: &sync.Pool{
				New: func() any {
					return make([]byte, size)
				},
			},
		}
	}
	return &Pool{pools: pools}
}

// Get returns a byte slice of exactly length size, backed by the smallest
// size class that can hold it. Requests larger than the biggest class
// allocate a fresh, unpooled slice.
func (p *Pool) Get(size int) []byte {
	if p == nil || size <= 0 {
		return nil
	}
	for i := range p.pools {
		class := &p.pools[i]
		if size <= class.size {
			buf := class.pool.Get().([]byte)
			return buf[:size]
		}
	}
	return make([]byte, size)
}

// Put returns buf to the pool if its capacity matches a known size class.
// Buffers that don't match any class are left for the garbage collector.
// The buffer is cleared before reuse so one caller's data never leaks to
// the next caller that draws the same backing array.
func (p *Pool) Put(buf []byte) {
	if p == nil || buf == nil {
		return
	}
	capBuf := cap(buf)
	for i := range p.pools {
		class := &p.pools[i]
		if capBuf == class.size {
			full := buf[:class.size]
			clear(full)
			class.pool.Put(full)
			return
		}
	}
}
