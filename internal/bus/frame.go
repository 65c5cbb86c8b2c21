// Package bus implements the broker core: an immutable reference-counted
// Frame, a single-publisher multi-subscriber Channel, and a Registry that
// lazily creates channels on subscribe and reclaims them when the last
// strong handle drops.
package bus

import (
	"sync/atomic"

	"framebroker/internal/bufpool"
)

// MaxFrameBytes is the default largest payload a Frame may carry. Frame
// itself does not check payload length; the ingest handler enforces the
// configured limit, whose default has the same value.
const MaxFrameBytes = 8 << 20 // 8 MiB

// Frame is an immutable, reference-counted view over a byte payload. Clone
// is O(1) and never copies the payload; Release decrements the shared
// count and returns the backing buffer to the pool once the last owner
// drops it. The zero Frame is not valid; use NewFrame.
type Frame struct {
	data   []byte
	pooled bool
	refs   *int32
}

// NewFrame wraps b as a pooled Frame with a single owning reference. b must
// have been drawn from bufpool.Get (or be a slice the caller is happy to
// hand off permanently); ingest uses NewFrame so the buffer is recycled
// once every clone has released it.
func NewFrame(b []byte) Frame {
	n := int32(1)
	return Frame{data: b, pooled: true, refs: &n}
}

// NewFrameView wraps b as a Frame without pool ownership. Release becomes
// a pure refcount decrement with no buffer recycling; useful for frames
// built over memory bufpool does not own (e.g. test fixtures, literals).
func NewFrameView(b []byte) Frame {
	n := int32(1)
	return Frame{data: b, pooled: false, refs: &n}
}

// Len returns the payload length in bytes.
func (f Frame) Len() int { return len(f.data) }

// Bytes exposes a read-only view of the payload. Callers must not mutate
// the returned slice; Frame carries no mutation protocol.
func (f Frame) Bytes() []byte { return f.data }

// Valid reports whether f was constructed via NewFrame/NewFrameView (as
// opposed to the zero Frame).
func (f Frame) Valid() bool { return f.refs != nil }

// Clone returns an additional owning handle to the same payload. O(1): it
// bumps the shared reference count and copies only the small Frame struct
// (slice header, flag and count pointer), never the payload bytes.
func (f Frame) Clone() Frame {
	if f.refs != nil {
		atomic.AddInt32(f.refs, 1)
	}
	return f
}

// Release drops this handle. When the last handle is released, a pooled
// Frame's backing buffer is returned to bufpool for reuse.
func (f Frame) Release() {
	if f.refs == nil {
		return
	}
	if atomic.AddInt32(f.refs, -1) == 0 && f.pooled {
		bufpool.Put(f.data)
	}
}
