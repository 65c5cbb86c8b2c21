package bus

import (
	"sync"
	"sync/atomic"

	"framebroker/internal/apperrors"
)

// DefaultCapacity is the default per-subscriber buffer depth.
const DefaultCapacity = 128

// ErrChannelClosed is returned by Subscribe on a closed Channel.
var ErrChannelClosed = apperrors.NewInternalError("channel.closed", nil)

// Channel is the per-stream broadcast primitive: one publisher, many
// subscribers, bounded per-subscriber buffers, and explicit lag reporting
// instead of blocking the publisher on a slow consumer.
//
// refs tracks strong handles (see Registry): one per unreleased
// ChannelHandle from Registry.Subscribe plus one transiently held by an
// in-flight publish. It starts at 1, assigned to
// whichever caller creates the Channel (always a Subscribe), and is
// unrelated to subscriber_count, which counts live Subscriptions only.
type Channel struct {
	mu       sync.RWMutex
	capacity int
	subs     map[uint64]*Subscription
	nextID   uint64
	closed   bool

	refs int32
}

// newChannel creates a Channel with one strong handle already held by the
// caller (the Registry, on behalf of whoever triggered creation).
func newChannel(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel{
		capacity: capacity,
		subs:     make(map[uint64]*Subscription),
		refs:     1,
	}
}

// tryAcquire adds one strong handle if the Channel is still alive (refs >
// 0). Returns false if the Channel has already reached zero strong
// handles, meaning the caller must treat it as dead and create a fresh one.
func (c *Channel) tryAcquire() bool {
	for {
		old := atomic.LoadInt32(&c.refs)
		if old <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&c.refs, old, old+1) {
			return true
		}
	}
}

// release drops one strong handle, returning the new count.
func (c *Channel) release() int32 {
	return atomic.AddInt32(&c.refs, -1)
}

// Subscribe allocates a new per-subscriber buffer observing frames
// published strictly after this call returns. Fails with ErrChannelClosed
// if the Channel is closed.
func (c *Channel) Subscribe() (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrChannelClosed
	}
	id := c.nextID
	c.nextID++
	sub := newSubscription(id, c.capacity, c)
	c.subs[id] = sub
	return sub, nil
}

// unsubscribe removes sub from the fanout set. Idempotent.
func (c *Channel) unsubscribe(id uint64) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

// Send enqueues a clone of f into every current subscriber's buffer and
// returns the number of subscribers reached. Never blocks on a consumer;
// never fails for "no subscribers" (0 is a valid, non-error outcome). The
// caller's own reference to f is released once fanout completes.
func (c *Channel) Send(f Frame) int {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		f.Release()
		return 0
	}
	// Snapshot under the read lock so delivery never blocks while holding
	// it; subscriber enqueue below is independently guarded per-subscriber.
	subs := make([]*Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.RUnlock()

	for _, s := range subs {
		s.enqueue(f.Clone())
	}
	f.Release()
	return len(subs)
}

// SubscriberCount returns the exact number of live subscriptions.
func (c *Channel) SubscriberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Close marks the Channel closed. In-flight sends already snapshotted
// complete; every subscriber drains its buffered frames, then observes
// Closed on its next Recv. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := make([]*Subscription, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.markClosed()
	}
}
