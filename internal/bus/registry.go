package bus

import "sync"

// PublishResult reports the outcome of Registry.Publish.
type PublishResult struct {
	// Delivered is the number of subscribers the frame reached. Zero means
	// no channel existed for the stream id, or it existed with no live
	// subscribers — both are normal outcomes, not errors.
	Delivered int
}

// Registry maps StreamID to Channel, creating channels lazily on first
// Subscribe and evicting them the instant their last strong handle drops.
// active_streams therefore always equals the exact number of channels with
// at least one live handle, with no GC-timed uncertainty: see DESIGN.md for
// why this rules out Go's weak pointers for this invariant.
type Registry struct {
	mu    sync.Mutex
	table map[string]*Channel
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{table: make(map[string]*Channel)}
}

// ChannelHandle is a strong reference to a Channel obtained through the
// Registry. Release must be called exactly once; doing so may evict the
// Channel from the Registry if it was the last strong handle.
type ChannelHandle struct {
	registry *Registry
	id       StreamID
	channel  *Channel

	releaseOnce sync.Once
}

// Channel returns the handle's underlying Channel.
func (h *ChannelHandle) Channel() *Channel { return h.channel }

// Release drops this strong handle. Idempotent.
func (h *ChannelHandle) Release() {
	h.releaseOnce.Do(func() {
		h.registry.releaseChannel(h.id, h.channel)
	})
}

// acquireOrCreate returns a Channel for id with one additional strong
// handle already accounted for, creating and inserting a fresh Channel if
// none exists or the existing one has already hit zero refs.
func (r *Registry) acquireOrCreate(id StreamID, capacity int) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := string(id)
	if ch, ok := r.table[key]; ok && ch.tryAcquire() {
		return ch
	}
	ch := newChannel(capacity)
	r.table[key] = ch
	return ch
}

// acquireExisting returns a Channel for id with one additional strong
// handle, or nil if no live channel exists for id.
func (r *Registry) acquireExisting(id StreamID) *Channel {
	r.mu.Lock()
	ch, ok := r.table[string(id)]
	r.mu.Unlock()
	if !ok || !ch.tryAcquire() {
		return nil
	}
	return ch
}

// releaseChannel drops one strong handle on ch and, if that was the last
// one, evicts id from the table. The table slot is only removed if it
// still points at ch, so a concurrent acquireOrCreate that already
// replaced a dead entry is never clobbered.
func (r *Registry) releaseChannel(id StreamID, ch *Channel) {
	if ch.release() > 0 {
		return
	}
	r.mu.Lock()
	if cur, ok := r.table[string(id)]; ok && cur == ch {
		delete(r.table, string(id))
	}
	r.mu.Unlock()
	ch.Close()
}

// Subscribe returns a live Subscription for id, creating the backing
// Channel if this is the first subscriber. The returned ChannelHandle must
// be released (typically deferred) when the caller is done, which happens
// after Subscription.Close in the normal shutdown sequence.
func (r *Registry) Subscribe(id StreamID, capacity int) (*ChannelHandle, *Subscription, error) {
	ch := r.acquireOrCreate(id, capacity)
	sub, err := ch.Subscribe()
	if err != nil {
		r.releaseChannel(id, ch)
		return nil, nil, err
	}
	return &ChannelHandle{registry: r, id: id, channel: ch}, sub, nil
}

// Publish delivers f to every current subscriber of id. If no channel
// exists for id (nobody has ever subscribed, or the last subscriber has
// already dropped), the frame is discarded and Delivered is 0 — never an
// error.
func (r *Registry) Publish(id StreamID, f Frame) PublishResult {
	ch := r.acquireExisting(id)
	if ch == nil {
		f.Release()
		return PublishResult{}
	}
	defer r.releaseChannel(id, ch)
	return PublishResult{Delivered: ch.Send(f)}
}

// ActiveStreams returns the exact number of channels with at least one
// live strong handle at this instant.
func (r *Registry) ActiveStreams() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.table)
}

// TotalSubscribers returns the sum of subscriber counts across every
// active channel, snapshotted under one lock acquisition.
func (r *Registry) TotalSubscribers() int {
	r.mu.Lock()
	channels := make([]*Channel, 0, len(r.table))
	for _, ch := range r.table {
		channels = append(channels, ch)
	}
	r.mu.Unlock()

	total := 0
	for _, ch := range channels {
		total += ch.SubscriberCount()
	}
	return total
}

// CloseStream forcibly closes the channel for id, if one exists, evicting
// it from the registry and disconnecting every current subscriber. This is
// an operator-facing escape hatch with no direct spec-table endpoint; it
// exists so host code (e.g. an admin API) can reclaim a stuck stream
// without waiting for natural refcount drain. Returns false if no channel
// existed for id.
func (r *Registry) CloseStream(id StreamID) bool {
	r.mu.Lock()
	ch, ok := r.table[string(id)]
	if ok {
		delete(r.table, string(id))
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	ch.Close()
	return true
}
