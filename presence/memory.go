package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryBus is an in-process presence transport for tests and single-device local mode.
// Delivery is synchronous, on the goroutine of the caller.
type MemoryBus struct {
	mu       sync.Mutex
	channels map[*MemoryChannel]bool
	order    []*MemoryChannel
	// DropBroadcasts discards every event, emulating a lossy channel.
	DropBroadcasts bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{channels: make(map[*MemoryChannel]bool)}
}

// Channel returns a new, unsubscribed endpoint on the bus.
func (b *MemoryBus) Channel() *MemoryChannel {
	return &MemoryChannel{bus: b}
}

// MemoryChannel is one device's endpoint on a MemoryBus.
type MemoryChannel struct {
	bus      *MemoryBus
	mu       sync.Mutex
	handlers *Handlers
	online   bool
	presence *Presence
}

func (b *MemoryBus) join(c *MemoryChannel) {
	b.mu.Lock()
	if !b.channels[c] {
		b.channels[c] = true
		b.order = append(b.order, c)
	}
	b.mu.Unlock()
}

func (b *MemoryBus) leave(c *MemoryChannel) {
	b.mu.Lock()
	delete(b.channels, c)
	for i, other := range b.order {
		if other == c {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.mu.Unlock()
}

func (b *MemoryBus) online() []*MemoryChannel {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*MemoryChannel, len(b.order))
	copy(out, b.order)
	return out
}

func (b *MemoryBus) snapshot() Snapshot {
	var s Snapshot
	for _, c := range b.online() {
		c.mu.Lock()
		if c.presence != nil {
			s = append(s, *c.presence)
		}
		c.mu.Unlock()
	}
	sort.SliceStable(s, func(i, j int) bool { return s[i].Judge.ID < s[j].Judge.ID })
	return s
}

func (b *MemoryBus) syncAll() {
	s := b.snapshot()
	for _, c := range b.online() {
		if h := c.currentHandlers(); h != nil {
			h.sync(s)
		}
	}
}

func (c *MemoryChannel) currentHandlers() *Handlers {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.online {
		return nil
	}
	return c.handlers
}

func (c *MemoryChannel) Subscribe(_ context.Context, h Handlers) error {
	c.mu.Lock()
	c.handlers = &h
	c.online = true
	c.mu.Unlock()
	c.bus.join(c)
	h.subscribed()
	c.bus.syncAll()
	return nil
}

func (c *MemoryChannel) Announce(_ context.Context, self Identity, claims []Claim) error {
	c.mu.Lock()
	if !c.online {
		c.mu.Unlock()
		return ErrChannelUnavailable
	}
	c.presence = &Presence{Judge: self, Claims: copyClaims(claims), AnnouncedAt: time.Now().UTC()}
	c.mu.Unlock()
	c.bus.syncAll()
	return nil
}

func (c *MemoryChannel) Broadcast(_ context.Context, e Event) error {
	if c.currentHandlers() == nil {
		return ErrChannelUnavailable
	}
	if c.bus.DropBroadcasts {
		return nil
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	for _, other := range c.bus.online() {
		if other == c {
			continue
		}
		if h := other.currentHandlers(); h != nil {
			h.broadcast(e)
		}
	}
	return nil
}

func (c *MemoryChannel) Unsubscribe() error {
	c.mu.Lock()
	c.online = false
	c.handlers = nil
	c.presence = nil
	c.mu.Unlock()
	c.bus.leave(c)
	c.bus.syncAll()
	return nil
}

// Disconnect simulates a dropped connection. The bus forgets this device's presence, as a
// real transport would, but the handlers are kept for Reconnect.
func (c *MemoryChannel) Disconnect() {
	c.mu.Lock()
	c.online = false
	c.presence = nil
	c.mu.Unlock()
	c.bus.leave(c)
	c.bus.syncAll()
}

// Reconnect rejoins the bus and fires OnSubscribed.
func (c *MemoryChannel) Reconnect() {
	c.mu.Lock()
	h := c.handlers
	c.online = h != nil
	c.mu.Unlock()
	if h == nil {
		return
	}
	c.bus.join(c)
	h.subscribed()
	c.bus.syncAll()
}
