package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	DefaultPresenceTTL = 45 * time.Second
	heartbeatDivisor   = 3
)

// NATSChannel keeps presence in a JetStream key-value bucket (one key per judge) and
// carries events on a core NATS subject. Entries whose server write time is older than TTL
// are treated as departed; a live judge refreshes its entry every TTL/3.
type NATSChannel struct {
	nc      *nats.Conn
	kv      jetstream.KeyValue
	subject string
	ttl     time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	self     *Presence
	members  map[string]member
	handlers Handlers
	watcher  jetstream.KeyWatcher
	sub      *nats.Subscription
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	now      func() time.Time
}

func NewNATSChannel(ctx context.Context, nc *nats.Conn, tournamentID int, ttl time.Duration, logger *slog.Logger) (*NATSChannel, error) {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      fmt.Sprintf("presence_%d", tournamentID),
		Description: "judge presence",
		History:     1,
		TTL:         2 * ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open presence bucket: %w", err)
	}
	return newNATSChannel(nc, kv, fmt.Sprintf("officiating.%d.events", tournamentID), ttl, logger), nil
}

func newNATSChannel(nc *nats.Conn, kv jetstream.KeyValue, subject string, ttl time.Duration, logger *slog.Logger) *NATSChannel {
	return &NATSChannel{
		nc:      nc,
		kv:      kv,
		subject: subject,
		ttl:     ttl,
		logger:  logger,
		members: make(map[string]member),
		now:     time.Now,
	}
}

// member keeps the JetStream write time next to the payload so expiry never depends on the
// announcing device's clock.
type member struct {
	presence Presence
	storedAt time.Time
}

func (c *NATSChannel) Subscribe(ctx context.Context, h Handlers) error {
	watcher, err := c.kv.WatchAll(ctx)
	if err != nil {
		return fmt.Errorf("%w: watch presence: %v", ErrChannelUnavailable, err)
	}
	sub, err := c.nc.Subscribe(c.subject, func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			c.logger.Warn("malformed presence event", slog.Any("error", err))
			return
		}
		h.broadcast(ev)
	})
	if err != nil {
		watcher.Stop()
		return fmt.Errorf("%w: subscribe events: %v", ErrChannelUnavailable, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.handlers = h
	c.watcher = watcher
	c.sub = sub
	c.cancel = cancel
	c.mu.Unlock()

	c.nc.SetReconnectHandler(func(*nats.Conn) {
		c.logger.Info("presence reconnected to NATS")
		h.subscribed()
	})

	c.wg.Add(2)
	go c.watch(runCtx, watcher)
	go c.heartbeat(runCtx)

	h.subscribed()
	return nil
}

func (c *NATSChannel) watch(ctx context.Context, watcher jetstream.KeyWatcher) {
	defer c.wg.Done()
	initialized := false
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				return
			}
			// A nil entry marks the end of the initial values.
			if entry == nil {
				initialized = true
				c.emitSync()
				continue
			}
			c.apply(entry)
			if initialized {
				c.emitSync()
			}
		}
	}
}

func (c *NATSChannel) apply(entry jetstream.KeyValueEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch entry.Operation() {
	case jetstream.KeyValueDelete, jetstream.KeyValuePurge:
		delete(c.members, entry.Key())
	default:
		var p Presence
		if err := json.Unmarshal(entry.Value(), &p); err != nil {
			c.logger.Warn("malformed presence entry", slog.String("key", entry.Key()), slog.Any("error", err))
			return
		}
		storedAt := entry.Created()
		if storedAt.IsZero() {
			storedAt = c.now()
		}
		// Observers order holders by this stamp, so use the server's.
		p.AnnouncedAt = storedAt.UTC()
		c.members[entry.Key()] = member{presence: p, storedAt: storedAt}
	}
}

// snapshot returns live members ordered by judge id. Stale entries are pruned.
func (c *NATSChannel) snapshot() (Snapshot, Handlers) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-c.ttl)
	keys := make([]string, 0, len(c.members))
	for key, m := range c.members {
		if m.storedAt.Before(cutoff) {
			delete(c.members, key)
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make(Snapshot, 0, len(keys))
	for _, key := range keys {
		out = append(out, c.members[key].presence)
	}
	return out, c.handlers
}

func (c *NATSChannel) emitSync() {
	s, h := c.snapshot()
	h.sync(s)
}

func (c *NATSChannel) heartbeat(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.ttl / heartbeatDivisor)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			var p *Presence
			if c.self != nil {
				cp := *c.self
				p = &cp
			}
			c.mu.Unlock()
			if p != nil {
				if err := c.put(ctx, p.Judge, p.Claims); err != nil {
					c.logger.Warn("presence heartbeat failed", slog.Any("error", err))
				}
			}
			// Pruning only happens on read, so departures by expiry surface here.
			c.emitSync()
		}
	}
}

func (c *NATSChannel) put(ctx context.Context, self Identity, claims []Claim) error {
	p := Presence{Judge: self, Claims: copyClaims(claims), AnnouncedAt: time.Now().UTC()}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if _, err := c.kv.Put(ctx, self.ID, data); err != nil {
		return fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	c.mu.Lock()
	c.self = &p
	c.mu.Unlock()
	return nil
}

func (c *NATSChannel) Announce(ctx context.Context, self Identity, claims []Claim) error {
	if self.ID == "" {
		return errors.New("presence: empty judge id")
	}
	return c.put(ctx, self, claims)
}

func (c *NATSChannel) Broadcast(ctx context.Context, e Event) error {
	if !c.nc.IsConnected() {
		return ErrChannelUnavailable
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := c.nc.Publish(c.subject, data); err != nil {
		return fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	return nil
}

// Unsubscribe stops watching and removes self's entry so other judges see the departure
// without waiting for expiry.
func (c *NATSChannel) Unsubscribe() error {
	c.mu.Lock()
	cancel, watcher, sub, self := c.cancel, c.watcher, c.sub, c.self
	c.cancel, c.watcher, c.sub, c.self = nil, nil, nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	c.wg.Wait()

	var errs []error
	if err := watcher.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := sub.Unsubscribe(); err != nil {
		errs = append(errs, err)
	}
	if self != nil {
		ctx, cancelDelete := context.WithTimeout(context.Background(), writeWait)
		defer cancelDelete()
		if err := c.kv.Delete(ctx, self.Judge.ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
