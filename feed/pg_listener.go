package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
)

// NotifyChannel is the Postgres channel the schema triggers notify on.
const NotifyChannel = "tournament_changes"

const (
	listenerMinReconnect = 1 * time.Second
	listenerMaxReconnect = 30 * time.Second
	listenerPingInterval = 60 * time.Second
)

// PGListener receives changes through LISTEN/NOTIFY. Every subscriber on one listener
// shares a single connection.
type PGListener struct {
	connStr string
	logger  *slog.Logger

	mu       sync.Mutex
	subs     map[int]subscriber
	nextID   int
	listener *pq.Listener
	running  bool
}

type subscriber struct {
	tournamentID int
	fn           func(Change)
}

func NewPGListener(connStr string, logger *slog.Logger) *PGListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGListener{connStr: connStr, logger: logger, subs: make(map[int]subscriber)}
}

// Run owns the Postgres connection until ctx is done.
func (l *PGListener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.connStr, listenerMinReconnect, listenerMaxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed:
			l.logger.Warn("change feed connection attempt failed", slog.Any("error", err))
		case pq.ListenerEventDisconnected:
			l.logger.Warn("change feed disconnected", slog.Any("error", err))
		case pq.ListenerEventReconnected:
			l.logger.Info("change feed reconnected")
		}
	})
	if err := listener.Listen(NotifyChannel); err != nil {
		_ = listener.Close()
		return err
	}

	l.mu.Lock()
	l.listener = listener
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.listener = nil
		l.mu.Unlock()
		_ = listener.Close()
	}()

	l.logger.Info("change feed listening", slog.String("channel", NotifyChannel))
	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-listener.Notify:
			if n == nil {
				// Notifications may have been lost while reconnecting.
				l.dispatch(Change{Resync: true, At: time.Now().UTC()})
				continue
			}
			c, err := ParsePayload(n.Extra)
			if err != nil {
				l.logger.Warn("malformed change notification", slog.String("payload", n.Extra), slog.Any("error", err))
				continue
			}
			l.dispatch(c)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					l.logger.Warn("change feed ping failed", slog.Any("error", err))
				}
			}()
		}
	}
}

// Subscribe registers fn until ctx is done.
func (l *PGListener) Subscribe(ctx context.Context, tournamentID int, fn func(Change)) error {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = subscriber{tournamentID: tournamentID, fn: fn}
	l.mu.Unlock()

	<-ctx.Done()

	l.mu.Lock()
	delete(l.subs, id)
	l.mu.Unlock()
	return ctx.Err()
}

func (l *PGListener) dispatch(c Change) {
	l.mu.Lock()
	subs := make([]subscriber, 0, len(l.subs))
	for _, s := range l.subs {
		subs = append(subs, s)
	}
	l.mu.Unlock()

	for _, s := range subs {
		if matches(s.tournamentID, c) {
			s.fn(c)
		}
	}
}

// ParsePayload decodes the JSON payload written by the notify trigger.
func ParsePayload(payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Change{}, err
	}
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	return c, nil
}
