package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// WSChannel is the judge-side client of Hub.
type WSChannel struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	logger *slog.Logger

	// MaxReconnectInterval caps the wait between reconnect attempts.
	MaxReconnectInterval time.Duration

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWSChannel dials url (ws:// or wss://) with a bearer token.
func NewWSChannel(url, token string, logger *slog.Logger) *WSChannel {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return &WSChannel{
		url:                  url,
		header:               header,
		dialer:               &websocket.Dialer{HandshakeTimeout: writeWait},
		logger:               logger,
		MaxReconnectInterval: 10 * time.Second,
	}
}

// Subscribe starts the connection loop and returns immediately. The loop reconnects with
// exponential backoff until Unsubscribe or ctx cancellation; OnSubscribed runs after every
// successful connect.
func (c *WSChannel) Subscribe(ctx context.Context, h Handlers) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return fmt.Errorf("presence: already subscribed")
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(ctx, h)
	return nil
}

func (c *WSChannel) run(ctx context.Context, h Handlers) {
	defer close(c.done)

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	bo.MaxInterval = c.MaxReconnectInterval

	for {
		conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			wait := bo.NextBackOff()
			c.logger.Warn("presence connect failed, retrying", slog.String("url", c.url), slog.Duration("retry_in", wait), slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()

		c.setConn(conn)
		h.subscribed()
		err = c.readLoop(ctx, conn, h)
		c.setConn(nil)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("presence connection lost", slog.Any("error", err))
	}
}

func (c *WSChannel) readLoop(ctx context.Context, conn *websocket.Conn, h Handlers) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var f Frame
		if err := json.Unmarshal(message, &f); err != nil {
			c.logger.Warn("malformed presence frame", slog.Any("error", err))
			continue
		}
		switch f.Type {
		case FrameSync:
			h.sync(f.Members)
		case FrameBroadcast:
			if f.Event != nil {
				h.broadcast(*f.Event)
			}
		}
	}
}

func (c *WSChannel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *WSChannel) write(ctx context.Context, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("presence: marshal frame: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrChannelUnavailable
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}
	return nil
}

func (c *WSChannel) Announce(ctx context.Context, self Identity, claims []Claim) error {
	return c.write(ctx, Frame{
		Type:     FrameAnnounce,
		Presence: &Presence{Judge: self, Claims: copyClaims(claims), AnnouncedAt: time.Now().UTC()},
	})
}

func (c *WSChannel) Broadcast(ctx context.Context, e Event) error {
	return c.write(ctx, Frame{Type: FrameBroadcast, Event: &e})
}

// Unsubscribe closes the connection and waits for the loop to exit.
func (c *WSChannel) Unsubscribe() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel = nil
	if c.conn != nil {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	}
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
