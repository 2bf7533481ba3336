package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBuffer     = 256
)

// Client is one judge connection registered in a hub room.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	room     string
	judge    Identity
	presence *Presence
	isClosed bool
	mu       sync.Mutex
}

type inboundFrame struct {
	client *Client
	frame  Frame
}

// Hub relays presence between judge devices of the same tournament. It keeps only the
// latest announcement of each live connection and forgets it when the connection drops.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	done       chan struct{}
	rooms      map[string]map[*Client]bool
	mu         sync.RWMutex
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame, sendBuffer),
		done:       make(chan struct{}),
		rooms:      make(map[string]map[*Client]bool),
		logger:     logger,
	}
}

// Run serves the hub until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.room]; !ok {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			count := len(h.rooms[client.room])
			h.mu.Unlock()
			h.logger.Info("judge joined room", slog.String("room", client.room), slog.String("judge_id", client.judge.ID), slog.Int("clients", count))
			h.syncRoom(client.room)

		case client := <-h.unregister:
			h.mu.Lock()
			roomClients, ok := h.rooms[client.room]
			if ok && roomClients[client] {
				client.close()
				delete(roomClients, client)
				if len(roomClients) == 0 {
					delete(h.rooms, client.room)
				}
			}
			h.mu.Unlock()
			if ok {
				h.logger.Info("judge left room", slog.String("room", client.room), slog.String("judge_id", client.judge.ID))
				h.syncRoom(client.room)
			}

		case in := <-h.inbound:
			h.handleFrame(in.client, in.frame)
		}
	}
}

func (h *Hub) handleFrame(c *Client, f Frame) {
	switch f.Type {
	case FrameAnnounce:
		if f.Presence == nil {
			return
		}
		// The connection's authenticated identity overrides whatever the device sent.
		p := Presence{Judge: c.judge, Claims: copyClaims(f.Presence.Claims), AnnouncedAt: time.Now().UTC()}
		h.mu.Lock()
		c.presence = &p
		h.mu.Unlock()
		h.syncRoom(c.room)

	case FrameBroadcast:
		if f.Event == nil {
			return
		}
		ev := *f.Event
		ev.Judge = c.judge
		if ev.At.IsZero() {
			ev.At = time.Now().UTC()
		}
		h.relay(c.room, Frame{Type: FrameBroadcast, RoomID: c.room, Event: &ev}, c)

	default:
		h.logger.Warn("unknown frame from judge", slog.String("room", c.room), slog.String("type", string(f.Type)))
	}
}

// Members returns the current snapshot of a room.
func (h *Hub) Members(roomID string) Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.membersLocked(roomID)
}

// ConnectionCount returns the number of live judge connections across all rooms.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, clients := range h.rooms {
		n += len(clients)
	}
	return n
}

func (h *Hub) membersLocked(roomID string) Snapshot {
	members := make(Snapshot, 0, len(h.rooms[roomID]))
	for client := range h.rooms[roomID] {
		if client.presence != nil {
			members = append(members, *client.presence)
			continue
		}
		members = append(members, Presence{Judge: client.judge})
	}
	return members
}

func (h *Hub) syncRoom(roomID string) {
	h.mu.RLock()
	members := h.membersLocked(roomID)
	h.mu.RUnlock()
	h.relay(roomID, Frame{Type: FrameSync, RoomID: roomID, Members: members}, nil)
}

// BroadcastEvent sends a server-originated event to every judge in the room.
func (h *Hub) BroadcastEvent(roomID string, ev Event) {
	h.relay(roomID, Frame{Type: FrameBroadcast, RoomID: roomID, Event: &ev}, nil)
}

func (h *Hub) relay(roomID string, f Frame, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	roomClients, ok := h.rooms[roomID]
	if !ok {
		return
	}

	messageBytes, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("failed to marshal frame", slog.String("room", roomID), slog.Any("error", err))
		return
	}

	for client := range roomClients {
		if client == except {
			continue
		}
		client.mu.Lock()
		if client.isClosed {
			client.mu.Unlock()
			continue
		}
		select {
		case client.send <- messageBytes:
		default:
			h.logger.Warn("judge send buffer full, frame dropped", slog.String("room", roomID), slog.String("judge_id", client.judge.ID))
		}
		client.mu.Unlock()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, clients := range h.rooms {
		for client := range clients {
			client.close()
		}
		delete(h.rooms, room)
	}
}

// Serve registers an upgraded connection and starts its pumps. It returns immediately.
func (h *Hub) Serve(conn *websocket.Conn, roomID string, judge Identity) {
	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		room:  roomID,
		judge: judge,
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isClosed {
		close(c.send)
		c.isClosed = true
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("judge connection closed unexpectedly", slog.String("room", c.room), slog.Any("error", err))
			}
			return
		}
		var f Frame
		if err := json.Unmarshal(message, &f); err != nil {
			c.hub.logger.Warn("malformed frame from judge", slog.String("room", c.room), slog.Any("error", err))
			continue
		}
		select {
		case c.hub.inbound <- inboundFrame{client: c, frame: f}:
		case <-c.hub.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One frame per message; judges decode each websocket message as a single Frame.
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
