// Package presence carries judge claim announcements and transient match events between
// judge devices. Delivery is best-effort: at-most-once, unordered, no history.
package presence

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrChannelUnavailable = errors.New("presence channel unavailable")

// Identity is a judge as seen by the other devices.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Claim is one match held by a judge. ArenaSlot is nil when the judge chose no arena.
type Claim struct {
	MatchID   string `json:"match_id"`
	ArenaSlot *int   `json:"arena_slot,omitempty"`
}

// Presence is the full claim set a judge last announced.
type Presence struct {
	Judge       Identity  `json:"judge"`
	Claims      []Claim   `json:"claims"`
	AnnouncedAt time.Time `json:"announced_at"`
}

// Snapshot is the current membership of a tournament room, one entry per connection.
type Snapshot []Presence

type EventType string

const (
	EventMatchUpdating     EventType = "match_updating"
	EventTournamentChanged EventType = "tournament_changed"
)

// Event is a point notification. It is never part of the presence state.
type Event struct {
	Type         EventType `json:"type"`
	TournamentID int       `json:"tournament_id,omitempty"`
	MatchID      string    `json:"match_id,omitempty"`
	Updating     bool      `json:"updating,omitempty"`
	Judge        Identity  `json:"judge"`
	At           time.Time `json:"at"`
}

// Handlers receive channel callbacks. They may be invoked from any goroutine.
type Handlers struct {
	OnSync      func(Snapshot)
	OnBroadcast func(Event)
	// OnSubscribed fires after every successful (re)subscription.
	OnSubscribed func()
}

func (h Handlers) sync(s Snapshot) {
	if h.OnSync != nil {
		h.OnSync(s)
	}
}

func (h Handlers) broadcast(e Event) {
	if h.OnBroadcast != nil {
		h.OnBroadcast(e)
	}
}

func (h Handlers) subscribed() {
	if h.OnSubscribed != nil {
		h.OnSubscribed()
	}
}

// Channel is a presence/broadcast transport bound to one tournament.
type Channel interface {
	Subscribe(ctx context.Context, h Handlers) error
	// Announce replaces self's presence with the full claim set.
	Announce(ctx context.Context, self Identity, claims []Claim) error
	Broadcast(ctx context.Context, e Event) error
	Unsubscribe() error
}

type FrameType string

const (
	FrameAnnounce  FrameType = "announce"
	FrameBroadcast FrameType = "broadcast"
	FrameSync      FrameType = "sync"
)

// Frame is the websocket wire message between the hub and judge devices.
type Frame struct {
	Type     FrameType `json:"type"`
	RoomID   string    `json:"room_id,omitempty"`
	Presence *Presence `json:"presence,omitempty"`
	Members  Snapshot  `json:"members,omitempty"`
	Event    *Event    `json:"event,omitempty"`
}

// RoomName returns the hub room of a tournament.
func RoomName(tournamentID int) string {
	return fmt.Sprintf("tournament_%d", tournamentID)
}

func copyClaims(claims []Claim) []Claim {
	out := make([]Claim, len(claims))
	copy(out, claims)
	return out
}
