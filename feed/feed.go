// Package feed delivers row-level change notifications for tournaments and registrants.
// Delivery is best-effort; consumers must also poll.
package feed

import (
	"context"
	"time"
)

const (
	TableTournaments = "tournaments"
	TableRegistrants = "registrants"
)

// Change is one notification. Resync is set when notifications may have been lost, e.g.
// after a reconnect, and the consumer should reload everything.
type Change struct {
	TournamentID int       `json:"tournament_id"`
	Table        string    `json:"table"`
	Op           string    `json:"op"`
	Resync       bool      `json:"resync,omitempty"`
	At           time.Time `json:"at"`
}

// ChangeFeed delivers changes for one tournament, or all tournaments when tournamentID is
// zero. Subscribe blocks until ctx is done.
type ChangeFeed interface {
	Subscribe(ctx context.Context, tournamentID int, fn func(Change)) error
}

func matches(tournamentID int, c Change) bool {
	return tournamentID == 0 || c.Resync || c.TournamentID == tournamentID
}
