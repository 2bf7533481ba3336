package coordination

import (
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-officiating/presence"
)

var (
	ErrNotClaimed         = errors.New("match is not claimed by you")
	ErrClaimCancelled     = errors.New("claim cancelled")
	ErrInvalidArenaSlot   = errors.New("arena slot out of range")
	ErrTournamentFinished = errors.New("tournament is finished, results can no longer be changed")
	ErrInvalidWinner      = errors.New("winner is not a participant of the match")
)

// ConflictError reports a match that another judge holds or is updating.
type ConflictError struct {
	MatchID  string
	Holder   presence.Identity
	Updating bool
	// Contested is set when this judge also holds the match.
	Contested bool
}

func (e *ConflictError) Error() string {
	name := e.Holder.Name
	if name == "" {
		name = "another judge"
	}
	switch {
	case e.Updating:
		return fmt.Sprintf("match %s is being updated by %s", e.MatchID, name)
	case e.Contested:
		return fmt.Sprintf("match %s is also claimed by %s, one of you must release it", e.MatchID, name)
	default:
		return fmt.Sprintf("match %s is currently judged by %s", e.MatchID, name)
	}
}

// AsConflict unwraps err into *ConflictError.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
