package models

import "time"

// TournamentStatus представляет фазу турнира.
type TournamentStatus string

const (
	StatusOpen      TournamentStatus = "OPEN"
	StatusStarted   TournamentStatus = "STARTED"
	StatusCompleted TournamentStatus = "COMPLETED"
	StatusClosed    TournamentStatus = "CLOSED"
)

func (s TournamentStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusStarted, StatusCompleted, StatusClosed:
		return true
	}
	return false
}

// IsTerminal reports whether no further bracket mutations are expected.
func (s TournamentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusClosed
}

// phaseRank orders phases for observers. CLOSED ranks last so COMPLETED -> CLOSED is forward.
var phaseRank = map[TournamentStatus]int{
	StatusOpen:      0,
	StatusStarted:   1,
	StatusCompleted: 2,
	StatusClosed:    3,
}

// IsForward reports whether an observed move from current to next never goes back a phase.
// Unlike CanTransition it accepts skipped phases, e.g. OPEN -> COMPLETED seen by a device
// that missed STARTED.
func IsForward(current, next TournamentStatus) bool {
	from, ok := phaseRank[current]
	if !ok {
		return false
	}
	to, ok := phaseRank[next]
	return ok && to >= from
}

// CanTransition reports whether current -> next is allowed. Status never regresses.
func CanTransition(current, next TournamentStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[TournamentStatus][]TournamentStatus{
		StatusOpen:      {StatusStarted, StatusClosed},
		StatusStarted:   {StatusCompleted, StatusClosed},
		StatusCompleted: {StatusClosed},
		StatusClosed:    {},
	}
	for _, allowedNextStatus := range allowedTransitions[current] {
		if next == allowedNextStatus {
			return true
		}
	}
	return false
}

// BracketFormat is passed through to the bracket authority.
type BracketFormat string

const (
	FormatSingleElimination BracketFormat = "single_elimination"
	FormatDoubleElimination BracketFormat = "double_elimination"
	FormatRoundRobin        BracketFormat = "round_robin"
	FormatSwiss             BracketFormat = "swiss"
)

// Tournament представляет турнир.
type Tournament struct {
	ID         int              `json:"id" db:"id"`
	Name       string           `json:"name" db:"name"`
	Mode       Mode             `json:"mode" db:"mode"`
	Format     BracketFormat    `json:"format" db:"format"`
	Status     TournamentStatus `json:"status" db:"status"`
	ArenaSlots int              `json:"arena_slots" db:"arena_slots"`
	// BanList overrides the global default ban list when non-empty.
	BanList    []string  `json:"ban_list,omitempty" db:"ban_list"`
	BracketRef *string   `json:"bracket_ref,omitempty" db:"bracket_ref"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
