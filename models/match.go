package models

type MatchState string

const (
	MatchOpen     MatchState = "open"
	MatchPending  MatchState = "pending"
	MatchComplete MatchState = "complete"
)

type MatchParticipant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Match is a read-mostly copy of a match owned by the bracket authority.
type Match struct {
	ID           string            `json:"id"`
	State        MatchState        `json:"state"`
	ParticipantA *MatchParticipant `json:"participant_a,omitempty"`
	ParticipantB *MatchParticipant `json:"participant_b,omitempty"`
	WinnerID     *string           `json:"winner_id,omitempty"`
	Round        int               `json:"round"`
	DisplayOrder int               `json:"display_order"`
	ScoreSummary string            `json:"score_summary,omitempty"`
}

// ParticipantName returns the display name of the participant with id, or "" if neither side matches.
func (m Match) ParticipantName(id string) string {
	if m.ParticipantA != nil && m.ParticipantA.ID == id {
		return m.ParticipantA.Name
	}
	if m.ParticipantB != nil && m.ParticipantB.ID == id {
		return m.ParticipantB.Name
	}
	return ""
}

// HasParticipant reports whether id is one of the two sides of the match.
func (m Match) HasParticipant(id string) bool {
	return (m.ParticipantA != nil && m.ParticipantA.ID == id) ||
		(m.ParticipantB != nil && m.ParticipantB.ID == id)
}
