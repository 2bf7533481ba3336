package models

// RankedParticipant is one row of the standings reported by the bracket authority.
type RankedParticipant struct {
	Rank   int    `json:"rank"`
	Name   string `json:"name"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
}
