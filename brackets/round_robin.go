package brackets

import (
	"context"
	"fmt"
	"sort"
)

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() BracketGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return "RoundRobin"
}

// GenerateBracket creates matches for a round-robin tournament.
// For a single round-robin, each participant plays every other participant once.
// For a double round-robin, they play each other twice.
func (g *RoundRobinGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	participants := params.Participants
	if len(participants) < 2 {
		return nil, fmt.Errorf("RoundRobinGenerator: not enough participants (found %d, min 2 required)", len(participants))
	}

	legs := params.Legs
	if legs != 2 {
		legs = 1
	}
	pairs := len(participants) * (len(participants) - 1) / 2

	matches := make([]*BracketMatch, 0, pairs*legs)
	matchOrder := 0

	for i := 0; i < len(participants); i++ {
		for j := i + 1; j < len(participants); j++ {
			p1ID := participants[i]
			p2ID := participants[j]

			matchOrder++
			matches = append(matches, &BracketMatch{
				UID:            fmt.Sprintf("RR%d", matchOrder),
				Round:          1,
				OrderInRound:   matchOrder,
				Participant1ID: &p1ID,
				Participant2ID: &p2ID,
			})

			if legs == 2 {
				matches = append(matches, &BracketMatch{
					UID:            fmt.Sprintf("RR%d", matchOrder+pairs),
					Round:          2,
					OrderInRound:   matchOrder,
					Participant1ID: &p2ID,
					Participant2ID: &p1ID,
				})
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Round != matches[j].Round {
			return matches[i].Round < matches[j].Round
		}
		return matches[i].OrderInRound < matches[j].OrderInRound
	})

	return matches, nil
}
