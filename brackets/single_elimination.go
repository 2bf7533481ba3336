package brackets

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
)

type node struct {
	participantID    *string
	sourceMatchUID   *string
	isByePlaceholder bool
}

type SingleEliminationGenerator struct {
}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateBracket pads the field to a power of two. The first seeds receive the byes, so
// a bye never meets another bye and every later round has an even node count.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	participants := params.Participants
	n := len(participants)

	if n == 0 {
		return nil, errors.New("cannot generate bracket with zero participants")
	}
	if n < 2 {
		return nil, errors.New("not enough participants to generate a single elimination bracket (minimum 2)")
	}

	numRounds := int(math.Ceil(math.Log2(float64(n))))
	sizeOfFullBracket := 1 << uint(numRounds)
	numByes := sizeOfFullBracket - n

	currentRoundNodes := make([]*node, 0, sizeOfFullBracket)
	for i := 0; i < n; i++ {
		pid := participants[i]
		currentRoundNodes = append(currentRoundNodes, &node{participantID: &pid})
		if i < numByes {
			currentRoundNodes = append(currentRoundNodes, &node{isByePlaceholder: true})
		}
	}

	allGeneratedMatches := make([]*BracketMatch, 0, sizeOfFullBracket-1)

	for r := 1; r <= numRounds; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		nextRoundNodes := make([]*node, 0, len(currentRoundNodes)/2)

		for i := 0; i < len(currentRoundNodes); i += 2 {
			node1 := currentRoundNodes[i]
			node2 := currentRoundNodes[i+1]
			order := i/2 + 1
			currentMatchUID := fmt.Sprintf("R%dM%d", r, order)

			bm := &BracketMatch{
				UID:          currentMatchUID,
				Round:        r,
				OrderInRound: order,
			}

			switch {
			case node1.participantID != nil && node2.isByePlaceholder:
				bm.IsBye = true
				bm.ByeParticipantID = node1.participantID
				bm.Participant1ID = node1.participantID
				nextRoundNodes = append(nextRoundNodes, &node{participantID: node1.participantID})

			case node1.isByePlaceholder || node2.isByePlaceholder:
				return nil, fmt.Errorf("unexpected bye placement in round %d, match %d", r, order)

			default:
				bm.Participant1ID = node1.participantID
				bm.SourceMatch1UID = node1.sourceMatchUID
				bm.Participant2ID = node2.participantID
				bm.SourceMatch2UID = node2.sourceMatchUID
				bm.IsPlaceholder = bm.Participant1ID == nil || bm.Participant2ID == nil
				uid := currentMatchUID
				nextRoundNodes = append(nextRoundNodes, &node{sourceMatchUID: &uid})
			}

			allGeneratedMatches = append(allGeneratedMatches, bm)
		}
		currentRoundNodes = nextRoundNodes
	}

	sort.Slice(allGeneratedMatches, func(i, j int) bool {
		if allGeneratedMatches[i].Round != allGeneratedMatches[j].Round {
			return allGeneratedMatches[i].Round < allGeneratedMatches[j].Round
		}
		return allGeneratedMatches[i].OrderInRound < allGeneratedMatches[j].OrderInRound
	})

	return allGeneratedMatches, nil
}
