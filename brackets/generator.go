package brackets

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-officiating/models"
)

var ErrUnsupportedFormat = errors.New("bracket format is not supported by the local generator")

type GenerateBracketParams struct {
	// Participants are participant ids in seeding order.
	Participants []string
	// Legs is the number of times each pair meets in round robin (1 or 2).
	Legs int
}

// BracketMatch is one node of a generated bracket. A nil participant with a source match
// is filled by that match's winner.
type BracketMatch struct {
	UID          string
	Round        int
	OrderInRound int

	Participant1ID *string
	Participant2ID *string

	SourceMatch1UID *string
	SourceMatch2UID *string

	IsPlaceholder bool

	IsBye            bool
	ByeParticipantID *string
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error)

	GetName() string
}

// NewGenerator returns the generator for format.
func NewGenerator(format models.BracketFormat) (BracketGenerator, error) {
	switch format {
	case models.FormatSingleElimination, "":
		return NewSingleEliminationGenerator(), nil
	case models.FormatRoundRobin:
		return NewRoundRobinGenerator(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}
