package brackets

import (
	"context"
	"fmt"
	"testing"

	"github.com/Dosada05/tournament-officiating/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("p%d", i+1)
	}
	return out
}

func TestSingleElimination_PowerOfTwo(t *testing.T) {
	matches, err := NewSingleEliminationGenerator().GenerateBracket(context.Background(), GenerateBracketParams{Participants: ids(4)})
	require.NoError(t, err)
	require.Len(t, matches, 3)

	final := matches[2]
	assert.Equal(t, "R2M1", final.UID)
	assert.True(t, final.IsPlaceholder)
	assert.Equal(t, "R1M1", *final.SourceMatch1UID)
	assert.Equal(t, "R1M2", *final.SourceMatch2UID)
}

func TestSingleElimination_ByesNeverMeet(t *testing.T) {
	for n := 2; n <= 17; n++ {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			matches, err := NewSingleEliminationGenerator().GenerateBracket(context.Background(), GenerateBracketParams{Participants: ids(n)})
			require.NoError(t, err)

			playable := 0
			for _, m := range matches {
				if !m.IsBye {
					playable++
				}
			}
			assert.Equal(t, n-1, playable, "a knockout of n entrants has n-1 real matches")
		})
	}
}

func TestSingleElimination_ByeSeedsAdvanceDirectly(t *testing.T) {
	matches, err := NewSingleEliminationGenerator().GenerateBracket(context.Background(), GenerateBracketParams{Participants: ids(3)})
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.True(t, matches[0].IsBye)
	assert.Equal(t, "p1", *matches[0].ByeParticipantID)
	final := matches[2]
	require.NotNil(t, final.Participant1ID)
	assert.Equal(t, "p1", *final.Participant1ID)
	assert.Equal(t, "R1M2", *final.SourceMatch2UID)
}

func TestSingleElimination_TooFew(t *testing.T) {
	_, err := NewSingleEliminationGenerator().GenerateBracket(context.Background(), GenerateBracketParams{Participants: ids(1)})
	assert.Error(t, err)
}

func TestRoundRobin_Legs(t *testing.T) {
	matches, err := NewRoundRobinGenerator().GenerateBracket(context.Background(), GenerateBracketParams{Participants: ids(4)})
	require.NoError(t, err)
	assert.Len(t, matches, 6)

	matches, err = NewRoundRobinGenerator().GenerateBracket(context.Background(), GenerateBracketParams{Participants: ids(4), Legs: 2})
	require.NoError(t, err)
	assert.Len(t, matches, 12)
	assert.Equal(t, 2, matches[11].Round)
}

func TestNewGenerator(t *testing.T) {
	g, err := NewGenerator(models.FormatRoundRobin)
	require.NoError(t, err)
	assert.Equal(t, "RoundRobin", g.GetName())

	_, err = NewGenerator(models.FormatSwiss)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
