package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Dosada05/tournament-officiating/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleRegistrantError(t *testing.T) {
	nameErr := &pq.Error{Code: pqUniqueViolation, Constraint: constraintRegistrantName}
	assert.ErrorIs(t, handleRegistrantError(nameErr), ErrRegistrantNameConflict)
	assert.ErrorIs(t, handleRegistrantError(fmt.Errorf("insert: %w", nameErr)), ErrRegistrantNameConflict)

	localErr := &pq.Error{Code: pqUniqueViolation, Constraint: constraintRegistrantLocalID}
	assert.ErrorIs(t, handleRegistrantError(localErr), ErrRegistrantConflict)

	fkErr := &pq.Error{Code: pqForeignKeyViolation, Constraint: "registrants_tournament_id_fkey"}
	assert.ErrorIs(t, handleRegistrantError(fkErr), ErrRegistrantTournament)

	other := errors.New("connection reset")
	assert.Equal(t, other, handleRegistrantError(other))
}

func TestDecodeDecks_LegacyReserveEncoding(t *testing.T) {
	reg := &models.Registrant{}
	err := decodeDecks(reg,
		[]byte(`[{"item":"A","attachment":"turbo"},{"item":"B"},{"item":"C"}]`),
		[]byte(`["D","E","F"]`))
	require.NoError(t, err)

	assert.Equal(t, "A", reg.Main[0].Item)
	assert.Equal(t, models.Attachment("turbo"), reg.Main[0].Attachment)
	require.Len(t, reg.Reserves, 1)
	assert.Equal(t, []string{"D", "E", "F"}, reg.Reserves[0].Items())
}

func TestDecodeDecks_DeckList(t *testing.T) {
	reg := &models.Registrant{}
	err := decodeDecks(reg,
		[]byte(`["A","B","C"]`),
		[]byte(`[["D","E","F"],[{"item":"G"},{"item":"H"},{"item":"I"}]]`))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, reg.Main.Items())
	require.Len(t, reg.Reserves, 2)
	assert.Equal(t, []string{"G", "H", "I"}, reg.Reserves[1].Items())
}

func TestDecodeDecks_EmptyReserves(t *testing.T) {
	reg := &models.Registrant{}
	require.NoError(t, decodeDecks(reg, []byte(`[]`), []byte(`[]`)))
	assert.Empty(t, reg.Reserves)
	assert.NotNil(t, reg.Reserves)
}

func TestHandleTournamentError_CheckViolation(t *testing.T) {
	err := (&postgresTournamentRepository{}).handleTournamentError(&pq.Error{Code: pqCheckViolation, Constraint: "tournaments_mode_check"})
	assert.ErrorIs(t, err, ErrTournamentInvalidData)
	assert.Contains(t, err.Error(), "tournaments_mode_check")
}
