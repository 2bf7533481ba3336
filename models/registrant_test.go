package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrant_AssignAttachmentOncePerRegistrant(t *testing.T) {
	r := NewRegistrant(1, "session-1", ModePointBudget)
	r.Main = NewConfiguration("A", "B", "C")
	_, err := r.AddReserve()
	require.NoError(t, err)

	require.NoError(t, r.AssignAttachment(MainSection, 0, "turbo"))

	err = r.AssignAttachment(1, 2, "turbo")
	assert.ErrorIs(t, err, ErrAttachmentInUse)
	assert.Empty(t, r.Reserves[0][2].Attachment)

	err = r.AssignAttachment(MainSection, 1, "turbo")
	assert.ErrorIs(t, err, ErrAttachmentInUse, "same tag on another slot of the same configuration")

	// Re-assigning the same slot is not a second use.
	assert.NoError(t, r.AssignAttachment(MainSection, 0, "turbo"))

	require.NoError(t, r.AssignAttachment(MainSection, 0, ""))
	assert.NoError(t, r.AssignAttachment(1, 2, "turbo"))
}

func TestRegistrant_FrozenAfterSubmit(t *testing.T) {
	r := NewRegistrant(1, "session-1", ModeUnrestricted)
	r.DisplayName = "Alice"
	require.NoError(t, r.Submit())

	assert.ErrorIs(t, r.SetItem(MainSection, 0, "A"), ErrRegistrantFrozen)
	assert.ErrorIs(t, r.AssignAttachment(MainSection, 0, "turbo"), ErrRegistrantFrozen)
	_, err := r.AddReserve()
	assert.ErrorIs(t, err, ErrRegistrantFrozen)
	assert.ErrorIs(t, r.Submit(), ErrRegistrantFrozen)
}

func TestRegistrant_ReserveLimit(t *testing.T) {
	r := NewRegistrant(1, "s", ModeBanList)
	for i := 1; i <= MaxReserveConfigurations; i++ {
		section, err := r.AddReserve()
		require.NoError(t, err)
		assert.Equal(t, i, section)
	}
	_, err := r.AddReserve()
	assert.ErrorIs(t, err, ErrTooManyReserves)

	require.NoError(t, r.RemoveReserve(2))
	assert.Len(t, r.Reserves, 2)
	assert.ErrorIs(t, r.RemoveReserve(3), ErrSectionNotFound)
}

func TestSectionName(t *testing.T) {
	assert.Equal(t, "main", SectionName(MainSection))
	assert.Equal(t, "reserve #1", SectionName(1))
	assert.Equal(t, "reserve #3", SectionName(3))
}
