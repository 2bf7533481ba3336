package coordination

import (
	"context"
	"errors"
	"testing"

	"github.com/Dosada05/tournament-officiating/authority"
	"github.com/Dosada05/tournament-officiating/models"
	"github.com/Dosada05/tournament-officiating/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resultFixture struct {
	bus   *presence.MemoryBus
	a, b  judgeDevice
	auth  *fakeAuthority
	coord *ResultCoordinator
}

func newResultFixture(t *testing.T) *resultFixture {
	t.Helper()
	bus := presence.NewMemoryBus()
	f := &resultFixture{
		bus:  bus,
		a:    newJudge(t, bus, alice, LockOptions{}),
		b:    newJudge(t, bus, bob, LockOptions{}),
		auth: &fakeAuthority{},
	}
	f.auth.ListMatchesFn = func(context.Context, authority.BracketRef) ([]models.Match, error) {
		return []models.Match{openMatch("m1", "11", "12")}, nil
	}
	f.coord = NewResultCoordinator(f.a.locks, f.auth, "ref", nil, ResultOptions{Logger: discardLogger()})
	_, err := f.coord.Refresh(context.Background())
	require.NoError(t, err)
	return f
}

func TestSubmitResult_Success(t *testing.T) {
	ctx := context.Background()
	f := newResultFixture(t)
	require.NoError(t, f.a.locks.Claim(ctx, "m1", nil))
	f.coord.Cache().SetDraft("m1", Draft{ScoreSummary: "2-1", WinnerID: "11"})

	var sawBusy bool
	f.auth.SubmitResultFn = func(_ context.Context, ref authority.BracketRef, matchID, score, winnerID string) error {
		assert.Equal(t, authority.BracketRef("ref"), ref)
		assert.Equal(t, "m1", matchID)
		assert.Equal(t, "2-1", score)
		assert.Equal(t, "11", winnerID)
		sawBusy = f.b.locks.View("m1").Updating
		return nil
	}
	listsBefore := f.auth.count("ListMatches")

	require.NoError(t, f.coord.SubmitResult(ctx, "m1", "2-1", "11"))

	assert.True(t, sawBusy, "other judges see the busy flag during the call")
	assert.False(t, f.b.locks.View("m1").Updating)
	assert.Equal(t, listsBefore+1, f.auth.count("ListMatches"), "match list is refetched")
	_, hasDraft := f.coord.Cache().Draft("m1")
	assert.False(t, hasDraft)
	assert.Equal(t, Unclaimed, f.b.locks.State("m1"), "claim released after success")
	assert.Equal(t, Unclaimed, f.a.locks.State("m1"))
}

func TestSubmitResult_FailureStillClearsBusyAndRefetches(t *testing.T) {
	ctx := context.Background()
	f := newResultFixture(t)
	require.NoError(t, f.a.locks.Claim(ctx, "m1", nil))
	f.coord.Cache().SetDraft("m1", Draft{ScoreSummary: "2-1", WinnerID: "11"})

	f.auth.SubmitResultFn = func(context.Context, authority.BracketRef, string, string, string) error {
		return &authority.Error{Op: "submit result", Kind: authority.KindAuth, StatusCode: 401, Err: errors.New("invalid api key")}
	}
	listsBefore := f.auth.count("ListMatches")

	err := f.coord.SubmitResult(ctx, "m1", "2-1", "11")
	ae, ok := authority.AsError(err)
	require.True(t, ok)
	assert.True(t, ae.IsAuth())
	assert.True(t, ae.Retryable())

	assert.False(t, f.b.locks.View("m1").Updating, "busy flag cleared on failure")
	assert.False(t, f.a.locks.View("m1").Updating)
	assert.Equal(t, listsBefore+1, f.auth.count("ListMatches"))
	_, hasDraft := f.coord.Cache().Draft("m1")
	assert.True(t, hasDraft, "operator input survives a failure")
	assert.Equal(t, ClaimedByOther, f.b.locks.State("m1"), "claim kept for the retry")
}

func TestSubmitResult_RawErrorBecomesTransient(t *testing.T) {
	ctx := context.Background()
	f := newResultFixture(t)
	require.NoError(t, f.a.locks.Claim(ctx, "m1", nil))
	f.auth.SubmitResultFn = func(context.Context, authority.BracketRef, string, string, string) error {
		return context.DeadlineExceeded
	}

	err := f.coord.SubmitResult(ctx, "m1", "2-1", "11")
	ae, ok := authority.AsError(err)
	require.True(t, ok)
	assert.Equal(t, authority.KindTransient, ae.Kind)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubmitResult_GuardBlocksOtherJudge(t *testing.T) {
	ctx := context.Background()
	f := newResultFixture(t)
	require.NoError(t, f.a.locks.Claim(ctx, "m1", nil))

	bobCoord := NewResultCoordinator(f.b.locks, f.auth, "ref", nil, ResultOptions{Logger: discardLogger()})
	err := bobCoord.SubmitResult(ctx, "m1", "0-2", "12")
	ce, ok := AsConflict(err)
	require.True(t, ok)
	assert.Equal(t, alice, ce.Holder)
	assert.Equal(t, 0, f.auth.count("SubmitResult"))
}

func TestSubmitResult_Preconditions(t *testing.T) {
	ctx := context.Background()
	f := newResultFixture(t)

	assert.ErrorIs(t, f.coord.SubmitResult(ctx, "m1", "2-1", "11"), ErrNotClaimed)

	require.NoError(t, f.a.locks.Claim(ctx, "m1", nil))
	assert.ErrorIs(t, f.coord.SubmitResult(ctx, "m1", "2-1", "99"), ErrInvalidWinner)

	finished := NewResultCoordinator(f.a.locks, f.auth, "ref", f.coord.Cache(), ResultOptions{
		Logger:           discardLogger(),
		MutationsAllowed: func() bool { return false },
	})
	assert.ErrorIs(t, finished.SubmitResult(ctx, "m1", "2-1", "11"), ErrTournamentFinished)
	assert.Equal(t, 0, f.auth.count("SubmitResult"))
}

func TestSubmitResult_ChannelDownDoesNotBlockSubmission(t *testing.T) {
	ctx := context.Background()
	f := newResultFixture(t)
	require.NoError(t, f.a.locks.Claim(ctx, "m1", nil))
	f.a.ch.Disconnect()

	require.NoError(t, f.coord.SubmitResult(ctx, "m1", "2-1", "11"))
	assert.Equal(t, 1, f.auth.count("SubmitResult"))
	assert.False(t, f.a.locks.View("m1").Updating)
}

func TestSubmitResult_RefetchFailureInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	f := newResultFixture(t)
	require.NoError(t, f.a.locks.Claim(ctx, "m1", nil))
	f.auth.ListMatchesFn = func(context.Context, authority.BracketRef) ([]models.Match, error) {
		return nil, &authority.Error{Op: "list matches", Kind: authority.KindTransient, Err: errors.New("502")}
	}

	require.NoError(t, f.coord.SubmitResult(ctx, "m1", "2-1", "11"))
	assert.Empty(t, f.coord.Cache().Matches())
}

func TestMatchCache_ReplaceOrdersByDisplayOrder(t *testing.T) {
	c := NewMatchCache()
	m2 := openMatch("m2", "1", "2")
	m2.DisplayOrder = 2
	m1 := openMatch("m1", "3", "4")
	m1.DisplayOrder = 1
	c.Replace([]models.Match{m2, m1})

	got := c.Matches()
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	m, ok := c.Match("m2")
	require.True(t, ok)
	assert.Equal(t, 2, m.DisplayOrder)
	assert.False(t, c.FetchedAt().IsZero())
}
