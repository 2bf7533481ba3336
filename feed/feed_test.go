package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePayload(t *testing.T) {
	c, err := ParsePayload(`{"tournament_id":7,"table":"registrants","op":"INSERT","at":"2026-03-01T10:00:00Z"}`)
	require.NoError(t, err)
	assert.Equal(t, 7, c.TournamentID)
	assert.Equal(t, TableRegistrants, c.Table)
	assert.Equal(t, "INSERT", c.Op)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), c.At)

	c, err = ParsePayload(`{"tournament_id":7,"table":"tournaments","op":"UPDATE"}`)
	require.NoError(t, err)
	assert.False(t, c.At.IsZero())

	_, err = ParsePayload("not json")
	assert.Error(t, err)
}

func TestMatches(t *testing.T) {
	assert.True(t, matches(0, Change{TournamentID: 3}))
	assert.True(t, matches(3, Change{TournamentID: 3}))
	assert.False(t, matches(4, Change{TournamentID: 3}))
	assert.True(t, matches(4, Change{Resync: true}))
}

type collector struct {
	mu  sync.Mutex
	got []Change
}

func (c *collector) add(ch Change) {
	c.mu.Lock()
	c.got = append(c.got, ch)
	c.mu.Unlock()
}

func (c *collector) all() []Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Change(nil), c.got...)
}

func TestPGListener_DispatchFiltersByTournament(t *testing.T) {
	l := NewPGListener("", nil)
	ctx, cancel := context.WithCancel(context.Background())

	var one, all collector
	done := make(chan struct{}, 2)
	go func() { _ = l.Subscribe(ctx, 1, one.add); done <- struct{}{} }()
	go func() { _ = l.Subscribe(ctx, 0, all.add); done <- struct{}{} }()
	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.subs) == 2
	}, time.Second, 5*time.Millisecond)

	l.dispatch(Change{TournamentID: 1, Table: TableTournaments})
	l.dispatch(Change{TournamentID: 2, Table: TableRegistrants})
	l.dispatch(Change{Resync: true})

	assert.Len(t, one.all(), 2)
	assert.Len(t, all.all(), 3)

	cancel()
	<-done
	<-done
	l.mu.Lock()
	assert.Empty(t, l.subs)
	l.mu.Unlock()
}

type fakeFeed struct {
	changes []Change
}

func (f *fakeFeed) Subscribe(ctx context.Context, tournamentID int, fn func(Change)) error {
	for _, c := range f.changes {
		if matches(tournamentID, c) {
			fn(c)
		}
	}
	return nil
}

func TestRelay_FailingPublisherDoesNotStopOthers(t *testing.T) {
	src := &fakeFeed{changes: []Change{{TournamentID: 1}, {TournamentID: 2}}}
	var got collector
	failing := PublisherFunc(func(Change) error { return errors.New("down") })
	ok := PublisherFunc(func(c Change) error { got.add(c); return nil })

	require.NoError(t, Relay(context.Background(), src, nil, failing, ok))
	assert.Len(t, got.all(), 2)
}
