package coordination

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/Dosada05/tournament-officiating/authority"
	"github.com/Dosada05/tournament-officiating/models"
	"github.com/Dosada05/tournament-officiating/presence"
)

type fakeAuthority struct {
	mu    sync.Mutex
	calls map[string]int

	ListMatchesFn  func(ctx context.Context, ref authority.BracketRef) ([]models.Match, error)
	SubmitResultFn func(ctx context.Context, ref authority.BracketRef, matchID, score, winnerID string) error
	StandingsFn    func(ctx context.Context, ref authority.BracketRef) ([]models.RankedParticipant, error)
}

func (f *fakeAuthority) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeAuthority) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeAuthority) CreateBracket(ctx context.Context, in authority.CreateBracketInput) (authority.BracketRef, error) {
	f.record("CreateBracket")
	return "", authority.ErrNotSupported
}

func (f *fakeAuthority) ListMatches(ctx context.Context, ref authority.BracketRef) ([]models.Match, error) {
	f.record("ListMatches")
	if f.ListMatchesFn != nil {
		return f.ListMatchesFn(ctx, ref)
	}
	return nil, nil
}

func (f *fakeAuthority) SubmitResult(ctx context.Context, ref authority.BracketRef, matchID, score, winnerID string) error {
	f.record("SubmitResult")
	if f.SubmitResultFn != nil {
		return f.SubmitResultFn(ctx, ref, matchID, score, winnerID)
	}
	return nil
}

func (f *fakeAuthority) Standings(ctx context.Context, ref authority.BracketRef) ([]models.RankedParticipant, error) {
	f.record("Standings")
	if f.StandingsFn != nil {
		return f.StandingsFn(ctx, ref)
	}
	return nil, nil
}

type fakeStatus struct {
	mu       sync.Mutex
	statuses []models.TournamentStatus
	reads    int
	writes   []models.TournamentStatus
	WriteFn  func(status models.TournamentStatus) error
}

func (f *fakeStatus) push(s ...models.TournamentStatus) {
	f.mu.Lock()
	f.statuses = append(f.statuses, s...)
	f.mu.Unlock()
}

// TournamentStatus pops the next status; the last one repeats.
func (f *fakeStatus) TournamentStatus(ctx context.Context) (models.TournamentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}

func (f *fakeStatus) SetTournamentStatus(ctx context.Context, status models.TournamentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, status)
	if f.WriteFn != nil {
		return f.WriteFn(status)
	}
	return nil
}

func (f *fakeStatus) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	alice = presence.Identity{ID: "judge-a", Name: "Alice"}
	bob   = presence.Identity{ID: "judge-b", Name: "Bob"}
)

func openMatch(id, a, b string) models.Match {
	return models.Match{
		ID:           id,
		State:        models.MatchOpen,
		ParticipantA: &models.MatchParticipant{ID: a, Name: "Player " + a},
		ParticipantB: &models.MatchParticipant{ID: b, Name: "Player " + b},
		Round:        1,
	}
}
