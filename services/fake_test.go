package services

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/Dosada05/tournament-officiating/authority"
	"github.com/Dosada05/tournament-officiating/models"
	"github.com/Dosada05/tournament-officiating/repositories"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTx runs fn without a transaction and records whether it was used.
type fakeTx struct {
	calls int
}

func (f *fakeTx) WithTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	f.calls++
	return fn(nil)
}

type fakeTournamentRepo struct {
	mu          sync.Mutex
	tournaments map[int]*models.Tournament
	nextID      int

	UpdateStatusFn func(ctx context.Context, id int, from, to models.TournamentStatus) error
}

func newFakeTournamentRepo(ts ...*models.Tournament) *fakeTournamentRepo {
	r := &fakeTournamentRepo{tournaments: make(map[int]*models.Tournament), nextID: 100}
	for _, t := range ts {
		r.tournaments[t.ID] = t
	}
	return r
}

func (r *fakeTournamentRepo) Create(ctx context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	t.ID = r.nextID
	cp := *t
	r.tournaments[t.ID] = &cp
	return nil
}

func (r *fakeTournamentRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTournamentRepo) List(ctx context.Context, status *models.TournamentStatus) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Tournament
	for _, t := range r.tournaments {
		if status == nil || t.Status == *status {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, from, to models.TournamentStatus) error {
	if r.UpdateStatusFn != nil {
		if err := r.UpdateStatusFn(ctx, id, from, to); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if t.Status != from {
		return repositories.ErrTournamentStatusConflict
	}
	t.Status = to
	return nil
}

func (r *fakeTournamentRepo) SetBracketRef(ctx context.Context, exec repositories.SQLExecutor, id int, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.BracketRef = &ref
	return nil
}

func (r *fakeTournamentRepo) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tournaments, id)
	return nil
}

func (r *fakeTournamentRepo) status(id int) models.TournamentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tournaments[id].Status
}

// fakeRegistrantRepo enforces the case-folded name uniqueness the schema enforces.
type fakeRegistrantRepo struct {
	mu          sync.Mutex
	registrants []*models.Registrant
	nextID      int

	CreateFn func(r *models.Registrant) error
}

func (f *fakeRegistrantRepo) Create(ctx context.Context, exec repositories.SQLExecutor, r *models.Registrant) error {
	if f.CreateFn != nil {
		if err := f.CreateFn(r); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.registrants {
		if existing.TournamentID == r.TournamentID && models.NormalizeName(existing.DisplayName) == models.NormalizeName(r.DisplayName) {
			return repositories.ErrRegistrantNameConflict
		}
	}
	f.nextID++
	id := f.nextID
	r.PersistentID = &id
	f.registrants = append(f.registrants, r)
	return nil
}

func (f *fakeRegistrantRepo) GetByID(ctx context.Context, id int) (*models.Registrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.registrants {
		if *r.PersistentID == id {
			return r, nil
		}
	}
	return nil, repositories.ErrRegistrantNotFound
}

func (f *fakeRegistrantRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.Registrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Registrant
	for _, r := range f.registrants {
		if r.TournamentID == tournamentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRegistrantRepo) ListBySession(ctx context.Context, tournamentID int, sessionID string) ([]*models.Registrant, error) {
	all, _ := f.ListByTournament(ctx, nil, tournamentID)
	var out []*models.Registrant
	for _, r := range all {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRegistrantRepo) ListNames(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]string, error) {
	all, _ := f.ListByTournament(ctx, exec, tournamentID)
	names := make([]string, len(all))
	for i, r := range all {
		names[i] = r.DisplayName
	}
	return names, nil
}

func (f *fakeRegistrantRepo) Delete(ctx context.Context, tournamentID, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.registrants {
		if r.TournamentID == tournamentID && *r.PersistentID == id {
			f.registrants = append(f.registrants[:i], f.registrants[i+1:]...)
			return nil
		}
	}
	return repositories.ErrRegistrantNotFound
}

type fakeAuthority struct {
	CreateBracketFn func(ctx context.Context, in authority.CreateBracketInput) (authority.BracketRef, error)
	ListMatchesFn   func(ctx context.Context, ref authority.BracketRef) ([]models.Match, error)
	SubmitResultFn  func(ctx context.Context, ref authority.BracketRef, matchID, score, winnerID string) error
	StandingsFn     func(ctx context.Context, ref authority.BracketRef) ([]models.RankedParticipant, error)
}

func (f *fakeAuthority) CreateBracket(ctx context.Context, in authority.CreateBracketInput) (authority.BracketRef, error) {
	return f.CreateBracketFn(ctx, in)
}

func (f *fakeAuthority) ListMatches(ctx context.Context, ref authority.BracketRef) ([]models.Match, error) {
	return f.ListMatchesFn(ctx, ref)
}

func (f *fakeAuthority) SubmitResult(ctx context.Context, ref authority.BracketRef, matchID, score, winnerID string) error {
	return f.SubmitResultFn(ctx, ref, matchID, score, winnerID)
}

func (f *fakeAuthority) Standings(ctx context.Context, ref authority.BracketRef) ([]models.RankedParticipant, error) {
	return f.StandingsFn(ctx, ref)
}

type fakeArchive struct {
	calls     int
	ArchiveFn func(ctx context.Context, t *models.Tournament, standings []models.RankedParticipant) (string, error)
}

func (f *fakeArchive) Archive(ctx context.Context, t *models.Tournament, standings []models.RankedParticipant) (string, error) {
	f.calls++
	if f.ArchiveFn != nil {
		return f.ArchiveFn(ctx, t, standings)
	}
	return "standings/archive.json", nil
}

type fakeStandingRepo struct {
	mu        sync.Mutex
	snapshots map[int][]models.RankedParticipant
	ReplaceFn func(ctx context.Context, tournamentID int, standings []models.RankedParticipant) error
}

func (f *fakeStandingRepo) ReplaceSnapshot(ctx context.Context, _ repositories.SQLExecutor, tournamentID int, standings []models.RankedParticipant) error {
	if f.ReplaceFn != nil {
		if err := f.ReplaceFn(ctx, tournamentID, standings); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snapshots == nil {
		f.snapshots = make(map[int][]models.RankedParticipant)
	}
	f.snapshots[tournamentID] = append([]models.RankedParticipant(nil), standings...)
	return nil
}

func (f *fakeStandingRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]models.RankedParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.RankedParticipant{}, f.snapshots[tournamentID]...), nil
}
