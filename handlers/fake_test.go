package handlers

import (
	"context"

	"github.com/Dosada05/tournament-officiating/authority"
	"github.com/Dosada05/tournament-officiating/models"
	"github.com/Dosada05/tournament-officiating/services"
	"github.com/Dosada05/tournament-officiating/validation"
)

type fakeRegistrationService struct {
	ValidateFn     func(ctx context.Context, tournamentID int, input services.SubmitRegistrantInput) (*validation.RegistrantResult, error)
	SubmitFn       func(ctx context.Context, tournamentID int, input services.SubmitRegistrantInput) (*models.Registrant, error)
	ReviewBatchFn  func(ctx context.Context, tournamentID int, lines []string) (*validation.DuplicateReport, error)
	BulkRegisterFn func(ctx context.Context, tournamentID int, lines []string) ([]*models.Registrant, error)
	ListFn         func(ctx context.Context, tournamentID int, sessionID string) ([]*models.Registrant, error)
	DeleteFn       func(ctx context.Context, tournamentID, registrantID int) error
}

func (f *fakeRegistrationService) Validate(ctx context.Context, tournamentID int, input services.SubmitRegistrantInput) (*validation.RegistrantResult, error) {
	return f.ValidateFn(ctx, tournamentID, input)
}

func (f *fakeRegistrationService) Submit(ctx context.Context, tournamentID int, input services.SubmitRegistrantInput) (*models.Registrant, error) {
	return f.SubmitFn(ctx, tournamentID, input)
}

func (f *fakeRegistrationService) ReviewBatch(ctx context.Context, tournamentID int, lines []string) (*validation.DuplicateReport, error) {
	return f.ReviewBatchFn(ctx, tournamentID, lines)
}

func (f *fakeRegistrationService) BulkRegister(ctx context.Context, tournamentID int, lines []string) ([]*models.Registrant, error) {
	return f.BulkRegisterFn(ctx, tournamentID, lines)
}

func (f *fakeRegistrationService) List(ctx context.Context, tournamentID int, sessionID string) ([]*models.Registrant, error) {
	return f.ListFn(ctx, tournamentID, sessionID)
}

func (f *fakeRegistrationService) Delete(ctx context.Context, tournamentID, registrantID int) error {
	return f.DeleteFn(ctx, tournamentID, registrantID)
}

type fakeTournamentService struct {
	CreateFn       func(ctx context.Context, input services.CreateTournamentInput) (*models.Tournament, error)
	GetFn          func(ctx context.Context, id int) (*models.Tournament, error)
	ListFn         func(ctx context.Context, status *models.TournamentStatus) ([]models.Tournament, error)
	OverviewFn     func(ctx context.Context, id int) (*services.TournamentOverview, error)
	StartFn        func(ctx context.Context, id int, input services.StartTournamentInput) (*models.Tournament, error)
	SetStatusFn    func(ctx context.Context, id int, status models.TournamentStatus) (*models.Tournament, error)
	MatchesFn      func(ctx context.Context, id int) ([]models.Match, error)
	SubmitResultFn func(ctx context.Context, id int, matchID string, input authority.SubmitResultInput) error
	StandingsFn    func(ctx context.Context, id int) ([]models.RankedParticipant, error)
}

func (f *fakeTournamentService) Create(ctx context.Context, input services.CreateTournamentInput) (*models.Tournament, error) {
	return f.CreateFn(ctx, input)
}

func (f *fakeTournamentService) Get(ctx context.Context, id int) (*models.Tournament, error) {
	return f.GetFn(ctx, id)
}

func (f *fakeTournamentService) List(ctx context.Context, status *models.TournamentStatus) ([]models.Tournament, error) {
	return f.ListFn(ctx, status)
}

func (f *fakeTournamentService) Overview(ctx context.Context, id int) (*services.TournamentOverview, error) {
	return f.OverviewFn(ctx, id)
}

func (f *fakeTournamentService) Start(ctx context.Context, id int, input services.StartTournamentInput) (*models.Tournament, error) {
	return f.StartFn(ctx, id, input)
}

func (f *fakeTournamentService) SetStatus(ctx context.Context, id int, status models.TournamentStatus) (*models.Tournament, error) {
	return f.SetStatusFn(ctx, id, status)
}

func (f *fakeTournamentService) Matches(ctx context.Context, id int) ([]models.Match, error) {
	return f.MatchesFn(ctx, id)
}

func (f *fakeTournamentService) SubmitResult(ctx context.Context, id int, matchID string, input authority.SubmitResultInput) error {
	return f.SubmitResultFn(ctx, id, matchID, input)
}

func (f *fakeTournamentService) Standings(ctx context.Context, id int) ([]models.RankedParticipant, error) {
	return f.StandingsFn(ctx, id)
}
