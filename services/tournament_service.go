package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/tournament-officiating/authority"
	"github.com/Dosada05/tournament-officiating/metrics"
	"github.com/Dosada05/tournament-officiating/models"
	"github.com/Dosada05/tournament-officiating/repositories"
	"github.com/Dosada05/tournament-officiating/storage"
	"golang.org/x/sync/errgroup"
)

type TournamentService interface {
	Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error)
	Get(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, status *models.TournamentStatus) ([]models.Tournament, error)
	Overview(ctx context.Context, id int) (*TournamentOverview, error)
	// Start creates the bracket from every submitted registrant and moves OPEN -> STARTED.
	Start(ctx context.Context, id int, input StartTournamentInput) (*models.Tournament, error)
	SetStatus(ctx context.Context, id int, status models.TournamentStatus) (*models.Tournament, error)

	// Relay of the bracket authority; judge devices never hold the credential.
	Matches(ctx context.Context, id int) ([]models.Match, error)
	SubmitResult(ctx context.Context, id int, matchID string, input authority.SubmitResultInput) error
	Standings(ctx context.Context, id int) ([]models.RankedParticipant, error)
}

type CreateTournamentInput struct {
	Name       string               `json:"name"`
	Mode       models.Mode          `json:"mode"`
	Format     models.BracketFormat `json:"format"`
	ArenaSlots int                  `json:"arena_slots"`
	BanList    []string             `json:"ban_list"`
}

type StartTournamentInput struct {
	Shuffle bool `json:"shuffle"`
}

type TournamentOverview struct {
	Tournament  *models.Tournament `json:"tournament"`
	Registrants int                `json:"registrants"`
	Matches     []models.Match     `json:"matches,omitempty"`
	Completed   int                `json:"completed_matches"`
}

type tournamentService struct {
	tx             TxRunner
	tournamentRepo repositories.TournamentRepository
	registrantRepo repositories.RegistrantRepository
	standingRepo   repositories.StandingRepository
	authority      authority.BracketAuthority
	archive        storage.StandingsArchive
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// NewTournamentService wires the service; archive may be nil when no object storage is
// configured.
func NewTournamentService(
	tx TxRunner,
	tournamentRepo repositories.TournamentRepository,
	registrantRepo repositories.RegistrantRepository,
	standingRepo repositories.StandingRepository,
	auth authority.BracketAuthority,
	archive storage.StandingsArchive,
	m *metrics.Metrics,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tx:             tx,
		tournamentRepo: tournamentRepo,
		registrantRepo: registrantRepo,
		standingRepo:   standingRepo,
		authority:      auth,
		archive:        archive,
		metrics:        m,
		logger:         logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, input CreateTournamentInput) (*models.Tournament, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}
	if !input.Mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrTournamentInvalidMode, input.Mode)
	}
	if input.ArenaSlots < 0 {
		return nil, ErrTournamentInvalidArenaSlots
	}
	format := input.Format
	if format == "" {
		format = models.FormatSingleElimination
	}
	var banList []string
	for _, item := range input.BanList {
		if item = strings.TrimSpace(item); item != "" {
			banList = append(banList, item)
		}
	}

	t := &models.Tournament{
		Name:       name,
		Mode:       input.Mode,
		Format:     format,
		Status:     models.StatusOpen,
		ArenaSlots: input.ArenaSlots,
		BanList:    banList,
	}
	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	s.logger.Info("tournament created", slog.Int("tournament_id", t.ID), slog.String("mode", string(t.Mode)))
	return t, nil
}

func (s *tournamentService) Get(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	return t, nil
}

func (s *tournamentService) List(ctx context.Context, status *models.TournamentStatus) ([]models.Tournament, error) {
	if status != nil && !status.Valid() {
		return nil, ErrTournamentInvalidStatus
	}
	return s.tournamentRepo.List(ctx, status)
}

func (s *tournamentService) Overview(ctx context.Context, id int) (*TournamentOverview, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &TournamentOverview{Tournament: t}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		names, err := s.registrantRepo.ListNames(gCtx, nil, id)
		if err != nil {
			return fmt.Errorf("failed to count registrants: %w", err)
		}
		out.Registrants = len(names)
		return nil
	})
	if t.BracketRef != nil {
		g.Go(func() error {
			matches, err := s.authority.ListMatches(gCtx, authority.BracketRef(*t.BracketRef))
			s.metrics.AuthorityCall("list_matches", err)
			if err != nil {
				return err
			}
			out.Matches = matches
			for _, m := range matches {
				if m.State == models.MatchComplete {
					out.Completed++
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *tournamentService) Start(ctx context.Context, id int, input StartTournamentInput) (*models.Tournament, error) {
	var started *models.Tournament
	err := s.tx.WithTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.tournamentRepo.GetByID(ctx, exec, id)
		if err != nil {
			return mapTournamentRepoError(err)
		}
		if !isValidStatusTransition(t.Status, models.StatusStarted) {
			return fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, t.Status, models.StatusStarted)
		}

		registrants, err := s.registrantRepo.ListByTournament(ctx, exec, id)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(registrants))
		for _, r := range registrants {
			if r.IsSubmitted() {
				names = append(names, r.DisplayName)
			}
		}
		if len(names) < 2 {
			return ErrNotEnoughRegistrants
		}

		ref, err := s.authority.CreateBracket(ctx, authority.CreateBracketInput{
			Name:         t.Name,
			Participants: names,
			Format:       t.Format,
			Shuffle:      input.Shuffle,
		})
		s.metrics.AuthorityCall("create_bracket", err)
		if err != nil {
			return err
		}
		if err := s.tournamentRepo.SetBracketRef(ctx, exec, id, string(ref)); err != nil {
			s.logger.Error("bracket created but not recorded", slog.Int("tournament_id", id), slog.String("bracket_ref", string(ref)))
			return mapTournamentRepoError(err)
		}
		if err := s.tournamentRepo.UpdateStatus(ctx, exec, id, t.Status, models.StatusStarted); err != nil {
			return mapTournamentRepoError(err)
		}

		refStr := string(ref)
		t.BracketRef = &refStr
		t.Status = models.StatusStarted
		started = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("tournament started", slog.Int("tournament_id", id), slog.String("bracket_ref", *started.BracketRef))
	return started, nil
}

func (s *tournamentService) SetStatus(ctx context.Context, id int, status models.TournamentStatus) (*models.Tournament, error) {
	if !status.Valid() {
		return nil, ErrTournamentInvalidStatus
	}
	if status == models.StatusStarted {
		// Starting needs a bracket; only Start does that.
		return nil, fmt.Errorf("%w: use the start endpoint", ErrTournamentInvalidStatusTransition)
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == status {
		return t, nil
	}
	if !isValidStatusTransition(t.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, t.Status, status)
	}
	if err := s.tournamentRepo.UpdateStatus(ctx, nil, id, t.Status, status); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	prev := t.Status
	t.Status = status
	s.logger.Info("tournament status changed", slog.Int("tournament_id", id), slog.String("from", string(prev)), slog.String("to", string(status)))

	if status.IsTerminal() && !prev.IsTerminal() {
		s.snapshotStandings(ctx, t)
	}
	return t, nil
}

// snapshotStandings is best effort; the status change already committed.
func (s *tournamentService) snapshotStandings(ctx context.Context, t *models.Tournament) {
	if t.BracketRef == nil {
		return
	}
	standings, err := s.authority.Standings(ctx, authority.BracketRef(*t.BracketRef))
	s.metrics.AuthorityCall("standings", err)
	if err != nil {
		s.logger.Warn("standings not snapshotted", slog.Int("tournament_id", t.ID), slog.Any("error", err))
		return
	}
	if err := s.standingRepo.ReplaceSnapshot(ctx, nil, t.ID, standings); err != nil {
		s.logger.Warn("standings not stored", slog.Int("tournament_id", t.ID), slog.Any("error", err))
	}
	if s.archive == nil {
		return
	}
	location, err := s.archive.Archive(ctx, t, standings)
	if err != nil {
		s.logger.Warn("standings not archived", slog.Int("tournament_id", t.ID), slog.Any("error", err))
		return
	}
	s.logger.Info("standings archived", slog.Int("tournament_id", t.ID), slog.String("location", location))
}

func (s *tournamentService) bracketRef(ctx context.Context, id int) (*models.Tournament, authority.BracketRef, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if t.BracketRef == nil {
		return t, "", ErrBracketNotCreated
	}
	return t, authority.BracketRef(*t.BracketRef), nil
}

func (s *tournamentService) Matches(ctx context.Context, id int) ([]models.Match, error) {
	_, ref, err := s.bracketRef(ctx, id)
	if err != nil {
		return nil, err
	}
	matches, err := s.authority.ListMatches(ctx, ref)
	s.metrics.AuthorityCall("list_matches", err)
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (s *tournamentService) SubmitResult(ctx context.Context, id int, matchID string, input authority.SubmitResultInput) error {
	t, ref, err := s.bracketRef(ctx, id)
	if err != nil {
		return err
	}
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: tournament is %s", ErrForbiddenOperation, t.Status)
	}
	if strings.TrimSpace(input.WinnerID) == "" {
		return fmt.Errorf("%w: winner_id is required", ErrValidationFailed)
	}
	err = s.authority.SubmitResult(ctx, ref, matchID, input.ScoreSummary, input.WinnerID)
	s.metrics.AuthorityCall("submit_result", err)
	if err != nil {
		s.logger.Warn("relayed result submission failed", slog.Int("tournament_id", id), slog.String("match_id", matchID), slog.Any("error", err))
		return err
	}
	return nil
}

// Standings serves the stored snapshot once the tournament is finished, falling back to
// the authority while none exists.
func (s *tournamentService) Standings(ctx context.Context, id int) ([]models.RankedParticipant, error) {
	t, ref, err := s.bracketRef(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		stored, err := s.standingRepo.ListByTournament(ctx, nil, id)
		if err != nil {
			s.logger.Warn("stored standings unavailable", slog.Int("tournament_id", id), slog.Any("error", err))
		} else if len(stored) > 0 {
			return stored, nil
		}
	}
	standings, err := s.authority.Standings(ctx, ref)
	s.metrics.AuthorityCall("standings", err)
	return standings, err
}
