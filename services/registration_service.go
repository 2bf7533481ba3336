package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/tournament-officiating/metrics"
	"github.com/Dosada05/tournament-officiating/models"
	"github.com/Dosada05/tournament-officiating/repositories"
	"github.com/Dosada05/tournament-officiating/rules"
	"github.com/Dosada05/tournament-officiating/validation"
	"github.com/google/uuid"
)

// BulkSessionID owns registrants created from an organizer's bulk list.
const BulkSessionID = "bulk"

type RegistrationService interface {
	// Validate runs the same checks as Submit without persisting anything.
	Validate(ctx context.Context, tournamentID int, input SubmitRegistrantInput) (*validation.RegistrantResult, error)
	Submit(ctx context.Context, tournamentID int, input SubmitRegistrantInput) (*models.Registrant, error)
	ReviewBatch(ctx context.Context, tournamentID int, lines []string) (*validation.DuplicateReport, error)
	BulkRegister(ctx context.Context, tournamentID int, lines []string) ([]*models.Registrant, error)
	List(ctx context.Context, tournamentID int, sessionID string) ([]*models.Registrant, error)
	Delete(ctx context.Context, tournamentID, registrantID int) error
}

type SubmitRegistrantInput struct {
	LocalID     string                 `json:"local_id"`
	SessionID   string                 `json:"session_id"`
	DisplayName string                 `json:"display_name"`
	Main        models.Configuration   `json:"main"`
	Reserves    []models.Configuration `json:"reserves"`
}

type BulkRegisterInput struct {
	Lines []string `json:"lines"`
}

type registrationService struct {
	tx             TxRunner
	tournamentRepo repositories.TournamentRepository
	registrantRepo repositories.RegistrantRepository
	catalog        *rules.Catalog
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

func NewRegistrationService(
	tx TxRunner,
	tournamentRepo repositories.TournamentRepository,
	registrantRepo repositories.RegistrantRepository,
	catalog *rules.Catalog,
	m *metrics.Metrics,
	logger *slog.Logger,
) RegistrationService {
	if catalog == nil {
		catalog = rules.DefaultCatalog()
	}
	return &registrationService{
		tx:             tx,
		tournamentRepo: tournamentRepo,
		registrantRepo: registrantRepo,
		catalog:        catalog,
		metrics:        m,
		logger:         logger,
	}
}

func (s *registrationService) openTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, exec, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if t.Status != models.StatusOpen {
		return nil, ErrRegistrationNotOpen
	}
	return t, nil
}

// buildRegistrant replays the input through the registrant's own mutators so attachment
// and reserve limits apply exactly as on the entrant's device.
func buildRegistrant(t *models.Tournament, input SubmitRegistrantInput) (*models.Registrant, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrValidationFailed)
	}
	reg := models.NewRegistrant(t.ID, sessionID, t.Mode)
	if input.LocalID != "" {
		if _, err := uuid.Parse(input.LocalID); err != nil {
			return nil, fmt.Errorf("%w: local_id must be a uuid", ErrValidationFailed)
		}
		reg.LocalID = input.LocalID
	}
	reg.DisplayName = strings.TrimSpace(input.DisplayName)

	sections := append([]models.Configuration{input.Main}, input.Reserves...)
	for section, cfg := range sections {
		if section > models.MainSection {
			if _, err := reg.AddReserve(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
			}
		}
		for slot, sl := range cfg {
			if err := reg.SetItem(section, slot, sl.Item); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
			}
			if err := reg.AssignAttachment(section, slot, sl.Attachment); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
			}
		}
	}
	return reg, nil
}

func (s *registrationService) validate(t *models.Tournament, reg *models.Registrant) (validation.RegistrantResult, error) {
	return validation.NewValidator(s.catalog, t.BanList).ValidateRegistrant(reg)
}

func (s *registrationService) Validate(ctx context.Context, tournamentID int, input SubmitRegistrantInput) (*validation.RegistrantResult, error) {
	t, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	reg, err := buildRegistrant(t, input)
	if err != nil {
		return nil, err
	}
	res, err := s.validate(t, reg)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *registrationService) Submit(ctx context.Context, tournamentID int, input SubmitRegistrantInput) (*models.Registrant, error) {
	t, err := s.openTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	reg, err := buildRegistrant(t, input)
	if err != nil {
		s.metrics.Registration("invalid")
		return nil, err
	}
	if reg.DisplayName == "" {
		s.metrics.Registration("invalid")
		return nil, ErrDisplayNameRequired
	}

	// The device already validated; the server validates again before persisting.
	res, err := s.validate(t, reg)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		s.metrics.Registration("rejected")
		s.logger.Info("registrant rejected",
			slog.Int("tournament_id", tournamentID),
			slog.String("section", res.FailingSection),
			slog.String("reason", string(res.Reason)))
		return nil, err
	}

	if err := reg.Submit(); err != nil {
		return nil, err
	}
	if err := s.registrantRepo.Create(ctx, nil, reg); err != nil {
		err = mapRegistrantRepoError(err)
		if errors.Is(err, ErrRegistrantNameConflict) || errors.Is(err, ErrRegistrantConflict) {
			s.metrics.Registration("conflict")
		}
		return nil, err
	}
	s.metrics.Registration("accepted")
	s.logger.Info("registrant submitted",
		slog.Int("tournament_id", tournamentID),
		slog.Int("registrant_id", *reg.PersistentID),
		slog.Int("reserves", len(reg.Reserves)))
	return reg, nil
}

func (s *registrationService) ReviewBatch(ctx context.Context, tournamentID int, lines []string) (*validation.DuplicateReport, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	existing, err := s.registrantRepo.ListNames(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	report := validation.DetectDuplicates(lines, existing)
	return &report, nil
}

// BulkRegister registers every non-blank line or nothing. Bulk entrants are recorded
// without decks.
func (s *registrationService) BulkRegister(ctx context.Context, tournamentID int, lines []string) ([]*models.Registrant, error) {
	var created []*models.Registrant
	err := s.tx.WithTx(ctx, func(exec repositories.SQLExecutor) error {
		t, err := s.openTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		existing, err := s.registrantRepo.ListNames(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		if err := validation.DetectDuplicates(lines, existing).Err(); err != nil {
			return err
		}

		created = created[:0]
		for _, line := range lines {
			name := strings.TrimSpace(line)
			if name == "" {
				continue
			}
			reg := models.NewRegistrant(t.ID, BulkSessionID, t.Mode)
			reg.DisplayName = name
			if err := reg.Submit(); err != nil {
				return err
			}
			if err := s.registrantRepo.Create(ctx, exec, reg); err != nil {
				return mapRegistrantRepoError(err)
			}
			created = append(created, reg)
		}
		if len(created) == 0 {
			return ErrEmptyBatch
		}
		return nil
	})
	if err != nil {
		var rejected *validation.BatchRejectedError
		if errors.As(err, &rejected) || errors.Is(err, ErrRegistrantNameConflict) {
			s.metrics.BulkBatch("rejected")
		}
		return nil, err
	}
	s.metrics.BulkBatch("accepted")
	s.logger.Info("bulk registration committed", slog.Int("tournament_id", tournamentID), slog.Int("count", len(created)))
	return created, nil
}

func (s *registrationService) List(ctx context.Context, tournamentID int, sessionID string) ([]*models.Registrant, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if sessionID != "" {
		return s.registrantRepo.ListBySession(ctx, tournamentID, sessionID)
	}
	return s.registrantRepo.ListByTournament(ctx, nil, tournamentID)
}

// Delete is the only way a submitted registrant changes after submission.
func (s *registrationService) Delete(ctx context.Context, tournamentID, registrantID int) error {
	if err := s.registrantRepo.Delete(ctx, tournamentID, registrantID); err != nil {
		return mapRegistrantRepoError(err)
	}
	return nil
}
