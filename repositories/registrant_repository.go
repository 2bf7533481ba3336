package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-officiating/models"
)

var (
	ErrRegistrantNotFound     = errors.New("registrant not found")
	ErrRegistrantNameConflict = errors.New("a registrant with this name already exists in the tournament")
	ErrRegistrantConflict     = errors.New("registrant was already persisted")
	ErrRegistrantTournament   = errors.New("registrant references a missing tournament")
)

const (
	constraintRegistrantName    = "registrants_tournament_name_key"
	constraintRegistrantLocalID = "registrants_local_id_key"
)

type RegistrantRepository interface {
	Create(ctx context.Context, exec SQLExecutor, r *models.Registrant) error
	GetByID(ctx context.Context, id int) (*models.Registrant, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Registrant, error)
	ListBySession(ctx context.Context, tournamentID int, sessionID string) ([]*models.Registrant, error)
	ListNames(ctx context.Context, exec SQLExecutor, tournamentID int) ([]string, error)
	Delete(ctx context.Context, tournamentID, id int) error
}

type postgresRegistrantRepository struct {
	db *sql.DB
}

func NewPostgresRegistrantRepository(db *sql.DB) RegistrantRepository {
	return &postgresRegistrantRepository{db: db}
}

func (r *postgresRegistrantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create persists a submitted registrant. Reserves are always written in the deck-list
// encoding.
func (r *postgresRegistrantRepository) Create(ctx context.Context, exec SQLExecutor, reg *models.Registrant) error {
	mainDeck, err := json.Marshal(reg.Main)
	if err != nil {
		return fmt.Errorf("failed to encode main deck: %w", err)
	}
	reserves, err := json.Marshal(models.StoredReserves{DeckList: reg.Reserves})
	if err != nil {
		return fmt.Errorf("failed to encode reserve decks: %w", err)
	}

	query := `
		INSERT INTO registrants (local_id, tournament_id, session_id, display_name, main_deck, reserve_decks, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	var id int
	err = r.getExecutor(exec).QueryRowContext(ctx, query,
		reg.LocalID, reg.TournamentID, reg.SessionID, reg.DisplayName, mainDeck, reserves, reg.Status,
	).Scan(&id, &reg.CreatedAt)
	if err != nil {
		return handleRegistrantError(err)
	}
	reg.PersistentID = &id
	return nil
}

const registrantSelect = `
	SELECT r.id, r.local_id, r.tournament_id, r.session_id, r.display_name, t.mode,
	       r.main_deck, r.reserve_decks, r.status, r.created_at
	FROM registrants r
	JOIN tournaments t ON t.id = r.tournament_id`

func scanRegistrant(row interface{ Scan(...interface{}) error }) (*models.Registrant, error) {
	reg := &models.Registrant{}
	var id int
	var mainDeck, reserves []byte
	err := row.Scan(&id, &reg.LocalID, &reg.TournamentID, &reg.SessionID, &reg.DisplayName, &reg.Mode,
		&mainDeck, &reserves, &reg.Status, &reg.CreatedAt)
	if err != nil {
		return nil, err
	}
	reg.PersistentID = &id
	if err := decodeDecks(reg, mainDeck, reserves); err != nil {
		return nil, fmt.Errorf("registrant %d: %w", id, err)
	}
	return reg, nil
}

// decodeDecks resolves both stored reserve encodings once, here, so nothing above the
// repository ever sees the legacy shape.
func decodeDecks(reg *models.Registrant, mainDeck, reserves []byte) error {
	main, err := models.DecodeConfiguration(mainDeck)
	if err != nil {
		return fmt.Errorf("main deck: %w", err)
	}
	reg.Main = main

	var stored models.StoredReserves
	if err := json.Unmarshal(reserves, &stored); err != nil {
		return err
	}
	reg.Reserves = stored.Configurations()
	return nil
}

func (r *postgresRegistrantRepository) GetByID(ctx context.Context, id int) (*models.Registrant, error) {
	reg, err := scanRegistrant(r.db.QueryRowContext(ctx, registrantSelect+` WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegistrantNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *postgresRegistrantRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Registrant, error) {
	return r.list(ctx, r.getExecutor(exec), registrantSelect+` WHERE r.tournament_id = $1 ORDER BY r.created_at, r.id`, tournamentID)
}

func (r *postgresRegistrantRepository) ListBySession(ctx context.Context, tournamentID int, sessionID string) ([]*models.Registrant, error) {
	return r.list(ctx, r.db, registrantSelect+` WHERE r.tournament_id = $1 AND r.session_id = $2 ORDER BY r.created_at, r.id`, tournamentID, sessionID)
}

func (r *postgresRegistrantRepository) list(ctx context.Context, exec SQLExecutor, query string, args ...interface{}) ([]*models.Registrant, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrants: %w", err)
	}
	defer rows.Close()

	registrants := make([]*models.Registrant, 0)
	for rows.Next() {
		reg, err := scanRegistrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registrant: %w", err)
		}
		registrants = append(registrants, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registrants: %w", err)
	}
	return registrants, nil
}

func (r *postgresRegistrantRepository) ListNames(ctx context.Context, exec SQLExecutor, tournamentID int) ([]string, error) {
	rows, err := r.getExecutor(exec).QueryContext(ctx, `SELECT display_name FROM registrants WHERE tournament_id = $1`, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrant names: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *postgresRegistrantRepository) Delete(ctx context.Context, tournamentID, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM registrants WHERE id = $1 AND tournament_id = $2`, id, tournamentID)
	if err != nil {
		return handleRegistrantError(err)
	}
	return checkAffectedRows(result, ErrRegistrantNotFound)
}

func handleRegistrantError(err error) error {
	code, constraint := pqErrorCode(err)
	switch {
	case code == pqUniqueViolation && constraint == constraintRegistrantName:
		return ErrRegistrantNameConflict
	case code == pqUniqueViolation && constraint == constraintRegistrantLocalID:
		return ErrRegistrantConflict
	case code == pqForeignKeyViolation:
		return ErrRegistrantTournament
	}
	return err
}
