package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-officiating/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound       = errors.New("tournament not found")
	ErrTournamentStatusConflict = errors.New("tournament status changed concurrently")
	ErrTournamentInvalidData    = errors.New("tournament violates a schema constraint")
)

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, status *models.TournamentStatus) ([]models.Tournament, error)
	// UpdateStatus moves the tournament from `from` to `to` and fails with
	// ErrTournamentStatusConflict when the stored status is no longer `from`.
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentStatus) error
	SetBracketRef(ctx context.Context, exec SQLExecutor, id int, ref string) error
	Delete(ctx context.Context, id int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `id, name, mode, format, status, arena_slots, ban_list, bracket_ref, created_at, updated_at`

func scanTournament(row interface{ Scan(...interface{}) error }) (*models.Tournament, error) {
	t := &models.Tournament{}
	var banList pq.StringArray
	err := row.Scan(&t.ID, &t.Name, &t.Mode, &t.Format, &t.Status, &t.ArenaSlots, &banList, &t.BracketRef, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.BanList = []string(banList)
	return t, nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (name, mode, format, status, arena_slots, ban_list)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	banList := t.BanList
	if banList == nil {
		banList = []string{}
	}
	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.Mode, t.Format, t.Status, t.ArenaSlots, pq.Array(banList),
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE id = $1`
	t, err := scanTournament(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, status *models.TournamentStatus) ([]models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament: %w", err)
		}
		tournaments = append(tournaments, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tournaments: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentStatus) error {
	query := `UPDATE tournaments SET status = $1, updated_at = now() WHERE id = $2 AND status = $3`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, to, id, from)
	if err != nil {
		return r.handleTournamentError(err)
	}
	if err := checkAffectedRows(result, ErrTournamentStatusConflict); err != nil {
		if errors.Is(err, ErrTournamentStatusConflict) {
			if _, getErr := r.GetByID(ctx, exec, id); errors.Is(getErr, ErrTournamentNotFound) {
				return ErrTournamentNotFound
			}
		}
		return err
	}
	return nil
}

func (r *postgresTournamentRepository) SetBracketRef(ctx context.Context, exec SQLExecutor, id int, ref string) error {
	query := `UPDATE tournaments SET bracket_ref = $1, updated_at = now() WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, ref, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if code, constraint := pqErrorCode(err); code == pqCheckViolation {
		return fmt.Errorf("%w: %s", ErrTournamentInvalidData, constraint)
	}
	return err
}
