package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dosada05/tournament-officiating/models"
)

// StandingRepository keeps the final standings snapshot of a finished tournament, so
// results stay readable after the bracket authority forgets the bracket.
type StandingRepository interface {
	// ReplaceSnapshot swaps the whole snapshot; an empty list clears it.
	ReplaceSnapshot(ctx context.Context, exec SQLExecutor, tournamentID int, standings []models.RankedParticipant) error
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.RankedParticipant, error)
}

type postgresStandingRepository struct {
	db *sql.DB
}

func NewPostgresStandingRepository(db *sql.DB) StandingRepository {
	return &postgresStandingRepository{db: db}
}

func (r *postgresStandingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

// ReplaceSnapshot runs in the caller's transaction when exec is one; otherwise it opens
// its own so readers never see a half-written snapshot.
func (r *postgresStandingRepository) ReplaceSnapshot(ctx context.Context, exec SQLExecutor, tournamentID int, standings []models.RankedParticipant) (err error) {
	if exec == nil {
		tx, errTx := r.db.BeginTx(ctx, nil)
		if errTx != nil {
			return fmt.Errorf("failed to begin standings transaction: %w", errTx)
		}
		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback()
				panic(p)
			} else if err != nil {
				_ = tx.Rollback()
			} else {
				err = tx.Commit()
			}
		}()
		exec = tx
	}

	if _, err = exec.ExecContext(ctx, `DELETE FROM tournament_standings WHERE tournament_id = $1`, tournamentID); err != nil {
		return fmt.Errorf("failed to clear standings of tournament %d: %w", tournamentID, err)
	}

	query := `
		INSERT INTO tournament_standings (tournament_id, position, rank, name, wins, losses)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for i, s := range standings {
		if _, err = exec.ExecContext(ctx, query, tournamentID, i+1, s.Rank, s.Name, s.Wins, s.Losses); err != nil {
			if code, _ := pqErrorCode(err); code == pqForeignKeyViolation {
				return ErrTournamentNotFound
			}
			return fmt.Errorf("failed to store standing %q: %w", s.Name, err)
		}
	}
	return nil
}

func (r *postgresStandingRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]models.RankedParticipant, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT rank, name, wins, losses
		FROM tournament_standings
		WHERE tournament_id = $1
		ORDER BY position ASC`
	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	standings := make([]models.RankedParticipant, 0)
	for rows.Next() {
		var s models.RankedParticipant
		if err := rows.Scan(&s.Rank, &s.Name, &s.Wins, &s.Losses); err != nil {
			return nil, err
		}
		standings = append(standings, s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return standings, nil
}
