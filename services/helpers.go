package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/tournament-officiating/models"
	"github.com/Dosada05/tournament-officiating/repositories"
)

// TxRunner runs fn inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error
}

type sqlTxRunner struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewTxRunner(db *sql.DB, logger *slog.Logger) TxRunner {
	return &sqlTxRunner{db: db, logger: logger}
}

func (r *sqlTxRunner) WithTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) (txErr error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if txErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("rollback failed", slog.Any("error", rbErr), slog.Any("cause", txErr))
				txErr = fmt.Errorf("transaction processing error: %w (rollback also failed: %v)", txErr, rbErr)
			}
		} else if cErr := tx.Commit(); cErr != nil {
			txErr = fmt.Errorf("failed to commit transaction: %w", cErr)
		}
	}()
	return fn(tx)
}

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	return current != next && models.CanTransition(current, next)
}

func mapTournamentRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentStatusConflict):
		return ErrStatusChanged
	case errors.Is(err, repositories.ErrTournamentInvalidData):
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return err
}

func mapRegistrantRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrRegistrantNotFound):
		return ErrRegistrantNotFound
	case errors.Is(err, repositories.ErrRegistrantNameConflict):
		return ErrRegistrantNameConflict
	case errors.Is(err, repositories.ErrRegistrantConflict):
		return ErrRegistrantConflict
	case errors.Is(err, repositories.ErrRegistrantTournament):
		return ErrTournamentNotFound
	}
	return err
}
