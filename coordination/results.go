package coordination

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-officiating/authority"
	"github.com/Dosada05/tournament-officiating/models"
)

const DefaultAuthorityTimeout = 10 * time.Second

type ResultOptions struct {
	// Timeout bounds each authority round trip.
	Timeout time.Duration
	Logger  *slog.Logger
	// MutationsAllowed gates submissions, normally StateSync.MutationsAllowed.
	MutationsAllowed func() bool
}

// ResultCoordinator submits match results. It never patches the match list locally: every
// submission, successful or not, is followed by a refetch.
type ResultCoordinator struct {
	locks     *LockCoordinator
	authority authority.BracketAuthority
	ref       authority.BracketRef
	cache     *MatchCache
	opts      ResultOptions
	logger    *slog.Logger
}

func NewResultCoordinator(locks *LockCoordinator, auth authority.BracketAuthority, ref authority.BracketRef, cache *MatchCache, opts ResultOptions) *ResultCoordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultAuthorityTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if cache == nil {
		cache = NewMatchCache()
	}
	return &ResultCoordinator{locks: locks, authority: auth, ref: ref, cache: cache, opts: opts, logger: opts.Logger}
}

func (r *ResultCoordinator) Cache() *MatchCache { return r.cache }

// Refresh refetches the match list into the cache.
func (r *ResultCoordinator) Refresh(ctx context.Context) ([]models.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	matches, err := r.authority.ListMatches(ctx, r.ref)
	if err != nil {
		return nil, asAuthorityError("list matches", err)
	}
	r.cache.Replace(matches)
	return matches, nil
}

// SubmitResult records a result at the authority. The busy flag is raised before the call
// and always lowered afterwards, on a fresh context so a cancelled caller still clears it.
// Failures are returned only to this judge as *authority.Error.
func (r *ResultCoordinator) SubmitResult(ctx context.Context, matchID, scoreSummary, winnerID string) error {
	if r.opts.MutationsAllowed != nil && !r.opts.MutationsAllowed() {
		return ErrTournamentFinished
	}
	if err := r.locks.CanSubmit(matchID); err != nil {
		return err
	}
	if m, ok := r.cache.Match(matchID); ok && !m.HasParticipant(winnerID) {
		return fmt.Errorf("%w: %s", ErrInvalidWinner, winnerID)
	}

	if err := r.locks.SetUpdating(ctx, matchID, true); err != nil {
		// Best effort; other devices self-correct on their next sync.
		r.logger.Warn("failed to broadcast updating flag", slog.String("match_id", matchID), slog.Any("error", err))
	}
	defer func() {
		clearCtx, cancel := context.WithTimeout(context.Background(), announceTimeout)
		defer cancel()
		if err := r.locks.SetUpdating(clearCtx, matchID, false); err != nil {
			r.logger.Warn("failed to clear updating flag", slog.String("match_id", matchID), slog.Any("error", err))
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	submitErr := r.authority.SubmitResult(callCtx, r.ref, matchID, scoreSummary, winnerID)
	cancel()

	// The call may have applied upstream even when it failed, so refetch either way.
	if _, err := r.Refresh(context.WithoutCancel(ctx)); err != nil {
		r.logger.Warn("refetch after submit failed", slog.String("match_id", matchID), slog.Any("error", err))
		r.cache.Invalidate()
	}

	if submitErr != nil {
		r.logger.Warn("result submission failed", slog.String("match_id", matchID), slog.Any("error", submitErr))
		return asAuthorityError("submit result", submitErr)
	}

	r.cache.ClearDraft(matchID)
	if err := r.locks.Release(ctx, matchID); err != nil {
		r.logger.Warn("release after submit failed", slog.String("match_id", matchID), slog.Any("error", err))
	}
	r.logger.Info("result submitted", slog.String("match_id", matchID), slog.String("winner_id", winnerID), slog.String("score", scoreSummary))
	return nil
}

func asAuthorityError(op string, err error) error {
	if _, ok := authority.AsError(err); ok {
		return err
	}
	return &authority.Error{Op: op, Kind: authority.KindTransient, Err: err}
}
