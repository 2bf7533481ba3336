package coordination

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Dosada05/tournament-officiating/authority"
	"github.com/Dosada05/tournament-officiating/feed"
	"github.com/Dosada05/tournament-officiating/models"
)

type StatusSource interface {
	TournamentStatus(ctx context.Context) (models.TournamentStatus, error)
}

type StatusWriter interface {
	SetTournamentStatus(ctx context.Context, status models.TournamentStatus) error
}

// StatusChange is emitted when the observed phase differs from the last known one. From is
// empty on the first observation.
type StatusChange struct {
	From models.TournamentStatus
	To   models.TournamentStatus
	At   time.Time
}

type StateSyncOptions struct {
	// Writer enables the STARTED -> COMPLETED mutation when every match is complete.
	Writer  StatusWriter
	Timeout time.Duration
	Logger  *slog.Logger
}

// StateSync reconciles the tournament phase. It never lets the phase regress, performs at
// most one mutation (marking a finished bracket COMPLETED) and fetches standings once per
// entry into a terminal phase, without retrying.
type StateSync struct {
	source    StatusSource
	authority authority.BracketAuthority
	ref       authority.BracketRef
	opts      StateSyncOptions
	logger    *slog.Logger

	reconcileMu sync.Mutex

	mu           sync.Mutex
	status       models.TournamentStatus
	known        bool
	standings    []models.RankedParticipant
	standingsErr error
	triggered    bool

	changes chan StatusChange
}

func NewStateSync(source StatusSource, auth authority.BracketAuthority, ref authority.BracketRef, opts StateSyncOptions) *StateSync {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultAuthorityTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &StateSync{
		source:    source,
		authority: auth,
		ref:       ref,
		opts:      opts,
		logger:    opts.Logger,
		changes:   make(chan StatusChange, 8),
	}
}

func (s *StateSync) Changes() <-chan StatusChange { return s.changes }

// Status returns the last reconciled phase.
func (s *StateSync) Status() (models.TournamentStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.known
}

// MutationsAllowed is false once the phase is terminal.
func (s *StateSync) MutationsAllowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.status.IsTerminal()
}

// Standings returns the result of the last standings fetch.
func (s *StateSync) Standings() ([]models.RankedParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.standings, s.standingsErr
}

// Reconcile reads the current phase and raises a StatusChange when it moved.
func (s *StateSync) Reconcile(ctx context.Context) (models.TournamentStatus, error) {
	s.reconcileMu.Lock()
	defer s.reconcileMu.Unlock()

	s.mu.Lock()
	prev, known := s.status, s.known
	s.mu.Unlock()

	readCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	current, err := s.source.TournamentStatus(readCtx)
	cancel()
	if err != nil {
		return prev, err
	}
	if !current.Valid() {
		return prev, errors.New("source reported an invalid tournament status: " + string(current))
	}

	// Observed phases may skip steps the device missed; only backward moves are ignored.
	if known && !models.IsForward(prev, current) {
		s.logger.Warn("ignoring tournament status regression", slog.String("known", string(prev)), slog.String("observed", string(current)))
		current = prev
	}

	if current == models.StatusStarted && s.opts.Writer != nil {
		if s.bracketFinished(ctx) {
			writeCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
			err := s.opts.Writer.SetTournamentStatus(writeCtx, models.StatusCompleted)
			cancel()
			if err != nil {
				s.logger.Warn("failed to mark tournament completed", slog.Any("error", err))
			} else {
				current = models.StatusCompleted
			}
		}
	}

	if known && current == prev {
		return current, nil
	}

	s.mu.Lock()
	s.status = current
	s.known = true
	s.mu.Unlock()

	change := StatusChange{From: prev, To: current, At: time.Now().UTC()}
	if !known {
		change.From = ""
	}
	s.logger.Info("tournament status changed", slog.String("from", string(change.From)), slog.String("to", string(current)))
	select {
	case s.changes <- change:
	default:
		s.logger.Warn("status change dropped, consumer is not reading", slog.String("to", string(current)))
	}

	if current.IsTerminal() && (!known || !prev.IsTerminal()) {
		s.fetchStandings(ctx)
	}
	return current, nil
}

func (s *StateSync) bracketFinished(ctx context.Context) bool {
	listCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	matches, err := s.authority.ListMatches(listCtx, s.ref)
	if err != nil {
		s.logger.Warn("failed to read bracket during reconcile", slog.Any("error", err))
		return false
	}
	if len(matches) == 0 {
		return false
	}
	for _, m := range matches {
		if m.State != models.MatchComplete {
			return false
		}
	}
	return true
}

// fetchStandings runs once per entry into a terminal phase. A failure is kept for the
// operator; RefreshStandings is the manual retry.
func (s *StateSync) fetchStandings(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	standings, err := s.authority.Standings(fetchCtx, s.ref)
	if err != nil {
		s.logger.Warn("final standings fetch failed, refresh manually", slog.Any("error", err))
	}
	s.mu.Lock()
	s.standings, s.standingsErr = standings, err
	s.mu.Unlock()
}

// RefreshStandings fetches standings on operator request.
func (s *StateSync) RefreshStandings(ctx context.Context) ([]models.RankedParticipant, error) {
	s.fetchStandings(ctx)
	return s.Standings()
}

// Trigger requests an asynchronous reconcile. Triggers that arrive while one is pending
// coalesce.
func (s *StateSync) Trigger() {
	s.mu.Lock()
	if s.triggered {
		s.mu.Unlock()
		return
	}
	s.triggered = true
	s.mu.Unlock()

	go func() {
		s.mu.Lock()
		s.triggered = false
		s.mu.Unlock()
		if _, err := s.Reconcile(context.Background()); err != nil {
			s.logger.Warn("triggered reconcile failed", slog.Any("error", err))
		}
	}()
}

// Follow reconciles on every change the feed delivers for the tournament until ctx is done.
func (s *StateSync) Follow(ctx context.Context, f feed.ChangeFeed, tournamentID int) error {
	return f.Subscribe(ctx, tournamentID, func(c feed.Change) {
		if c.Table == feed.TableTournaments || c.Resync {
			s.Trigger()
		}
	})
}
