package authority

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/tournament-officiating/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/time/rate"
)

const (
	DefaultChallongeBaseURL = "https://api.challonge.com/v1"
	bulkChunkSize           = 50
	bulkMaxRetries          = 4
)

type ChallongeOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	// BulkInterval paces participant bulk-add chunks.
	BulkInterval time.Duration
	Logger       *slog.Logger
}

// Challonge is a client for the Challonge v1 REST API. The bracket ref is the tournament
// url identifier.
type Challonge struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
}

func NewChallonge(opts ChallongeOptions) *Challonge {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultChallongeBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.BulkInterval <= 0 {
		opts.BulkInterval = 500 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Challonge{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		client:  opts.HTTPClient,
		limiter: rate.NewLimiter(rate.Every(opts.BulkInterval), 1),
		logger:  opts.Logger,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

func (c *Challonge) endpoint(path string) string {
	return c.baseURL + path + "?api_key=" + url.QueryEscape(c.apiKey)
}

func (c *Challonge) do(ctx context.Context, op, method, path string, body, out any) error {
	return doJSON(ctx, c.client, op, method, c.endpoint(path), nil, body, out)
}

func tournamentType(f models.BracketFormat) string {
	switch f {
	case models.FormatDoubleElimination:
		return "double elimination"
	case models.FormatRoundRobin:
		return "round robin"
	case models.FormatSwiss:
		return "swiss"
	default:
		return "single elimination"
	}
}

// bracketURL builds a Challonge url identifier: letters, digits and underscores only.
func bracketURL(name string) string {
	base := strings.ReplaceAll(slug.Make(name), "-", "_")
	if len(base) > 40 {
		base = base[:40]
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if base == "" {
		return "t_" + suffix
	}
	return base + "_" + suffix
}

type challongeTournament struct {
	Tournament struct {
		ID  int64  `json:"id"`
		URL string `json:"url"`
	} `json:"tournament"`
}

// CreateBracket creates the tournament, adds the participants, optionally shuffles seeds and
// starts it.
func (c *Challonge) CreateBracket(ctx context.Context, in CreateBracketInput) (BracketRef, error) {
	body := map[string]any{
		"tournament": map[string]any{
			"name":            in.Name,
			"url":             bracketURL(in.Name),
			"tournament_type": tournamentType(in.Format),
		},
	}
	var created challongeTournament
	if err := c.do(ctx, "create bracket", http.MethodPost, "/tournaments.json", body, &created); err != nil {
		return "", err
	}
	ref := BracketRef(created.Tournament.URL)
	c.logger.Info("challonge bracket created", slog.String("ref", string(ref)), slog.Int("participants", len(in.Participants)))

	if err := c.bulkAdd(ctx, ref, in.Participants); err != nil {
		return ref, err
	}
	if in.Shuffle {
		if err := c.do(ctx, "randomize seeds", http.MethodPost, "/tournaments/"+string(ref)+"/participants/randomize.json", nil, nil); err != nil {
			return ref, err
		}
	}
	if err := c.do(ctx, "start bracket", http.MethodPost, "/tournaments/"+string(ref)+"/start.json", nil, nil); err != nil {
		return ref, err
	}
	return ref, nil
}

// bulkAdd is the only retrying path: chunks are paced by the limiter and each chunk is
// retried with exponential backoff while the failure is transient.
func (c *Challonge) bulkAdd(ctx context.Context, ref BracketRef, names []string) error {
	path := "/tournaments/" + string(ref) + "/participants/bulk_add.json"
	for start := 0; start < len(names); start += bulkChunkSize {
		end := start + bulkChunkSize
		if end > len(names) {
			end = len(names)
		}
		chunk := make([]map[string]string, 0, end-start)
		for _, name := range names[start:end] {
			chunk = append(chunk, map[string]string{"name": name})
		}
		body := map[string]any{"participants": chunk}

		if err := c.limiter.Wait(ctx); err != nil {
			return transportError("add participants", err)
		}
		operation := func() error {
			err := c.do(ctx, "add participants", http.MethodPost, path, body, nil)
			if ae, ok := AsError(err); ok && ae.Kind != KindTransient {
				return backoff.Permanent(err)
			}
			return err
		}
		notify := func(err error, wait time.Duration) {
			c.logger.Warn("challonge bulk add failed, backing off", slog.String("ref", string(ref)), slog.Duration("retry_in", wait), slog.Any("error", err))
		}
		policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), bulkMaxRetries), ctx)
		if err := backoff.RetryNotify(operation, policy, notify); err != nil {
			return err
		}
	}
	return nil
}

type challongeMatch struct {
	Match struct {
		ID                 int64  `json:"id"`
		State              string `json:"state"`
		Player1ID          *int64 `json:"player1_id"`
		Player2ID          *int64 `json:"player2_id"`
		WinnerID           *int64 `json:"winner_id"`
		LoserID            *int64 `json:"loser_id"`
		Round              int    `json:"round"`
		SuggestedPlayOrder *int   `json:"suggested_play_order"`
		ScoresCsv          string `json:"scores_csv"`
	} `json:"match"`
}

type challongeParticipant struct {
	Participant struct {
		ID        int64  `json:"id"`
		Name      string `json:"name"`
		FinalRank *int   `json:"final_rank"`
	} `json:"participant"`
}

func (c *Challonge) participants(ctx context.Context, ref BracketRef) ([]challongeParticipant, error) {
	var out []challongeParticipant
	err := c.do(ctx, "list participants", http.MethodGet, "/tournaments/"+string(ref)+"/participants.json", nil, &out)
	return out, err
}

func (c *Challonge) rawMatches(ctx context.Context, ref BracketRef) ([]challongeMatch, error) {
	var out []challongeMatch
	err := c.do(ctx, "list matches", http.MethodGet, "/tournaments/"+string(ref)+"/matches.json", nil, &out)
	return out, err
}

func formatID(id *int64) *string {
	if id == nil {
		return nil
	}
	s := strconv.FormatInt(*id, 10)
	return &s
}

func (c *Challonge) ListMatches(ctx context.Context, ref BracketRef) ([]models.Match, error) {
	parts, err := c.participants(ctx, ref)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(parts))
	for _, p := range parts {
		names[p.Participant.ID] = p.Participant.Name
	}

	raw, err := c.rawMatches(ctx, ref)
	if err != nil {
		return nil, err
	}

	side := func(id *int64) *models.MatchParticipant {
		if id == nil {
			return nil
		}
		return &models.MatchParticipant{ID: strconv.FormatInt(*id, 10), Name: names[*id]}
	}

	matches := make([]models.Match, 0, len(raw))
	for i, rm := range raw {
		m := rm.Match
		order := i + 1
		if m.SuggestedPlayOrder != nil {
			order = *m.SuggestedPlayOrder
		}
		matches = append(matches, models.Match{
			ID:           strconv.FormatInt(m.ID, 10),
			State:        matchState(m.State),
			ParticipantA: side(m.Player1ID),
			ParticipantB: side(m.Player2ID),
			WinnerID:     formatID(m.WinnerID),
			Round:        m.Round,
			DisplayOrder: order,
			ScoreSummary: m.ScoresCsv,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].DisplayOrder < matches[j].DisplayOrder })
	return matches, nil
}

func matchState(s string) models.MatchState {
	switch s {
	case "open":
		return models.MatchOpen
	case "complete":
		return models.MatchComplete
	default:
		return models.MatchPending
	}
}

func (c *Challonge) SubmitResult(ctx context.Context, ref BracketRef, matchID, scoreSummary, winnerID string) error {
	winner, err := strconv.ParseInt(winnerID, 10, 64)
	if err != nil {
		return &Error{Op: "submit result", Kind: KindRejected, Err: fmt.Errorf("invalid winner id %q", winnerID)}
	}
	body := map[string]any{
		"match": map[string]any{
			"scores_csv": scoreSummary,
			"winner_id":  winner,
		},
	}
	return c.do(ctx, "submit result", http.MethodPut, "/tournaments/"+string(ref)+"/matches/"+url.PathEscape(matchID)+".json", body, nil)
}

// Standings uses final_rank when the tournament is finalized; wins and losses are counted
// from complete matches.
func (c *Challonge) Standings(ctx context.Context, ref BracketRef) ([]models.RankedParticipant, error) {
	parts, err := c.participants(ctx, ref)
	if err != nil {
		return nil, err
	}
	raw, err := c.rawMatches(ctx, ref)
	if err != nil {
		return nil, err
	}

	wins := make(map[int64]int)
	losses := make(map[int64]int)
	for _, rm := range raw {
		m := rm.Match
		if m.State != "complete" || m.WinnerID == nil {
			continue
		}
		wins[*m.WinnerID]++
		if m.LoserID != nil {
			losses[*m.LoserID]++
		}
	}

	out := make([]models.RankedParticipant, 0, len(parts))
	for _, p := range parts {
		rp := models.RankedParticipant{
			Name:   p.Participant.Name,
			Wins:   wins[p.Participant.ID],
			Losses: losses[p.Participant.ID],
		}
		if p.Participant.FinalRank != nil {
			rp.Rank = *p.Participant.FinalRank
		}
		out = append(out, rp)
	}
	SortStandings(out)
	return out, nil
}

// SortStandings orders by rank (unranked last), then wins, then name.
func SortStandings(s []models.RankedParticipant) {
	sort.SliceStable(s, func(i, j int) bool {
		ri, rj := s[i].Rank, s[j].Rank
		if (ri == 0) != (rj == 0) {
			return rj == 0
		}
		if ri != rj {
			return ri < rj
		}
		if s[i].Wins != s[j].Wins {
			return s[i].Wins > s[j].Wins
		}
		return s[i].Name < s[j].Name
	})
}
