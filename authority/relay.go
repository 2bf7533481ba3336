package authority

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/tournament-officiating/models"
)

// RelayClient is the judge-device view of the authority. The officiating server holds the
// bracket credential and proxies every call; the ref argument is ignored because the
// server resolves it from the tournament.
type RelayClient struct {
	baseURL      string
	tournamentID int
	header       http.Header
	client       *http.Client
}

func NewRelayClient(baseURL string, tournamentID int, token string, client *http.Client) *RelayClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return &RelayClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		tournamentID: tournamentID,
		header:       header,
		client:       client,
	}
}

// Ref is the placeholder ref judges pass to coordinator calls.
func (r *RelayClient) Ref() BracketRef {
	return BracketRef(strconv.Itoa(r.tournamentID))
}

func (r *RelayClient) path(format string, args ...any) string {
	return fmt.Sprintf("%s/tournaments/%d", r.baseURL, r.tournamentID) + fmt.Sprintf(format, args...)
}

func (r *RelayClient) CreateBracket(ctx context.Context, in CreateBracketInput) (BracketRef, error) {
	return "", &Error{Op: "create bracket", Kind: KindRejected, Err: ErrNotSupported}
}

func (r *RelayClient) ListMatches(ctx context.Context, _ BracketRef) ([]models.Match, error) {
	var out struct {
		Matches []models.Match `json:"matches"`
	}
	if err := doJSON(ctx, r.client, "list matches", http.MethodGet, r.path("/matches"), r.header, nil, &out); err != nil {
		return nil, err
	}
	return out.Matches, nil
}

type SubmitResultInput struct {
	ScoreSummary string `json:"score_summary"`
	WinnerID     string `json:"winner_id"`
}

func (r *RelayClient) SubmitResult(ctx context.Context, _ BracketRef, matchID, scoreSummary, winnerID string) error {
	body := SubmitResultInput{ScoreSummary: scoreSummary, WinnerID: winnerID}
	return doJSON(ctx, r.client, "submit result", http.MethodPost, r.path("/matches/%s/result", url.PathEscape(matchID)), r.header, body, nil)
}

func (r *RelayClient) Standings(ctx context.Context, _ BracketRef) ([]models.RankedParticipant, error) {
	var out struct {
		Standings []models.RankedParticipant `json:"standings"`
	}
	if err := doJSON(ctx, r.client, "standings", http.MethodGet, r.path("/standings"), r.header, nil, &out); err != nil {
		return nil, err
	}
	return out.Standings, nil
}

func (r *RelayClient) Tournament(ctx context.Context) (*models.Tournament, error) {
	var out struct {
		Tournament models.Tournament `json:"tournament"`
	}
	if err := doJSON(ctx, r.client, "tournament", http.MethodGet, r.path(""), r.header, nil, &out); err != nil {
		return nil, err
	}
	return &out.Tournament, nil
}

// TournamentStatus reads the tournament phase from the server.
func (r *RelayClient) TournamentStatus(ctx context.Context) (models.TournamentStatus, error) {
	t, err := r.Tournament(ctx)
	if err != nil {
		return "", err
	}
	return t.Status, nil
}

// SetTournamentStatus asks the server to move the tournament to status.
func (r *RelayClient) SetTournamentStatus(ctx context.Context, status models.TournamentStatus) error {
	body := map[string]models.TournamentStatus{"status": status}
	return doJSON(ctx, r.client, "set tournament status", http.MethodPatch, r.path("/status"), r.header, body, nil)
}

type RelaySession struct {
	Token string `json:"token"`
	Judge struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"judge"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login exchanges the venue passcode for a session token.
func Login(ctx context.Context, client *http.Client, baseURL, name, passcode string) (*RelaySession, error) {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	body := map[string]string{"name": name, "passcode": passcode}
	var out struct {
		Session RelaySession `json:"session"`
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/auth/login"
	if err := doJSON(ctx, client, "login", http.MethodPost, endpoint, nil, body, &out); err != nil {
		return nil, err
	}
	return &out.Session, nil
}
