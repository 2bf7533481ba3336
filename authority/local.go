package authority

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"sync"

	"github.com/Dosada05/tournament-officiating/brackets"
	"github.com/Dosada05/tournament-officiating/models"
)

// Local is an in-memory bracket authority for development and tests. It advances winners
// into downstream matches the way a hosted authority would.
type Local struct {
	mu       sync.Mutex
	brackets map[BracketRef]*localBracket
	seq      int
	// Shuffle reorders seeds when CreateBracketInput.Shuffle is set.
	Shuffle func([]string)
}

type localBracket struct {
	format  models.BracketFormat
	names   map[string]string
	matches []*localMatch
	byID    map[string]*localMatch
	rounds  int
}

type localMatch struct {
	match   models.Match
	source1 *string
	source2 *string
	loserID *string
}

func NewLocal() *Local {
	return &Local{
		brackets: make(map[BracketRef]*localBracket),
		Shuffle: func(s []string) {
			rand.Shuffle(len(s), func(i, j int) { s[i], s[j] = s[j], s[i] })
		},
	}
}

func (l *Local) CreateBracket(ctx context.Context, in CreateBracketInput) (BracketRef, error) {
	gen, err := brackets.NewGenerator(in.Format)
	if err != nil {
		return "", &Error{Op: "create bracket", Kind: KindRejected, Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]string, len(in.Participants))
	names := make(map[string]string, len(in.Participants))
	for i, name := range in.Participants {
		id := strconv.Itoa(l.seq*1000 + i + 1)
		ids[i] = id
		names[id] = name
	}
	if in.Shuffle && l.Shuffle != nil {
		l.Shuffle(ids)
	}

	generated, err := gen.GenerateBracket(ctx, brackets.GenerateBracketParams{Participants: ids})
	if err != nil {
		return "", &Error{Op: "create bracket", Kind: KindRejected, Err: err}
	}

	l.seq++
	ref := BracketRef(fmt.Sprintf("local_%d", l.seq))
	b := &localBracket{format: in.Format, names: names, byID: make(map[string]*localMatch)}

	side := func(id *string) *models.MatchParticipant {
		if id == nil {
			return nil
		}
		return &models.MatchParticipant{ID: *id, Name: names[*id]}
	}
	order := 0
	for _, bm := range generated {
		if bm.IsBye {
			continue
		}
		order++
		lm := &localMatch{
			match: models.Match{
				ID:           bm.UID,
				ParticipantA: side(bm.Participant1ID),
				ParticipantB: side(bm.Participant2ID),
				Round:        bm.Round,
				DisplayOrder: order,
			},
			source1: bm.SourceMatch1UID,
			source2: bm.SourceMatch2UID,
		}
		lm.refreshState()
		b.matches = append(b.matches, lm)
		b.byID[bm.UID] = lm
		if bm.Round > b.rounds {
			b.rounds = bm.Round
		}
	}
	l.brackets[ref] = b
	return ref, nil
}

func (m *localMatch) refreshState() {
	switch {
	case m.match.WinnerID != nil:
		m.match.State = models.MatchComplete
	case m.match.ParticipantA != nil && m.match.ParticipantB != nil:
		m.match.State = models.MatchOpen
	default:
		m.match.State = models.MatchPending
	}
}

func (l *Local) bracket(op string, ref BracketRef) (*localBracket, error) {
	b, ok := l.brackets[ref]
	if !ok {
		return nil, &Error{Op: op, Kind: KindNotFound, Err: fmt.Errorf("bracket %q not found", ref)}
	}
	return b, nil
}

func (l *Local) ListMatches(ctx context.Context, ref BracketRef) ([]models.Match, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := l.bracket("list matches", ref)
	if err != nil {
		return nil, err
	}
	out := make([]models.Match, 0, len(b.matches))
	for _, m := range b.matches {
		out = append(out, copyMatch(m.match))
	}
	return out, nil
}

func copyMatch(m models.Match) models.Match {
	if m.ParticipantA != nil {
		a := *m.ParticipantA
		m.ParticipantA = &a
	}
	if m.ParticipantB != nil {
		b := *m.ParticipantB
		m.ParticipantB = &b
	}
	if m.WinnerID != nil {
		w := *m.WinnerID
		m.WinnerID = &w
	}
	return m
}

var errDownstreamPlayed = errors.New("downstream match already has a result")

// SubmitResult records the winner and fills the downstream slot. A correction is accepted
// until the downstream match is complete.
func (l *Local) SubmitResult(ctx context.Context, ref BracketRef, matchID, scoreSummary, winnerID string) error {
	const op = "submit result"
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := l.bracket(op, ref)
	if err != nil {
		return err
	}
	m, ok := b.byID[matchID]
	if !ok {
		return &Error{Op: op, Kind: KindNotFound, Err: fmt.Errorf("match %q not found", matchID)}
	}
	if m.match.State == models.MatchPending {
		return &Error{Op: op, Kind: KindRejected, Err: fmt.Errorf("match %q is waiting for participants", matchID)}
	}
	if !m.match.HasParticipant(winnerID) {
		return &Error{Op: op, Kind: KindRejected, Err: fmt.Errorf("winner %q is not in match %q", winnerID, matchID)}
	}

	downstream := b.downstream(matchID)
	for _, d := range downstream {
		if d.match.State == models.MatchComplete {
			return &Error{Op: op, Kind: KindRejected, Err: errDownstreamPlayed}
		}
	}

	winner := winnerID
	loser := m.match.ParticipantA.ID
	if loser == winnerID {
		loser = m.match.ParticipantB.ID
	}
	m.match.WinnerID = &winner
	m.loserID = &loser
	m.match.ScoreSummary = scoreSummary
	m.refreshState()

	advanced := &models.MatchParticipant{ID: winner, Name: b.names[winner]}
	for _, d := range downstream {
		if d.source1 != nil && *d.source1 == matchID {
			p := *advanced
			d.match.ParticipantA = &p
		}
		if d.source2 != nil && *d.source2 == matchID {
			p := *advanced
			d.match.ParticipantB = &p
		}
		d.refreshState()
	}
	return nil
}

func (b *localBracket) downstream(matchID string) []*localMatch {
	var out []*localMatch
	for _, m := range b.matches {
		if (m.source1 != nil && *m.source1 == matchID) || (m.source2 != nil && *m.source2 == matchID) {
			out = append(out, m)
		}
	}
	return out
}

// Standings ranks knockout entrants by the round they were eliminated in and round robin
// entrants by wins. Entrants still alive in a knockout are unranked.
func (l *Local) Standings(ctx context.Context, ref BracketRef) ([]models.RankedParticipant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := l.bracket("standings", ref)
	if err != nil {
		return nil, err
	}

	wins := make(map[string]int)
	losses := make(map[string]int)
	eliminatedIn := make(map[string]int)
	var champion string
	for _, m := range b.matches {
		if m.match.State != models.MatchComplete {
			continue
		}
		wins[*m.match.WinnerID]++
		losses[*m.loserID]++
		eliminatedIn[*m.loserID] = m.match.Round
		if m.match.Round == b.rounds && len(b.downstream(m.match.ID)) == 0 {
			champion = *m.match.WinnerID
		}
	}

	out := make([]models.RankedParticipant, 0, len(b.names))
	for id, name := range b.names {
		rp := models.RankedParticipant{Name: name, Wins: wins[id], Losses: losses[id]}
		if b.format != models.FormatRoundRobin {
			switch {
			case id == champion:
				rp.Rank = 1
			case eliminatedIn[id] > 0:
				rp.Rank = 1<<uint(b.rounds-eliminatedIn[id]) + 1
			}
		}
		out = append(out, rp)
	}

	if b.format == models.FormatRoundRobin {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Wins != out[j].Wins {
				return out[i].Wins > out[j].Wins
			}
			return out[i].Name < out[j].Name
		})
		for i := range out {
			if i > 0 && out[i].Wins == out[i-1].Wins {
				out[i].Rank = out[i-1].Rank
				continue
			}
			out[i].Rank = i + 1
		}
		return out, nil
	}
	SortStandings(out)
	return out, nil
}
