package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Dosada05/tournament-officiating/authority"
	"github.com/Dosada05/tournament-officiating/coordination"
	"github.com/Dosada05/tournament-officiating/models"
	"github.com/go-andiamo/splitter"
)

var errQuit = errors.New("quit")

const helpText = `commands:
  list                              matches with their lock state
  claim <match>                     claim a match (asks for an arena when the venue has them)
  release <match>                   release a claimed match
  submit <match> <winner> "<score>" submit a result; winner is a participant id
  locks                             every claimed match
  status                            tournament phase
  standings                         final standings once the tournament is finished
  refresh                           refetch matches and reconcile the phase
  quit
`

// console is the judge's line-oriented officiating surface.
type console struct {
	in      *bufio.Scanner
	out     io.Writer
	locks   *coordination.LockCoordinator
	results *coordination.ResultCoordinator
	sync    *coordination.StateSync
	// fast skips the confirmation prompt before a submit.
	fast  bool
	split func(line string) ([]string, error)
}

func newConsole(in io.Reader, out io.Writer, locks *coordination.LockCoordinator, results *coordination.ResultCoordinator, sync *coordination.StateSync, fast bool) (*console, error) {
	// Quoted arguments keep scores like "3-1 (2 bursts)" together.
	sp, err := splitter.NewSplitter(' ', splitter.DoubleQuotes, splitter.LeftRightDoubleDoubleQuotes)
	if err != nil {
		return nil, err
	}
	return &console{
		in:      bufio.NewScanner(in),
		out:     out,
		locks:   locks,
		results: results,
		sync:    sync,
		fast:    fast,
		split: func(line string) ([]string, error) {
			return sp.Split(line, splitter.TrimSpaces, splitter.IgnoreEmpties)
		},
	}, nil
}

func (c *console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) readLine(prompt string) (string, bool) {
	c.printf("%s", prompt)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

// Run reads commands until quit, EOF or ctx is done.
func (c *console) Run(ctx context.Context) error {
	c.printf("%s", helpText)
	for ctx.Err() == nil {
		line, ok := c.readLine("> ")
		if !ok {
			return c.in.Err()
		}
		if line == "" {
			continue
		}
		err := c.exec(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			c.printf("error: %s\n", describe(err))
		}
	}
	return ctx.Err()
}

func (c *console) args(line string) ([]string, error) {
	parts, err := c.split(line)
	if err != nil {
		return nil, fmt.Errorf("cannot parse command: %w", err)
	}
	for i, p := range parts {
		parts[i] = strings.Trim(p, `"“”`)
	}
	return parts, nil
}

func (c *console) exec(ctx context.Context, line string) error {
	args, err := c.args(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}

	switch cmd, rest := strings.ToLower(args[0]), args[1:]; cmd {
	case "help", "?":
		c.printf("%s", helpText)
		return nil
	case "quit", "exit":
		return errQuit
	case "list":
		return c.list()
	case "refresh":
		if _, err := c.results.Refresh(ctx); err != nil {
			return err
		}
		if _, err := c.sync.Reconcile(ctx); err != nil {
			return err
		}
		return c.list()
	case "claim":
		if len(rest) != 1 {
			return errors.New("usage: claim <match>")
		}
		if err := c.locks.Claim(ctx, rest[0], c.pickArena); err != nil {
			return err
		}
		c.printf("claimed %s\n", rest[0])
		return nil
	case "release":
		if len(rest) != 1 {
			return errors.New("usage: release <match>")
		}
		if err := c.locks.Release(ctx, rest[0]); err != nil {
			return err
		}
		c.printf("released %s\n", rest[0])
		return nil
	case "submit":
		return c.submit(ctx, rest)
	case "locks":
		return c.showLocks()
	case "status":
		status, known := c.sync.Status()
		if !known {
			c.printf("status unknown, try refresh\n")
			return nil
		}
		c.printf("tournament is %s\n", status)
		return nil
	case "standings":
		return c.standings()
	default:
		return fmt.Errorf("unknown command %q, type help", cmd)
	}
}

// pickArena prompts for 1..slots; an empty answer or 0 means no arena, "cancel" aborts.
func (c *console) pickArena(ctx context.Context, slots int) (*int, error) {
	for {
		answer, ok := c.readLine(fmt.Sprintf("arena (1-%d, 0 for none, cancel): ", slots))
		if !ok || strings.EqualFold(answer, "cancel") {
			return nil, errors.New("no arena chosen")
		}
		if answer == "" || answer == "0" {
			return nil, nil
		}
		n, err := strconv.Atoi(answer)
		if err != nil || n < 1 || n > slots {
			c.printf("enter a number between 1 and %d\n", slots)
			continue
		}
		return &n, nil
	}
}

func (c *console) submit(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New(`usage: submit <match> <winner> "<score>"`)
	}
	matchID, winnerID := args[0], args[1]
	score := strings.Join(args[2:], " ")
	cache := c.results.Cache()
	cache.SetDraft(matchID, coordination.Draft{ScoreSummary: score, WinnerID: winnerID})

	if !c.fast {
		winner := winnerID
		if m, ok := cache.Match(matchID); ok {
			if name := m.ParticipantName(winnerID); name != "" {
				winner = name
			}
		}
		answer, ok := c.readLine(fmt.Sprintf("submit %s: winner %s, score %q? [y/N] ", matchID, winner, score))
		if !ok || !strings.EqualFold(answer, "y") {
			c.printf("not submitted, draft kept\n")
			return nil
		}
	}

	if err := c.results.SubmitResult(ctx, matchID, score, winnerID); err != nil {
		return err
	}
	c.printf("result for %s submitted\n", matchID)
	return nil
}

func (c *console) list() error {
	matches := c.results.Cache().Matches()
	if len(matches) == 0 {
		c.printf("no matches cached, try refresh\n")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MATCH\tROUND\tSTATE\tA\tB\tLOCK")
	for _, m := range matches {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\n", m.ID, m.Round, m.State, side(m.ParticipantA), side(m.ParticipantB), c.lockLabel(m.ID))
	}
	return tw.Flush()
}

func side(p *models.MatchParticipant) string {
	if p == nil {
		return "-"
	}
	return p.Name + " (" + p.ID + ")"
}

func (c *console) lockLabel(matchID string) string {
	v := c.locks.View(matchID)
	var names []string
	for _, h := range v.Holders {
		label := h.Judge.Name
		if h.Mine {
			label = "me"
		}
		if h.ArenaSlot != nil {
			label += fmt.Sprintf("@%d", *h.ArenaSlot)
		}
		names = append(names, label)
	}
	label := v.State().String()
	if len(names) > 0 {
		label = strings.Join(names, ", ")
	}
	if v.Conflict {
		label = "CONFLICT " + label
	}
	if v.Updating && v.UpdatingBy != nil {
		label += " (updating: " + v.UpdatingBy.Name + ")"
	}
	return label
}

func (c *console) showLocks() error {
	locks := c.locks.Locks()
	if len(locks) == 0 {
		c.printf("no claimed matches\n")
		return nil
	}
	for _, v := range locks {
		c.printf("%s: %s\n", v.MatchID, c.lockLabel(v.MatchID))
	}
	return nil
}

func (c *console) standings() error {
	standings, err := c.sync.Standings()
	if err != nil {
		return fmt.Errorf("standings unavailable: %w", err)
	}
	if len(standings) == 0 {
		c.printf("no standings yet\n")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tNAME\tW\tL")
	for _, s := range standings {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", s.Rank, s.Name, s.Wins, s.Losses)
	}
	return tw.Flush()
}

// describe prefers the operator-facing message of authority failures.
func describe(err error) string {
	if ae, ok := authority.AsError(err); ok {
		return ae.UserMessage()
	}
	return err.Error()
}
