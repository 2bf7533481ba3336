// Package authority talks to the external bracket authority that owns the match graph.
// Match coordination never retries here; only bulk participant writes back off.
package authority

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-officiating/models"
)

// BracketRef identifies a bracket at the authority.
type BracketRef string

type CreateBracketInput struct {
	Name         string
	Participants []string
	Format       models.BracketFormat
	Shuffle      bool
}

type BracketAuthority interface {
	CreateBracket(ctx context.Context, in CreateBracketInput) (BracketRef, error)
	ListMatches(ctx context.Context, ref BracketRef) ([]models.Match, error)
	SubmitResult(ctx context.Context, ref BracketRef, matchID, scoreSummary, winnerID string) error
	Standings(ctx context.Context, ref BracketRef) ([]models.RankedParticipant, error)
}

type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindTransient ErrorKind = "transient"
	KindRejected  ErrorKind = "rejected"
	KindNotFound  ErrorKind = "not_found"
)

var ErrNotSupported = errors.New("operation not supported by this authority")

// Error is every failure returned by a BracketAuthority.
type Error struct {
	Op         string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("bracket authority %s: %s (status %d): %v", e.Op, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("bracket authority %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) IsAuth() bool { return e.Kind == KindAuth }

// Retryable reports whether an operator retry can succeed. Credential problems count: the
// operator fixes the credential and tries again.
func (e *Error) Retryable() bool {
	return e.Kind == KindAuth || e.Kind == KindTransient
}

// UserMessage is the judge-facing text for the failure.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case KindAuth:
		return "bracket service rejected the credential, check your bracket credential"
	case KindTransient:
		return "bracket service is unavailable, try again"
	case KindNotFound:
		return "match or bracket no longer exists, refresh and try again"
	default:
		return "bracket service rejected the request: " + errString(e.Err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// AsError unwraps err into *Error.
func AsError(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindForStatus classifies an HTTP status returned by an authority.
func KindForStatus(code int) ErrorKind {
	switch {
	case code == 401 || code == 403:
		return KindAuth
	case code == 404:
		return KindNotFound
	case code == 408 || code == 429 || code >= 500:
		return KindTransient
	default:
		return KindRejected
	}
}

// transportError wraps a failure that happened before any response arrived: timeouts,
// refused connections, cancelled requests.
func transportError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindTransient, Err: err}
}
