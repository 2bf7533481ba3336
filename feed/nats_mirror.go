package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// SubjectPrefix prefixes mirrored change subjects: feed.changes.<tournament id>.
const SubjectPrefix = "feed.changes"

func subject(tournamentID int) string {
	if tournamentID == 0 {
		return SubjectPrefix + ".*"
	}
	return fmt.Sprintf("%s.%d", SubjectPrefix, tournamentID)
}

// NATSMirror republishes changes on NATS so processes without database access, such as
// judge devices on the venue network, can follow them.
type NATSMirror struct {
	nc     *nats.Conn
	logger *slog.Logger
}

func NewNATSMirror(nc *nats.Conn, logger *slog.Logger) *NATSMirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSMirror{nc: nc, logger: logger}
}

func (m *NATSMirror) Publish(c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if c.Resync {
		// Resync concerns every tournament.
		return m.nc.Publish(SubjectPrefix+".resync", data)
	}
	return m.nc.Publish(subject(c.TournamentID), data)
}

// Subscribe delivers mirrored changes until ctx is done.
func (m *NATSMirror) Subscribe(ctx context.Context, tournamentID int, fn func(Change)) error {
	handler := func(msg *nats.Msg) {
		var c Change
		if err := json.Unmarshal(msg.Data, &c); err != nil {
			m.logger.Warn("malformed mirrored change", slog.String("subject", msg.Subject), slog.Any("error", err))
			return
		}
		if matches(tournamentID, c) {
			fn(c)
		}
	}

	sub, err := m.nc.Subscribe(subject(tournamentID), handler)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	resync, err := m.nc.Subscribe(SubjectPrefix+".resync", handler)
	if err != nil {
		return err
	}
	defer resync.Unsubscribe()

	<-ctx.Done()
	return ctx.Err()
}
