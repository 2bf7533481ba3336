package feed

import (
	"context"
	"log/slog"
)

type Publisher interface {
	Publish(c Change) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(c Change) error

func (f PublisherFunc) Publish(c Change) error { return f(c) }

// Relay forwards every change from src to each publisher until ctx is done. A failing
// publisher is logged and does not stop the others.
func Relay(ctx context.Context, src ChangeFeed, logger *slog.Logger, pubs ...Publisher) error {
	if logger == nil {
		logger = slog.Default()
	}
	return src.Subscribe(ctx, 0, func(c Change) {
		for _, p := range pubs {
			if err := p.Publish(c); err != nil {
				logger.Warn("failed to relay change",
					slog.Int("tournament_id", c.TournamentID),
					slog.String("table", c.Table),
					slog.Any("error", err))
			}
		}
	})
}
