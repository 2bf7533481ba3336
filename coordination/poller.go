package coordination

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// Poller runs StateSync.Reconcile on a fixed interval. Runs never overlap.
type Poller struct {
	scheduler gocron.Scheduler
}

func NewPoller(sync *StateSync, interval time.Duration, logger *slog.Logger) (*Poller, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if _, err := sync.Reconcile(ctx); err != nil {
				logger.Warn("scheduled reconcile failed", slog.Any("error", err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}
	return &Poller{scheduler: sched}, nil
}

func (p *Poller) Start() { p.scheduler.Start() }

func (p *Poller) Stop() error { return p.scheduler.Shutdown() }
