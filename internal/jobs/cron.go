package jobs

import (
	"context"
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Cron runs recurring tasks such as the periodic library rescan.
type Cron struct {
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	log       zerolog.Logger
}

// NewCron creates a stopped cron scheduler.
func NewCron(log zerolog.Logger) (*Cron, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create cron scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cron{scheduler: s, ctx: ctx, cancel: cancel, log: log}, nil
}

// Add schedules task on a standard five-field cron expression. Runs never
// overlap; a run due while the previous one is still going is skipped.
func (c *Cron) Add(name, expr string, task func(ctx context.Context)) error {
	wrapped := func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error().Str("task", name).Interface("panic", r).Msg("cron task panicked")
			}
		}()
		task(ctx)
	}
	_, err := c.scheduler.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(wrapped, c.ctx),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithEventListeners(
			gocron.AfterJobRuns(func(jobID uuid.UUID, jobName string) {
				c.log.Debug().Str("task", jobName).Msg("cron task finished")
			}),
		),
	)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	c.log.Info().Str("task", name).Str("cron", expr).Msg("added cron task")
	return nil
}

// Len returns the number of scheduled tasks.
func (c *Cron) Len() int {
	return len(c.scheduler.Jobs())
}

// Start begins running scheduled tasks.
func (c *Cron) Start() {
	c.scheduler.Start()
}

// Stop cancels running tasks and stops the scheduler.
func (c *Cron) Stop() error {
	c.cancel()
	return c.scheduler.Shutdown()
}
