package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrAlreadyRunning  = errors.New("already running")
	ErrJobNotFound     = errors.New("job not found")
	ErrShuttingDown    = errors.New("coordinator is shutting down")
	ErrShutdownTimeout = errors.New("jobs did not stop before timeout")
)

// maxHistory bounds the number of finished jobs kept for status queries.
const maxHistory = 50

// RunFunc performs the work of a job. It must return promptly once ctx is
// cancelled; the returned value becomes the job result.
type RunFunc func(ctx context.Context, job *Job) (any, error)

// Coordinator allows at most one active job per kind.
type Coordinator struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger

	mu      sync.RWMutex
	active  map[Kind]*Job
	jobs    map[string]*Job
	closing bool
	wg      sync.WaitGroup
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator(log zerolog.Logger) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		ctx:    ctx,
		cancel: cancel,
		log:    log,
		active: make(map[Kind]*Job),
		jobs:   make(map[string]*Job),
	}
}

// Start launches run as a job of kind. A start while another job of the same
// kind is active is rejected with ErrAlreadyRunning, never queued.
func (c *Coordinator) Start(kind Kind, run RunFunc) (*Job, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closing {
		return nil, ErrShuttingDown
	}
	if running := c.active[kind]; running != nil {
		return running, fmt.Errorf("a %s is %w", kind.Label(), ErrAlreadyRunning)
	}

	ctx, cancel := context.WithCancel(c.ctx)
	job := newJob(uuid.New().String(), kind, cancel)
	c.active[kind] = job
	c.jobs[job.ID] = job
	c.prune()

	c.wg.Add(1)
	go c.run(ctx, job, run)
	return job, nil
}

func (c *Coordinator) run(ctx context.Context, job *Job, run RunFunc) {
	defer c.wg.Done()
	defer job.cancel()

	log := c.log.With().Str("job", job.ID).Str("kind", string(job.Kind)).Logger()
	log.Info().Msg("job started")
	job.setRunning()

	result, err := c.protect(ctx, job, run)

	c.mu.Lock()
	delete(c.active, job.Kind)
	c.mu.Unlock()

	switch {
	case ctx.Err() != nil:
		log.Info().Msg("job cancelled")
		job.finish(StatusCancelled, result, "")
	case err != nil:
		log.Error().Err(err).Msg("job failed")
		job.finish(StatusFailed, result, err.Error())
	default:
		log.Info().Dur("duration", time.Since(job.StartedAt)).Msg("job completed")
		job.finish(StatusCompleted, result, "")
	}
}

func (c *Coordinator) protect(ctx context.Context, job *Job, run RunFunc) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", job.Kind.Label(), r)
		}
	}()
	return run(ctx, job)
}

// prune drops the oldest finished jobs beyond maxHistory. Caller holds mu.
func (c *Coordinator) prune() {
	if len(c.jobs) <= maxHistory {
		return
	}
	finished := make([]*Job, 0, len(c.jobs))
	for _, j := range c.jobs {
		if j.GetStatus().Terminal() {
			finished = append(finished, j)
		}
	}
	sort.Slice(finished, func(a, b int) bool { return finished[a].StartedAt.Before(finished[b].StartedAt) })
	for _, j := range finished {
		if len(c.jobs) <= maxHistory {
			break
		}
		delete(c.jobs, j.ID)
	}
}

// Get returns a job by id, or nil.
func (c *Coordinator) Get(id string) *Job {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.jobs[id]
}

// Active returns the running job of kind, or nil.
func (c *Coordinator) Active(kind Kind) *Job {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active[kind]
}

// List returns all known jobs, newest first.
func (c *Coordinator) List() []*Job {
	c.mu.RLock()
	jobs := make([]*Job, 0, len(c.jobs))
	for _, j := range c.jobs {
		jobs = append(jobs, j)
	}
	c.mu.RUnlock()
	sort.Slice(jobs, func(a, b int) bool { return jobs[a].StartedAt.After(jobs[b].StartedAt) })
	return jobs
}

// Cancel stops a job by id.
func (c *Coordinator) Cancel(id string) error {
	job := c.Get(id)
	if job == nil {
		return ErrJobNotFound
	}
	job.Cancel()
	return nil
}

// Shutdown rejects new jobs, cancels the running ones and waits up to timeout
// for them to return.
func (c *Coordinator) Shutdown(timeout time.Duration) error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()
	c.cancel()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}
