// Package scheduler runs the periodic maintenance jobs (notification expiry
// sweep, stale-roster cleanup).
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

type Job interface{ Run(ctx context.Context) }

type FuncJob func(ctx context.Context)

func (f FuncJob) Run(ctx context.Context) { f(ctx) }

// Scheduler wraps a cron runner plus simple interval loops.
type Scheduler struct {
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		c:      cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) Start() { s.c.Start() }

func (s *Scheduler) Stop() {
	s.cancel()
	ctx := s.c.Stop()
	<-ctx.Done()
}

// Cron registers a job against a cron expression.
func (s *Scheduler) Cron(expr string, job Job) (cron.EntryID, error) {
	return s.c.AddFunc(expr, func() { job.Run(s.ctx) })
}

// Every runs job on a fixed interval until Stop.
func (s *Scheduler) Every(d time.Duration, job Job) {
	go func() {
		t := time.NewTicker(d)
		defer t.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-t.C:
				job.Run(s.ctx)
			}
		}
	}()
}
