// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/andromeda0004/My-Tuition/core"
)

// Job is a unit of background work; it gets at most Timeout to complete.
type Job struct {
	Name     string
	Schedule string // standard 5 fields cron spec, or descriptors like @daily
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	cron   *cron.Cron
	logger core.Logger
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(fmt.Sprintf("cron: %s %v", msg, keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s: %v %v", msg, err, keysAndValues), err)
}

func New(logger core.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// Add registers job. Jobs with an empty Schedule are ignored.
func (s *Scheduler) Add(job Job) error {
	if job.Schedule == "" {
		s.logger.Info(fmt.Sprintf("job %q disabled: no schedule", job.Name))
		return nil
	}
	if job.Timeout == 0 {
		job.Timeout = time.Minute
	}

	_, err := s.cron.AddFunc(job.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), job.Timeout)
		defer cancel()

		start := time.Now()
		if err := job.Run(ctx); err != nil {
			s.logger.Error(fmt.Sprintf("job %q failed: %v", job.Name, err), err)
			return
		}
		s.logger.Info(fmt.Sprintf("job %q done in %s", job.Name, time.Since(start)))
	})
	if err != nil {
		return errors.Wrapf(err, "scheduling job %q (%s)", job.Name, job.Schedule)
	}
	s.logger.Info(fmt.Sprintf("job %q scheduled: %s", job.Name, job.Schedule))
	return nil
}

// Len returns the number of registered jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling new runs and waits for the running ones, at most until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
