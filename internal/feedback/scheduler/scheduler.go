package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"page-feedback/internal/feedback/processor"
)

// Job runs one committer on a cron schedule.
type Job struct {
	Committer processor.Committer
	Schedule  cron.Schedule
}

// NewJob parses a standard five-field cron expression.
func NewJob(spec string, c processor.Committer) (Job, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return Job{}, fmt.Errorf("schedule %q for %s: %w", spec, c.Name(), err)
	}
	return Job{Committer: c, Schedule: sched}, nil
}

// Worker drives the commit processors. Each job has its own loop, so runs of
// the same committer never overlap inside one process.
type Worker struct {
	Log  *zap.Logger
	Jobs []Job

	// RunOnStart triggers every job once before the first scheduled tick.
	RunOnStart bool

	now func() time.Time
}

func NewWorker(log *zap.Logger, runOnStart bool, jobs ...Job) *Worker {
	return &Worker{
		Log:        log,
		Jobs:       jobs,
		RunOnStart: runOnStart,
		now:        time.Now,
	}
}

// Run blocks until ctx is done and every in-flight run has returned.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, j := range w.Jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			w.loop(ctx, j)
		}(j)
	}
	wg.Wait()
	w.Log.Info("Commit scheduler stopped")
}

func (w *Worker) loop(ctx context.Context, j Job) {
	if w.RunOnStart {
		w.runOnce(ctx, j)
	}
	for {
		now := w.now()
		next := j.Schedule.Next(now)
		sleep := next.Sub(now)
		if sleep < 0 {
			sleep = 0
		}
		w.Log.Debug("Next commit run scheduled",
			zap.String("processor", j.Committer.Name()),
			zap.Time("next", next),
		)

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			w.runOnce(ctx, j)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context, j Job) {
	res, err := j.Committer.Run(ctx)
	if err != nil {
		w.Log.Error("Commit run failed",
			zap.String("processor", j.Committer.Name()),
			zap.Int("received", res.Received),
			zap.Error(err),
		)
	}
}
