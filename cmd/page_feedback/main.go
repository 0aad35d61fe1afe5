package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"page-feedback/internal/feedback/helper"
	"page-feedback/internal/feedback/queue"
	"page-feedback/internal/middleware/logger"
	"page-feedback/pkg/mongodb"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "page_feedback",
		Short:        "Page feedback ingest: form and e-mail ingress, queue commit into MongoDB",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newCommitCmd(), newEnqueueCmd())
	return root
}

// app holds what every command shares: config, logger, the lazy store
// handle and the two queues.
type app struct {
	cfg    *mongodb.Config
	log    *zap.Logger
	handle *helper.Handle

	problemQueue queue.Queue
	topTaskQueue queue.Queue
}

func newApp(ctx context.Context) (*app, error) {
	// .env is optional; real env vars win over it.
	_ = godotenv.Load()

	cfg, err := mongodb.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		log:    log,
		handle: helper.NewHandle(cfg.Mongo, log),
	}
	if err := a.buildQueues(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) buildQueues(ctx context.Context) error {
	timeout := a.cfg.Queue.VisibilityTimeout
	opts := []queue.Option{
		queue.WithMaxReceives(a.cfg.Queue.MaxReceives),
		queue.WithDeadLetterRetention(a.cfg.Queue.DeadLetterRetention),
	}
	if a.cfg.Queue.Backend != "mongo" {
		a.problemQueue = queue.NewMemoryQueue(timeout, opts...)
		a.topTaskQueue = queue.NewMemoryQueue(timeout, opts...)
		a.log.Info("Using in-process queues",
			zap.Duration("visibilityTimeout", timeout),
			zap.Int("maxReceives", a.cfg.Queue.MaxReceives),
		)
		return nil
	}

	build := func(name string) (queue.Queue, error) {
		coll, err := a.handle.Collection(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("queue %s: %w", name, err)
		}
		q := queue.NewMongoQueue(coll, timeout, opts...)
		if err := q.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("queue %s: %w", name, err)
		}
		return q, nil
	}

	var err error
	if a.problemQueue, err = build(a.cfg.Queue.ProblemQueue); err != nil {
		return err
	}
	if a.topTaskQueue, err = build(a.cfg.Queue.TopTaskQueue); err != nil {
		return err
	}
	a.log.Info("Using MongoDB queues",
		zap.String("problemQueue", a.cfg.Queue.ProblemQueue),
		zap.String("topTaskQueue", a.cfg.Queue.TopTaskQueue),
		zap.Int("maxReceives", a.cfg.Queue.MaxReceives),
	)
	return nil
}

// warnIfProcessLocal flags commands that cannot see another process's queue.
func (a *app) warnIfProcessLocal(cmd string) {
	if a.cfg.Queue.Backend != "mongo" {
		a.log.Warn("In-process queue is empty outside serve; set QUEUE_BACKEND=mongo", zap.String("command", cmd))
	}
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.handle.Close(ctx); err != nil {
		a.log.Warn("Failed to close MongoDB client", zap.Error(err))
	}
	_ = a.log.Sync()
}
