package processor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"page-feedback/internal/feedback/helper"
	"page-feedback/internal/feedback/parser"
	"page-feedback/internal/feedback/queue"
)

// TopTaskCommitter moves survey responses from the toptask queue into the
// toptasksurvey collection.
type TopTaskCommitter struct {
	Log    *zap.Logger
	Store  DocumentStore
	Queue  queue.Queue
	Parser *parser.TopTaskParser

	MaxIterations int
}

func NewTopTaskCommitter(log *zap.Logger, store DocumentStore, q queue.Queue, maxIterations int) *TopTaskCommitter {
	return &TopTaskCommitter{
		Log:           log,
		Store:         store,
		Queue:         q,
		Parser:        parser.NewTopTaskParser(log),
		MaxIterations: maxIterations,
	}
}

func (c *TopTaskCommitter) Name() string { return "toptask-commit" }

func (c *TopTaskCommitter) Run(ctx context.Context) (BatchResult, error) {
	d := &Drainer{Log: c.Log, Queue: c.Queue, Name: c.Name(), MaxIterations: c.MaxIterations}
	res, err := d.Drain(ctx, c.handle)
	c.Log.Info(fmt.Sprintf("Time elapsed for %d entries", res.Received),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, err
}

func (c *TopTaskCommitter) handle(ctx context.Context, msg queue.Message) (Outcome, error) {
	t, kind, err := c.Parser.ParseMessage(msg.Body)
	if err != nil {
		return OutcomeRejected, fmt.Errorf("parse toptask: %w", err)
	}

	id, err := c.Store.Insert(ctx, helper.TopTaskCollection, t)
	if err != nil {
		return OutcomeFailed, err
	}

	c.Log.Info("Top task survey stored",
		zap.String("messageId", msg.ID),
		zap.String("topTaskId", id),
		zap.Stringer("payload", kind),
	)
	return OutcomeStored, nil
}
