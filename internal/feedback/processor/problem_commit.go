package processor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"page-feedback/internal/feedback/helper"
	"page-feedback/internal/feedback/parser"
	"page-feedback/internal/feedback/queue"
)

// ProblemCommitter moves problem reports from the problem queue into the
// problem and originalproblem collections.
type ProblemCommitter struct {
	Log    *zap.Logger
	Store  DocumentStore
	Queue  queue.Queue
	Parser *parser.ProblemParser

	MaxIterations int
}

func NewProblemCommitter(log *zap.Logger, store DocumentStore, q queue.Queue, maxIterations int) *ProblemCommitter {
	return &ProblemCommitter{
		Log:           log,
		Store:         store,
		Queue:         q,
		Parser:        parser.NewProblemParser(log),
		MaxIterations: maxIterations,
	}
}

func (c *ProblemCommitter) Name() string { return "problem-commit" }

// Run drains up to MaxIterations messages.
func (c *ProblemCommitter) Run(ctx context.Context) (BatchResult, error) {
	d := &Drainer{Log: c.Log, Queue: c.Queue, Name: c.Name(), MaxIterations: c.MaxIterations}
	res, err := d.Drain(ctx, c.handle)
	c.Log.Info(fmt.Sprintf("Time elapsed for %d entries", res.Received),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, err
}

func (c *ProblemCommitter) handle(ctx context.Context, msg queue.Message) (Outcome, error) {
	decoded := parser.DecodeProblemMessage(msg.Body)
	c.Log.Debug("Decoded problem message", zap.String("messageId", msg.ID), zap.String("body", decoded))

	p, err := c.Parser.Parse(decoded)
	if err != nil {
		return OutcomeRejected, fmt.Errorf("parse problem: %w", err)
	}

	if !parser.HasComment(p) {
		c.Log.Info("Problem has no comment, discarding",
			zap.String("messageId", msg.ID),
			zap.String("url", p.URL),
		)
		return OutcomeDiscarded, nil
	}

	id, err := c.Store.Insert(ctx, helper.ProblemCollection, p)
	if err != nil {
		return OutcomeFailed, err
	}
	origID, err := c.Store.Insert(ctx, helper.OriginalProblemCollection, p.Snapshot())
	if err != nil {
		return OutcomeFailed, err
	}

	c.Log.Info("Problem stored",
		zap.String("messageId", msg.ID),
		zap.String("problemId", id),
		zap.String("originalProblemId", origID),
		zap.String("dataOrigin", p.DataOrigin),
	)
	return OutcomeStored, nil
}
