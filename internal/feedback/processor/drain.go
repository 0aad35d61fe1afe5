package processor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"page-feedback/internal/feedback/queue"
)

// DefaultMaxIterations caps how many messages one invocation pulls.
const DefaultMaxIterations = 100

// DocumentStore is the slice of the document database the committers need.
type DocumentStore interface {
	Insert(ctx context.Context, collection string, doc any) (string, error)
}

// Committer is one commit processor invocation target.
type Committer interface {
	Name() string
	Run(ctx context.Context) (BatchResult, error)
}

// Outcome is what happened to a single message.
type Outcome int

const (
	// OutcomeStored: persisted, then deleted from the queue.
	OutcomeStored Outcome = iota
	// OutcomeDiscarded: failed the validation gate, deleted without storing.
	OutcomeDiscarded
	// OutcomeRejected: could not be parsed, left on the queue.
	OutcomeRejected
	// OutcomeFailed: store or internal failure, left on the queue for redelivery.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStored:
		return "stored"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeRejected:
		return "rejected"
	default:
		return "failed"
	}
}

// acknowledged reports whether the message is deleted from the queue.
func (o Outcome) acknowledged() bool {
	return o == OutcomeStored || o == OutcomeDiscarded
}

type BatchResult struct {
	Received  int           `json:"received"`
	Stored    int           `json:"stored"`
	Discarded int           `json:"discarded"`
	Rejected  int           `json:"rejected"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
}

func (r *BatchResult) record(o Outcome) {
	switch o {
	case OutcomeStored:
		r.Stored++
	case OutcomeDiscarded:
		r.Discarded++
	case OutcomeRejected:
		r.Rejected++
	default:
		r.Failed++
	}
}

// HandleFunc decodes, parses, validates and stores one message.
type HandleFunc func(ctx context.Context, msg queue.Message) (Outcome, error)

// Drainer is the loop both commit processors share: one message at a time,
// at most MaxIterations receives, stop at the first empty receive.
type Drainer struct {
	Log           *zap.Logger
	Queue         queue.Queue
	Name          string
	MaxIterations int
}

// Drain never fails on a single message; it returns an error only when the
// queue cannot be read or ctx ends.
func (d *Drainer) Drain(ctx context.Context, handle HandleFunc) (BatchResult, error) {
	start := time.Now()
	var res BatchResult

	limit := d.MaxIterations
	if limit <= 0 {
		limit = DefaultMaxIterations
	}

	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			res.Elapsed = time.Since(start)
			return res, err
		}
		msgs, err := d.Queue.Receive(ctx, 1, 0)
		if err != nil {
			d.Log.Error("Failed to receive from queue", zap.String("processor", d.Name), zap.Error(err))
			res.Elapsed = time.Since(start)
			return res, fmt.Errorf("%s: receive: %w", d.Name, err)
		}
		if len(msgs) == 0 {
			d.Log.Info("No more messages in queue", zap.String("processor", d.Name))
			break
		}
		for _, msg := range msgs {
			res.Received++
			res.record(d.process(ctx, msg, handle))
		}
	}

	res.Elapsed = time.Since(start)
	d.Log.Info("Commit run finished",
		zap.String("processor", d.Name),
		zap.Int("received", res.Received),
		zap.Int("stored", res.Stored),
		zap.Int("discarded", res.Discarded),
		zap.Int("rejected", res.Rejected),
		zap.Int("failed", res.Failed),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

func (d *Drainer) process(ctx context.Context, msg queue.Message, handle HandleFunc) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			d.Log.Error("Panic while processing message",
				zap.String("processor", d.Name),
				zap.String("messageId", msg.ID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			outcome = OutcomeFailed
		}
	}()

	outcome, err := handle(ctx, msg)
	if err != nil {
		log := d.Log.Warn
		if outcome == OutcomeFailed {
			log = d.Log.Error
		}
		log("Message not committed",
			zap.String("processor", d.Name),
			zap.String("messageId", msg.ID),
			zap.Int("receiveCount", msg.ReceiveCount),
			zap.Stringer("outcome", outcome),
			zap.Error(err),
		)
	}
	if !outcome.acknowledged() {
		return outcome
	}

	if err := d.Queue.Delete(ctx, msg.Receipt); err != nil {
		d.Log.Error("Failed to delete message from queue",
			zap.String("processor", d.Name),
			zap.String("messageId", msg.ID),
			zap.Error(err),
		)
		return outcome
	}
	d.Log.Info("The message has been dequeued",
		zap.String("processor", d.Name),
		zap.String("messageId", msg.ID),
		zap.Stringer("outcome", outcome),
	)
	return outcome
}
