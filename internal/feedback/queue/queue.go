// Package queue holds the message-queue contract the ingress and commit
// sides share, with an in-process and a MongoDB-backed implementation.
//
// Both give at-most-one-active-owner semantics per message through a
// visibility timeout: a received message is hidden until it is deleted with
// its receipt or the timeout lapses, after which it is delivered again with
// a new receipt. Visible messages are handed out in visibleAt order, so a
// message that was just put back queues behind ones never tried. A message
// received max-receives times is moved aside as a dead letter instead of
// being delivered again, and dead letters expire after the retention.
package queue

import (
	"context"
	"errors"
	"time"
)

var ErrUnknownReceipt = errors.New("queue: unknown or expired receipt")

// DefaultVisibilityTimeout applies when a queue is built with a zero timeout.
const DefaultVisibilityTimeout = 30 * time.Second

// pollInterval is how often a receive with a wait time re-checks an empty queue.
const pollInterval = 100 * time.Millisecond

const (
	// DefaultMaxReceives is how often a message is handed out before it is
	// moved aside as a dead letter.
	DefaultMaxReceives = 10
	// DefaultDeadLetterRetention is how long dead letters are kept for
	// inspection.
	DefaultDeadLetterRetention = 14 * 24 * time.Hour
)

// Option tunes redelivery for a queue.
type Option func(*redelivery)

type redelivery struct {
	maxReceives int
	retention   time.Duration
}

// WithMaxReceives caps deliveries per message. Values below 1 keep the default.
func WithMaxReceives(n int) Option {
	return func(r *redelivery) {
		if n > 0 {
			r.maxReceives = n
		}
	}
}

// WithDeadLetterRetention sets how long dead letters are kept.
func WithDeadLetterRetention(d time.Duration) Option {
	return func(r *redelivery) {
		if d > 0 {
			r.retention = d
		}
	}
}

func newRedelivery(opts []Option) redelivery {
	r := redelivery{maxReceives: DefaultMaxReceives, retention: DefaultDeadLetterRetention}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

type Message struct {
	ID           string
	Body         string
	Receipt      string // ack token, valid until the visibility timeout lapses
	ReceiveCount int
}

type Queue interface {
	// Receive returns up to max visible messages, waiting up to wait for at
	// least one. An empty slice means the queue had nothing to hand out.
	Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error)
	// Delete acknowledges a received message.
	Delete(ctx context.Context, receipt string) error
	// Send enqueues body and returns the new message id.
	Send(ctx context.Context, body string) (string, error)
}

// receiveFunc is one non-blocking receive attempt.
type receiveFunc func(ctx context.Context, max int) ([]Message, error)

// pollReceive repeats attempt until it yields messages, wait elapses or ctx
// is done.
func pollReceive(ctx context.Context, max int, wait time.Duration, attempt receiveFunc) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	deadline := time.Now().Add(wait)
	for {
		msgs, err := attempt(ctx, max)
		if err != nil || len(msgs) > 0 || wait <= 0 || !time.Now().Before(deadline) {
			return msgs, err
		}
		timer := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
