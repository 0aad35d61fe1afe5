package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryItem struct {
	msg       Message
	visibleAt time.Time
	deadAt    time.Time
}

// MemoryQueue is an in-process queue. It is only shared by components of the
// same process (ingress and scheduled commit in `serve`).
type MemoryQueue struct {
	mu                sync.Mutex
	items             []*memoryItem
	dead              []*memoryItem
	visibilityTimeout time.Duration
	redelivery
	now func() time.Time
}

func NewMemoryQueue(visibilityTimeout time.Duration, opts ...Option) *MemoryQueue {
	if visibilityTimeout <= 0 {
		visibilityTimeout = DefaultVisibilityTimeout
	}
	return &MemoryQueue{
		items:             make([]*memoryItem, 0, 128),
		visibilityTimeout: visibilityTimeout,
		redelivery:        newRedelivery(opts),
		now:               func() time.Time { return time.Now().UTC() },
	}
}

func (q *MemoryQueue) Send(_ context.Context, body string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := uuid.NewString()
	q.items = append(q.items, &memoryItem{
		msg:       Message{ID: id, Body: body},
		visibleAt: q.now(),
	})
	return id, nil
}

func (q *MemoryQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	return pollReceive(ctx, max, wait, q.claim)
}

func (q *MemoryQueue) claim(_ context.Context, max int) ([]Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	q.moveDeadLetters(now)

	visible := make([]*memoryItem, 0, len(q.items))
	for _, it := range q.items {
		if !it.visibleAt.After(now) {
			visible = append(visible, it)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].visibleAt.Before(visible[j].visibleAt)
	})

	out := make([]Message, 0, max)
	for _, it := range visible {
		if len(out) == max {
			break
		}
		it.msg.Receipt = uuid.NewString()
		it.msg.ReceiveCount++
		it.visibleAt = now.Add(q.visibilityTimeout)
		out = append(out, it.msg)
	}
	return out, nil
}

// moveDeadLetters sets aside visible messages that used up their receives
// and drops dead letters older than the retention. Caller holds mu.
func (q *MemoryQueue) moveDeadLetters(now time.Time) {
	live := q.items[:0]
	for _, it := range q.items {
		if !it.visibleAt.After(now) && it.msg.ReceiveCount >= q.maxReceives {
			it.deadAt = now
			it.msg.Receipt = ""
			q.dead = append(q.dead, it)
			continue
		}
		live = append(live, it)
	}
	clear(q.items[len(live):])
	q.items = live

	kept := q.dead[:0]
	for _, it := range q.dead {
		if now.Sub(it.deadAt) < q.retention {
			kept = append(kept, it)
		}
	}
	clear(q.dead[len(kept):])
	q.dead = kept
}

func (q *MemoryQueue) Delete(_ context.Context, receipt string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.msg.Receipt == receipt && receipt != "" {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}
	return ErrUnknownReceipt
}

// Len counts live messages, visible or not. Dead letters are not included.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Bodies returns the live message bodies in send order.
func (q *MemoryQueue) Bodies() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return bodies(q.items)
}

// DeadLetters returns the bodies set aside after too many receives.
func (q *MemoryQueue) DeadLetters() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return bodies(q.dead)
}

func bodies(items []*memoryItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.msg.Body)
	}
	return out
}
