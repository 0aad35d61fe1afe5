package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock lets tests move time past the visibility timeout.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedQueue(timeout time.Duration) (*MemoryQueue, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	q := NewMemoryQueue(timeout)
	q.now = clock.now
	return q, clock
}

func TestMemoryQueueSendReceiveDelete(t *testing.T) {
	q, _ := newClockedQueue(time.Minute)
	ctx := context.Background()

	id1, err := q.Send(ctx, "first")
	require.NoError(t, err)
	_, err = q.Send(ctx, "second")
	require.NoError(t, err)

	msgs, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id1, msgs[0].ID)
	assert.Equal(t, "first", msgs[0].Body)
	assert.Equal(t, 1, msgs[0].ReceiveCount)
	assert.NotEmpty(t, msgs[0].Receipt)

	require.NoError(t, q.Delete(ctx, msgs[0].Receipt))
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, []string{"second"}, q.Bodies())
}

func TestMemoryQueueHidesReceivedUntilTimeout(t *testing.T) {
	q, clock := newClockedQueue(30 * time.Second)
	ctx := context.Background()
	_, _ = q.Send(ctx, "only")

	first, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	hidden, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, hidden, "in-flight message must not be handed to a second receiver")

	clock.advance(31 * time.Second)
	again, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, 2, again[0].ReceiveCount)
	assert.NotEqual(t, first[0].Receipt, again[0].Receipt)

	assert.ErrorIs(t, q.Delete(ctx, first[0].Receipt), ErrUnknownReceipt, "stale receipt")
	assert.NoError(t, q.Delete(ctx, again[0].Receipt))
	assert.Zero(t, q.Len())
}

func TestMemoryQueueReceiveEmpty(t *testing.T) {
	q := NewMemoryQueue(0)
	msgs, err := q.Receive(context.Background(), 1, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.ErrorIs(t, q.Delete(context.Background(), ""), ErrUnknownReceipt)
}

func TestMemoryQueueReceiveWaitsForMessage(t *testing.T) {
	q := NewMemoryQueue(time.Minute)
	ctx := context.Background()
	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = q.Send(ctx, "late")
	}()

	msgs, err := q.Receive(ctx, 1, 2*time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "late", msgs[0].Body)
}

func TestMemoryQueueReceiveHonoursContext(t *testing.T) {
	q := NewMemoryQueue(time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Receive(ctx, 1, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueueRedeliveredGoesBehindFresh(t *testing.T) {
	q, clock := newClockedQueue(10 * time.Second)
	ctx := context.Background()
	_, _ = q.Send(ctx, "rejected")

	first, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, first, 1)

	clock.advance(time.Second)
	_, _ = q.Send(ctx, "fresh")
	clock.advance(time.Minute)

	msgs, err := q.Receive(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "fresh", msgs[0].Body)
	assert.Equal(t, "rejected", msgs[1].Body)
}

func TestMemoryQueueDeadLetters(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	q := NewMemoryQueue(time.Second, WithMaxReceives(2), WithDeadLetterRetention(time.Hour))
	q.now = clock.now
	ctx := context.Background()
	_, _ = q.Send(ctx, "poison")

	var last Message
	for i := 1; i <= 2; i++ {
		msgs, err := q.Receive(ctx, 1, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, i, msgs[0].ReceiveCount)
		last = msgs[0]
		clock.advance(2 * time.Second)
	}

	msgs, err := q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs, "used up its receives")
	assert.Zero(t, q.Len())
	assert.Equal(t, []string{"poison"}, q.DeadLetters())
	assert.ErrorIs(t, q.Delete(ctx, last.Receipt), ErrUnknownReceipt)

	clock.advance(time.Hour)
	_, err = q.Receive(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, q.DeadLetters(), "expired after the retention")
}

func TestRedeliveryOptionsKeepDefaultsOnBadValues(t *testing.T) {
	q := NewMemoryQueue(0, WithMaxReceives(0), WithDeadLetterRetention(-time.Second))
	assert.Equal(t, DefaultMaxReceives, q.maxReceives)
	assert.Equal(t, DefaultDeadLetterRetention, q.retention)
	assert.Equal(t, DefaultVisibilityTimeout, q.visibilityTimeout)
}
