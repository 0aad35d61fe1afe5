package processor

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"page-feedback/internal/feedback/helper"
	"page-feedback/internal/feedback/model"
	"page-feedback/internal/feedback/parser"
	"page-feedback/internal/feedback/queue"
)

type fakeStore struct {
	mu     sync.Mutex
	docs   map[string][]any
	failOn map[string]error
	seq    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string][]any{}, failOn: map[string]error{}}
}

func (s *fakeStore) Insert(_ context.Context, collection string, doc any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failOn[collection]; err != nil {
		return "", err
	}
	s.seq++
	s.docs[collection] = append(s.docs[collection], doc)
	return fmt.Sprintf("id-%d", s.seq), nil
}

func (s *fakeStore) count(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs[collection])
}

func widgetPayload(details string) string {
	return strings.Join([]string{
		"14:05", "2024-03-01", "https://www.canada.ca/fr/services/prestations.html", "en", "en",
		"Prestations", "ESDC", "benefits", "ei", "Other",
		details, "No", "Windows NT", "Chrome", "",
	}, parser.ProblemDelimiter)
}

func topTaskPayload() string {
	f := make([]string, parser.TopTaskWidth)
	f[0] = "2024-02-03T14:25:00Z"
	f[1] = "https://www.canada.ca/en.html"
	f[2] = "en"
	f[5] = "Health"
	f[6] = "health"
	f[9] = "find schedule"
	f[23] = "inv:gc:ca:theme:inst:group:task"
	return strings.Join(f, parser.TopTaskDelimiter)
}

func send(t *testing.T, q queue.Queue, bodies ...string) {
	t.Helper()
	for _, b := range bodies {
		_, err := q.Send(context.Background(), b)
		require.NoError(t, err)
	}
}

func TestProblemCommit_StoresBothCollections(t *testing.T) {
	q := queue.NewMemoryQueue(time.Minute)
	store := newFakeStore()
	send(t, q, widgetPayload("Le lien est brisé"))

	c := NewProblemCommitter(zap.NewNop(), store, q, 100)
	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Received)
	assert.Equal(t, 1, res.Stored)
	assert.Equal(t, 0, q.Len())
	require.Equal(t, 1, store.count(helper.ProblemCollection))
	require.Equal(t, 1, store.count(helper.OriginalProblemCollection))

	p := store.docs[helper.ProblemCollection][0].(*model.Problem)
	assert.Equal(t, "fr", p.Language, "URL overrides submitted language")
	assert.Equal(t, "Le lien est brisé", p.ProblemDetails)

	orig := store.docs[helper.OriginalProblemCollection][0].(model.OriginalProblem)
	assert.Equal(t, p.URL, orig.URL)
	assert.Equal(t, p.ProblemDetails, orig.ProblemDetails)
}

func TestProblemCommit_Base64AndEntities(t *testing.T) {
	q := queue.NewMemoryQueue(time.Minute)
	store := newFakeStore()
	body := base64.StdEncoding.EncodeToString([]byte(widgetPayload("Tom &amp; Jerry")))
	send(t, q, body)

	_, err := NewProblemCommitter(zap.NewNop(), store, q, 100).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, store.count(helper.ProblemCollection))
	p := store.docs[helper.ProblemCollection][0].(*model.Problem)
	assert.Equal(t, "Tom & Jerry", p.ProblemDetails)
}

func TestProblemCommit_EmptyCommentIsDiscarded(t *testing.T) {
	q := queue.NewMemoryQueue(time.Minute)
	store := newFakeStore()
	send(t, q, widgetPayload("   "))

	res, err := NewProblemCommitter(zap.NewNop(), store, q, 100).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Discarded)
	assert.Equal(t, 0, q.Len(), "discarded messages are deleted")
	assert.Equal(t, 0, store.count(helper.ProblemCollection))
	assert.Equal(t, 0, store.count(helper.OriginalProblemCollection))
}

func TestProblemCommit_BadFieldCountStaysQueued(t *testing.T) {
	q := queue.NewMemoryQueue(time.Minute)
	store := newFakeStore()
	send(t, q, "only;three;fields", widgetPayload("ok"))

	res, err := NewProblemCommitter(zap.NewNop(), store, q, 100).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Received)
	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 1, res.Stored)
	assert.Equal(t, []string{"only;three;fields"}, q.Bodies())
}

func TestProblemCommit_StoreFailureStaysQueued(t *testing.T) {
	q := queue.NewMemoryQueue(time.Minute)
	store := newFakeStore()
	store.failOn[helper.ProblemCollection] = errors.New("connection reset")
	send(t, q, widgetPayload("broken"))

	res, err := NewProblemCommitter(zap.NewNop(), store, q, 100).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 0, store.count(helper.OriginalProblemCollection))
}

func TestProblemCommit_MaxIterations(t *testing.T) {
	q := queue.NewMemoryQueue(time.Minute)
	store := newFakeStore()
	for i := 0; i < 5; i++ {
		send(t, q, widgetPayload(fmt.Sprintf("comment %d", i)))
	}

	res, err := NewProblemCommitter(zap.NewNop(), store, q, 2).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Received)
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 2, store.count(helper.ProblemCollection))
}

func TestProblemCommit_RejectedBacklogDoesNotStarveValid(t *testing.T) {
	const visibility = 50 * time.Millisecond
	q := queue.NewMemoryQueue(visibility, queue.WithMaxReceives(2))
	store := newFakeStore()
	for i := 0; i < 120; i++ {
		send(t, q, "bad;field;count")
	}
	send(t, q, widgetPayload("still gets stored"))
	c := NewProblemCommitter(zap.NewNop(), store, q, 100)
	ctx := context.Background()

	res, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Rejected)
	assert.Zero(t, res.Stored)

	time.Sleep(visibility + 30*time.Millisecond)
	res, err = c.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stored, "messages put back queue behind the untried one")
	assert.Equal(t, 1, store.count(helper.ProblemCollection))

	for i := 0; i < 5 && q.Len() > 0; i++ {
		time.Sleep(visibility + 30*time.Millisecond)
		_, err = c.Run(ctx)
		require.NoError(t, err)
	}
	assert.Zero(t, q.Len())
	assert.Len(t, q.DeadLetters(), 120)
}

func TestTopTaskCommit_Delimited(t *testing.T) {
	q := queue.NewMemoryQueue(time.Minute)
	store := newFakeStore()
	send(t, q, topTaskPayload())

	c := NewTopTaskCommitter(zap.NewNop(), store, q, 100)
	res, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Stored)
	assert.Equal(t, 0, q.Len())
	require.Equal(t, 1, store.count(helper.TopTaskCollection))

	tt := store.docs[helper.TopTaskCollection][0].(*model.TopTask)
	assert.Equal(t, "2024-02-03", tt.DateTime)
	assert.Equal(t, "14:25", tt.TimeStamp)
	assert.Equal(t, "Health", tt.Dept)
	assert.Equal(t, "find schedule", tt.Task)
	assert.Equal(t, "inv", tt.SamplingInvitation)
}

func TestTopTaskCommit_WrappedBase64JSON(t *testing.T) {
	q := queue.NewMemoryQueue(time.Minute)
	store := newFakeStore()
	obj := `{"dateTime":"2024-02-03T14:25:00Z","language":"fr","dept1":"Finance","task1":"taxes"}`
	send(t, q, base64.StdEncoding.EncodeToString([]byte("<html><body><pre>"+obj+"</pre></body></html>")))

	_, err := NewTopTaskCommitter(zap.NewNop(), store, q, 100).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, store.count(helper.TopTaskCollection))
	tt := store.docs[helper.TopTaskCollection][0].(*model.TopTask)
	assert.Equal(t, "fr", tt.Language)
	assert.Equal(t, "Finance", tt.Dept)
	assert.Equal(t, "taxes", tt.Task)
}

func TestTopTaskCommit_FormJSONWithEntityText(t *testing.T) {
	q := queue.NewMemoryQueue(time.Minute)
	store := newFakeStore()
	send(t, q, `{"dateTime":"2024-02-03T14:25:00Z","dept1":"Health","taskImproveComment":"the &quot;apply&quot; button"}`)

	res, err := NewTopTaskCommitter(zap.NewNop(), store, q, 100).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Stored)
	assert.Equal(t, 0, q.Len())
	require.Equal(t, 1, store.count(helper.TopTaskCollection))
	tt := store.docs[helper.TopTaskCollection][0].(*model.TopTask)
	assert.Equal(t, "Health", tt.Dept)
	assert.Equal(t, `the "apply" button`, tt.TaskImproveComment)
}

func TestTopTaskCommit_MalformedStaysQueued(t *testing.T) {
	q := queue.NewMemoryQueue(time.Minute)
	store := newFakeStore()
	send(t, q, "a~!~b~!~c")

	res, err := NewTopTaskCommitter(zap.NewNop(), store, q, 100).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Rejected)
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 0, store.count(helper.TopTaskCollection))
}

func TestDrain_PanicIsContained(t *testing.T) {
	q := queue.NewMemoryQueue(time.Minute)
	send(t, q, "boom", "fine")

	d := &Drainer{Log: zap.NewNop(), Queue: q, Name: "test"}
	res, err := d.Drain(context.Background(), func(_ context.Context, msg queue.Message) (Outcome, error) {
		if msg.Body == "boom" {
			panic("unexpected")
		}
		return OutcomeStored, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Received)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Stored)
	assert.Equal(t, []string{"boom"}, q.Bodies())
}

func TestDrain_CancelledContext(t *testing.T) {
	q := queue.NewMemoryQueue(time.Minute)
	send(t, q, "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &Drainer{Log: zap.NewNop(), Queue: q, Name: "test"}
	res, err := d.Drain(ctx, func(context.Context, queue.Message) (Outcome, error) {
		return OutcomeStored, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, res.Received)
	assert.Equal(t, 1, q.Len())
}
