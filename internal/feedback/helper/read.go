package helper

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"page-feedback/internal/feedback/model"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 200
)

type Page struct {
	Number int
	Limit  int
}

// NewPage falls back to page 1 and DefaultPageLimit for out-of-range input.
func NewPage(number, limit int) Page {
	if number <= 0 {
		number = 1
	}
	if limit <= 0 || limit > MaxPageLimit {
		limit = DefaultPageLimit
	}
	return Page{Number: number, Limit: limit}
}

func (p Page) Skip() int64 {
	return int64(p.Number-1) * int64(p.Limit)
}

type ProblemQuery struct {
	Date        string // problemDate, YYYY-MM-DD
	Institution string
	Page        Page
}

type TopTaskQuery struct {
	Date string // dateTime, YYYY-MM-DD
	Page Page
}

func (q ProblemQuery) filter() bson.M {
	f := bson.M{}
	if q.Date != "" {
		f["problemDate"] = q.Date
	}
	if q.Institution != "" {
		f["institution"] = strings.ToUpper(strings.TrimSpace(q.Institution))
	}
	return f
}

func (q TopTaskQuery) filter() bson.M {
	f := bson.M{}
	if q.Date != "" {
		f["dateTime"] = q.Date
	}
	return f
}

func pageOptions(p Page) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetSkip(p.Skip()).
		SetLimit(int64(p.Limit))
}

// ListProblems returns one page of stored problems, newest first, and the
// total matching the filter.
func (h *Handle) ListProblems(ctx context.Context, q ProblemQuery) ([]model.Problem, int64, error) {
	s, err := h.Stores(ctx)
	if err != nil {
		return nil, 0, err
	}
	filter := q.filter()
	total, err := s.Problems.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", ProblemCollection, err)
	}
	cur, err := s.Problems.Find(ctx, filter, pageOptions(q.Page))
	if err != nil {
		return nil, 0, fmt.Errorf("find %s: %w", ProblemCollection, err)
	}
	out := make([]model.Problem, 0, q.Page.Limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", ProblemCollection, err)
	}
	return out, total, nil
}

func (h *Handle) ListTopTasks(ctx context.Context, q TopTaskQuery) ([]model.TopTask, int64, error) {
	s, err := h.Stores(ctx)
	if err != nil {
		return nil, 0, err
	}
	filter := q.filter()
	total, err := s.TopTasks.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", TopTaskCollection, err)
	}
	cur, err := s.TopTasks.Find(ctx, filter, pageOptions(q.Page))
	if err != nil {
		return nil, 0, fmt.Errorf("find %s: %w", TopTaskCollection, err)
	}
	out := make([]model.TopTask, 0, q.Page.Limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", TopTaskCollection, err)
	}
	return out, total, nil
}
