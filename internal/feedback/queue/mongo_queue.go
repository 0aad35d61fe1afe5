package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"page-feedback/internal/feedback/model"
)

// MongoQueue keeps one document per message in a collection. Receive claims
// the earliest visible document atomically with FindOneAndUpdate, so two
// processes never hold the same message at once. Dead letters stay in the
// collection with deadAt set until the TTL index removes them.
type MongoQueue struct {
	coll              *mongo.Collection
	visibilityTimeout time.Duration
	redelivery
	now func() time.Time
}

func NewMongoQueue(coll *mongo.Collection, visibilityTimeout time.Duration, opts ...Option) *MongoQueue {
	if visibilityTimeout <= 0 {
		visibilityTimeout = DefaultVisibilityTimeout
	}
	return &MongoQueue{
		coll:              coll,
		visibilityTimeout: visibilityTimeout,
		redelivery:        newRedelivery(opts),
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// EnsureIndexes creates the indexes receive and delete filter on, and the
// TTL index that expires dead letters.
func (q *MongoQueue) EnsureIndexes(ctx context.Context) error {
	_, err := q.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "visibleAt", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "receipt", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "deadAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(int32(q.retention / time.Second))},
	})
	if err != nil {
		return fmt.Errorf("queue %s: create indexes: %w", q.coll.Name(), err)
	}
	return nil
}

func (q *MongoQueue) Send(ctx context.Context, body string) (string, error) {
	now := q.now()
	doc := model.QueueMessage{
		ID:        uuid.NewString(),
		Body:      body,
		VisibleAt: now,
		CreatedAt: now,
	}
	if _, err := q.coll.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("queue %s: send: %w", q.coll.Name(), err)
	}
	return doc.ID, nil
}

func (q *MongoQueue) Receive(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	return pollReceive(ctx, max, wait, q.claim)
}

func (q *MongoQueue) claim(ctx context.Context, max int) ([]Message, error) {
	if err := q.moveDeadLetters(ctx, q.now()); err != nil {
		return nil, err
	}
	out := make([]Message, 0, max)
	for len(out) < max {
		now := q.now()
		filter := bson.M{
			"visibleAt": bson.M{"$lte": now},
			"deadAt":    bson.M{"$exists": false},
		}
		update := bson.M{
			"$set": bson.M{
				"visibleAt": now.Add(q.visibilityTimeout),
				"receipt":   uuid.NewString(),
			},
			"$inc": bson.M{"receiveCount": 1},
		}
		opts := options.FindOneAndUpdate().
			SetSort(bson.D{{Key: "visibleAt", Value: 1}, {Key: "createdAt", Value: 1}}).
			SetReturnDocument(options.After)

		var doc model.QueueMessage
		err := q.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			return out, fmt.Errorf("queue %s: receive: %w", q.coll.Name(), err)
		}
		out = append(out, Message{
			ID:           doc.ID,
			Body:         doc.Body,
			Receipt:      doc.Receipt,
			ReceiveCount: doc.ReceiveCount,
		})
	}
	return out, nil
}

// moveDeadLetters marks visible messages that used up their receives.
func (q *MongoQueue) moveDeadLetters(ctx context.Context, now time.Time) error {
	_, err := q.coll.UpdateMany(ctx,
		bson.M{
			"visibleAt":    bson.M{"$lte": now},
			"receiveCount": bson.M{"$gte": q.maxReceives},
			"deadAt":       bson.M{"$exists": false},
		},
		bson.M{
			"$set":   bson.M{"deadAt": now},
			"$unset": bson.M{"receipt": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("queue %s: dead-letter: %w", q.coll.Name(), err)
	}
	return nil
}

// DeadLetterCount counts dead letters not yet expired.
func (q *MongoQueue) DeadLetterCount(ctx context.Context) (int64, error) {
	n, err := q.coll.CountDocuments(ctx, bson.M{"deadAt": bson.M{"$exists": true}})
	if err != nil {
		return 0, fmt.Errorf("queue %s: count dead letters: %w", q.coll.Name(), err)
	}
	return n, nil
}

func (q *MongoQueue) Delete(ctx context.Context, receipt string) error {
	if receipt == "" {
		return ErrUnknownReceipt
	}
	res, err := q.coll.DeleteOne(ctx, bson.M{"receipt": receipt})
	if err != nil {
		return fmt.Errorf("queue %s: delete: %w", q.coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return ErrUnknownReceipt
	}
	return nil
}
