package helper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"page-feedback/pkg/mongodb"
)

// Collection names are part of the contract with downstream consumers.
const (
	ProblemCollection         = "problem"
	OriginalProblemCollection = "originalproblem"
	TopTaskCollection         = "toptasksurvey"
)

var ErrNotConnected = errors.New("helper: store handle closed")

type Stores struct {
	Client           *mongo.Client
	DB               *mongo.Database
	Problems         *mongo.Collection // problem
	OriginalProblems *mongo.Collection // originalproblem
	TopTasks         *mongo.Collection // toptasksurvey
}

// Connect dials MongoDB, pings it and makes sure the feedback indexes exist.
func Connect(ctx context.Context, cfg mongodb.MongoConfig) (*Stores, error) {
	clientOpts := options.Client().ApplyURI(cfg.URI())
	if cfg.Secure() {
		clientOpts.SetAuth(options.Credential{
			AuthMechanism: "SCRAM-SHA-1",
			AuthSource:    cfg.AuthSource,
			Username:      cfg.Username,
			Password:      cfg.Password,
		})
	}
	if cfg.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(cfg.ConnectTimeout)
		clientOpts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	cli, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err = cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := cli.Database(cfg.DBName)
	s := &Stores{
		Client:           cli,
		DB:               db,
		Problems:         db.Collection(ProblemCollection),
		OriginalProblems: db.Collection(OriginalProblemCollection),
		TopTasks:         db.Collection(TopTaskCollection),
	}
	if err := ensureIndexes(ctx, s); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func ensureIndexes(ctx context.Context, s *Stores) error {
	if _, err := s.Problems.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "problemDate", Value: 1}}},
		{Keys: bson.D{{Key: "url", Value: 1}}},
		{Keys: bson.D{{Key: "institution", Value: 1}}},
		{Keys: bson.D{{Key: "processed", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create %s indexes: %w", ProblemCollection, err)
	}
	if _, err := s.TopTasks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "dateTime", Value: 1}}},
		{Keys: bson.D{{Key: "surveyReferrer", Value: 1}}},
		{Keys: bson.D{{Key: "processed", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create %s indexes: %w", TopTaskCollection, err)
	}
	return nil
}

// Handle is the process-wide store connection. It connects on first use,
// is shared by reference between invocations and is closed once at shutdown.
// A failed connect is not cached; the next call dials again.
type Handle struct {
	cfg mongodb.MongoConfig
	log *zap.Logger

	mu     sync.Mutex
	stores *Stores
	closed bool
}

func NewHandle(cfg mongodb.MongoConfig, log *zap.Logger) *Handle {
	return &Handle{cfg: cfg, log: log}
}

// Stores returns the connected collections, dialing if needed.
func (h *Handle) Stores(ctx context.Context) (*Stores, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrNotConnected
	}
	if h.stores != nil {
		return h.stores, nil
	}

	connectCtx := ctx
	if h.cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, h.cfg.ConnectTimeout)
		defer cancel()
	}
	s, err := Connect(connectCtx, h.cfg)
	if err != nil {
		h.log.Error("MongoDB connection failed",
			zap.String("host", h.cfg.Host),
			zap.String("db", h.cfg.DBName),
			zap.Error(err),
		)
		return nil, err
	}
	h.log.Info("MongoDB client initialized",
		zap.String("host", h.cfg.Host),
		zap.String("db", h.cfg.DBName),
		zap.Bool("tls", h.cfg.Secure()),
	)
	h.stores = s
	return s, nil
}

// Collection returns a named collection of the feedback database.
func (h *Handle) Collection(ctx context.Context, name string) (*mongo.Collection, error) {
	s, err := h.Stores(ctx)
	if err != nil {
		return nil, err
	}
	return s.DB.Collection(name), nil
}

// Insert writes one document and returns its generated id.
func (h *Handle) Insert(ctx context.Context, collection string, doc any) (string, error) {
	coll, err := h.Collection(ctx, collection)
	if err != nil {
		return "", err
	}
	res, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("insert into %s: %w", collection, err)
	}
	return InsertedID(res.InsertedID), nil
}

// Close disconnects once; later calls and later Stores calls fail fast.
func (h *Handle) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if h.stores == nil {
		return nil
	}
	err := h.stores.Client.Disconnect(ctx)
	h.stores = nil
	return err
}

// InsertedID renders a driver-generated id as text.
func InsertedID(id any) string {
	switch v := id.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
