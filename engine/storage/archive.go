package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/leadflowhq/leadflow/config"
	"github.com/leadflowhq/leadflow/types"
)

// Archive stores the full message history in MongoDB and answers "what did
// we discuss earlier" text searches that fall outside the recent window.
// The archive is optional; a nil *Archive is a no-op.
type Archive struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
	logger     *zap.Logger
}

// OpenArchive connects to the configured archive. Returns (nil, nil) when
// the archive is disabled.
func OpenArchive(ctx context.Context, cfg config.ArchiveConfig, logger *zap.Logger) (*Archive, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect archive: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)

	// Text index over message bodies; creation is idempotent.
	idxCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	_, err = coll.Indexes().CreateOne(idxCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "body", Value: "text"}},
	})
	if err != nil {
		logger.Warn("archive text index creation failed", zap.Error(err))
	}

	return &Archive{
		client:     client,
		collection: coll,
		timeout:    cfg.Timeout,
		logger:     logger.With(zap.String("component", "archive")),
	}, nil
}

// ArchiveMessage appends one message to the full history. Best effort: the
// relational store remains the source of truth.
func (a *Archive) ArchiveMessage(ctx context.Context, msg *types.Message) error {
	if a == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	_, err := a.collection.InsertOne(ctx, msg)
	if err != nil {
		return fmt.Errorf("archive message: %w", err)
	}
	return nil
}

// SearchHistory runs a text search over the contact's archived messages,
// most relevant first.
func (a *Archive) SearchHistory(ctx context.Context, contactID, query string, limit int) ([]types.Message, error) {
	if a == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	filter := bson.D{
		{Key: "contactid", Value: contactID},
		{Key: "$text", Value: bson.D{{Key: "$search", Value: query}}},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "score", Value: bson.D{{Key: "$meta", Value: "textScore"}}}}).
		SetLimit(int64(limit))

	cur, err := a.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("search history: %w", err)
	}
	defer cur.Close(ctx)

	var msgs []types.Message
	if err := cur.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return msgs, nil
}

// Close disconnects the archive client.
func (a *Archive) Close(ctx context.Context) error {
	if a == nil {
		return nil
	}
	return a.client.Disconnect(ctx)
}
