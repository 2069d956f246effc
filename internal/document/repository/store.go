package repository

import (
	"context"
	"errors"

	"github.com/sparcky/panel-api/internal/document"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// FindOptions shapes a Find call. Nil Sort/Projection and zero Limit mean
// "not applied".
type FindOptions struct {
	Sort       bson.D
	Projection bson.D
	Skip       int64
	Limit      int64
}

// UpdateResult reports what an UpdateOne matched or created.
type UpdateResult struct {
	Matched    int64
	UpsertedID any
}

// Store executes already-sanitized operations against named collections.
// Implementations perform no validation of their own.
type Store interface {
	// Database is the name reported in responses.
	Database() string
	CollectionNames(ctx context.Context) ([]string, error)
	Count(ctx context.Context, collection string, filter bson.D) (int64, error)
	Find(ctx context.Context, collection string, filter bson.D, opts FindOptions) ([]document.Document, error)
	// FindOne returns ErrNotFound when nothing matches.
	FindOne(ctx context.Context, collection string, filter bson.D) (document.Document, error)
	// InsertOne returns the stored _id, generating an ObjectID when doc has none.
	InsertOne(ctx context.Context, collection string, doc bson.D) (any, error)
	// UpdateOne applies $set and, when upserting, $setOnInsert.
	UpdateOne(ctx context.Context, collection string, filter, set, setOnInsert bson.D, upsert bool) (UpdateResult, error)
	ReplaceOne(ctx context.Context, collection string, filter bson.D, doc bson.D) (int64, error)
	DeleteOne(ctx context.Context, collection string, filter bson.D) (int64, error)
	Ping(ctx context.Context) error
}
