package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sparcky/panel-api/internal/database"
	"github.com/sparcky/panel-api/internal/document"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on top of the shared database handle. The
// connection is established on first use.
type MongoStore struct {
	handle *database.Handle
}

func NewMongoStore(handle *database.Handle) *MongoStore {
	return &MongoStore{handle: handle}
}

func (m *MongoStore) Database() string {
	return m.handle.Name()
}

func (m *MongoStore) collection(ctx context.Context, name string) (*mongo.Collection, error) {
	db, err := m.handle.Database(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

func (m *MongoStore) CollectionNames(ctx context.Context) ([]string, error) {
	db, err := m.handle.Database(ctx)
	if err != nil {
		return nil, err
	}
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MongoStore) Count(ctx context.Context, collection string, filter bson.D) (int64, error) {
	col, err := m.collection(ctx, collection)
	if err != nil {
		return 0, err
	}
	return col.CountDocuments(ctx, filter)
}

func (m *MongoStore) Find(ctx context.Context, collection string, filter bson.D, opts FindOptions) ([]document.Document, error) {
	col, err := m.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	fo := options.Find()
	if opts.Sort != nil {
		fo.SetSort(opts.Sort)
	}
	if opts.Projection != nil {
		fo.SetProjection(opts.Projection)
	}
	if opts.Skip > 0 {
		fo.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	cur, err := col.Find(ctx, filter, fo)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []document.Document{}
	for cur.Next(ctx) {
		var d bson.M
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, cur.Err()
}

func (m *MongoStore) FindOne(ctx context.Context, collection string, filter bson.D) (document.Document, error) {
	col, err := m.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	var d bson.M
	if err := col.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (m *MongoStore) InsertOne(ctx context.Context, collection string, doc bson.D) (any, error) {
	col, err := m.collection(ctx, collection)
	if err != nil {
		return nil, err
	}
	res, err := col.InsertOne(ctx, doc)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return res.InsertedID, nil
}

func (m *MongoStore) UpdateOne(ctx context.Context, collection string, filter, set, setOnInsert bson.D, upsert bool) (UpdateResult, error) {
	col, err := m.collection(ctx, collection)
	if err != nil {
		return UpdateResult{}, err
	}
	update := bson.D{}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if upsert && len(setOnInsert) > 0 {
		update = append(update, bson.E{Key: "$setOnInsert", Value: setOnInsert})
	}
	res, err := col.UpdateOne(ctx, filter, update, options.Update().SetUpsert(upsert))
	if err != nil {
		return UpdateResult{}, mapWriteError(err)
	}
	return UpdateResult{Matched: res.MatchedCount, UpsertedID: res.UpsertedID}, nil
}

func (m *MongoStore) ReplaceOne(ctx context.Context, collection string, filter bson.D, doc bson.D) (int64, error) {
	col, err := m.collection(ctx, collection)
	if err != nil {
		return 0, err
	}
	res, err := col.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(false))
	if err != nil {
		return 0, mapWriteError(err)
	}
	return res.MatchedCount, nil
}

func (m *MongoStore) DeleteOne(ctx context.Context, collection string, filter bson.D) (int64, error) {
	col, err := m.collection(ctx, collection)
	if err != nil {
		return 0, err
	}
	res, err := col.DeleteOne(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (m *MongoStore) Ping(ctx context.Context) error {
	return m.handle.Ping(ctx)
}

func mapWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}
