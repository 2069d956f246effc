package repository

import (
	"context"
	"time"

	"github.com/sparcky/panel-api/internal/document/query"
	"go.mongodb.org/mongo-driver/bson"
)

// UpsertByKey sets fields on the document matching keys, creating it with
// the key fields and createdAt when absent. updatedAt is always now.
//
// Key fields, _id and both timestamps are stripped from fields (dotted paths
// below them too): keys only enter through $setOnInsert and the timestamps
// are owned here. No collection access checks happen at this level.
func UpsertByKey(ctx context.Context, store Store, collection string, keys, fields bson.D, now time.Time) (UpdateResult, error) {
	strip := []string{query.FieldID, query.FieldCreatedAt, query.FieldUpdatedAt}
	for _, k := range keys {
		strip = append(strip, k.Key)
	}
	set := append(query.Without(fields, strip...), bson.E{Key: query.FieldUpdatedAt, Value: now})
	onInsert := append(append(bson.D{}, keys...), bson.E{Key: query.FieldCreatedAt, Value: now})
	return store.UpdateOne(ctx, collection, keys, set, onInsert, true)
}
