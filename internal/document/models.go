package document

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Document is an untyped stored record as returned to callers. Nested
// objects are bson.M and arrays []any.
type Document = bson.M

// Timestamps reads the repository-managed timestamps of d, if present.
func Timestamps(d Document) (createdAt, updatedAt time.Time) {
	createdAt = asTime(d["createdAt"])
	updatedAt = asTime(d["updatedAt"])
	return
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case interface{ Time() time.Time }:
		// primitive.DateTime as decoded by the driver
		return t.Time()
	}
	return time.Time{}
}
