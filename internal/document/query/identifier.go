package query

import (
	"regexp"
	"strings"

	"github.com/sparcky/panel-api/internal/apperror"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// ID is a document identifier: either a native ObjectID or an opaque string
// key such as a guild id.
type ID struct {
	native bool
	oid    primitive.ObjectID
	key    string
}

// NativeID wraps an ObjectID.
func NativeID(oid primitive.ObjectID) ID {
	return ID{native: true, oid: oid}
}

// StringKey wraps a caller-chosen string key.
func StringKey(key string) ID {
	return ID{key: key}
}

func (id ID) IsNative() bool { return id.native }

// Value is what the store compares _id against.
func (id ID) Value() any {
	if id.native {
		return id.oid
	}
	return id.key
}

func (id ID) String() string {
	if id.native {
		return id.oid.Hex()
	}
	return id.key
}

// Filter selects the document with this identifier.
func (id ID) Filter() bson.D {
	return bson.D{{Key: FieldID, Value: id.Value()}}
}

// ResolveIdentifier trims raw; 24 hex characters become a native id, anything
// else non-empty a string key. ok is false for empty input.
func ResolveIdentifier(raw string) (id ID, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ID{}, false
	}
	if objectIDPattern.MatchString(s) {
		if oid, err := primitive.ObjectIDFromHex(s); err == nil {
			return NativeID(oid), true
		}
	}
	return StringKey(s), true
}

// ResolveIdentifierStrict is ResolveIdentifier failing with BadRequest on empty input.
func ResolveIdentifierStrict(raw string) (ID, error) {
	id, ok := ResolveIdentifier(raw)
	if !ok {
		return ID{}, apperror.BadRequest("Missing id")
	}
	return id, nil
}
