// Package query sanitizes caller-supplied filter, sort, projection and body
// structures before they reach the database driver, and resolves document
// identifiers.
package query

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sparcky/panel-api/internal/apperror"
	"go.mongodb.org/mongo-driver/bson"
)

// OperatorMarker starts every query-language operator of the store.
const OperatorMarker = "$"

// Fields the repository manages itself.
const (
	FieldID        = "_id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// DefaultJSONParamMaxLength bounds JSON query parameters before parsing.
const DefaultJSONParamMaxLength = 20_000

// KeyVisitor is called for every object key found by WalkKeys, with the
// dotted/bracketed path of the key.
type KeyVisitor func(key, path string) error

// WalkKeys visits every object key reachable from v, descending into objects
// and array elements. Scalars end the walk. Map keys are visited in sorted order.
func WalkKeys(v any, path string, visit KeyVisitor) error {
	switch t := v.(type) {
	case bson.A:
		return walkArray([]any(t), path, visit)
	case []any:
		return walkArray(t, path, visit)
	case bson.D:
		for _, e := range t {
			if err := walkEntry(e.Key, e.Value, path, visit); err != nil {
				return err
			}
		}
	case bson.M:
		return walkMap(t, path, visit)
	case map[string]any:
		return walkMap(t, path, visit)
	}
	return nil
}

func walkArray(items []any, path string, visit KeyVisitor) error {
	for i, item := range items {
		if err := WalkKeys(item, fmt.Sprintf("%s[%d]", path, i), visit); err != nil {
			return err
		}
	}
	return nil
}

func walkMap(m map[string]any, path string, visit KeyVisitor) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := walkEntry(k, m[k], path, visit); err != nil {
			return err
		}
	}
	return nil
}

func walkEntry(key string, val any, path string, visit KeyVisitor) error {
	p := key
	if path != "" {
		p = path + "." + key
	}
	if err := visit(key, p); err != nil {
		return err
	}
	return WalkKeys(val, p, visit)
}

// AssertNoReservedOperators rejects any key starting with the operator marker,
// at any depth. Offending input is rejected, never stripped.
func AssertNoReservedOperators(v any, path string) error {
	return WalkKeys(v, path, func(key, p string) error {
		if strings.HasPrefix(key, OperatorMarker) {
			return apperror.BadRequest("Mongo operator not allowed at " + p)
		}
		return nil
	})
}

// NormalizeFilter returns an empty filter (match all) for anything that is not
// a plain object.
func NormalizeFilter(raw any) (bson.D, error) {
	if !isPlainObject(raw) {
		return bson.D{}, nil
	}
	if err := AssertNoReservedOperators(raw, ""); err != nil {
		return nil, err
	}
	return toD(raw), nil
}

// NormalizeSort returns nil (no sort) when raw is absent or not a plain object.
func NormalizeSort(raw any) (bson.D, error) {
	return optionalObject(raw)
}

// NormalizeProjection follows the same rules as NormalizeSort.
func NormalizeProjection(raw any) (bson.D, error) {
	return optionalObject(raw)
}

func optionalObject(raw any) (bson.D, error) {
	if raw == nil || !isPlainObject(raw) {
		return nil, nil
	}
	if err := AssertNoReservedOperators(raw, ""); err != nil {
		return nil, err
	}
	return toD(raw), nil
}

// SanitizeInsert operator-checks a document body. A caller-supplied _id is
// kept.
func SanitizeInsert(raw any) (bson.D, error) {
	if !isPlainObject(raw) {
		return bson.D{}, nil
	}
	if err := AssertNoReservedOperators(raw, ""); err != nil {
		return nil, err
	}
	return toD(raw), nil
}

// SanitizePatch is SanitizeInsert minus the identifier and both timestamps,
// dotted paths below them included.
func SanitizePatch(raw any) (bson.D, error) {
	doc, err := SanitizeInsert(raw)
	if err != nil {
		return nil, err
	}
	return Without(doc, FieldID, FieldCreatedAt, FieldUpdatedAt), nil
}

// Without returns a copy of d minus the given top-level keys. A dotted key
// is dropped when its first segment matches, so "createdAt.x" goes with
// "createdAt".
func Without(d bson.D, keys ...string) bson.D {
	out := make(bson.D, 0, len(d))
	for _, e := range d {
		root, _, _ := strings.Cut(e.Key, ".")
		drop := false
		for _, k := range keys {
			if root == k {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, e)
		}
	}
	return out
}

// Has reports whether d has a top-level key.
func Has(d bson.D, key string) bool {
	for _, e := range d {
		if e.Key == key {
			return true
		}
	}
	return false
}

// Bounds configures ParseBoundedInt.
type Bounds struct {
	Min     int
	Max     int
	Default int
}

// Pagination bounds for list operations.
var (
	LimitBounds = Bounds{Min: 1, Max: 50, Default: 20}
	SkipBounds  = Bounds{Min: 0, Max: 100_000, Default: 0}
)

// ParseBoundedInt parses raw as a number, truncates it toward zero and clamps
// it to [Min, Max]. Missing or non-finite input yields Default.
func ParseBoundedInt(raw string, b Bounds) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return b.Default
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return b.Default
	}
	// clamp before converting so huge values cannot overflow int
	f = math.Max(math.Min(math.Trunc(f), float64(b.Max)), float64(b.Min))
	return int(f)
}

// Clamp bounds n to [Min, Max].
func (b Bounds) Clamp(n int) int {
	if n < b.Min {
		return b.Min
	}
	if n > b.Max {
		return b.Max
	}
	return n
}

// JSONParamOptions configures ParseJSONParameter.
type JSONParamOptions struct {
	Default   any
	MaxLength int
}

// ParseJSONParameter decodes a JSON-encoded query parameter. Oversized input
// is rejected before parsing.
func ParseJSONParameter(raw string, opts JSONParamOptions) (any, error) {
	if raw == "" {
		return opts.Default, nil
	}
	max := opts.MaxLength
	if max <= 0 {
		max = DefaultJSONParamMaxLength
	}
	if len(raw) > max {
		return nil, apperror.BadRequest("JSON query param too large")
	}
	v, err := DecodeOrdered([]byte(raw))
	if err != nil {
		return nil, apperror.BadRequest("Invalid JSON in query")
	}
	return v, nil
}
