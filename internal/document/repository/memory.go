package repository

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sparcky/panel-api/internal/document"
	"github.com/sparcky/panel-api/internal/document/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-process Store used for unit tests and for running the
// admin surface without a database. Filters support equality on (dotted)
// paths only; operators never reach a Store anyway.
type MemoryStore struct {
	name string

	mu          sync.RWMutex
	collections map[string][]bson.M
}

func NewMemoryStore(name string) *MemoryStore {
	if name == "" {
		name = "memory"
	}
	return &MemoryStore{name: name, collections: make(map[string][]bson.M)}
}

func (m *MemoryStore) Database() string {
	return m.name
}

func (m *MemoryStore) CollectionNames(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) Count(ctx context.Context, collection string, filter bson.D) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, d := range m.collections[collection] {
		if matches(d, filter) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Find(ctx context.Context, collection string, filter bson.D, opts FindOptions) ([]document.Document, error) {
	m.mu.RLock()
	var hits []bson.M
	for _, d := range m.collections[collection] {
		if matches(d, filter) {
			hits = append(hits, copyDoc(d))
		}
	}
	m.mu.RUnlock()

	if len(opts.Sort) > 0 {
		sort.SliceStable(hits, func(i, j int) bool {
			return less(hits[i], hits[j], opts.Sort)
		})
	}
	if opts.Skip > 0 {
		if opts.Skip >= int64(len(hits)) {
			hits = nil
		} else {
			hits = hits[opts.Skip:]
		}
	}
	if opts.Limit > 0 && int64(len(hits)) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	out := make([]document.Document, 0, len(hits))
	for _, d := range hits {
		out = append(out, project(d, opts.Projection))
	}
	return out, nil
}

func (m *MemoryStore) FindOne(ctx context.Context, collection string, filter bson.D) (document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i := m.indexOf(collection, filter); i >= 0 {
		return copyDoc(m.collections[collection][i]), nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) InsertOne(ctx context.Context, collection string, doc bson.D) (any, error) {
	d := query.PlainDoc(doc)
	if d == nil {
		d = bson.M{}
	}
	if _, ok := d["_id"]; !ok {
		d["_id"] = primitive.NewObjectID()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexOf(collection, bson.D{{Key: "_id", Value: d["_id"]}}) >= 0 {
		return nil, fmt.Errorf("%w: _id %v", ErrDuplicateKey, d["_id"])
	}
	m.collections[collection] = append(m.collections[collection], d)
	return d["_id"], nil
}

func (m *MemoryStore) UpdateOne(ctx context.Context, collection string, filter, set, setOnInsert bson.D, upsert bool) (UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(collection, filter); i >= 0 {
		doc := m.collections[collection][i]
		for _, e := range set {
			setPath(doc, e.Key, query.Plain(e.Value))
		}
		return UpdateResult{Matched: 1}, nil
	}
	if !upsert {
		return UpdateResult{}, nil
	}
	doc := bson.M{}
	for _, e := range filter {
		setPath(doc, e.Key, query.Plain(e.Value))
	}
	for _, e := range setOnInsert {
		setPath(doc, e.Key, query.Plain(e.Value))
	}
	for _, e := range set {
		setPath(doc, e.Key, query.Plain(e.Value))
	}
	if _, ok := doc["_id"]; !ok {
		doc["_id"] = primitive.NewObjectID()
	}
	m.collections[collection] = append(m.collections[collection], doc)
	return UpdateResult{UpsertedID: doc["_id"]}, nil
}

func (m *MemoryStore) ReplaceOne(ctx context.Context, collection string, filter bson.D, doc bson.D) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(collection, filter)
	if i < 0 {
		return 0, nil
	}
	prev := m.collections[collection][i]
	next := query.PlainDoc(doc)
	if next == nil {
		next = bson.M{}
	}
	// _id is immutable
	next["_id"] = prev["_id"]
	m.collections[collection][i] = next
	return 1, nil
}

func (m *MemoryStore) DeleteOne(ctx context.Context, collection string, filter bson.D) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(collection, filter)
	if i < 0 {
		return 0, nil
	}
	docs := m.collections[collection]
	m.collections[collection] = append(docs[:i:i], docs[i+1:]...)
	return 1, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStore) indexOf(collection string, filter bson.D) int {
	for i, d := range m.collections[collection] {
		if matches(d, filter) {
			return i
		}
	}
	return -1
}

func copyDoc(d bson.M) bson.M {
	return query.Plain(d).(bson.M)
}

func matches(doc bson.M, filter bson.D) bool {
	for _, e := range filter {
		got, ok := lookup(doc, e.Key)
		want := query.Plain(e.Value)
		if !ok {
			if want == nil {
				continue
			}
			return false
		}
		if !valueMatches(got, want) {
			return false
		}
	}
	return true
}

// valueMatches mirrors the store's equality semantics: an array field matches
// a scalar it contains as well as an equal array.
func valueMatches(got, want any) bool {
	if valuesEqual(got, want) {
		return true
	}
	if arr, ok := got.([]any); ok {
		for _, item := range arr {
			if valuesEqual(item, want) {
				return true
			}
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	if aa, ok := a.([]any); ok {
		ba, ok := b.([]any)
		if !ok || len(aa) != len(ba) {
			return false
		}
		for i := range aa {
			if !valuesEqual(aa[i], ba[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func lookup(doc bson.M, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(bson.M)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(doc bson.M, path string, v any) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(bson.M)
		if !ok {
			next = bson.M{}
			cur[part] = next
		}
		cur = next
	}
	cur[parts[len(parts)-1]] = v
}

func less(a, b bson.M, by bson.D) bool {
	for _, e := range by {
		dir := 1
		if f, ok := toFloat(e.Value); ok && f < 0 {
			dir = -1
		}
		va, _ := lookup(a, e.Key)
		vb, _ := lookup(b, e.Key)
		if c := compare(va, vb); c != 0 {
			return c*dir < 0
		}
	}
	return false
}

// compare orders missing/null values first, then numbers, strings, ObjectIDs
// and times; mixed kinds order by that rank.
func compare(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case 1:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		return cmpOrdered(fa, fb)
	case 2:
		return strings.Compare(a.(string), b.(string))
	case 3:
		return strings.Compare(a.(primitive.ObjectID).Hex(), b.(primitive.ObjectID).Hex())
	case 4:
		return a.(time.Time).Compare(b.(time.Time))
	case 5:
		return cmpOrdered(boolInt(a.(bool)), boolInt(b.(bool)))
	}
	return 0
}

func rank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := toFloat(v); ok {
		return 1
	}
	switch v.(type) {
	case string:
		return 2
	case primitive.ObjectID:
		return 3
	case time.Time:
		return 4
	case bool:
		return 5
	}
	return 6
}

func cmpOrdered[T int | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// project supports top-level inclusion or exclusion projections.
func project(d bson.M, projection bson.D) bson.M {
	if len(projection) == 0 {
		return d
	}
	include := false
	for _, e := range projection {
		if e.Key != "_id" && truthy(e.Value) {
			include = true
			break
		}
	}
	if !include {
		for _, e := range projection {
			if !truthy(e.Value) {
				delete(d, e.Key)
			}
		}
		return d
	}
	out := bson.M{}
	if id, ok := d["_id"]; ok {
		out["_id"] = id
	}
	for _, e := range projection {
		if e.Key == "_id" {
			if !truthy(e.Value) {
				delete(out, "_id")
			}
			continue
		}
		if v, ok := d[e.Key]; ok && truthy(e.Value) {
			out[e.Key] = v
		}
	}
	return out
}

func truthy(v any) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return v != nil
}
