package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sparcky/panel-api/internal/admin"
	"github.com/sparcky/panel-api/internal/apperror"
	"github.com/sparcky/panel-api/internal/document"
	"github.com/sparcky/panel-api/internal/document/query"
	"github.com/sparcky/panel-api/internal/document/repository"
	"github.com/sparcky/panel-api/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	// ExportMaxDocuments caps a single collection export.
	ExportMaxDocuments = 10_000
	ExportURLTTL       = 15 * time.Minute
)

// ObjectStore receives collection exports.
type ObjectStore interface {
	UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Service is the generic document façade behind the dev-db admin routes.
// Every operation checks the collection against the admin guard before any
// input is parsed or the store is touched.
type Service struct {
	guard   *admin.Guard
	store   repository.Store
	objects ObjectStore
	now     func() time.Time
}

type Option func(*Service)

// WithClock replaces the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithObjectStore enables collection exports.
func WithObjectStore(objects ObjectStore) Option {
	return func(s *Service) { s.objects = objects }
}

func New(guard *admin.Guard, store repository.Store, opts ...Option) *Service {
	s := &Service{
		guard: guard,
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Guard exposes the admin guard the service was built with.
func (s *Service) Guard() *admin.Guard {
	return s.guard
}

// ExportsEnabled reports whether an object store was configured.
func (s *Service) ExportsEnabled() bool {
	return s.objects != nil
}

// ListRequest carries the raw, still JSON-encoded list parameters.
type ListRequest struct {
	Filter     string
	Sort       string
	Projection string
	Limit      string
	Skip       string
	// GuildID is the legacy equality shortcut merged into the filter.
	GuildID string
}

type ListResult struct {
	Database   string
	Collection string
	Filter     bson.D
	Sort       bson.D
	Projection bson.D
	Limit      int
	Skip       int
	Total      int64
	Items      []document.Document
}

// Result describes a single-document operation.
type Result struct {
	Database   string
	Collection string
	Query      bson.D
	Document   document.Document
}

type CollectionsResult struct {
	Database string
	Allowed  []string
	// Collections is the sorted intersection of Allowed and what exists.
	Collections []string
}

type ExportResult struct {
	Key   string
	URL   string
	Count int
}

func (s *Service) Collections(ctx context.Context) (*CollectionsResult, error) {
	allowed, err := s.guard.AllowedCollections()
	if err != nil {
		return nil, err
	}
	existing, err := s.store.CollectionNames(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	exists := make(map[string]bool, len(existing))
	for _, name := range existing {
		exists[name] = true
	}
	out := []string{}
	for _, name := range allowed {
		if exists[name] {
			out = append(out, name)
		}
	}
	return &CollectionsResult{Database: s.store.Database(), Allowed: allowed, Collections: out}, nil
}

func (s *Service) List(ctx context.Context, collection string, req ListRequest) (_ *ListResult, err error) {
	name, err := s.guard.AssertCollectionAllowed(collection)
	if err != nil {
		return nil, err
	}
	defer s.record(name, "list", &err)

	filter, sort, projection, err := parseListQuery(req)
	if err != nil {
		return nil, err
	}
	if g := strings.TrimSpace(req.GuildID); g != "" {
		filter = append(query.Without(filter, "guildId"), bson.E{Key: "guildId", Value: g})
	}
	limit := query.ParseBoundedInt(req.Limit, query.LimitBounds)
	skip := query.ParseBoundedInt(req.Skip, query.SkipBounds)

	total, err := s.store.Count(ctx, name, filter)
	if err != nil {
		return nil, storeError(err)
	}
	items, err := s.store.Find(ctx, name, filter, repository.FindOptions{
		Sort:       sort,
		Projection: projection,
		Skip:       int64(skip),
		Limit:      int64(limit),
	})
	if err != nil {
		return nil, storeError(err)
	}
	return &ListResult{
		Database:   s.store.Database(),
		Collection: name,
		Filter:     filter,
		Sort:       sort,
		Projection: projection,
		Limit:      limit,
		Skip:       skip,
		Total:      total,
		Items:      items,
	}, nil
}

func parseListQuery(req ListRequest) (filter, sort, projection bson.D, err error) {
	rawFilter, err := query.ParseJSONParameter(req.Filter, query.JSONParamOptions{Default: bson.D{}})
	if err != nil {
		return nil, nil, nil, err
	}
	rawSort, err := query.ParseJSONParameter(req.Sort, query.JSONParamOptions{})
	if err != nil {
		return nil, nil, nil, err
	}
	rawProjection, err := query.ParseJSONParameter(req.Projection, query.JSONParamOptions{})
	if err != nil {
		return nil, nil, nil, err
	}
	if filter, err = query.NormalizeFilter(rawFilter); err != nil {
		return nil, nil, nil, err
	}
	if sort, err = query.NormalizeSort(rawSort); err != nil {
		return nil, nil, nil, err
	}
	if projection, err = query.NormalizeProjection(rawProjection); err != nil {
		return nil, nil, nil, err
	}
	return filter, sort, projection, nil
}

func (s *Service) GetByID(ctx context.Context, collection, rawID string) (_ *Result, err error) {
	name, err := s.guard.AssertCollectionAllowed(collection)
	if err != nil {
		return nil, err
	}
	defer s.record(name, "get", &err)

	id, err := query.ResolveIdentifierStrict(rawID)
	if err != nil {
		return nil, err
	}
	return s.readBack(ctx, name, id.Filter())
}

// GetByKey looks a document up by business key fields, e.g. guildId or
// guildId+userId. Every key value must be a non-empty string.
func (s *Service) GetByKey(ctx context.Context, collection string, keys bson.D) (_ *Result, err error) {
	name, err := s.guard.AssertCollectionAllowed(collection)
	if err != nil {
		return nil, err
	}
	defer s.record(name, "get_by_key", &err)

	if err := validateKeys(keys); err != nil {
		return nil, err
	}
	return s.readBack(ctx, name, keys)
}

// Insert stamps createdAt/updatedAt unless the body already carries them and
// returns the document as stored.
func (s *Service) Insert(ctx context.Context, collection string, raw any) (_ *Result, err error) {
	name, err := s.guard.AssertCollectionAllowed(collection)
	if err != nil {
		return nil, err
	}
	defer s.record(name, "insert", &err)

	doc, err := query.SanitizeInsert(raw)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !query.Has(doc, query.FieldCreatedAt) {
		doc = append(doc, bson.E{Key: query.FieldCreatedAt, Value: now})
	}
	if !query.Has(doc, query.FieldUpdatedAt) {
		doc = append(doc, bson.E{Key: query.FieldUpdatedAt, Value: now})
	}
	id, err := s.store.InsertOne(ctx, name, doc)
	if err != nil {
		return nil, storeError(err)
	}
	return s.readBack(ctx, name, bson.D{{Key: query.FieldID, Value: id}})
}

// PatchByID merges the sanitized patch into the existing document and
// refreshes updatedAt. It never creates a document.
func (s *Service) PatchByID(ctx context.Context, collection, rawID string, raw any) (_ *Result, err error) {
	name, err := s.guard.AssertCollectionAllowed(collection)
	if err != nil {
		return nil, err
	}
	defer s.record(name, "patch", &err)

	id, err := query.ResolveIdentifierStrict(rawID)
	if err != nil {
		return nil, err
	}
	patch, err := query.SanitizePatch(raw)
	if err != nil {
		return nil, err
	}
	set := append(patch, bson.E{Key: query.FieldUpdatedAt, Value: s.now()})
	res, err := s.store.UpdateOne(ctx, name, id.Filter(), set, nil, false)
	if err != nil {
		return nil, storeError(err)
	}
	if res.Matched == 0 {
		return nil, errDocumentNotFound()
	}
	return s.readBack(ctx, name, id.Filter())
}

// ReplaceByID overwrites the whole document. The path identifier wins over
// any _id in the body, updatedAt is refreshed, and a missing target is
// NotFound rather than created.
func (s *Service) ReplaceByID(ctx context.Context, collection, rawID string, raw any) (_ *Result, err error) {
	name, err := s.guard.AssertCollectionAllowed(collection)
	if err != nil {
		return nil, err
	}
	defer s.record(name, "replace", &err)

	id, err := query.ResolveIdentifierStrict(rawID)
	if err != nil {
		return nil, err
	}
	body, err := query.SanitizeInsert(raw)
	if err != nil {
		return nil, err
	}
	doc := bson.D{{Key: query.FieldID, Value: id.Value()}}
	doc = append(doc, query.Without(body, query.FieldID, query.FieldUpdatedAt)...)
	doc = append(doc, bson.E{Key: query.FieldUpdatedAt, Value: s.now()})

	matched, err := s.store.ReplaceOne(ctx, name, id.Filter(), doc)
	if err != nil {
		return nil, storeError(err)
	}
	if matched == 0 {
		return nil, errDocumentNotFound()
	}
	return s.readBack(ctx, name, id.Filter())
}

// UpsertByKey sets the patch fields on the document matching keys, creating
// it with the key fields and createdAt when absent.
func (s *Service) UpsertByKey(ctx context.Context, collection string, keys bson.D, raw any) (_ *Result, err error) {
	name, err := s.guard.AssertCollectionAllowed(collection)
	if err != nil {
		return nil, err
	}
	defer s.record(name, "upsert", &err)

	if err := validateKeys(keys); err != nil {
		return nil, err
	}
	patch, err := query.SanitizePatch(raw)
	if err != nil {
		return nil, err
	}
	if _, err := repository.UpsertByKey(ctx, s.store, name, keys, patch, s.now()); err != nil {
		return nil, storeError(err)
	}
	return s.readBack(ctx, name, keys)
}

func (s *Service) DeleteByID(ctx context.Context, collection, rawID string) (_ *Result, err error) {
	name, err := s.guard.AssertCollectionAllowed(collection)
	if err != nil {
		return nil, err
	}
	defer s.record(name, "delete", &err)

	id, err := query.ResolveIdentifierStrict(rawID)
	if err != nil {
		return nil, err
	}
	deleted, err := s.store.DeleteOne(ctx, name, id.Filter())
	if err != nil {
		return nil, storeError(err)
	}
	if deleted == 0 {
		return nil, errDocumentNotFound()
	}
	return &Result{Database: s.store.Database(), Collection: name, Query: id.Filter()}, nil
}

// Export writes up to ExportMaxDocuments matching documents as a JSON array
// to the object store and returns a short-lived download link.
func (s *Service) Export(ctx context.Context, collection, rawFilter string) (_ *ExportResult, err error) {
	name, err := s.guard.AssertCollectionAllowed(collection)
	if err != nil {
		return nil, err
	}
	defer s.record(name, "export", &err)

	if s.objects == nil {
		return nil, apperror.Upstream("Object storage is not configured", nil)
	}
	parsed, err := query.ParseJSONParameter(rawFilter, query.JSONParamOptions{Default: bson.D{}})
	if err != nil {
		return nil, err
	}
	filter, err := query.NormalizeFilter(parsed)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Find(ctx, name, filter, repository.FindOptions{Limit: ExportMaxDocuments})
	if err != nil {
		return nil, storeError(err)
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return nil, apperror.Upstream("Failed to encode export", err)
	}
	key := fmt.Sprintf("exports/%s/%d.json", name, s.now().UnixMilli())
	if err := s.objects.UploadFile(ctx, key, bytes.NewReader(payload), int64(len(payload)), "application/json"); err != nil {
		return nil, apperror.Upstream("Failed to upload export", err)
	}
	url, err := s.objects.GetPresignedURL(ctx, key, ExportURLTTL)
	if err != nil {
		return nil, apperror.Upstream("Failed to sign export URL", err)
	}
	return &ExportResult{Key: key, URL: url, Count: len(items)}, nil
}

func (s *Service) readBack(ctx context.Context, name string, filter bson.D) (*Result, error) {
	doc, err := s.store.FindOne(ctx, name, filter)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errDocumentNotFound()
		}
		return nil, storeError(err)
	}
	return &Result{Database: s.store.Database(), Collection: name, Query: filter, Document: doc}, nil
}

func (s *Service) record(collection, op string, errp *error) {
	outcome := "ok"
	if *errp != nil {
		outcome = string(apperror.As(*errp).Type)
	}
	metrics.DocumentOperations.WithLabelValues(collection, op, outcome).Inc()
}

func validateKeys(keys bson.D) error {
	if len(keys) == 0 {
		return apperror.BadRequest("Missing key")
	}
	for _, k := range keys {
		v, _ := k.Value.(string)
		if strings.TrimSpace(v) == "" {
			return apperror.BadRequest("Missing " + k.Key)
		}
	}
	return nil
}

func errDocumentNotFound() error {
	return apperror.NotFound("Document not found")
}

func storeError(err error) error {
	if errors.Is(err, repository.ErrDuplicateKey) {
		return apperror.Conflict("Duplicate key", err)
	}
	return apperror.Upstream("Database operation failed", err)
}
