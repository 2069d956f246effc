package guildconfig

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sparcky/panel-api/internal/apperror"
	"github.com/sparcky/panel-api/internal/document"
	"github.com/sparcky/panel-api/internal/document/repository"
	"go.mongodb.org/mongo-driver/bson"
)

// Repository reads and writes guild configurations in the bot's collection.
// It bypasses the dev-db admin guard: the panel always needs guild configs.
type Repository struct {
	store      repository.Store
	collection string
	now        func() time.Time
}

func NewRepository(store repository.Store, collection string) *Repository {
	if strings.TrimSpace(collection) == "" {
		collection = "guildconfigurations"
	}
	return &Repository{store: store, collection: collection, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the timestamp source; used by tests.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

func (r *Repository) Collection() string { return r.collection }

func (r *Repository) Database() string { return r.store.Database() }

// Raw returns the stored document, or nil when the guild has none.
func (r *Repository) Raw(ctx context.Context, guildID string) (document.Document, error) {
	if guildID == "" {
		return nil, apperror.BadRequest("Missing guildId")
	}
	doc, err := r.store.FindOne(ctx, r.collection, key(guildID))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Upstream("Failed to load guild config", err)
	}
	return doc, nil
}

// Get never reports NotFound: a guild without a stored document gets defaults.
func (r *Repository) Get(ctx context.Context, guildID string) (*Config, error) {
	doc, err := r.Raw(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc, guildID), nil
}

// Set narrows raw, applies it over the current record and upserts the result
// by guildId. createdAt is only written on first insert; updatedAt always.
func (r *Repository) Set(ctx context.Context, guildID string, raw any) (*Config, error) {
	current, err := r.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	next := current.Apply(Narrow(raw))
	next.GuildID = &guildID

	if _, err := repository.UpsertByKey(ctx, r.store, r.collection, key(guildID), next.fields(), r.now()); err != nil {
		return nil, apperror.Upstream("Failed to save guild config", err)
	}
	return next, nil
}

func key(guildID string) bson.D {
	return bson.D{{Key: "guildId", Value: guildID}}
}
