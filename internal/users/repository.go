package users

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sparcky/panel-api/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository defines persistence operations for users
type UserRepository interface {
	UpsertByDiscordID(ctx context.Context, u *models.User) (*models.User, error)
	GetByDiscordID(ctx context.Context, discordID string) (*models.User, error)
}

// MongoUserRepository implements UserRepository using MongoDB
type MongoUserRepository struct {
	col *mongo.Collection
}

// NewMongoUserRepository creates a new repository for the given collection
func NewMongoUserRepository(col *mongo.Collection) *MongoUserRepository {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "discordId", Value: 1}}, Options: options.Index().SetUnique(true)}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &MongoUserRepository{col: col}
}

func (r *MongoUserRepository) UpsertByDiscordID(ctx context.Context, u *models.User) (*models.User, error) {
	now := time.Now().UTC()
	filter := bson.M{"discordId": u.DiscordID}
	update := bson.M{
		"$set": bson.M{
			"username":    u.Username,
			"globalName":  u.GlobalName,
			"avatar":      u.Avatar,
			"lastLoginAt": now,
			"updatedAt":   now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var updated models.User
	if err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *MongoUserRepository) GetByDiscordID(ctx context.Context, discordID string) (*models.User, error) {
	var u models.User
	if err := r.col.FindOne(ctx, bson.M{"discordId": discordID}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// MemoryUserRepository backs the standalone dev server and tests.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*models.User)}
}

func (r *MemoryUserRepository) UpsertByDiscordID(ctx context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	cur, ok := r.users[u.DiscordID]
	if !ok {
		cur = &models.User{ID: uuid.NewString(), DiscordID: u.DiscordID, CreatedAt: now}
		r.users[u.DiscordID] = cur
	}
	cur.Username = u.Username
	cur.GlobalName = u.GlobalName
	cur.Avatar = u.Avatar
	cur.LastLoginAt = now
	cur.UpdatedAt = now
	out := *cur
	return &out, nil
}

func (r *MemoryUserRepository) GetByDiscordID(ctx context.Context, discordID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[discordID]; ok {
		out := *u
		return &out, nil
	}
	return nil, nil
}
