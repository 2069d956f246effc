package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotConfigured is returned by a Handle without a connection URI.
var ErrNotConfigured = errors.New("mongo: MONGODB_URI is not configured")

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// Handle is the process-scoped database handle. The connection is opened on
// first use and then reused; a failed attempt is not remembered, so the next
// call tries again.
type Handle struct {
	uri     string
	name    string
	timeout time.Duration

	mu     sync.Mutex
	client *mongo.Client
}

func NewHandle(uri, name string, timeout time.Duration) *Handle {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Handle{uri: uri, name: name, timeout: timeout}
}

// NewHandleFromClient wraps an already connected client.
func NewHandleFromClient(client *mongo.Client, name string) *Handle {
	return &Handle{name: name, timeout: 10 * time.Second, client: client}
}

// Name is the database name.
func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) Client(ctx context.Context) (*mongo.Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client != nil {
		return h.client, nil
	}
	if h.uri == "" {
		return nil, ErrNotConfigured
	}
	client, err := ConnectMongo(ctx, h.uri, h.timeout)
	if err != nil {
		return nil, err
	}
	h.client = client
	return client, nil
}

func (h *Handle) Database(ctx context.Context) (*mongo.Database, error) {
	client, err := h.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Database(h.name), nil
}

// Ping connects if needed and pings the primary.
func (h *Handle) Ping(ctx context.Context) error {
	client, err := h.Client(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return client.Ping(ctx, nil)
}

func (h *Handle) Close(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return nil
	}
	err := h.client.Disconnect(ctx)
	h.client = nil
	return err
}
