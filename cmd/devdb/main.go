// Command devdb serves only the dev-db admin routes, without Discord login.
// It is meant for local inspection of the bot database; with no MONGODB_URI
// it runs against an in-memory store. Callers still need a panel bearer
// token signed with JWT_SECRET, and production settings keep the routes
// locked unless ENABLE_DEV_DB_ADMIN is set.
package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sparcky/panel-api/internal/admin"
	"github.com/sparcky/panel-api/internal/config"
	"github.com/sparcky/panel-api/internal/database"
	"github.com/sparcky/panel-api/internal/document/handler"
	"github.com/sparcky/panel-api/internal/document/repository"
	"github.com/sparcky/panel-api/internal/document/service"
	"github.com/sparcky/panel-api/internal/sessions"
	"github.com/sparcky/panel-api/internal/tokens"
	"github.com/sparcky/panel-api/pkg/logger"
	"github.com/sparcky/panel-api/pkg/middleware"
)

func main() {
	logger.Init(os.Getenv("LOG_LEVEL"))

	cfg := config.Load()
	if cfg.JWT.Secret == "" {
		logger.Fatalf("JWT_SECRET is required")
	}

	host := os.Getenv("DEV_DB_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := os.Getenv("DEV_DB_PORT")
	if port == "" {
		port = "5010"
	}

	var store repository.Store
	if cfg.MongoDB.URI != "" {
		handle := database.NewHandle(cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.Timeout)
		if err := handle.Ping(context.Background()); err != nil {
			logger.Warnf("cannot connect to MongoDB (%v), using memory-backed store", err)
			store = repository.NewMemoryStore(cfg.MongoDB.Database)
		} else {
			store = repository.NewMongoStore(handle)
		}
	} else {
		store = repository.NewMemoryStore(cfg.MongoDB.Database)
	}

	r := newRouter(cfg, store)
	if !admin.NewGuard(cfg.Admin).Enabled() {
		logger.Warnf("dev-db admin disabled (env=%s); set ENABLE_DEV_DB_ADMIN to open it", cfg.Admin.Environment)
	}

	logger.Infof("dev-db admin listening on %s:%s (db=%s)", host, port, store.Database())
	if err := r.Run(host + ":" + port); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}

func newRouter(cfg *config.Config, store repository.Store) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	requireAuth := middleware.AuthMiddleware(tokens.NewVerifier(cfg.JWT.Secret, sessions.NewMemoryBlacklist()))
	handler.RegisterDocumentRoutes(r.Group("/api/dev-db", requireAuth), service.New(admin.NewGuard(cfg.Admin), store))
	return r
}
