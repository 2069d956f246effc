package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sparcky/panel-api/handlers"
	"github.com/sparcky/panel-api/internal/admin"
	"github.com/sparcky/panel-api/internal/auth"
	"github.com/sparcky/panel-api/internal/config"
	"github.com/sparcky/panel-api/internal/database"
	"github.com/sparcky/panel-api/internal/discord"
	"github.com/sparcky/panel-api/internal/document/handler"
	"github.com/sparcky/panel-api/internal/document/repository"
	"github.com/sparcky/panel-api/internal/document/service"
	"github.com/sparcky/panel-api/internal/guildconfig"
	"github.com/sparcky/panel-api/internal/mecache"
	"github.com/sparcky/panel-api/internal/sessions"
	"github.com/sparcky/panel-api/internal/storage"
	"github.com/sparcky/panel-api/internal/tokens"
	"github.com/sparcky/panel-api/internal/users"
	"github.com/sparcky/panel-api/pkg/logger"
	"github.com/sparcky/panel-api/pkg/metrics"
	"github.com/sparcky/panel-api/pkg/middleware"
	"golang.org/x/oauth2"
)

const (
	usersCollection    = "panelusers"
	sessionsCollection = "panelsessions"
)

var startTime = time.Now()

func main() {
	// initialize logging (can be controlled with LOG_LEVEL env: debug|info|warn|error|fatal)
	logger.Init(os.Getenv("LOG_LEVEL"))
	logger.SetFormat(os.Getenv("LOG_FORMAT"))
	logger.Debugf("startup: LOG_LEVEL=%s", logger.LevelString())

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if os.Getenv("LOG_LEVEL") == "" {
		logger.Init(cfg.Log.Level)
	}
	logger.SetFormat(cfg.Log.Format)
	logger.Infof("config loaded: env=%s mongo_db=%s redis=%v minio=%v bot_token=%v",
		cfg.Server.Environment, cfg.MongoDB.Database, cfg.Redis.Host != "", cfg.MinIO.Endpoint != "", cfg.Discord.BotToken != "")

	ctx := context.Background()

	r := gin.New()
	r.Use(cors(cfg.Panel.URL))
	r.Use(gin.Logger(), gin.Recovery())

	// Redis is optional: sessions, blacklist, /me cache and the rate limiter
	// fall back to process memory without it.
	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Host + ":" + cfg.Redis.Port, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Redis.Host, cfg.Redis.Port, err)
			_ = client.Close()
		} else {
			rdb = client
			logger.Infof("connected to Redis %s:%s", cfg.Redis.Host, cfg.Redis.Port)
		}
	}

	// MongoDB handle connects lazily; retry with backoff to tolerate startup races
	mongo := database.NewHandle(cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.Timeout)
	mongoReady := false
	const maxAttempts = 5
	backoff := time.Second
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := mongo.Ping(ctx); err == nil {
			mongoReady = true
			break
		} else {
			logger.Warnf("attempt %d/%d: failed to connect to MongoDB: %v", attempt, maxAttempts, err)
		}
		if attempt < maxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	var (
		userSvc     *users.Service
		sessionsSvc *sessions.Service
		blacklist   sessions.Blacklist
		meCache     mecache.Cache
	)
	if mongoReady {
		db, _ := mongo.Database(ctx)
		userSvc = users.NewService(users.NewMongoUserRepository(db.Collection(usersCollection)))
		if rdb == nil {
			sessionsSvc = sessions.NewService(sessions.NewMongoRepository(db.Collection(sessionsCollection)))
		}
	} else {
		logger.Warnf("MongoDB unavailable at startup; users are kept in memory until restart")
		userSvc = users.NewService(users.NewMemoryUserRepository())
	}
	if rdb != nil {
		sessionsSvc = sessions.NewService(sessions.NewRedisRepository(rdb, "session:"))
		blacklist = sessions.NewRedisBlacklist(rdb)
		meCache = mecache.NewRedisCache(rdb, "me:")
	} else {
		if sessionsSvc == nil {
			sessionsSvc = sessions.NewService(sessions.NewMemoryRepository())
		}
		blacklist = sessions.NewMemoryBlacklist()
		meCache = mecache.NewMemoryCache()
	}

	store := repository.NewMongoStore(mongo)
	guard := admin.NewGuard(cfg.Admin)
	var docOpts []service.Option
	if cfg.MinIO.Endpoint != "" {
		objects, err := storage.NewMinIOStorage(ctx, cfg.MinIO)
		if err != nil {
			logger.Warnf("collection exports disabled: %v", err)
		} else {
			docOpts = append(docOpts, service.WithObjectStore(objects))
		}
	}
	docSvc := service.New(guard, store, docOpts...)
	guildConfigs := guildconfig.NewRepository(store, cfg.Admin.GuildConfigCollection)
	dc := discord.NewRESTClient(cfg.Discord.BotToken, nil)
	requireAuth := middleware.AuthMiddleware(tokens.NewVerifier(cfg.JWT.Secret, blacklist))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	// readiness: 200 only when mongo (and redis, when configured) answer
	r.GET("/ready", func(c *gin.Context) {
		deps := map[string]bool{}
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		deps["mongo"] = mongo.Ping(pingCtx) == nil
		ready := deps["mongo"]
		if rdb != nil {
			deps["redis"] = rdb.Ping(pingCtx).Err() == nil
			ready = ready && deps["redis"]
		}
		status, label := http.StatusOK, "ready"
		if !ready {
			status, label = http.StatusServiceUnavailable, "not_ready"
		}
		c.JSON(status, gin.H{"status": label, "deps": deps, "uptime": time.Since(startTime).String()})
	})

	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r)

	handlers.NewAuthHandler(cfg, auth.NewProvider(cfg.Discord, oauth2.Endpoint{}), dc, userSvc, sessionsSvc, blacklist).
		Register(&r.RouterGroup, requireAuth)

	api := r.Group("/api")
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && rdb != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			api.Use(middleware.RedisRateLimitMiddleware(rdb, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win))
		} else {
			api.Use(middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
		}
	}
	handlers.NewMeHandler(cfg, dc, sessionsSvc, meCache).Register(api, requireAuth)
	handlers.NewGuildsHandler(cfg, dc, guildConfigs).Register(api, requireAuth)
	handlers.RegisterDebugRoutes(api, store, requireAuth)
	handler.RegisterDocumentRoutes(api.Group("/dev-db", requireAuth), docSvc)
	if !guard.Enabled() {
		logger.Infof("dev-db admin disabled (env=%s)", cfg.Admin.Environment)
	}

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	done := runGracefulShutdown(srv, mongo, rdb)

	logger.Infof("API running on http://%s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server failed: %v", err)
	}
	<-done
}

func runGracefulShutdown(srv *http.Server, mongo *database.Handle, rdb *redis.Client) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Infof("shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("server shutdown error: %v", err)
		}
		if err := mongo.Close(shutdownCtx); err != nil {
			logger.Warnf("mongo disconnect: %v", err)
		}
		if rdb != nil {
			_ = rdb.Close()
		}
		close(done)
	}()

	return done
}

// cors reflects the caller Origin; requests without one get PANEL_URL.
func cors(panelURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", panelURL)
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Length, Retry-After")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
