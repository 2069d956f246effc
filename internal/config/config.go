package config

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Discord   DiscordConfig
	JWT       JWTConfig
	Panel     PanelConfig
	Admin     AdminConfig
	RateLimit RateLimitConfig
	MinIO     MinIOConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// DiscordConfig carries both the OAuth application credentials and the bot
// identity used for guild/channel lookups.
type DiscordConfig struct {
	ClientID          string
	ClientSecret      string
	RedirectURI       string
	BotToken          string
	BotID             string
	BotUsername       string
	BotAvatar         string
	InvitePermissions string
}

type JWTConfig struct {
	Secret     string
	SessionTTL time.Duration
}

type PanelConfig struct {
	URL        string
	MeCacheTTL time.Duration
}

// AdminConfig keeps the raw settings of the dev-db admin surface. The guard
// re-derives everything from these strings on each call.
type AdminConfig struct {
	EnableFlag            string
	Environment           string
	AllowedCollections    string
	GuildConfigCollection string
}

type RateLimitConfig struct {
	Enabled       bool
	RPS           float64
	Burst         int
	UseRedis      bool
	WindowSeconds int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type LogConfig struct {
	Level  string
	Format string
}

// ErrMissingMongoURI is returned by LoadConfig when MONGODB_URI is unset.
var ErrMissingMongoURI = errors.New("environment variable MONGODB_URI is required")

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	cfg := Load()
	if cfg.MongoDB.URI == "" {
		return nil, ErrMissingMongoURI
	}

	// Basic validation
	if cfg.JWT.Secret == "" {
		log.Println("WARNING: JWT_SECRET is not set; set a secure value in production")
	}

	return cfg, nil
}

// Load reads the same settings as LoadConfig without validating them.
func Load() *Config {
	_ = godotenv.Load(".env")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "3001")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_ENVIRONMENT", "development")
	viper.SetDefault("MONGODB_DATABASE", "sparcky")
	viper.SetDefault("MONGODB_TIMEOUT", 10)
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("SESSION_TTL_HOURS", 168)
	viper.SetDefault("DISCORD_BOT_USERNAME", "Bot")
	viper.SetDefault("DISCORD_BOT_INVITE_PERMISSIONS", "0")
	viper.SetDefault("PANEL_URL", "http://localhost:5173")
	viper.SetDefault("ME_CACHE_TTL_MS", 15000)
	viper.SetDefault("BOT_GUILD_CONFIG_COLLECTION", "guildconfigurations")
	viper.SetDefault("RATE_LIMIT_RPS", 10)
	viper.SetDefault("RATE_LIMIT_BURST", 20)
	viper.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	viper.SetDefault("MINIO_BUCKET", "panel-exports")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")

	env := viper.GetString("SERVER_ENVIRONMENT")

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetString("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			Environment:  env,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      os.Getenv("MONGODB_URI"),
			Database: viper.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(viper.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       0,
		},
		Discord: DiscordConfig{
			ClientID:          viper.GetString("DISCORD_CLIENT_ID"),
			ClientSecret:      os.Getenv("DISCORD_CLIENT_SECRET"),
			RedirectURI:       viper.GetString("DISCORD_REDIRECT_URI"),
			BotToken:          os.Getenv("DISCORD_BOT_TOKEN"),
			BotID:             viper.GetString("DISCORD_BOT_ID"),
			BotUsername:       viper.GetString("DISCORD_BOT_USERNAME"),
			BotAvatar:         viper.GetString("DISCORD_BOT_AVATAR"),
			InvitePermissions: viper.GetString("DISCORD_BOT_INVITE_PERMISSIONS"),
		},
		JWT: JWTConfig{
			Secret:     os.Getenv("JWT_SECRET"),
			SessionTTL: time.Duration(viper.GetInt("SESSION_TTL_HOURS")) * time.Hour,
		},
		Panel: PanelConfig{
			URL:        viper.GetString("PANEL_URL"),
			MeCacheTTL: time.Duration(viper.GetInt("ME_CACHE_TTL_MS")) * time.Millisecond,
		},
		Admin: AdminConfig{
			EnableFlag:            viper.GetString("ENABLE_DEV_DB_ADMIN"),
			Environment:           env,
			AllowedCollections:    viper.GetString("DEV_DB_ALLOWED_COLLECTIONS"),
			GuildConfigCollection: viper.GetString("BOT_GUILD_CONFIG_COLLECTION"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       viper.GetBool("RATE_LIMIT_ENABLED"),
			RPS:           viper.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         viper.GetInt("RATE_LIMIT_BURST"),
			UseRedis:      viper.GetBool("RATE_LIMIT_USE_REDIS"),
			WindowSeconds: viper.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		MinIO: MinIOConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
		},
		Log: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
	}

	return cfg
}

// IsProduction reports whether the deployment environment is "production".
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
