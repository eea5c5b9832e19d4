package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// SyncBaseURL is the statistics service root. Empty disables dispatch.
	SyncBaseURL  string
	SyncTimeout  time.Duration
	IdeasBaseURL string

	CacheTimeout  time.Duration
	VoteTxTimeout time.Duration

	RateLimitVote    int
	RateLimitComment int
	RateLimitWindow  time.Duration

	LogLevel string
	LogFile  string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          mustGetenv("DATABASE_URL"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getint("REDIS_DB", 0),

		SyncBaseURL:  strings.TrimRight(getenv("SYNC_BASE_URL", ""), "/"),
		SyncTimeout:  getduration("SYNC_TIMEOUT", 3*time.Second),
		IdeasBaseURL: strings.TrimRight(getenv("IDEAS_BASE_URL", ""), "/"),

		CacheTimeout:  getduration("CACHE_TIMEOUT", 500*time.Millisecond),
		VoteTxTimeout: getduration("VOTE_TX_TIMEOUT", 10*time.Second),

		RateLimitVote:    getint("RATE_LIMIT_VOTE", 120),
		RateLimitComment: getint("RATE_LIMIT_COMMENT", 60),
		RateLimitWindow:  getduration("RATE_LIMIT_WINDOW", time.Hour),

		LogLevel: getenv("LOG_LEVEL", "info"),
		LogFile:  getenv("LOG_FILE", "ideavote.log"),
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	cfg.JWTSecret = mustGetenv("JWT_SECRET")
	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func getint(key string, def int) int {
	v, err := strconv.Atoi(getenv(key, ""))
	if err != nil {
		return def
	}
	return v
}

// getduration accepts Go durations ("750ms") or plain seconds ("3").
func getduration(key string, def time.Duration) time.Duration {
	raw := getenv(key, "")
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if sec, err := strconv.Atoi(raw); err == nil {
		return time.Duration(sec) * time.Second
	}
	return def
}

func mustGetenv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		panic("missing env: " + key)
	}
	return v
}
