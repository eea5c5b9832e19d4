package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ideavote/internal/auth"
	"ideavote/internal/cache"
	"ideavote/internal/comment"
	"ideavote/internal/config"
	"ideavote/internal/db"
	httpx "ideavote/internal/http"
	"ideavote/internal/jobs"
	"ideavote/internal/logger"
	"ideavote/internal/ratelimit"
	"ideavote/internal/realtime"
	"ideavote/internal/statsync"
	"ideavote/internal/vote"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, _ := config.Load()
	logger.Configure(cfg.LogLevel, cfg.LogFile)

	gdb, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	if err := db.AutoMigrateAndIndexes(gdb); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		// limiter fails open and invalidation is soft; keep serving
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable at startup")
	}

	limiter := ratelimit.New(rdb, map[string]ratelimit.Rule{
		ratelimit.ClassVote:    {Limit: cfg.RateLimitVote, Window: cfg.RateLimitWindow},
		ratelimit.ClassComment: {Limit: cfg.RateLimitComment, Window: cfg.RateLimitWindow},
	})

	inv := &cache.Invalidator{Redis: rdb, Timeout: cfg.CacheTimeout}
	tallies := &cache.TallyView{Redis: rdb, TTL: 30 * time.Second, Timeout: cfg.CacheTimeout}

	owners, err := cache.NewLocal[string](4096)
	if err != nil {
		log.Fatal().Err(err).Msg("owner cache")
	}

	// realtime handle exists before any service; the hub attaches below
	broadcaster := realtime.NewBroadcaster()

	ledger := &vote.GormStore{DB: gdb}
	jobsRepo := &jobs.Repo{DB: gdb}

	var (
		syncer vote.Syncer
		queue  vote.SyncQueue
	)
	if cfg.SyncBaseURL != "" {
		syncer = statsync.NewClient(cfg.SyncBaseURL, cfg.SyncTimeout)
		queue = jobsRepo
	} else {
		log.Warn().Msg("SYNC_BASE_URL not set, statistics sync disabled")
	}

	votes := &vote.Service{
		Store:     ledger,
		Cache:     inv,
		Sync:      syncer,
		Queue:     queue,
		TxTimeout: cfg.VoteTxTimeout,
	}

	notifier := &comment.Notifier{DB: gdb, Realtime: broadcaster}
	comments := &comment.Service{
		DB:       gdb,
		Cache:    inv,
		Realtime: broadcaster,
		Ideas: &comment.CachedIdeaDirectory{
			Next:  &comment.HTTPIdeaDirectory{BaseURL: cfg.IdeasBaseURL, Timeout: cfg.SyncTimeout},
			Cache: owners,
		},
		Notifier: notifier,
	}

	hub := realtime.NewHub(cfg.CORSAllowedOrigins)
	broadcaster.Attach(hub)

	r := httpx.NewRouter(cfg, httpx.Deps{
		JWT:      auth.NewJWT(cfg.JWTSecret),
		Limiter:  limiter,
		Votes:    votes,
		Tallies:  tallies,
		Comments: comments,
		Notifier: notifier,
		Hub:      hub,
	})

	ctx, cancel := context.WithCancel(context.Background())

	// worker
	if syncer != nil {
		worker := &jobs.Worker{ID: "worker-1", Repo: jobsRepo, Ledger: ledger, Syncer: syncer}
		go worker.Run(ctx)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	// graceful shutdown
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	<-ch

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
