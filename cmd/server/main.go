package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studyforum/internal/config"
	"studyforum/internal/db"
	"studyforum/internal/logger"
	"studyforum/internal/observability"
	"studyforum/internal/router"
	"studyforum/internal/services"
	"studyforum/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()

	appLog, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer appLog.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitTracing(ctx, appLog, observability.TracingConfig{
		ServiceName: "studyforum",
		Environment: cfg.AppEnv,
		Exporter:    cfg.TracesExporter,
	})

	// Initialize Database
	gdb, err := db.Open(cfg.DatabaseURL, cfg.DBLogLevel)
	if err != nil {
		appLog.Fatal("Failed to connect to database", "error", err)
	}
	if err := db.Migrate(gdb); err != nil {
		appLog.Fatal("Failed to migrate database", "error", err)
	}
	appLog.Info("Database connected and migrated")

	// 配置了 Redis 则多实例共享摘要缓存，否则使用进程内 LRU
	var cache utils.Cache = utils.NewLocalCache(1024)
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			appLog.Warn("Redis unavailable, using local cache", "addr", cfg.RedisAddr, "error", err)
		} else {
			cache = utils.NewRedisCache(rdb, "studyforum:")
			appLog.Info("Redis cache enabled", "addr", cfg.RedisAddr)
		}
		cancel()
	}

	if cfg.AIAPIKey == "" {
		appLog.Warn("AI_API_KEY is not set, chat and summaries will fail")
	}
	llm := services.NewLLMService(services.LLMConfig{
		BaseURL:   cfg.AIBaseURL,
		APIKey:    cfg.AIAPIKey,
		Model:     cfg.AIModel,
		MaxTokens: cfg.AIMaxTokens,
	})

	svc := router.Services{
		DB:         gdb,
		Users:      services.NewUserService(gdb),
		Posts:      services.NewPostService(gdb),
		Comments:   services.NewCommentService(gdb),
		Votes:      services.NewVoteLedger(gdb),
		Saved:      services.NewSavedPostService(gdb),
		Reputation: services.NewReputationService(gdb),
		Chat:       services.NewChatRelay(gdb, llm, cfg.AITimeout, appLog),
		Summarizer: services.NewSummarizer(gdb, llm, cache, cfg.SummaryCacheTTL, cfg.AITimeout, appLog),
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(cfg, appLog, svc),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// 流式对话最长持续 AI 超时时间
		WriteTimeout: cfg.AITimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		appLog.Info("Server starting", "port", cfg.Port, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Fatal("Server failed", "error", err)
		}
	}()

	<-ctx.Done()
	appLog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("Server shutdown failed", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		appLog.Warn("Tracing shutdown failed", "error", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
