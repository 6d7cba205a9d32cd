package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/localgov/asset-tracker-auth/internal/config"
	"github.com/localgov/asset-tracker-auth/internal/database"
	"github.com/localgov/asset-tracker-auth/internal/handler"
	"github.com/localgov/asset-tracker-auth/internal/logger"
	"github.com/localgov/asset-tracker-auth/internal/middleware"
	"github.com/localgov/asset-tracker-auth/internal/queue"
	"github.com/localgov/asset-tracker-auth/internal/repository"
	"github.com/localgov/asset-tracker-auth/internal/router"
)

func main() {
	cfg := config.Load()

	zlog, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database open: %v", err)
	}

	// Resolve which user-table variant is live and make sure the session
	// columns exist. Both run exactly once here; request handlers never
	// touch the schema.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	table, err := repository.ResolveUserTable(ctx, db)
	if err != nil {
		cancel()
		log.Fatalf("resolve user table: %v", err)
	}
	if err := repository.EnsureTokenColumns(ctx, db, table); err != nil {
		cancel()
		log.Fatalf("ensure token columns: %v", err)
	}
	cancel()

	users := repository.NewUserRepo(db, table)
	tokens := repository.NewTokenRepo(db, table)
	auth := handler.NewAuthHandler(cfg, users, tokens, zlog)

	rdb := config.NewRedisClient()
	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	// Audit trail consumer; runs its own reconnect loop for the life of
	// the process.
	go func() {
		if err := queue.StartAuditConsumer(); err != nil {
			zlog.Warn("audit consumer stopped", zap.Error(err))
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, auth, limit)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, table=%s)", addr, cfg.Env, table.Name)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
