package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/invoiceworks/billing-core/internal/api"
	"github.com/invoiceworks/billing-core/internal/audit"
	"github.com/invoiceworks/billing-core/internal/config"
	"github.com/invoiceworks/billing-core/internal/rbac"
	"github.com/invoiceworks/billing-core/internal/repo"
	"github.com/invoiceworks/billing-core/internal/storage/mysql"
	"github.com/invoiceworks/billing-core/pkg/cache"
	"github.com/invoiceworks/billing-core/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	logger.Info("Starting billing-core", "environment", cfg.Environment)

	sessionTTL := time.Duration(cfg.Auth.SessionTTLMinutes) * time.Minute
	billingCache, err := cache.NewRedis(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB,
		time.Duration(cfg.Cache.TTL)*time.Second, sessionTTL)
	if err != nil {
		logger.Warn("Redis unavailable, falling back to in-process cache", "error", err)
		billingCache = cache.NewMemory(sessionTTL)
	}

	db, err := mysql.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()
	logger.Info("Database connected", "host", cfg.Database.Host, "name", cfg.Database.Name)

	policy, err := rbac.Load(cfg.Policy)
	if err != nil {
		logger.Fatal("Failed to load access policy", "error", err)
	}

	var sink audit.Appender
	if cfg.Audit.Sink == "cache" {
		sink = audit.NewCacheAppender(billingCache)
	} else {
		sink = audit.NewLogAppender(logger)
	}
	auditor := audit.NewEmitter(sink, logger, audit.Options{
		Buffer:    cfg.Audit.Buffer,
		LogDenied: cfg.Audit.LogDenied,
	})

	gateway := repo.New(db.DB, logger)

	apiServer := api.NewServer(cfg, logger, billingCache, gateway, policy, auditor, db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := apiServer.Start(ctx); err != nil {
		logger.Fatal("Server failed to start", "error", err)
	}

	logger.Info("billing-core shutdown complete")
}
