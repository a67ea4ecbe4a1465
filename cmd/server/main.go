package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"martpos/backend/internal/cache"
	"martpos/backend/internal/config"
	"martpos/backend/internal/httpapi"
	"martpos/backend/internal/logger"
	"martpos/backend/internal/metrics"
	"martpos/backend/internal/service"
	"martpos/backend/internal/store"
	"martpos/backend/internal/store/memory"
	pgstore "martpos/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			zlog.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		repo = pg
		closers = append(closers, pg.Close)
		zlog.Info("repository ready", zap.String("kind", "postgres"))
	} else {
		repo = memory.NewSeeded()
		zlog.Info("repository ready", zap.String("kind", "in-memory"))
	}

	blacklist := cache.TokenBlacklist(cache.NewMemoryTokenBlacklist())
	if cfg.RedisAddr != "" {
		redisBlacklist := cache.NewRedisTokenBlacklist(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisBlacklist.Ping(ctx); err != nil {
			zlog.Warn("redis unavailable, using in-memory token blacklist", zap.Error(err))
		} else {
			blacklist = redisBlacklist
			closers = append(closers, redisBlacklist.Close)
			zlog.Info("token blacklist ready", zap.String("kind", "redis"))
		}
	} else {
		zlog.Info("token blacklist ready", zap.String("kind", "in-memory"))
	}

	m := metrics.New()
	svc := service.New(repo, zlog, m)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo, blacklist)
	api := httpapi.New(svc, auth, zlog, m, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zlog.Info("POS backend listening", zap.String("addr", cfg.Address()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zlog.Error("close error", zap.Error(err))
		}
	}

	zlog.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
