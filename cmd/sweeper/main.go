package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/nova-ops/account-sweeper/internal/handler"
	"github.com/nova-ops/account-sweeper/internal/repository"
	"github.com/nova-ops/account-sweeper/internal/service"
	"github.com/nova-ops/account-sweeper/internal/upstream"
	"github.com/nova-ops/account-sweeper/pkg/cache"
	"github.com/nova-ops/account-sweeper/pkg/config"
	"github.com/nova-ops/account-sweeper/pkg/database"
	"github.com/nova-ops/account-sweeper/pkg/logger"
	reqidmiddleware "github.com/nova-ops/account-sweeper/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, sweep reports will not be cached", "error", err)
		} else {
			defer redisClient.Close()
		}
	}

	accounts := repository.NewAccountRepository(db)
	runCache := repository.NewRunCache(redisClient)

	prober := upstream.NewProbeClient(cfg.Upstream.ProbeBaseURL, cfg.Upstream.ProbeTimeout)
	refresher := upstream.NewRefreshClient(cfg.Upstream.TokenURL, cfg.Upstream.RefreshTimeout)

	metrics := service.NewMetricsService()
	checker := service.NewCheckerService(accounts, prober, refresher, logr)
	sweeper := service.NewSweeperService(cfg.Sweeper, accounts, checker, runCache, metrics, logr)

	sweeper.Start(context.Background())

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	ops := handler.NewOpsHandler(sweeper, runCache, cfg.Sweeper.Enabled)
	api := r.Group("/api/v1")
	api.GET("/sweeper/status", ops.Status)
	api.POST("/sweeper/run", ops.Trigger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("shutting down")
	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown failed", "error", err)
	}
}
