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
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-lineup-client/internal/api"
	"github.com/stitts-dev/dfs-lineup-client/internal/api/handlers"
	"github.com/stitts-dev/dfs-lineup-client/internal/api/middleware"
	"github.com/stitts-dev/dfs-lineup-client/internal/api/websocket"
	"github.com/stitts-dev/dfs-lineup-client/internal/builds"
	"github.com/stitts-dev/dfs-lineup-client/internal/feeds"
	"github.com/stitts-dev/dfs-lineup-client/internal/session"
	"github.com/stitts-dev/dfs-lineup-client/internal/solver"
	"github.com/stitts-dev/dfs-lineup-client/pkg/config"
	"github.com/stitts-dev/dfs-lineup-client/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to Redis; the pool cache is optional, so a missing Redis
	// degrades to direct feed fetches instead of refusing to start
	var poolCache *feeds.PoolCache
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("Invalid Redis URL, pool caching disabled")
	} else {
		redisClient := redis.NewClient(opt)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Warn("Redis unreachable, pool caching disabled")
		} else {
			poolCache = feeds.NewPoolCache(redisClient, cfg.PoolCacheTTL)
			defer redisClient.Close()
		}
	}

	// Builds database; degrades to in-memory on open failure
	store := builds.NewStore(cfg.BuildsDBPath, cfg.IsDevelopment(), log)
	settings := builds.NewSettingsStore(store)

	// Feed service with scheduled pool refreshes
	feedService := feeds.NewService(cfg.FeedBaseURL, cfg.FeedTimeout, poolCache,
		cfg.FeedRatePerMinute, cfg.FeedRefreshCron, log)
	if err := feedService.Start(); err != nil {
		log.WithError(err).Error("Failed to start feed refresher")
	}
	defer feedService.Stop()

	// Progress hub
	hub := websocket.NewHub(log)
	go hub.Run()

	// Session manager; each page session gets its own solver client
	newClient := func() *solver.Client {
		return solver.NewClient(cfg.SolverStreamURL, cfg.SolverBatchURL, cfg.SolverTimeout, log)
	}
	manager := session.NewManager(newClient, store, settings, hub, log)

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CorsOrigins))

	healthHandler := handlers.NewHealthHandler(store)
	router.GET("/health", healthHandler.GetHealth)

	apiV1 := router.Group("/api/v1")
	api.SetupRoutes(apiV1, manager, feedService, store, cfg)
	api.SetupWebSocket(router, hub)

	// Setup server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
