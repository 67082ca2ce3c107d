package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "github.com/storyreel/backend/api/v1"
	"github.com/storyreel/backend/cache"
	"github.com/storyreel/backend/config"
	"github.com/storyreel/backend/database"
	"github.com/storyreel/backend/metrics"
	"github.com/storyreel/backend/repositories"
	"github.com/storyreel/backend/services"
	"github.com/storyreel/backend/storage"
	"github.com/storyreel/backend/transform"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if cfg.JWTSecret == "" {
		logger.Error("JWT_SECRET must be set")
		os.Exit(1)
	}

	// Primary store: Postgres via GORM
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to primary store")

	// Secondary store: MongoDB document mirror
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	secondary, err := storage.NewMongoSecondaryStore(ctx, storage.MongoConfig{
		URI:      cfg.MongoURI,
		Database: cfg.MongoDB,
		Enabled:  cfg.MongoEnable,
	})
	cancel()
	if err != nil {
		logger.Error("failed to connect to secondary store", "error", err)
		os.Exit(1)
	}

	// Storage strategy is fixed for the process lifetime; fail fast when
	// the configuration is unsatisfiable.
	strategy := storage.StrategyFromEnv()
	if err := strategy.Validate(secondary.Enabled()); err != nil {
		logger.Error("invalid storage strategy", "error", err)
		os.Exit(1)
	}
	logger.Info("storage strategy resolved", "mode", strategy.Mode, "environment", strategy.Environment)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	repoCache := cache.New(
		cache.WithMaxEntries(100),
		cache.WithDefaultTTL(5*time.Minute),
		cache.WithMetrics(m),
	)

	primary := storage.NewGormPrimaryStore(db)
	engine := storage.NewEngine(
		primary,
		secondary,
		transform.NewTransformer(),
		strategy,
		logger.With("component", "storage"),
		m,
		time.Now,
	)

	repo := repositories.NewProjectRepository(engine, primary, repoCache, logger.With("component", "repository"))

	authService := services.NewAuthService(db, cfg.JWTSecret)
	projectService := services.NewProjectService(repo)
	shareService := services.NewShareLinkService(repo, cfg.JWTSecret)

	// HTTP server
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	}))

	router.GET("/", v1.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	handlers := v1.NewHandlers(authService, projectService, shareService)
	handlers.RegisterRoutes(router.Group("/api/v1"), authService)

	logger.Info("server starting", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}
