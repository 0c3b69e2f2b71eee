package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AB-octo/Updated-Real-Estate-App/internal/auth"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/classifier"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/config"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/handler"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/repository"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/service"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger()
	slog.SetDefault(logger)
	logger.Info("listing moderation service",
		"version", Version,
		"build_time", BuildTime,
		"git_commit", GitCommit,
	)

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog := classifier.DefaultCatalog()

	// Initialize listing repository
	var repo service.ListingRepository
	if cfg.PostgreSQL.Enabled {
		pg, err := repository.NewPostgresRepository(
			cfg.GetPostgreSQLDSN(),
			cfg.PostgreSQL.MaxConnections,
			cfg.PostgreSQL.MaxIdleConnections,
		)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx, catalog.Len()); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		repo = pg
		logger.Info("connected to PostgreSQL database")
	} else {
		repo = repository.NewMemoryRepository()
		logger.Warn("PG_ENABLED=false, listings are kept in memory")
	}

	// Initialize image storage
	router := gin.Default()
	router.MaxMultipartMemory = cfg.Upload.MaxFileBytes * int64(cfg.Upload.MaxFiles)

	var images service.ImageStore
	if cfg.Storage.Endpoint != "" {
		store, err := storage.NewMinioStore(&cfg.Storage)
		if err != nil {
			logger.Error("failed to initialize object storage", "error", err)
			os.Exit(1)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			logger.Error("failed to ensure bucket", "bucket", cfg.Storage.Bucket, "error", err)
			os.Exit(1)
		}
		images = store
		logger.Info("object storage ready", "endpoint", cfg.Storage.Endpoint, "bucket", cfg.Storage.Bucket)
	} else {
		mem := storage.NewMemoryStore(fmt.Sprintf("http://localhost:%d/media", cfg.Server.Port))
		router.GET("/media/*key", handler.Media(mem))
		images = mem
		logger.Warn("S3_ENDPOINT not set, images are kept in memory")
	}

	// Initialize authentication
	verifier, err := auth.New(&cfg.Auth)
	if err != nil {
		logger.Error("failed to initialize authentication", "error", err)
		os.Exit(1)
	}
	if cfg.Auth.Mode == "dev" {
		logger.Warn("AUTH_MODE=dev accepts unsigned dev:<user> tokens")
	}

	// Initialize services
	scorer := classifier.NewClipClient(&cfg.Classifier, logger)
	gate := classifier.NewGate(catalog, scorer, cfg.Classifier.Concurrency, logger)
	listingService := service.NewListingService(repo, images, gate, cfg.Upload, logger)

	logger.Info("services initialized",
		"classifier", cfg.Classifier.URL,
		"categories", catalog.Len(),
		"threshold", classifier.AcceptThreshold,
	)

	// Initialize handlers
	listingHandler := handler.NewListingHandler(listingService, cfg.Upload.MaxFileBytes, logger)
	validationHandler := handler.NewValidationHandler(listingService, cfg.Upload.MaxFileBytes, logger)

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = splitList(cfg.Server.AllowedOrigins)
	corsConfig.AllowMethods = splitList(cfg.Server.AllowedMethods)
	corsConfig.AllowHeaders = splitList(cfg.Server.AllowedHeaders)
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":     "healthy",
			"service":    "listing-moderation",
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// Version endpoint
	router.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"git_commit": GitCommit,
		})
	})

	// API routes
	apiV1 := router.Group("/api/v1", handler.Authenticate(verifier))
	handler.Register(apiV1, listingHandler, validationHandler)

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}
	logger.Info("starting server", "addr", addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
