package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/contrlabs/costcontrl/backend/config"
	"github.com/contrlabs/costcontrl/backend/estimation"
	"github.com/contrlabs/costcontrl/backend/handler"
	"github.com/contrlabs/costcontrl/backend/middleware"
	"github.com/contrlabs/costcontrl/backend/pkg/logger"
	"github.com/contrlabs/costcontrl/backend/service"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	configPath := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		configPath = v
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	// Database
	db, err := service.OpenDatabase(&cfg.Database)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	if err := service.AutoMigrate(db); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	store := service.NewStore(db)
	if n, err := store.SeedGlobalTemplates(context.Background()); err != nil {
		slog.Error("failed to seed price templates", "error", err)
		os.Exit(1)
	} else if n > 0 {
		slog.Info("price templates seeded", "count", n)
	}

	// Object storage
	minioSvc, err := service.NewMinioService(&cfg.Minio)
	if err != nil {
		slog.Error("failed to initialize MINIO service", "error", err)
		os.Exit(1)
	}
	if err := minioSvc.EnsureBucket(context.Background()); err != nil {
		slog.Error("failed to ensure MINIO bucket", "error", err)
		os.Exit(1)
	}

	// Text extraction
	var (
		extractor service.Extractor
		mineruSvc *service.MineruService
	)
	switch cfg.Extraction.Provider {
	case "mineru":
		mineruSvc = service.NewMineruService(&cfg.Mineru)
		extractor = mineruSvc
	case "http":
		extractor = service.NewHTTPExtractor(&cfg.Extraction)
	default:
		slog.Error("unknown extraction provider", "provider", cfg.Extraction.Provider)
		os.Exit(1)
	}
	slog.Info("text extraction configured", "provider", cfg.Extraction.Provider)

	// Estimation pipeline
	credentials := service.NewCredentialResolver(service.EnvSource{}, service.NewSettingsSource(store))
	newModel := func(apiKey string) estimation.Completer {
		return service.NewLLMClient(&cfg.LLM, apiKey)
	}
	pipeline := estimation.NewPipeline(store, extractor, minioSvc, credentials, newModel, cfg.Estimation)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	callbackHandler := handler.NewCallbackHandler(mineruSvc, cfg.Mineru.UID)
	projectHandler := handler.NewProjectHandler(store, minioSvc, pipeline)
	itemHandler := handler.NewItemHandler(store)
	templateHandler := handler.NewTemplateHandler(store)
	settingsHandler := handler.NewSettingsHandler(store)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())                 // Request ID for tracing
	router.Use(middleware.Recovery())                  // Panic recovery
	router.Use(middleware.RequestLogger())             // Access logging
	router.Use(corsMiddleware())                       // CORS
	router.Use(noCacheMiddleware())                    // API responses are never cached
	router.Use(middleware.RateLimit(100, time.Minute)) // 100 requests per minute per client IP

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	// Public routes
	api := router.Group("/api")
	{
		api.POST("/auth/login", authHandler.Login)
		api.POST("/mineru/callback", callbackHandler.HandleCallback)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)

		protected.POST("/projects", projectHandler.Create)
		protected.GET("/projects", projectHandler.List)
		protected.GET("/projects/:id", projectHandler.Get)
		protected.DELETE("/projects/:id", projectHandler.Delete)
		protected.GET("/projects/:id/status", projectHandler.GetStatus)
		protected.POST("/projects/:id/files", projectHandler.UploadFile)
		protected.GET("/projects/:id/files", projectHandler.ListFiles)
		protected.POST("/projects/:id/estimate",
			middleware.RateLimitBy(5, time.Minute, middleware.ByUser), // 5 runs per minute per user
			projectHandler.Estimate)

		protected.GET("/projects/:id/items", itemHandler.List)
		protected.POST("/projects/:id/items", itemHandler.Add)
		protected.PATCH("/items/:itemId", itemHandler.Update)
		protected.DELETE("/items/:itemId", itemHandler.Delete)
		protected.GET("/projects/:id/changes", itemHandler.Changes)

		protected.GET("/templates", templateHandler.List)
		protected.GET("/templates/search", templateHandler.Search)
		protected.POST("/templates", templateHandler.Add)
		protected.DELETE("/templates/:id", templateHandler.Delete)

		protected.GET("/settings/:key", settingsHandler.Get)
		protected.PUT("/settings/:key", settingsHandler.Put)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Let running estimates write their results.
	done := make(chan struct{})
	go func() {
		projectHandler.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.Estimation.ExtractionTimeout.Duration() + 2*cfg.Estimation.ModelCallTimeout.Duration()):
		slog.Warn("estimates still running at exit")
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// noCacheMiddleware marks API responses uncacheable
func noCacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
		}
		c.Next()
	}
}
