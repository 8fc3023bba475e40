package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/punnu35/expense-app/config"
	"github.com/punnu35/expense-app/handler"
	"github.com/punnu35/expense-app/middleware"
	"github.com/punnu35/expense-app/pkg/logger"
	"github.com/punnu35/expense-app/service"
)

func main() {
	// Optional .env overlay for local development; config values reference
	// the environment via ${VAR} expansion
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	slog.Info("configuration loaded successfully")

	// Initialize services
	minioSvc, err := service.NewMinioService(&cfg.Minio)
	if err != nil {
		slog.Error("failed to initialize MINIO service", "error", err)
		os.Exit(1)
	}

	// Ensure bucket exists
	if err := minioSvc.EnsureBucket(context.Background()); err != nil {
		slog.Error("failed to ensure MINIO bucket", "error", err)
		os.Exit(1)
	}

	store, err := newClaimStore(context.Background(), &cfg.Store)
	if err != nil {
		slog.Error("failed to initialize claim store", "error", err)
		os.Exit(1)
	}

	visionSvc := service.NewVisionService(&cfg.Vision)
	resolver := service.NewRoleResolver(&cfg.Roles)
	lifecycleSvc := service.NewLifecycleService(store, resolver, &cfg.Policy)
	ingestSvc := service.NewIngestService(store, visionSvc)
	exportSvc := service.NewExportService(lifecycleSvc)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg, resolver)
	claimHandler := handler.NewClaimHandler(lifecycleSvc, minioSvc, exportSvc)
	webhookHandler := handler.NewWebhookHandler(ingestSvc, &cfg.Vision)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	// Add custom middleware
	router.Use(middleware.RequestID())                 // Request ID for tracing
	router.Use(middleware.Recovery())                  // Panic recovery
	router.Use(middleware.RequestLogger())             // Access logging
	router.Use(corsMiddleware())                       // CORS
	router.Use(middleware.RateLimit(100, time.Minute)) // Rate limiting: 100 requests per minute

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
		api.POST("/ocr/webhook", webhookHandler.HandleOCR)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.POST("/claims", claimHandler.Create)
		protected.GET("/claims", claimHandler.List)
		protected.GET("/claims/export", claimHandler.Export)
		protected.GET("/claims/:id", claimHandler.Get)
		protected.PATCH("/claims/:id", claimHandler.Edit)
		protected.POST("/claims/:id/receipts", claimHandler.AddReceipts)
		protected.POST("/claims/:id/approve", claimHandler.Approve)
		protected.POST("/claims/:id/reject", claimHandler.Reject)
		protected.POST("/claims/:id/pay", claimHandler.Pay)
		protected.POST("/claims/:id/close", claimHandler.Close)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
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

	slog.Info("server exited gracefully")
}

// newClaimStore selects the persistence backend from config. The in-memory
// store is the default and needs no setup; postgres gets its schema applied
// on startup.
func newClaimStore(ctx context.Context, cfg *config.StoreConfig) (service.ClaimStore, error) {
	switch cfg.Driver {
	case "", "memory":
		slog.Info("using in-memory claim store")
		return service.NewMemoryStore(), nil
	case "postgres":
		store, err := service.NewPostgresStore(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		slog.Info("using postgres claim store")
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
