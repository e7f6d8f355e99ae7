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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/vaultik/capsulechain/internal/api"
	"github.com/vaultik/capsulechain/internal/assetindex"
	"github.com/vaultik/capsulechain/internal/config"
	"github.com/vaultik/capsulechain/internal/database"
	"github.com/vaultik/capsulechain/internal/repositories"
	"github.com/vaultik/capsulechain/internal/services"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create postgres pool: %v", err)
	}
	defer postgresPool.Close()

	if err := database.EnsureSchema(ctx, postgresPool); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create redis client: %v", err)
	}
	defer redisClient.Close()

	// Repositories
	configRepo := repositories.NewPostgresConfigRepository(postgresPool)
	capsuleRepo := repositories.NewPostgresCapsuleRepository(postgresPool)
	transferLogRepo := repositories.NewPostgresTransferLogRepository(postgresPool)

	// Asset index client with a short-TTL cache in front
	indexClient := assetindex.NewCachedClient(
		assetindex.NewClient(cfg.AssetIndexURL),
		redisClient,
		cfg.AssetCacheTTL,
	)

	// Services
	authService := services.NewAuthService(cfg.JWTSecret, cfg.JWTExpiry)
	capsuleService := services.NewCapsuleService(configRepo, capsuleRepo, cfg.ConfigAuthority)
	transferService := services.NewTransferService(capsuleService, indexClient, transferLogRepo)

	// Initialize HTTP Server
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	app := api.NewAPI(authService, capsuleService, transferService, indexClient)
	app.Routes(router)

	// Start Server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
