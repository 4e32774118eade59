package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"

	cfg "github.com/sand/restaurant-orders-app/backend/config"
	"github.com/sand/restaurant-orders-app/backend/internal/handlers"
	"github.com/sand/restaurant-orders-app/backend/internal/notifier"
	"github.com/sand/restaurant-orders-app/backend/internal/usecases"
	repository "github.com/sand/restaurant-orders-app/backend/internal/usecases/repository"
	"github.com/sand/restaurant-orders-app/backend/internal/workers"
	"github.com/sand/restaurant-orders-app/backend/pkg/cache"
	"github.com/sand/restaurant-orders-app/backend/pkg/database"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Server timeout constants.
const (
	readTimeoutSeconds     = 15
	writeTimeoutSeconds    = 15
	idleTimeoutSeconds     = 60
	shutdownTimeoutSeconds = 5
)

func main() {
	time.Local = time.UTC

	// Parse configuration
	config, err := cfg.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	// Setup logging
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if config.App.Debug {
		opts.Level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, opts))
	logger.Info("Starting application with configuration",
		"debug", config.App.Debug,
		"server_port", config.HTTP.Port,
		"sweep_interval_minutes", config.Workers.SweepInterval,
		"redis_enabled", config.Redis.Addr != "")

	migrationsPath := resolveMigrationsPath(config.DB.MigrationsPath)

	// Connect to Database
	pg, err := database.New(config,
		database.MaxPoolSize(config.DB.PoolMax),
		database.ConnTimeout(config.DB.ConnectTimeout),
		database.HealthCheckPeriod(config.DB.HealthCheckPeriod),
		database.Isolation(pgx.ReadCommitted),
	)
	if err != nil {
		logger.Error("postgres connection failed", slog.String("error", err.Error()))
		return
	}
	defer pg.Close()

	// Run database migrations
	logger.Info("Running database migrations", "path", migrationsPath)
	if err = database.RunMigrations(logger, config.DB.DatabaseURL, migrationsPath); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		log.Fatal(err)
	}
	logger.Info("Database migrations completed successfully")

	// Create repositories
	ordersRepository := repository.NewOrdersRepository(logger, pg)
	menuRepository := repository.NewMenuRepository(logger, pg)
	usersRepository := repository.NewUsersRepository(logger, pg)

	// Optional price cache
	var priceCache cache.Cache
	if config.Redis.Addr != "" {
		priceCache = cache.NewRedisCache(config.Redis.Addr, config.App.Name)
	}

	// Create usecases and components
	orderNotifier := notifier.New(logger)
	defer orderNotifier.Close()

	menuService := usecases.NewMenuService(
		logger,
		menuRepository,
		priceCache,
		time.Duration(config.Redis.PriceTTLSeconds)*time.Second,
	)
	orderService := usecases.NewOrderService(logger, pg.Transactor, ordersRepository, menuService, orderNotifier)
	authService := usecases.NewAuthService(
		logger,
		usersRepository,
		config.Auth.JWTSecret,
		time.Duration(config.Auth.TokenTTLHours)*time.Hour,
	)

	// Start the status sweeper on a cancellable context so shutdown can
	// wait for an in-flight pass to finish.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	sweeper := workers.NewStatusSweeper(logger, orderService, time.Duration(config.Workers.SweepInterval)*time.Minute)
	go func() {
		logger.Info("Starting order status sweeper")
		sweeper.Start(workerCtx)
	}()

	// Create handlers
	websocketManager := handlers.NewWebSocketManager()
	httpHandler := handlers.NewHTTPHandler(logger, orderService, menuService, authService)
	wsHandler := handlers.NewWebSocketHandler(logger, orderService, orderNotifier, websocketManager)

	// Create router
	router := mux.NewRouter()

	// Register WebSocket routes before HTTP routes
	wsHandler.RegisterRoutes(router)
	httpHandler.RegisterRoutes(router)

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key"},
		AllowCredentials: true,
	})

	// Wrap router in CORS middleware
	handler := c.Handler(router)

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         ":" + config.HTTP.Port,
		Handler:      handler,
		ReadTimeout:  readTimeoutSeconds * time.Second,
		WriteTimeout: writeTimeoutSeconds * time.Second,
		IdleTimeout:  idleTimeoutSeconds * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "address", server.Addr)
		if err = server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			log.Fatal(err)
		}
	}()

	// Set up graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	stopWorkers()
	<-sweeper.Done()

	// Give 5 seconds to complete current requests
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeoutSeconds*time.Second)
	defer cancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
		return
	}

	logger.Info("Server exited properly")
}

// resolveMigrationsPath falls back to looking next to and above the working
// directory when the configured path does not exist.
func resolveMigrationsPath(configured string) string {
	if _, err := os.Stat(configured); err == nil {
		return configured
	}

	if workDir, err := os.Getwd(); err == nil {
		if _, err := os.Stat(filepath.Join(workDir, "migrations")); !os.IsNotExist(err) {
			return filepath.Join(workDir, "migrations")
		}
		if _, err := os.Stat(filepath.Join(workDir, "..", "migrations")); !os.IsNotExist(err) {
			return filepath.Join(workDir, "..", "migrations")
		}
	}

	return configured
}
