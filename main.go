package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	database "github.com/pmoura/go-recipe-api/app/db"
	appLogger "github.com/pmoura/go-recipe-api/app/logger"
	"github.com/pmoura/go-recipe-api/app/observability/metrics"
	"github.com/pmoura/go-recipe-api/app/tracer"
	"github.com/pmoura/go-recipe-api/config"
	"github.com/pmoura/go-recipe-api/internal/api/auth"
	"github.com/pmoura/go-recipe-api/internal/api/ingredient"
	"github.com/pmoura/go-recipe-api/internal/api/recipe"
	"github.com/pmoura/go-recipe-api/internal/api/tag"
	"github.com/pmoura/go-recipe-api/internal/media"
	"github.com/pmoura/go-recipe-api/internal/router"
	"github.com/pmoura/go-recipe-api/internal/types"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// --- Database Setup ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}

	// Run migrations before initializing the main pool
	err = database.RunMigrations(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// --- Tracing & Metrics ---
	metricsHandler, err := tracer.InitTracingAndMetrics()
	if err != nil {
		logger.Error("Failed to initialize tracing and metrics", slog.Any("error", err))
		os.Exit(1)
	}
	metrics.InitAppMetrics()

	// --- Dependency Injection ---
	authRepo := auth.NewPostgresAuthRepo(pool, logger)
	authService := auth.NewAuthService(authRepo, logger)
	authHandler := auth.NewHandler(authService, logger)

	tagRepo := tag.NewPostgresTagRepo(pool, logger)
	tagService := tag.NewService(tagRepo, logger)
	tagHandler := tag.NewHandler(tagService, logger)

	ingredientRepo := ingredient.NewPostgresIngredientRepo(pool, logger)
	ingredientService := ingredient.NewService(ingredientRepo, logger)
	ingredientHandler := ingredient.NewHandler(ingredientService, logger)

	mediaStore := media.NewDiskStore(cfg.Media.Root, logger)
	recipeRepo := recipe.NewPostgresRecipeRepo(pool, logger)
	recipeService := recipe.NewService(recipeRepo, mediaStore, logger)
	recipeHandler := recipe.NewHandler(recipeService, logger)

	if err := bootstrapSuperuser(ctx, authService, logger); err != nil {
		logger.Error("Failed to bootstrap superuser", slog.Any("error", err))
		os.Exit(1)
	}

	tokenCache := auth.NewTokenCache()
	routerConfig := &router.Config{
		AuthHandler:            authHandler,
		TagHandler:             tagHandler,
		IngredientHandler:      ingredientHandler,
		RecipeHandler:          recipeHandler,
		AuthenticateMiddleware: auth.Authenticate(logger, authService, tokenCache),
	}
	apiRouter := router.SetupRouter(routerConfig)

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(appLogger.StructuredLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.StripSlashes)
	mux.Use(middleware.Timeout(60 * time.Second))
	mux.Use(middleware.Compress(5, "application/json"))
	mux.Mount("/", apiRouter)

	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	metricsMux := chi.NewMux()
	metricsMux.Handle("/metrics", metricsHandler)
	metricsSrv := &http.Server{
		Addr:     fmt.Sprintf(":%s", cfg.Handlers.Prometheus.Port),
		Handler:  metricsMux,
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting metrics server", slog.String("address", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutdown signal received, starting graceful shutdown...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server graceful shutdown failed", slog.Any("error", err))
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server graceful shutdown failed: %w", err)
		}
		logger.Info("HTTP server gracefully stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server exited with error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("Application shut down complete.")
}

// bootstrapSuperuser creates the administrative account from ADMIN_EMAIL and
// ADMIN_PASSWORD when both are set. An already existing account is fine.
func bootstrapSuperuser(ctx context.Context, authService auth.AuthService, logger *slog.Logger) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	_, err := authService.CreateSuperuser(ctx, email, password)
	if err != nil {
		var fe types.FieldErrors
		if errors.As(err, &fe) {
			logger.Info("Superuser already exists, skipping bootstrap", slog.String("email", email))
			return nil
		}
		return err
	}

	logger.Info("Superuser created", slog.String("email", email))
	return nil
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	var logger *slog.Logger
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" {
		// Colored logs for development
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		// JSON logs for production or other environments
		jsonOpts := &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: false,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
