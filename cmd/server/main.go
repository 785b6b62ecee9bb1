package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/tendant/featured-sync/pkg/featuredsync/api"
	"github.com/tendant/featured-sync/pkg/featuredsync/config"
)

func main() {
	_ = godotenv.Load()

	serverConfig, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load server configuration", "error", err)
		os.Exit(1)
	}

	logger := serverConfig.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	ctx := context.Background()
	if serverConfig.DatabaseType == "postgres" {
		if err := config.PingPostgres(ctx, serverConfig.DatabaseURL); err != nil {
			logger.Error("Database unreachable", "error", err)
			os.Exit(1)
		}
	}

	runtime, err := serverConfig.BuildService(ctx, logger)
	if err != nil {
		logger.Error("Failed to build service", "error", err)
		os.Exit(1)
	}

	server := NewHTTPServer(runtime, serverConfig, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: server.Routes(),
	}

	go func() {
		logger.Info("Featured sync server starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment,
			"database", serverConfig.DatabaseType,
			"media_source", serverConfig.MediaSource)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	// Waits for in-flight featured image updates.
	if err := runtime.Close(); err != nil {
		logger.Error("Failed to close service", "error", err)
	}

	logger.Info("Server exiting")
}

// HTTPServer wraps the featured-sync runtime for HTTP access
type HTTPServer struct {
	runtime *config.Runtime
	config  *config.ServerConfig
	logger  *slog.Logger
}

// NewHTTPServer creates a new HTTP server wrapper
func NewHTTPServer(runtime *config.Runtime, serverConfig *config.ServerConfig, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPServer{
		runtime: runtime,
		config:  serverConfig,
		logger:  logger,
	}
}

// Routes sets up the HTTP routes
func (s *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS for development
	if s.config.Environment == "development" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	r.Get("/health", s.handleHealth)
	r.Get("/config", s.handleGetConfig)

	handler := api.NewHandler(s.runtime.Service, s.runtime.Notices, s.logger)
	r.Mount("/api/v1", handler.Routes())

	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{
		"status":      "healthy",
		"environment": s.config.Environment,
	})
}

func (s *HTTPServer) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"environment":  s.config.Environment,
		"database":     s.config.DatabaseType,
		"media_source": s.config.MediaSource,
		"ack_timeout":  s.config.AckTimeout.String(),
		"s3_bucket":    s.config.S3.Bucket,
	})
}
