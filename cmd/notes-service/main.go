package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/kjnelan/Mindline/internal/notes"
	"github.com/kjnelan/Mindline/pkg/config"
	"github.com/kjnelan/Mindline/pkg/database"
	"github.com/kjnelan/Mindline/pkg/logger"
	"github.com/kjnelan/Mindline/pkg/monitoring"
	"github.com/kjnelan/Mindline/pkg/repository"
)

const serviceName = "notes-service"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel)
	log.WithField("service", serviceName).Info("Starting clinical documentation service")

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	// Bootstrap schema
	schemaCtx, cancelSchema := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.CreateSchema(schemaCtx); err != nil {
		cancelSchema()
		log.WithError(err).Fatal("Failed to create database schema")
	}
	cancelSchema()
	log.WithComponent("database").Info("Database schema ready")

	// Initialize monitoring
	metrics := monitoring.NewMetricsCollector(serviceName)
	health := monitoring.NewHealthManager(serviceName, "1.0.0")
	health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))

	// Initialize repositories
	notesRepo := repository.NewNotesRepository(db.DB, log)
	draftsRepo := repository.NewDraftsRepository(db.DB, log)
	settingsRepo := repository.NewSettingsRepository(db.DB, log)
	goalsRepo := repository.NewGoalsRepository(db.DB, log)

	// Initialize settings gate and core service
	settingsGate := notes.NewSettingsGate(settingsRepo, log,
		time.Duration(cfg.Settings.CacheTTL)*time.Second)
	service := notes.NewService(notesRepo, draftsRepo, goalsRepo, settingsGate, log, metrics)

	// Initialize auth middleware and HTTP handlers
	validator := notes.NewTokenValidator(cfg.JWT.SecretKey, cfg.JWT.Issuer)
	auth := notes.NewAuthMiddleware(validator, log, metrics)
	handlers := notes.NewHandlers(service, log)

	// Setup HTTP router
	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.Use(metrics.HTTPMiddleware)
	router.Use(loggingMiddleware(log))

	// Unauthenticated operational endpoints
	if cfg.Monitoring.Enabled {
		router.Handle(cfg.Monitoring.MetricsPath, metrics.Handler()).Methods("GET")
	}
	router.HandleFunc(cfg.Monitoring.HealthPath, health.HTTPHandler()).Methods("GET")

	// Authenticated API routes
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(auth.Middleware)
	handlers.RegisterRoutes(apiRouter)

	// Setup HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.WithComponent("http").WithField("addr", server.Addr).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down clinical documentation service")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Failed to shutdown server gracefully")
	}

	log.Info("Clinical documentation service stopped")
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapper := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapper, r)

			log.HTTPRequest(r.Context(), r.Method, r.URL.Path, r.UserAgent(), r.RemoteAddr,
				wrapper.statusCode, time.Since(start).Milliseconds(), nil)
		})
	}
}

// corsMiddleware handles CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
