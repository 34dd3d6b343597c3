package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tobangado69/vrpsolver/internal/api"
	"github.com/tobangado69/vrpsolver/internal/cache"
	"github.com/tobangado69/vrpsolver/internal/common/health"
	"github.com/tobangado69/vrpsolver/internal/common/logging"
	"github.com/tobangado69/vrpsolver/internal/common/ratelimit"
	"github.com/tobangado69/vrpsolver/internal/config"
	"github.com/tobangado69/vrpsolver/internal/jobqueue"
	"github.com/tobangado69/vrpsolver/internal/realtime"
	solverhealth "github.com/tobangado69/vrpsolver/internal/solver/health"
	"github.com/tobangado69/vrpsolver/internal/store"
)

// main wires the VRP solve-run API server: the solver engine itself
// (internal/solver/engine) runs inside internal/jobqueue.SolveJob, one
// per dequeued run, rather than inline in an HTTP handler — a solve can
// run for minutes under its wall-clock termination budget, so it is
// submitted, queued, and polled/streamed rather than held open on a
// single request.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg := config.Load()

	loggerConfig := &logging.LoggerConfig{
		Level:      logging.LogLevel(envOr("LOG_LEVEL", "info")),
		Format:     "json",
		Output:     os.Stdout,
		AddSource:  true,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	logger := logging.NewLogger(loggerConfig)
	logging.InitDefaultLogger(loggerConfig)
	logger.Info("starting vrpsolver API", "version", "1.0.0", "environment", cfg.Environment)

	logger.Info("connecting to database...")
	db, err := store.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		log.Fatal("failed to connect to database:", err)
	}
	defer store.Close(db)
	logger.Info("database connected")

	logger.Info("connecting to redis...")
	redisClient, err := cache.Connect(cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		log.Fatal("failed to connect to redis:", err)
	}
	defer redisClient.Close()
	logger.Info("redis connected")

	storeManager := store.NewManager(db)
	redisCache := cache.NewRedisCache(redisClient, "vrpsolver")
	hub := realtime.NewHub(redisClient, realtime.DefaultConfig())
	auditLogger := logging.NewAuditLogger(logger, db)

	healthChecker := health.NewHealthChecker(db, redisClient, "vrpsolver API", "1.0.0")
	solverStats := solverhealth.NewRecorder()

	rateLimitManager := ratelimit.NewManager(redisClient, ratelimit.Policy{})
	rateLimitMonitor := ratelimit.NewMonitor(redisClient)

	jobManager := jobqueue.NewManager(redisClient, jobqueue.DefaultManagerConfig())
	jobManager.RegisterHandler(jobqueue.NewSolveJob(storeManager, hub, redisCache, solverStats))
	jobManager.RegisterHandler(jobqueue.NewStaleRunCleanupJob(storeManager))
	jobManager.RegisterHandler(jobqueue.NewSolutionPurgeJob(storeManager))
	if err := jobManager.Start(); err != nil {
		logger.Error("failed to start job manager", "error", err)
		log.Fatal("failed to start job manager:", err)
	}
	defer jobManager.Stop()
	logger.Info("job manager started")
	healthChecker.ObserveQueue(jobManager)

	router := api.New(api.Dependencies{
		Config:      cfg,
		Logger:      logger,
		Store:       storeManager,
		Cache:       redisCache,
		Jobs:        jobManager,
		Hub:         hub,
		HealthCheck: healthChecker,
		SolverStats: solverStats,
		RateLimit:   rateLimitManager,
		RateMonitor: rateLimitMonitor,
		Audit:       auditLogger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			log.Fatal("server error:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("server exited")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
